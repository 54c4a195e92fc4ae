// Package prompt loads and renders the message-formatting templates that
// turn backend-agnostic chat messages into model-specific prompt text.
package prompt

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/codito/arey/internal/llm"
)

// Kind selects which prompt skeleton of a template to render.
type Kind string

const (
	KindChat Kind = "chat"
	KindTask Kind = "task"
)

// Prompt is a named, validated message-formatting contract: token sets,
// stop words, the chat and task skeletons and one format string per role.
type Prompt struct {
	Name         string
	SystemTokens map[string]string
	CustomTokens map[string]string
	StopWords    []string

	skeletons   map[Kind]string
	roleFormats map[llm.SenderType]string
}

// Overrides is the restricted template form a user may layer on top of a
// base template. It supplies custom token substitutions only; skeletons and
// role formats are never replaceable.
type Overrides struct {
	Name         string            `yaml:"name"`
	CustomTokens map[string]string `yaml:"tokens"`
}

type promptFile struct {
	Name   string `yaml:"name"`
	Tokens struct {
		System map[string]string `yaml:"system"`
		Custom map[string]string `yaml:"custom"`
	} `yaml:"tokens"`
	StopWords []string `yaml:"stop_words"`
	Prompts   struct {
		Chat string `yaml:"chat"`
		Task string `yaml:"task"`
	} `yaml:"prompts"`
	Roles struct {
		System    string `yaml:"system"`
		User      string `yaml:"user"`
		AI        string `yaml:"ai"`
		Assistant string `yaml:"assistant"`
	} `yaml:"roles"`
}

// Parse decodes and validates a full template. A template missing its name,
// either skeleton or any role format is rejected at load time.
func Parse(data []byte) (*Prompt, error) {
	var file promptFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, llm.WrapError(llm.CategoryTemplate, err, "invalid prompt template")
	}
	if strings.TrimSpace(file.Name) == "" {
		return nil, llm.Errorf(llm.CategoryTemplate, "prompt template must define `name`")
	}
	if file.Prompts.Chat == "" || file.Prompts.Task == "" {
		return nil, llm.Errorf(llm.CategoryTemplate,
			"prompt template %q must define both `chat` and `task` under `prompts`", file.Name)
	}
	// Historical templates name the assistant role `ai`.
	assistant := file.Roles.Assistant
	if assistant == "" {
		assistant = file.Roles.AI
	}
	if file.Roles.System == "" || file.Roles.User == "" || assistant == "" {
		return nil, llm.Errorf(llm.CategoryTemplate,
			"prompt template %q must define `roles` formats for system, user and ai", file.Name)
	}
	return &Prompt{
		Name:         file.Name,
		SystemTokens: file.Tokens.System,
		CustomTokens: file.Tokens.Custom,
		StopWords:    file.StopWords,
		skeletons: map[Kind]string{
			KindChat: file.Prompts.Chat,
			KindTask: file.Prompts.Task,
		},
		roleFormats: map[llm.SenderType]string{
			llm.SenderSystem:    file.Roles.System,
			llm.SenderUser:      file.Roles.User,
			llm.SenderAssistant: assistant,
		},
	}, nil
}

// ParseOverrides decodes the restricted override form.
func ParseOverrides(data []byte) (*Overrides, error) {
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, llm.WrapError(llm.CategoryTemplate, err, "invalid prompt overrides")
	}
	return &o, nil
}

// ParseOverridesFile reads overrides from disk.
func ParseOverridesFile(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, llm.WrapError(llm.CategoryTemplate, err,
			fmt.Sprintf("cannot read prompt overrides %q", path))
	}
	return ParseOverrides(data)
}

// Merge returns a copy of the template with the override's custom tokens
// layered on top of its own.
func (p *Prompt) Merge(o *Overrides) *Prompt {
	if o == nil || len(o.CustomTokens) == 0 {
		return p
	}
	merged := *p
	merged.CustomTokens = make(map[string]string, len(p.CustomTokens)+len(o.CustomTokens))
	for k, v := range p.CustomTokens {
		merged.CustomTokens[k] = v
	}
	for k, v := range o.CustomTokens {
		merged.CustomTokens[k] = v
	}
	return &merged
}

// Get renders the named skeleton. Context tokens are applied over the
// template's system tokens, custom tokens last, so custom tokens win on
// collision. An unresolved token is a fatal template error, never a silent
// blank.
func (p *Prompt) Get(kind Kind, context map[string]string) (string, error) {
	skeleton, ok := p.skeletons[kind]
	if !ok {
		return "", llm.Errorf(llm.CategoryTemplate, "template %q has no %q prompt", p.Name, kind)
	}
	return p.render(skeleton, p.SystemTokens, context, p.CustomTokens)
}

// GetMessage renders one chat message through its role's format string.
// Overrides win over custom tokens, which win over the message text token.
func (p *Prompt) GetMessage(sender llm.SenderType, text string, overrides map[string]string) (string, error) {
	format, ok := p.roleFormats[sender]
	if !ok {
		return "", llm.Errorf(llm.CategoryTemplate,
			"template %q has no format for role %q", p.Name, sender.Role())
	}
	return p.render(format, map[string]string{"message_text": text}, p.CustomTokens, overrides)
}

// render substitutes $token / ${token} references against the given maps,
// later maps winning. Token names are identifiers; `$$` escapes a literal
// dollar and any other non-identifier `$` passes through untouched. Tokens
// left unresolved fail the render.
func (p *Prompt) render(text string, layers ...map[string]string) (string, error) {
	tokens := make(map[string]string)
	for _, layer := range layers {
		for k, v := range layer {
			tokens[k] = v
		}
	}
	var missing []string
	out := os.Expand(text, func(name string) string {
		if name == "$" {
			return "$"
		}
		if !isTokenName(name) {
			return "$" + name
		}
		if v, ok := tokens[name]; ok {
			return v
		}
		missing = append(missing, name)
		return ""
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", llm.Errorf(llm.CategoryTemplate,
			"template %q leaves tokens unresolved: %s", p.Name, strings.Join(missing, ", "))
	}
	return out, nil
}

func isTokenName(name string) bool {
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return name != ""
}
