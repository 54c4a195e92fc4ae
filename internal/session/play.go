package session

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codito/arey/internal/llm"
	"github.com/codito/arey/internal/prompt"
)

//go:embed play.md
var playTemplate []byte

// PlayFile is a prompt plus model selection read from a markdown file with
// YAML front matter. The markdown body is the prompt.
type PlayFile struct {
	Model         string         `yaml:"model"`
	ModelSettings map[string]any `yaml:"settings"`
	Profile       map[string]any `yaml:"profile"`

	Prompt string `yaml:"-"`
	Path   string `yaml:"-"`
}

// ParsePlayFile reads and splits a play file into front matter and prompt.
func ParsePlayFile(path string) (*PlayFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, llm.WrapError(llm.CategoryConfig, err, fmt.Sprintf("cannot read play file %q", path))
	}
	front, body, err := splitFrontMatter(string(data))
	if err != nil {
		return nil, err
	}
	file := &PlayFile{Path: path}
	if err := yaml.Unmarshal([]byte(front), file); err != nil {
		return nil, llm.WrapError(llm.CategoryConfig, err, fmt.Sprintf("invalid front matter in %q", path))
	}
	if strings.TrimSpace(file.Model) == "" {
		return nil, llm.Errorf(llm.CategoryConfig, "play file %q does not name a model", path)
	}
	file.Prompt = strings.TrimSpace(body)
	return file, nil
}

// CreatePlayFile writes the built-in play template to a fresh file and
// returns its path. Used when the command is invoked without a file.
func CreatePlayFile(dir string) (string, error) {
	path := filepath.Join(dir, "arey_play.md")
	if err := os.WriteFile(path, playTemplate, 0o644); err != nil {
		return "", llm.WrapError(llm.CategorySystem, err, "cannot create play file")
	}
	return path, nil
}

func splitFrontMatter(content string) (front, body string, err error) {
	const marker = "---"
	trimmed := strings.TrimLeft(content, "\n\r \t")
	if !strings.HasPrefix(trimmed, marker) {
		return "", "", llm.Errorf(llm.CategoryConfig, "play file has no YAML front matter")
	}
	rest := trimmed[len(marker):]
	end := strings.Index(rest, "\n"+marker)
	if end < 0 {
		return "", "", llm.Errorf(llm.CategoryConfig, "play file front matter is not terminated")
	}
	front = rest[:end]
	body = rest[end+len(marker)+1:]
	if nl := strings.Index(body, "\n"); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = ""
	}
	return front, body, nil
}

// ModelResolver maps a configured model name to its resolved config.
type ModelResolver func(name string) (llm.ModelConfig, error)

// newModel constructs the backend for a resolved config. Tests swap this
// out for a scripted model.
var newModel = llm.New

// Play runs a play file repeatedly, reloading the model only when the
// file's model or settings changed since the last run. Runs share nothing
// else; each execution has the same contract as a Task.
type Play struct {
	resolve  ModelResolver
	template *prompt.Prompt

	model       llm.CompletionModel
	fingerprint string

	// Logs from the most recent model load.
	LoadLogs string
}

// NewPlay creates a play session. The model is constructed lazily on the
// first run.
func NewPlay(resolve ModelResolver, tpl *prompt.Prompt) *Play {
	return &Play{resolve: resolve, template: tpl}
}

// Run executes the play file's prompt once against its model.
func (p *Play) Run(ctx context.Context, file *PlayFile, yield func(chunk string) bool) (*TaskResult, error) {
	if err := p.ensureModel(ctx, file); err != nil {
		return nil, err
	}
	task := NewTask(p.model, p.template, llm.Settings(file.Profile))
	return task.Run(ctx, file.Prompt, yield)
}

// Model exposes the loaded model's metrics source for rendering.
func (p *Play) Model() llm.CompletionModel { return p.model }

// Close releases the current model, if any.
func (p *Play) Close() {
	if p.model != nil {
		p.model.Free()
		p.model = nil
		p.fingerprint = ""
	}
}

func (p *Play) ensureModel(ctx context.Context, file *PlayFile) error {
	cfg, err := p.resolve(file.Model)
	if err != nil {
		return err
	}
	if len(file.ModelSettings) > 0 {
		merged := make(map[string]any, len(cfg.Settings)+len(file.ModelSettings))
		for k, v := range cfg.Settings {
			merged[k] = v
		}
		for k, v := range file.ModelSettings {
			merged[k] = v
		}
		cfg.Settings = merged
	}

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return llm.WrapError(llm.CategorySystem, err, "cannot fingerprint model config")
	}
	fingerprint := string(raw)
	if p.model != nil && fingerprint == p.fingerprint {
		return nil
	}

	p.Close()
	model, err := newModel(cfg)
	if err != nil {
		return err
	}
	capture := llm.CaptureStderr()
	err = model.Load(ctx, p.template.SystemTokens["system_prompt"])
	p.LoadLogs = capture.Stop()
	if err != nil {
		model.Free()
		return err
	}
	p.model = model
	p.fingerprint = fingerprint
	return nil
}
