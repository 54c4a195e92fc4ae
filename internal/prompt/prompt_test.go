package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/codito/arey/internal/llm"
)

const validTemplate = `
name: test
tokens:
  system:
    system_prompt: Be helpful.
  custom:
    suffix: "!"
stop_words:
  - "</s>"
prompts:
  chat: "SYSTEM: $system_prompt\n$message_history\nASSISTANT:"
  task: "SYSTEM: $system_prompt\nUSER: $user_query\nASSISTANT:"
roles:
  system: "SYSTEM: $message_text"
  user: "USER: $message_text"
  ai: "ASSISTANT: $message_text"
`

func mustParse(t *testing.T, data string) *Prompt {
	t.Helper()
	p, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return p
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name    string
		drop    string
		wantMsg string
	}{
		{"missing name", "name: test", "`name`"},
		{"missing task skeleton", `  task: "SYSTEM: $system_prompt\nUSER: $user_query\nASSISTANT:"`, "`prompts`"},
		{"missing ai role", `  ai: "ASSISTANT: $message_text"`, "`roles`"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := strings.Replace(validTemplate, tt.drop, "", 1)
			_, err := Parse([]byte(data))
			if err == nil {
				t.Fatal("Parse() accepted an invalid template")
			}
			var templateErr *llm.Error
			if !errors.As(err, &templateErr) || templateErr.Category != llm.CategoryTemplate {
				t.Fatalf("error = %v, want template category", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("error %q does not mention %s", err, tt.wantMsg)
			}
		})
	}
}

func TestParseAcceptsAssistantRoleName(t *testing.T) {
	data := strings.Replace(validTemplate, "  ai:", "  assistant:", 1)
	p := mustParse(t, data)
	got, err := p.GetMessage(llm.SenderAssistant, "hi", nil)
	if err != nil {
		t.Fatalf("GetMessage() error: %v", err)
	}
	if got != "ASSISTANT: hi" {
		t.Fatalf("GetMessage() = %q", got)
	}
}

func TestGetRendersSkeleton(t *testing.T) {
	p := mustParse(t, validTemplate)

	got, err := p.Get(KindTask, map[string]string{"user_query": "2+2?"})
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	want := "SYSTEM: Be helpful.\nUSER: 2+2?\nASSISTANT:"
	if got != want {
		t.Fatalf("Get() = %q, want %q", got, want)
	}
}

func TestGetCustomTokensWinOverContext(t *testing.T) {
	data := strings.Replace(validTemplate,
		`  custom:
    suffix: "!"`,
		`  custom:
    system_prompt: Custom wins.`, 1)
	p := mustParse(t, data)

	got, err := p.Get(KindTask, map[string]string{
		"system_prompt": "Context loses.",
		"user_query":    "hi",
	})
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !strings.Contains(got, "Custom wins.") || strings.Contains(got, "Context loses.") {
		t.Fatalf("Get() = %q, custom token did not win", got)
	}
}

func TestGetUnresolvedTokenFails(t *testing.T) {
	p := mustParse(t, validTemplate)

	_, err := p.Get(KindTask, nil) // user_query never supplied
	var templateErr *llm.Error
	if !errors.As(err, &templateErr) || templateErr.Category != llm.CategoryTemplate {
		t.Fatalf("error = %v, want template category", err)
	}
	if !strings.Contains(err.Error(), "user_query") {
		t.Fatalf("error %q does not name the unresolved token", err)
	}
}

func TestGetPassesLiteralDollarsThrough(t *testing.T) {
	data := strings.Replace(validTemplate,
		`  task: "SYSTEM: $system_prompt\nUSER: $user_query\nASSISTANT:"`,
		`  task: "Price is $5, escaped $$sign.\nUSER: $user_query\nASSISTANT:"`, 1)
	p := mustParse(t, data)

	got, err := p.Get(KindTask, map[string]string{"user_query": "hi"})
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	want := "Price is $5, escaped $sign.\nUSER: hi\nASSISTANT:"
	if got != want {
		t.Fatalf("Get() = %q, want %q", got, want)
	}
}

func TestGetMessage(t *testing.T) {
	p := mustParse(t, validTemplate)

	got, err := p.GetMessage(llm.SenderUser, "hi", nil)
	if err != nil {
		t.Fatalf("GetMessage() error: %v", err)
	}
	if got != "USER: hi" {
		t.Fatalf("GetMessage() = %q, want %q", got, "USER: hi")
	}
}

func TestMergeOverlaysCustomTokensOnly(t *testing.T) {
	p := mustParse(t, validTemplate)

	merged := p.Merge(&Overrides{
		Name:         "test-override",
		CustomTokens: map[string]string{"suffix": "?", "extra": "x"},
	})

	if merged.CustomTokens["suffix"] != "?" || merged.CustomTokens["extra"] != "x" {
		t.Fatalf("merged tokens = %v", merged.CustomTokens)
	}
	if p.CustomTokens["suffix"] != "!" {
		t.Fatal("Merge mutated the base template")
	}
	// Skeletons and role formats come from the base, untouched.
	if got, _ := merged.GetMessage(llm.SenderUser, "hi", nil); got != "USER: hi" {
		t.Fatalf("merged GetMessage() = %q", got)
	}
}

func TestParseOverrides(t *testing.T) {
	o, err := ParseOverrides([]byte("name: mine\ntokens:\n  system_prompt: Terse.\n"))
	if err != nil {
		t.Fatalf("ParseOverrides() error: %v", err)
	}
	if o.Name != "mine" || o.CustomTokens["system_prompt"] != "Terse." {
		t.Fatalf("ParseOverrides() = %+v", o)
	}
}

func TestLoadBuiltinTemplates(t *testing.T) {
	for _, name := range BuiltinTemplateNames() {
		t.Run(name, func(t *testing.T) {
			p, err := Load(name)
			if err != nil {
				t.Fatalf("Load(%q) error: %v", name, err)
			}
			if p.Name != name {
				t.Fatalf("template name = %q, want %q", p.Name, name)
			}
			if len(p.StopWords) == 0 {
				t.Fatalf("template %q has no stop words", name)
			}
			// Cached: a second load returns the same instance.
			again, err := Load(name)
			if err != nil {
				t.Fatalf("second Load(%q) error: %v", name, err)
			}
			if again != p {
				t.Fatal("Load() did not cache the template")
			}
		})
	}
}

func TestLoadUnknownTemplate(t *testing.T) {
	if _, err := Load("vicuna"); err == nil {
		t.Fatal("Load() accepted an unknown template name")
	}
}
