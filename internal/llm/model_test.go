package llm

import (
	"context"
	"errors"
	"testing"
)

var _ CompletionModel = (*MockModel)(nil)
var _ CompletionModel = (*ggufModel)(nil)
var _ CompletionModel = (*ollamaModel)(nil)
var _ CompletionModel = (*openaiModel)(nil)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ModelConfig
		wantErr bool
	}{
		{
			name:    "missing name",
			cfg:     ModelConfig{Provider: ProviderOllama},
			wantErr: true,
		},
		{
			name:    "unknown provider",
			cfg:     ModelConfig{Name: "m", Provider: "vllm"},
			wantErr: true,
		},
		{
			name:    "gguf without path",
			cfg:     ModelConfig{Name: "m", Provider: ProviderGguf},
			wantErr: true,
		},
		{
			name: "gguf with path",
			cfg: ModelConfig{
				Name:     "m",
				Provider: ProviderGguf,
				Settings: map[string]any{"path": "/tmp/model.gguf"},
			},
		},
		{
			name: "ollama needs only a name",
			cfg:  ModelConfig{Name: "llama3", Provider: ProviderOllama},
		},
		{
			name: "openai needs only a name",
			cfg:  ModelConfig{Name: "gpt-4o-mini", Provider: ProviderOpenAI},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var modelErr *Error
				if !errors.As(err, &modelErr) || modelErr.Category != CategoryConfig {
					t.Fatalf("error = %v, want config category", err)
				}
			}
		})
	}
}

func TestNewRejectsMissingGgufFile(t *testing.T) {
	cfg := ModelConfig{
		Name:     "tiny",
		Provider: ProviderGguf,
		Settings: map[string]any{"path": "/nonexistent/model.gguf"},
	}
	if _, err := New(cfg); err == nil {
		t.Fatal("New() accepted a gguf path that does not exist")
	}
}

func TestNewConstructsRemoteBackends(t *testing.T) {
	for _, provider := range []ModelProvider{ProviderOllama, ProviderOpenAI} {
		t.Run(string(provider), func(t *testing.T) {
			model, err := New(ModelConfig{Name: "remote", Provider: provider})
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			defer model.Free()
			if model.ContextSize() != 0 {
				t.Fatalf("ContextSize() = %d, want 0 for a remote backend", model.ContextSize())
			}
		})
	}
}

func TestMergeSettings(t *testing.T) {
	defaults := Settings{"temperature": 0.7, "top_k": 40}
	overrides := Settings{"temperature": 0.2, "stop": []string{"</s>"}}

	merged := mergeSettings(defaults, overrides)

	if merged["temperature"] != 0.2 {
		t.Fatalf("temperature = %v, want caller override 0.2", merged["temperature"])
	}
	if merged["top_k"] != 40 {
		t.Fatalf("top_k = %v, want default 40", merged["top_k"])
	}
	if _, ok := merged["stop"]; !ok {
		t.Fatal("caller-only key dropped by merge")
	}
	if len(defaults) != 2 || len(overrides) != 2 {
		t.Fatal("merge mutated its inputs")
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	model := NewMockModel("cached")
	ctx := context.Background()

	if err := model.Load(ctx, "warm-up"); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if err := model.Load(ctx, "warm-up"); err != nil {
		t.Fatalf("second Load() error: %v", err)
	}
	if model.LoadCalls != 1 {
		t.Fatalf("expensive init ran %d times, want 1", model.LoadCalls)
	}
}
