package llm

import (
	"context"
	"strings"
)

// ModelProvider selects which backend variant serves a model.
type ModelProvider string

const (
	// ProviderGguf loads a GGUF model in-process.
	ProviderGguf ModelProvider = "gguf"
	// ProviderOllama talks to a local ollama server.
	ProviderOllama ModelProvider = "ollama"
	// ProviderOpenAI talks to a remote OpenAI-compatible API.
	ProviderOpenAI ModelProvider = "openai"
)

// ModelConfig identifies a model and how to construct its backend. It is
// built once from process configuration and read-only afterwards.
type ModelConfig struct {
	Name         string         `mapstructure:"name" yaml:"name"`
	Provider     ModelProvider  `mapstructure:"type" yaml:"type"`
	Capabilities []string       `mapstructure:"capabilities" yaml:"capabilities"`
	Settings     map[string]any `mapstructure:",remain" yaml:",inline"`
}

// Settings are free-form generation parameters (temperature, top_p, stop,
// ...). Backends overlay them on their own defaults; caller values win.
type Settings map[string]any

// CompletionModel is the uniform contract over the three backend variants.
type CompletionModel interface {
	// ContextSize is the maximum token window the backend accepts. 0 means
	// unknown; callers must not derive budgets from it.
	ContextSize() int

	// Metrics is valid only after Load has completed.
	Metrics() ModelMetrics

	// Load establishes the connection or model and runs a cheap warm-up
	// generation, recording wall-clock init latency. Idempotent: a second
	// call neither re-initializes nor re-measures.
	Load(ctx context.Context, warmup string) error

	// Complete merges settings over the backend defaults and returns a
	// finite, non-restartable stream of response chunks. Each chunk's
	// completion latency is measured relative to the previous chunk.
	Complete(ctx context.Context, messages []ChatMessage, settings Settings) (CompletionStream, error)

	// CountTokens returns 0 when the backend cannot tokenize locally; that
	// is an expected degradation, not an error.
	CountTokens(text string) int

	// Free releases backend resources. Safe to call on an unloaded or
	// already freed model.
	Free()
}

// New constructs the backend variant selected by the model config. Invalid
// settings are config errors surfaced here, before any generation.
func New(cfg ModelConfig) (CompletionModel, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ProviderGguf:
		return newGgufModel(cfg)
	case ProviderOllama:
		return newOllamaModel(cfg)
	case ProviderOpenAI:
		return newOpenAIModel(cfg)
	default:
		return nil, Errorf(CategoryConfig, "unknown model provider %q for model %q", cfg.Provider, cfg.Name)
	}
}

// ValidateConfig is the static capability check for a model config, used at
// configuration build time.
func ValidateConfig(cfg ModelConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return Errorf(CategoryConfig, "model name is required")
	}
	switch cfg.Provider {
	case ProviderGguf:
		if path, _ := cfg.Settings["path"].(string); strings.TrimSpace(path) == "" {
			return Errorf(CategoryConfig, "`path` is required for gguf model %q", cfg.Name)
		}
	case ProviderOllama, ProviderOpenAI:
		// Name doubles as the server-side model identifier.
	default:
		return Errorf(CategoryConfig, "unknown model provider %q for model %q", cfg.Provider, cfg.Name)
	}
	return nil
}

// mergeSettings overlays caller settings on backend defaults. The caller
// wins on key collision.
func mergeSettings(defaults, overrides Settings) Settings {
	merged := make(Settings, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
