package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
)

// ggufSettings are the typed construction settings for an in-process GGUF
// model, decoded from the model config's free-form settings map.
type ggufSettings struct {
	Path       string `mapstructure:"path"`
	NCtx       int    `mapstructure:"n_ctx"`
	NBatch     int    `mapstructure:"n_batch"`
	NThreads   int    `mapstructure:"n_threads"`
	NGpuLayers int    `mapstructure:"n_gpu_layers"`
	UseMlock   bool   `mapstructure:"use_mlock"`
}

// ggufRuntime is the seam between the backend and the native llama.cpp
// binding, so the backend logic is testable without CGO.
type ggufRuntime interface {
	Predict(prompt string, onToken func(token string) bool, settings ggufPredictSettings) error
	Eval(text string) error
	CountTokens(text string) int
	ContextSize() int
	Free()
}

// ggufPredictSettings are the generation parameters understood by the
// native runtime.
type ggufPredictSettings struct {
	MaxTokens     int
	Temperature   float64
	TopK          int
	TopP          float64
	RepeatPenalty float64
	Stop          []string
}

var ggufDefaults = Settings{
	"max_tokens":     -1,
	"temperature":    0.7,
	"top_k":          40,
	"top_p":          0.1,
	"repeat_penalty": 1.176,
}

type ggufModel struct {
	name     string
	settings ggufSettings
	rt       ggufRuntime
	metrics  ModelMetrics
	loaded   bool
}

func newGgufModel(cfg ModelConfig) (*ggufModel, error) {
	settings := ggufSettings{
		NCtx:     4096,
		NBatch:   512,
		NThreads: max(runtime.NumCPU()/2, 1),
	}
	if err := mapstructure.Decode(cfg.Settings, &settings); err != nil {
		return nil, WrapError(CategoryConfig, err, fmt.Sprintf("invalid settings for gguf model %q", cfg.Name))
	}
	settings.Path = expandHome(settings.Path)
	if _, err := os.Stat(settings.Path); err != nil {
		return nil, Errorf(CategoryConfig, "model path %q is invalid", settings.Path)
	}
	return &ggufModel{name: cfg.Name, settings: settings}, nil
}

func (m *ggufModel) ContextSize() int {
	if m.rt == nil {
		return m.settings.NCtx
	}
	return m.rt.ContextSize()
}

func (m *ggufModel) Metrics() ModelMetrics { return m.metrics }

// Load constructs the native model and warms it up by tokenizing and
// evaluating the given text. A second call is a no-op.
func (m *ggufModel) Load(ctx context.Context, warmup string) error {
	if m.loaded {
		return nil
	}
	start := time.Now()
	rt, err := openGgufRuntime(m.settings)
	if err != nil {
		var tagged *Error
		if errors.As(err, &tagged) {
			return err
		}
		return WrapError(CategorySystem, err, fmt.Sprintf("failed to load model %q", m.name))
	}
	if warmup != "" {
		if err := rt.Eval(warmup); err != nil {
			rt.Free()
			return WrapError(CategorySystem, err, "warm-up evaluation failed")
		}
	}
	m.rt = rt
	m.metrics = ModelMetrics{InitLatencyMs: float64(time.Since(start).Milliseconds())}
	m.loaded = true
	return nil
}

func (m *ggufModel) Complete(ctx context.Context, messages []ChatMessage, settings Settings) (CompletionStream, error) {
	if m.rt == nil {
		return nil, Errorf(CategorySystem, "model %q is not loaded", m.name)
	}
	prompt, err := formatGgufPrompt(messages)
	if err != nil {
		return nil, err
	}
	merged := mergeSettings(ggufDefaults, settings)
	predict := ggufPredictSettings{
		MaxTokens:     cast.ToInt(merged["max_tokens"]),
		Temperature:   cast.ToFloat64(merged["temperature"]),
		TopK:          cast.ToInt(merged["top_k"]),
		TopP:          cast.ToFloat64(merged["top_p"]),
		RepeatPenalty: cast.ToFloat64(merged["repeat_penalty"]),
		Stop:          cast.ToStringSlice(merged["stop"]),
	}

	promptTokens := m.rt.CountTokens(prompt)
	return newCompletionStream(ctx, func(ctx context.Context, out chan<- CompletionResponse) error {
		prev := time.Now()
		promptEvalMs := -1.0
		cancelled := false
		emitted := 0
		onToken := func(token string) bool {
			now := time.Now()
			latency := float64(now.Sub(prev).Milliseconds())
			prev = now
			if promptEvalMs < 0 {
				promptEvalMs = latency
			}
			emitted++
			resp := CompletionResponse{
				Text: token,
				Metrics: CompletionMetrics{
					PromptTokens:        promptTokens,
					PromptEvalLatencyMs: promptEvalMs,
					CompletionTokens:    1,
					CompletionRuns:      1,
					CompletionLatencyMs: latency,
				},
			}
			select {
			case out <- resp:
				return true
			case <-ctx.Done():
				cancelled = true
				return false
			}
		}
		if err := m.rt.Predict(prompt, onToken, predict); err != nil {
			return WrapError(CategorySystem, err, "completion failed")
		}
		if cancelled {
			return ctx.Err()
		}
		// The native runtime does not report why generation ended; hitting
		// the token budget exactly is the only observable length signal.
		finish := FinishReasonStop
		if predict.MaxTokens > 0 && emitted >= predict.MaxTokens {
			finish = FinishReasonLength
		}
		final := CompletionResponse{
			FinishReason: finish,
			Metrics: CompletionMetrics{
				PromptTokens:        promptTokens,
				PromptEvalLatencyMs: promptEvalMs,
				CompletionRuns:      1,
				CompletionLatencyMs: float64(time.Since(prev).Milliseconds()),
			},
		}
		select {
		case out <- final:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}), nil
}

func (m *ggufModel) CountTokens(text string) int {
	if m.rt == nil {
		return 0
	}
	return m.rt.CountTokens(text)
}

func (m *ggufModel) Free() {
	if m.rt != nil {
		m.rt.Free()
		m.rt = nil
		m.loaded = false
	}
}

// formatGgufPrompt flattens chat messages into a chatml prompt. The native
// runtime has no chat API of its own; any role outside the known three is a
// fatal system error.
func formatGgufPrompt(messages []ChatMessage) (string, error) {
	var b strings.Builder
	for _, msg := range messages {
		role := msg.Sender.Role()
		switch msg.Sender {
		case SenderSystem, SenderUser, SenderAssistant:
			fmt.Fprintf(&b, "<|im_start|>%s\n%s<|im_end|>\n", role, msg.Text)
		default:
			return "", Errorf(CategorySystem, "unknown message role: %s", role)
		}
	}
	b.WriteString("<|im_start|>assistant\n")
	return b.String(), nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
