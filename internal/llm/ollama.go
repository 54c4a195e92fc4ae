package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
)

const defaultOllamaHost = "http://localhost:11434"

var ollamaDefaults = Settings{
	"num_predict":    -1,
	"temperature":    0.7,
	"top_k":          40,
	"top_p":          0.1,
	"repeat_penalty": 1.176,
}

type ollamaModel struct {
	name    string
	model   string
	client  *api.Client
	metrics ModelMetrics
	loaded  bool
}

func newOllamaModel(cfg ModelConfig) (*ollamaModel, error) {
	host := defaultOllamaHost
	if v, ok := cfg.Settings["base_url"].(string); ok && v != "" {
		host = v
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, WrapError(CategoryConfig, err, fmt.Sprintf("invalid base_url for model %q", cfg.Name))
	}
	model := cfg.Name
	if v, ok := cfg.Settings["model"].(string); ok && v != "" {
		model = v
	}
	return &ollamaModel{
		name:   cfg.Name,
		model:  model,
		client: api.NewClient(base, http.DefaultClient),
	}, nil
}

// ContextSize is unknown for a remote ollama server; window management is
// disabled for this backend.
func (m *ollamaModel) ContextSize() int { return 0 }

func (m *ollamaModel) Metrics() ModelMetrics { return m.metrics }

// Load pulls the model into server memory with an empty raw generate call
// and harvests the reported load duration.
func (m *ollamaModel) Load(ctx context.Context, warmup string) error {
	if m.loaded {
		return nil
	}
	stream := false
	req := &api.GenerateRequest{Model: m.model, Raw: true, Stream: &stream}
	var loadMs float64
	err := m.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		loadMs = float64(resp.LoadDuration.Milliseconds())
		return nil
	})
	if err != nil {
		return WrapError(CategorySystem, err, fmt.Sprintf("failed to load model %q", m.model))
	}
	m.metrics = ModelMetrics{InitLatencyMs: loadMs}
	m.loaded = true
	return nil
}

func (m *ollamaModel) Complete(ctx context.Context, messages []ChatMessage, settings Settings) (CompletionStream, error) {
	chat := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		chat = append(chat, api.Message{Role: msg.Sender.Role(), Content: msg.Text})
	}
	stream := true
	req := &api.ChatRequest{
		Model:    m.model,
		Messages: chat,
		Stream:   &stream,
		Options:  mergeSettings(ollamaDefaults, settings),
	}
	return newCompletionStream(ctx, func(ctx context.Context, out chan<- CompletionResponse) error {
		prev := time.Now()
		promptEvalMs := -1.0
		err := m.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			now := time.Now()
			latency := float64(now.Sub(prev).Milliseconds())
			prev = now
			if promptEvalMs < 0 {
				promptEvalMs = latency
			}
			chunk := CompletionResponse{
				Text: resp.Message.Content,
				Metrics: CompletionMetrics{
					PromptEvalLatencyMs: promptEvalMs,
					CompletionRuns:      1,
					CompletionLatencyMs: latency,
				},
			}
			if resp.Done {
				// The terminal chunk reports the authoritative token
				// counts for the whole exchange.
				chunk.FinishReason = finishReasonFromOllama(resp.DoneReason)
				chunk.Metrics.PromptTokens = resp.PromptEvalCount
				chunk.Metrics.CompletionTokens = resp.EvalCount
			}
			select {
			case out <- chunk:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && ctx.Err() == nil {
			return WrapError(CategorySystem, err, "completion failed")
		}
		return err
	}), nil
}

// CountTokens is unsupported by the ollama API; callers treat zero as
// unknown.
func (m *ollamaModel) CountTokens(text string) int { return 0 }

func (m *ollamaModel) Free() { m.loaded = false }

func finishReasonFromOllama(reason string) string {
	switch reason {
	case "length":
		return FinishReasonLength
	case "", "stop", "done":
		return FinishReasonStop
	default:
		return reason
	}
}
