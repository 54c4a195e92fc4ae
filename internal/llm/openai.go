package llm

import (
	"context"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkoukk/tiktoken-go"
	"github.com/spf13/cast"
)

type openaiModel struct {
	name   string
	model  string
	client openai.Client
}

func newOpenAIModel(cfg ModelConfig) (*openaiModel, error) {
	opts := []option.RequestOption{}
	if v, ok := cfg.Settings["base_url"].(string); ok && v != "" {
		opts = append(opts, option.WithBaseURL(v))
	}
	if v, ok := cfg.Settings["api_key"].(string); ok && v != "" {
		opts = append(opts, option.WithAPIKey(v))
	}
	model := cfg.Name
	if v, ok := cfg.Settings["model"].(string); ok && v != "" {
		model = v
	}
	return &openaiModel{
		name:   cfg.Name,
		model:  model,
		client: openai.NewClient(opts...),
	}, nil
}

// ContextSize is unknown for a remote endpoint.
func (m *openaiModel) ContextSize() int { return 0 }

// Metrics is always zero: a remote service has no local initialization cost.
func (m *openaiModel) Metrics() ModelMetrics { return ModelMetrics{} }

// Load is a no-op; the remote service manages its own model lifecycle.
func (m *openaiModel) Load(ctx context.Context, warmup string) error { return nil }

func (m *openaiModel) Complete(ctx context.Context, messages []ChatMessage, settings Settings) (CompletionStream, error) {
	chat := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Sender {
		case SenderSystem:
			chat = append(chat, openai.SystemMessage(msg.Text))
		case SenderAssistant:
			chat = append(chat, openai.AssistantMessage(msg.Text))
		default:
			chat = append(chat, openai.UserMessage(msg.Text))
		}
	}
	params := openai.ChatCompletionNewParams{
		Model:    m.model,
		Messages: chat,
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if v, ok := settings["temperature"]; ok {
		params.Temperature = openai.Float(cast.ToFloat64(v))
	}
	if v, ok := settings["top_p"]; ok {
		params.TopP = openai.Float(cast.ToFloat64(v))
	}
	if v, ok := settings["max_tokens"]; ok {
		if n := cast.ToInt64(v); n > 0 {
			params.MaxTokens = openai.Int(n)
		}
	}

	return newCompletionStream(ctx, func(ctx context.Context, out chan<- CompletionResponse) error {
		stream := m.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		prev := time.Now()
		promptEvalMs := -1.0
		for stream.Next() {
			event := stream.Current()
			now := time.Now()
			latency := float64(now.Sub(prev).Milliseconds())
			prev = now
			if promptEvalMs < 0 {
				promptEvalMs = latency
			}
			chunk := CompletionResponse{
				Metrics: CompletionMetrics{
					PromptEvalLatencyMs: promptEvalMs,
					CompletionRuns:      1,
					CompletionLatencyMs: latency,
				},
			}
			if len(event.Choices) > 0 {
				chunk.Text = event.Choices[0].Delta.Content
				chunk.FinishReason = string(event.Choices[0].FinishReason)
			}
			if event.Usage.TotalTokens > 0 {
				chunk.Metrics.PromptTokens = int(event.Usage.PromptTokens)
				chunk.Metrics.CompletionTokens = int(event.Usage.CompletionTokens)
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			return WrapError(CategorySystem, err, "completion failed")
		}
		return ctx.Err()
	}), nil
}

// CountTokens estimates with the model's tiktoken encoding; unknown models
// report zero.
func (m *openaiModel) CountTokens(text string) int {
	enc, err := tiktoken.EncodingForModel(m.model)
	if err != nil {
		return 0
	}
	return len(enc.Encode(text, nil, nil))
}

func (m *openaiModel) Free() {}
