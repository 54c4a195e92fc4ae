package session

import (
	"context"
	"time"

	"github.com/codito/arey/internal/llm"
	"github.com/codito/arey/internal/prompt"
)

// MessageContext is the bookkeeping attached to an assistant message once
// its generation completed: the prompt actually sent, how the generation
// ended, the combined metrics and any captured model logs.
type MessageContext struct {
	Prompt       string
	FinishReason string
	Metrics      llm.CompletionMetrics
	Logs         string
}

// Message is one turn of a session. Assistant messages carry a context
// after their generation call completes; user messages carry none.
type Message struct {
	Time    time.Time
	Text    string
	Sender  llm.SenderType
	Context *MessageContext
}

// ChatContext is session-level bookkeeping: the one-time model metrics and
// the logs captured while the model loaded.
type ChatContext struct {
	Metrics llm.ModelMetrics
	Logs    string
}

// Chat is a multi-turn session. It owns its model for its lifetime and its
// message list is chronological and append-only.
type Chat struct {
	Messages []Message
	Context  ChatContext

	model    llm.CompletionModel
	template *prompt.Prompt
	settings llm.Settings
}

// NewChat creates a chat session over a constructed, not yet loaded model.
func NewChat(model llm.CompletionModel, tpl *prompt.Prompt, settings llm.Settings) *Chat {
	return &Chat{model: model, template: tpl, settings: settings}
}

// Load warms the model up and records init metrics and load-time logs.
func (c *Chat) Load(ctx context.Context) error {
	capture := llm.CaptureStderr()
	err := c.model.Load(ctx, c.template.SystemTokens["system_prompt"])
	c.Context.Logs = capture.Stop()
	if err != nil {
		return err
	}
	c.Context.Metrics = c.model.Metrics()
	return nil
}

// StreamResponse runs one exchange: the user turn is appended before any
// chunk is consumed, so a cancelled generation still leaves it recorded;
// the assistant turn is always appended afterwards with whatever partial
// text was produced and a finish reason reflecting how the stream ended.
func (c *Chat) StreamResponse(ctx context.Context, text string, yield func(chunk string) bool) error {
	c.Messages = append(c.Messages, Message{
		Time:   time.Now(),
		Text:   text,
		Sender: llm.SenderUser,
	})

	windowed, history, err := windowMessages(c.model, c.template, c.chatMessages())
	if err != nil {
		return err
	}
	promptText, err := c.template.Get(prompt.KindChat, map[string]string{"message_history": history})
	if err != nil {
		return err
	}

	capture := llm.CaptureStderr()
	stream, err := c.model.Complete(ctx, windowed, completionSettings(c.settings, c.template))
	if err != nil {
		capture.Stop()
		return err
	}
	result, failure := consumeStream(ctx, stream, yield)
	logs := capture.Stop()

	c.Messages = append(c.Messages, Message{
		Time:   time.Now(),
		Text:   result.text,
		Sender: llm.SenderAssistant,
		Context: &MessageContext{
			Prompt:       promptText,
			FinishReason: result.finish,
			Metrics:      result.metrics,
			Logs:         logs,
		},
	})
	return failure
}

// Close releases the model.
func (c *Chat) Close() {
	c.model.Free()
}

func (c *Chat) chatMessages() []llm.ChatMessage {
	messages := make([]llm.ChatMessage, 0, len(c.Messages))
	for _, m := range c.Messages {
		messages = append(messages, llm.ChatMessage{Text: m.Text, Sender: m.Sender})
	}
	return messages
}

// completionSettings overlays the template's stop words on the configured
// generation settings unless the caller already set some.
func completionSettings(settings llm.Settings, tpl *prompt.Prompt) llm.Settings {
	if len(tpl.StopWords) == 0 {
		return settings
	}
	if _, ok := settings["stop"]; ok {
		return settings
	}
	merged := make(llm.Settings, len(settings)+1)
	for k, v := range settings {
		merged[k] = v
	}
	merged["stop"] = tpl.StopWords
	return merged
}
