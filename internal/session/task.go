package session

import (
	"context"

	"github.com/codito/arey/internal/llm"
	"github.com/codito/arey/internal/prompt"
)

// TaskResult is the outcome of one one-shot invocation.
type TaskResult struct {
	Text         string
	Prompt       string
	FinishReason string
	Metrics      llm.CompletionMetrics
	Logs         string
}

// Task is a single stateless invocation: created, run once, discarded. It
// holds at most one result.
type Task struct {
	Result *TaskResult

	model    llm.CompletionModel
	template *prompt.Prompt
	settings llm.Settings
}

// NewTask creates a task over a loaded model. Prompt-token overrides are
// applied by merging them into the template before construction.
func NewTask(model llm.CompletionModel, tpl *prompt.Prompt, settings llm.Settings) *Task {
	return &Task{model: model, template: tpl, settings: settings}
}

// Run issues exactly one completion for the instruction and consumes the
// whole stream into the task's result. A second call is rejected.
func (t *Task) Run(ctx context.Context, instruction string, yield func(chunk string) bool) (*TaskResult, error) {
	if t.Result != nil {
		return nil, llm.Errorf(llm.CategorySystem, "task already ran")
	}

	// Rendered for bookkeeping; the backend receives the structured
	// turns below.
	promptText, err := t.template.Get(prompt.KindTask, map[string]string{"user_query": instruction})
	if err != nil {
		return nil, err
	}

	messages := taskMessages(t.template, instruction)
	capture := llm.CaptureStderr()
	stream, err := t.model.Complete(ctx, messages, completionSettings(t.settings, t.template))
	if err != nil {
		capture.Stop()
		return nil, err
	}
	result, failure := consumeStream(ctx, stream, yield)
	logs := capture.Stop()

	t.Result = &TaskResult{
		Text:         result.text,
		Prompt:       promptText,
		FinishReason: result.finish,
		Metrics:      result.metrics,
		Logs:         logs,
	}
	return t.Result, failure
}

func taskMessages(tpl *prompt.Prompt, instruction string) []llm.ChatMessage {
	var messages []llm.ChatMessage
	if system := tpl.SystemTokens["system_prompt"]; system != "" {
		messages = append(messages, llm.ChatMessage{Text: system, Sender: llm.SenderSystem})
	}
	return append(messages, llm.ChatMessage{Text: instruction, Sender: llm.SenderUser})
}
