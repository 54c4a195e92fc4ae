package session

import (
	"strings"
	"testing"

	"github.com/codito/arey/internal/llm"
	"github.com/codito/arey/internal/prompt"
)

const testTemplateYAML = `
name: test
tokens:
  system:
    system_prompt: Be helpful.
stop_words:
  - "</s>"
prompts:
  chat: "SYSTEM: $system_prompt\n$message_history\nASSISTANT:"
  task: "SYSTEM: $system_prompt\nUSER: $user_query\nASSISTANT:"
roles:
  system: "SYSTEM: $message_text\n"
  user: "USER: $message_text\n"
  ai: "ASSISTANT: $message_text\n"
`

func testTemplate(t *testing.T) *prompt.Prompt {
	t.Helper()
	p, err := prompt.Parse([]byte(testTemplateYAML))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return p
}

func user(text string) llm.ChatMessage {
	return llm.ChatMessage{Text: text, Sender: llm.SenderUser}
}

func assistant(text string) llm.ChatMessage {
	return llm.ChatMessage{Text: text, Sender: llm.SenderAssistant}
}

func TestWindowMessages(t *testing.T) {
	conversation := []llm.ChatMessage{
		user("q1"), assistant("a1"),
		user("q2"), assistant("a2"),
		user("q3"),
	}
	// The mock counts 10 tokens per formatted message, so the usable
	// budget is contextSize - 10 (skeleton) - historyTokenBuffer.
	tests := []struct {
		name        string
		contextSize int
		wantFirst   string
		wantLen     int
	}{
		{
			name:        "unknown context size keeps full history",
			contextSize: 0,
			wantFirst:   "q1",
			wantLen:     5,
		},
		{
			name:        "tight budget keeps only the latest user turn",
			contextSize: 220, // budget 10
			wantFirst:   "q3",
			wantLen:     1,
		},
		{
			name:        "wider budget cuts at the previous user turn",
			contextSize: 235, // budget 25
			wantFirst:   "q2",
			wantLen:     3,
		},
		{
			name:        "large budget keeps everything",
			contextSize: 10000,
			wantFirst:   "q1",
			wantLen:     5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := llm.NewMockModel("counter")
			model.CtxSize = tt.contextSize
			model.TokensPer = 10

			selected, history, err := windowMessages(model, testTemplate(t), conversation)
			if err != nil {
				t.Fatalf("windowMessages() error: %v", err)
			}
			if len(selected) != tt.wantLen {
				t.Fatalf("selected %d messages, want %d: %+v", len(selected), tt.wantLen, selected)
			}
			if selected[0].Text != tt.wantFirst {
				t.Fatalf("window starts at %q, want %q", selected[0].Text, tt.wantFirst)
			}
			if selected[0].Sender != llm.SenderUser {
				t.Fatal("window does not start at a user-turn boundary")
			}
			if !strings.HasPrefix(history, "USER: "+tt.wantFirst) {
				t.Fatalf("history %q does not start with the first selected turn", history)
			}
			if !strings.HasSuffix(history, "USER: q3\n") {
				t.Fatalf("history %q does not end with the latest turn", history)
			}
		})
	}
}

func TestWindowMessagesOversizedPairIncludedWhole(t *testing.T) {
	model := llm.NewMockModel("counter")
	model.CtxSize = 100 // budget is negative
	model.TokensPer = 10

	conversation := []llm.ChatMessage{user("huge question"), assistant("huge answer")}
	selected, _, err := windowMessages(model, testTemplate(t), conversation)
	if err != nil {
		t.Fatalf("windowMessages() error: %v", err)
	}
	if len(selected) != 2 {
		t.Fatalf("selected %d messages, want the whole pair", len(selected))
	}
}
