// Package session composes models, templates and the context window into
// the three interaction modes: one-shot task, multi-turn chat and
// file-driven play.
package session

import (
	"slices"
	"strings"

	"github.com/codito/arey/internal/llm"
	"github.com/codito/arey/internal/prompt"
)

// historyTokenBuffer is the safety margin reserved out of the context
// window on top of the skeleton and history sizes.
const historyTokenBuffer = 200

// windowMessages selects the trailing run of messages that fits the
// model's context budget and returns both the selected messages, in
// chronological order, and their template-formatted text.
//
// The walk goes newest to oldest and stops after the user turn that
// reaches or exceeds the budget, so the cut is always aligned on a user
// boundary. Two deliberate boundary policies: a context size of 0 means
// the budget is unknown and the full history is returned; and when the
// most recent exchange alone exceeds the budget it is still included
// whole, accepting possible backend-side truncation.
func windowMessages(model llm.CompletionModel, tpl *prompt.Prompt, messages []llm.ChatMessage) ([]llm.ChatMessage, string, error) {
	bounded := model.ContextSize() > 0
	budget := 0
	if bounded {
		skeleton, err := tpl.Get(prompt.KindChat, map[string]string{"message_history": ""})
		if err != nil {
			return nil, "", err
		}
		budget = model.ContextSize() - model.CountTokens(skeleton) - historyTokenBuffer
	}

	var selected []llm.ChatMessage
	var formatted []string
	count := 0
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		text, err := tpl.GetMessage(msg.Sender, msg.Text, nil)
		if err != nil {
			return nil, "", err
		}
		selected = append(selected, msg)
		formatted = append(formatted, text)
		if !bounded {
			continue
		}
		count += model.CountTokens(text)
		if count >= budget && msg.Sender == llm.SenderUser {
			break
		}
	}
	slices.Reverse(selected)
	slices.Reverse(formatted)
	return selected, strings.Join(formatted, ""), nil
}
