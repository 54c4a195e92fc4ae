package ui

import (
	"fmt"
	"strings"

	"github.com/codito/arey/internal/llm"
)

// CompletionFooter formats the one-line summary printed after a streamed
// completion: how the generation ended, time to first token, total time,
// throughput and token counts.
func CompletionFooter(finishReason string, m llm.CompletionMetrics) string {
	var b strings.Builder
	if finishReason == llm.FinishReasonCancel {
		b.WriteString("◼ Canceled.")
	} else {
		b.WriteString("◼ Completed.")
	}

	fmt.Fprintf(&b, " %.2fs to first token.", m.PromptEvalLatencyMs/1000)
	fmt.Fprintf(&b, " %.2fs total.", m.CompletionLatencyMs/1000)
	if m.CompletionLatencyMs > 0 {
		fmt.Fprintf(&b, " %.2f tokens/s.", float64(m.CompletionTokens)/(m.CompletionLatencyMs/1000))
	}
	fmt.Fprintf(&b, " %s tokens.", FormatTokenCount(m.CompletionTokens))
	if m.PromptTokens > 0 {
		fmt.Fprintf(&b, " %s prompt tokens.", FormatTokenCount(m.PromptTokens))
	}
	return b.String()
}

// ModelFooter formats the one-time model load summary.
func ModelFooter(m llm.ModelMetrics) string {
	return fmt.Sprintf("◼ Model loaded in %.2fs.", m.InitLatencyMs/1000)
}

// FormatTokenCount renders a token count compactly: 950 -> "950",
// 1337 -> "1.3k".
func FormatTokenCount(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%.1fk", float64(n)/1000)
}
