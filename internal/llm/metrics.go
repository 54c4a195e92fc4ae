package llm

// ModelMetrics captures the one-time cost of bringing a model online.
type ModelMetrics struct {
	// InitLatencyMs is the wall-clock time spent loading the model.
	InitLatencyMs float64
}

// CompletionMetrics captures the cost of one unit of generation. Backends
// emit one per streamed chunk; Combine folds a series into a call summary.
type CompletionMetrics struct {
	// PromptTokens is the backend-reported prompt size. Server backends
	// only know the true value on the terminal chunk.
	PromptTokens int

	// PromptEvalLatencyMs is the time to first token for the call.
	PromptEvalLatencyMs float64

	// CompletionTokens generated by this chunk.
	CompletionTokens int

	// CompletionRuns is the number of generation runs folded in. 1 for a
	// streamed chunk, N after Combine.
	CompletionRuns int

	// CompletionLatencyMs is measured relative to the previous chunk's
	// emission, so a series carries per-chunk timing.
	CompletionLatencyMs float64
}

// CompletionResponse is one streamed unit of generated text.
type CompletionResponse struct {
	Text string

	// FinishReason is empty on all but the terminal chunk, which carries
	// "stop", "length" or "cancel".
	FinishReason string

	Metrics CompletionMetrics
}

// Finish reasons reported on the terminal chunk of a stream.
const (
	FinishReasonStop   = "stop"
	FinishReasonLength = "length"
	FinishReasonCancel = "cancel"
)

// Combine folds the ordered per-chunk metrics of one completion call into a
// single summary. Completion tokens and latency are additive; time to first
// token belongs to the call and is taken from the first chunk. Prompt tokens
// are taken from the last chunk: streaming server backends report the true
// count only when done, and backends that know it upfront repeat the same
// value on every chunk.
func Combine(series []CompletionMetrics) CompletionMetrics {
	if len(series) == 0 {
		return CompletionMetrics{}
	}

	var tokens int
	var latency float64
	for _, u := range series {
		tokens += u.CompletionTokens
		latency += u.CompletionLatencyMs
	}

	return CompletionMetrics{
		PromptTokens:        series[len(series)-1].PromptTokens,
		PromptEvalLatencyMs: series[0].PromptEvalLatencyMs,
		CompletionTokens:    tokens,
		CompletionRuns:      len(series),
		CompletionLatencyMs: latency,
	}
}
