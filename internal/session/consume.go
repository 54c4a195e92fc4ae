package session

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/codito/arey/internal/llm"
)

// streamResult is everything one completion stream produced, including
// partial output when the stream failed or was cancelled part-way.
type streamResult struct {
	text      string
	finish    string
	metrics   llm.CompletionMetrics
	cancelled bool
}

// consumeStream pulls the stream to completion, handing each text fragment
// to yield. Cancellation is cooperative: the context is checked before each
// chunk, and yield returning false stops the pull. Whatever was produced
// before an error or cancellation is kept as valid partial output.
func consumeStream(ctx context.Context, stream llm.CompletionStream, yield func(chunk string) bool) (streamResult, error) {
	defer stream.Close()

	var b strings.Builder
	var series []llm.CompletionMetrics
	result := streamResult{}
	var failure error
	for {
		if ctx.Err() != nil {
			result.cancelled = true
			break
		}
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				result.cancelled = true
			} else {
				failure = err
			}
			break
		}
		b.WriteString(resp.Text)
		series = append(series, resp.Metrics)
		if resp.FinishReason != "" {
			result.finish = resp.FinishReason
		}
		if yield != nil && !yield(resp.Text) {
			result.cancelled = true
			break
		}
	}

	result.text = b.String()
	result.metrics = llm.Combine(series)
	if result.cancelled {
		result.finish = llm.FinishReasonCancel
	}
	return result, failure
}
