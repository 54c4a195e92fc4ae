package llm

import (
	"context"
	"io"
)

// CompletionStream is a finite, non-restartable sequence of streamed
// completion chunks. Recv returns io.EOF after the terminal chunk. Nothing
// is produced ahead of the consumer beyond a small channel buffer.
type CompletionStream interface {
	Recv() (CompletionResponse, error)
	Close() error
}

type channelStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	chunks <-chan CompletionResponse
	err    <-chan error
	done   error
}

// newCompletionStream runs the producer in a goroutine and exposes its
// chunks as a CompletionStream. An error returned by run surfaces from Recv
// only after every produced chunk has been consumed, so partial output is
// never lost.
func newCompletionStream(ctx context.Context, run func(ctx context.Context, out chan<- CompletionResponse) error) CompletionStream {
	streamCtx, cancel := context.WithCancel(ctx)
	ch := make(chan CompletionResponse, 16)
	errCh := make(chan error, 1)
	go func() {
		defer close(ch)
		errCh <- run(streamCtx, ch)
	}()
	return &channelStream{ctx: streamCtx, cancel: cancel, chunks: ch, err: errCh}
}

func (s *channelStream) Recv() (CompletionResponse, error) {
	// Drain any buffered chunk before checking ctx.Done() so the terminal
	// chunk is not dropped when both are ready.
	select {
	case chunk, ok := <-s.chunks:
		if !ok {
			return CompletionResponse{}, s.finish()
		}
		return chunk, nil
	default:
	}

	select {
	case <-s.ctx.Done():
		return CompletionResponse{}, s.ctx.Err()
	case chunk, ok := <-s.chunks:
		if !ok {
			return CompletionResponse{}, s.finish()
		}
		return chunk, nil
	}
}

func (s *channelStream) finish() error {
	if s.done == nil {
		if err := <-s.err; err != nil {
			s.done = err
		} else {
			s.done = io.EOF
		}
	}
	return s.done
}

func (s *channelStream) Close() error {
	s.cancel()
	return nil
}
