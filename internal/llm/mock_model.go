package llm

import (
	"context"
	"sync"
	"time"
)

// MockChunk is one scripted streaming chunk emitted by the mock model.
type MockChunk struct {
	Text         string
	FinishReason string
	Metrics      CompletionMetrics
	Delay        time.Duration // Optional delay before emitting (for timing tests)
}

// MockModel is a scripted completion model for testing. It replays the
// configured chunks and records every request for verification.
type MockModel struct {
	ModelName    string
	CtxSize      int
	TokensPer    int // CountTokens result per call; 0 means unknown
	InitMs       float64
	CompleteErr  error // Returned from Complete instead of streaming
	StreamErr    error // Surfaced from Recv after all chunks are consumed
	chunks       []MockChunk
	LoadCalls    int
	FreeCalls    int
	Requests     [][]ChatMessage
	LastSettings Settings
	loaded       bool
	mu           sync.Mutex
}

// NewMockModel creates a mock model with the given name.
func NewMockModel(name string) *MockModel {
	return &MockModel{ModelName: name}
}

// AddChunk appends a scripted chunk and returns the model for chaining.
func (m *MockModel) AddChunk(c MockChunk) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, c)
	return m
}

// AddText is a convenience method to append one text chunk with a single
// completion token.
func (m *MockModel) AddText(text string) *MockModel {
	return m.AddChunk(MockChunk{
		Text:    text,
		Metrics: CompletionMetrics{CompletionTokens: 1, CompletionRuns: 1},
	})
}

func (m *MockModel) ContextSize() int { return m.CtxSize }

func (m *MockModel) Metrics() ModelMetrics {
	return ModelMetrics{InitLatencyMs: m.InitMs}
}

func (m *MockModel) Load(ctx context.Context, warmup string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return nil
	}
	m.LoadCalls++
	m.loaded = true
	return nil
}

func (m *MockModel) Complete(ctx context.Context, messages []ChatMessage, settings Settings) (CompletionStream, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, messages)
	m.LastSettings = settings
	chunks := make([]MockChunk, len(m.chunks))
	copy(chunks, m.chunks)
	err := m.CompleteErr
	streamErr := m.StreamErr
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return newCompletionStream(ctx, func(ctx context.Context, out chan<- CompletionResponse) error {
		for _, c := range chunks {
			if c.Delay > 0 {
				select {
				case <-time.After(c.Delay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			resp := CompletionResponse{Text: c.Text, FinishReason: c.FinishReason, Metrics: c.Metrics}
			select {
			case out <- resp:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return streamErr
	}), nil
}

func (m *MockModel) CountTokens(text string) int {
	if m.TokensPer > 0 {
		return m.TokensPer
	}
	return 0
}

func (m *MockModel) Free() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FreeCalls++
	m.loaded = false
}
