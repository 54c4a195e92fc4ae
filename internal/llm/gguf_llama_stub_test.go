//go:build !llama

package llm

import (
	"context"
	"errors"
	"testing"
)

func TestGgufLoadWithoutNativeBinding(t *testing.T) {
	model, err := newGgufModel(testGgufConfig(t))
	if err != nil {
		t.Fatalf("newGgufModel() error: %v", err)
	}

	err = model.Load(context.Background(), "")
	var modelErr *Error
	if !errors.As(err, &modelErr) || modelErr.Category != CategoryConfig {
		t.Fatalf("Load() error = %v, want config category", err)
	}
}
