package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestOllamaModel(t *testing.T, handler http.HandlerFunc) *ollamaModel {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	model, err := newOllamaModel(ModelConfig{
		Name:     "llama3",
		Provider: ProviderOllama,
		Settings: map[string]any{"base_url": server.URL},
	})
	if err != nil {
		t.Fatalf("newOllamaModel() error: %v", err)
	}
	return model
}

func TestOllamaLoadHarvestsLoadDuration(t *testing.T) {
	model := newTestOllamaModel(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("load hit %s, want /api/generate", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"model":"llama3","done":true,"load_duration":1500000000}`)
	})

	if err := model.Load(context.Background(), ""); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := model.Metrics().InitLatencyMs; got != 1500 {
		t.Fatalf("init latency = %v ms, want 1500", got)
	}
}

func TestOllamaLoadReportsServerFailure(t *testing.T) {
	model := newTestOllamaModel(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	})

	if err := model.Load(context.Background(), ""); err == nil {
		t.Fatal("Load() succeeded against a failing server")
	}
}

func TestOllamaCompleteStreamsChunks(t *testing.T) {
	model := newTestOllamaModel(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("completion hit %s, want /api/chat", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		io.WriteString(w, `{"model":"llama3","message":{"role":"assistant","content":"Hel"},"done":false}`+"\n")
		io.WriteString(w, `{"model":"llama3","message":{"role":"assistant","content":"lo"},"done":false}`+"\n")
		io.WriteString(w, `{"model":"llama3","message":{"role":"assistant","content":"!"},"done":true,"done_reason":"stop","prompt_eval_count":21,"eval_count":3}`+"\n")
	})

	stream, err := model.Complete(context.Background(), []ChatMessage{{Sender: SenderUser, Text: "Say hello"}}, nil)
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	defer stream.Close()

	var text, finish string
	var series []CompletionMetrics
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Recv() error: %v", err)
		}
		text += resp.Text
		series = append(series, resp.Metrics)
		if resp.FinishReason != "" {
			finish = resp.FinishReason
		}
	}

	if text != "Hello!" {
		t.Fatalf("streamed text = %q, want %q", text, "Hello!")
	}
	if finish != FinishReasonStop {
		t.Fatalf("finish reason = %q, want %q", finish, FinishReasonStop)
	}
	combined := Combine(series)
	if combined.PromptTokens != 21 || combined.CompletionTokens != 3 {
		t.Fatalf("combined counts = %d/%d, want 21/3", combined.PromptTokens, combined.CompletionTokens)
	}
	if combined.CompletionRuns != 3 {
		t.Fatalf("combined runs = %d, want 3", combined.CompletionRuns)
	}
}

func TestOllamaCompleteOverlaysDefaultOptions(t *testing.T) {
	var opts map[string]any
	model := newTestOllamaModel(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Options map[string]any `json:"options"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode chat request: %v", err)
		}
		opts = req.Options
		w.Header().Set("Content-Type", "application/x-ndjson")
		io.WriteString(w, `{"model":"llama3","message":{"role":"assistant","content":"ok"},"done":true,"done_reason":"stop"}`+"\n")
	})

	stream, err := model.Complete(context.Background(), []ChatMessage{{Sender: SenderUser, Text: "hi"}}, Settings{"temperature": 0.2})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	defer stream.Close()
	for {
		if _, err := stream.Recv(); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("Recv() error: %v", err)
		}
	}

	if got := opts["num_predict"]; got != float64(-1) {
		t.Fatalf("num_predict = %v, want -1", got)
	}
	if got := opts["repeat_penalty"]; got != 1.176 {
		t.Fatalf("repeat_penalty = %v, want 1.176", got)
	}
	if got := opts["temperature"]; got != 0.2 {
		t.Fatalf("temperature = %v, want caller override 0.2", got)
	}
}

func TestOllamaCountTokensIsUnknown(t *testing.T) {
	model := newTestOllamaModel(t, func(w http.ResponseWriter, r *http.Request) {})
	if got := model.CountTokens("anything"); got != 0 {
		t.Fatalf("CountTokens() = %d, want 0", got)
	}
	if got := model.ContextSize(); got != 0 {
		t.Fatalf("ContextSize() = %d, want 0", got)
	}
}
