//go:build llama

package llm

import (
	llama "github.com/go-skynet/go-llama.cpp"
)

// openGgufRuntime constructs the native llama.cpp runtime. Tests swap this
// out for a scripted fake.
var openGgufRuntime = func(settings ggufSettings) (ggufRuntime, error) {
	opts := []llama.ModelOption{
		llama.SetContext(settings.NCtx),
		llama.SetNBatch(settings.NBatch),
		llama.SetGPULayers(settings.NGpuLayers),
	}
	if settings.UseMlock {
		opts = append(opts, llama.EnableMLock)
	}
	model, err := llama.New(settings.Path, opts...)
	if err != nil {
		return nil, err
	}
	return &llamaRuntime{model: model, threads: settings.NThreads, nCtx: settings.NCtx}, nil
}

type llamaRuntime struct {
	model   *llama.LLama
	threads int
	nCtx    int
}

func (r *llamaRuntime) Predict(prompt string, onToken func(string) bool, settings ggufPredictSettings) error {
	opts := []llama.PredictOption{
		llama.SetThreads(r.threads),
		llama.SetTokens(settings.MaxTokens),
		llama.SetTemperature(settings.Temperature),
		llama.SetTopK(settings.TopK),
		llama.SetTopP(settings.TopP),
		llama.SetPenalty(settings.RepeatPenalty),
		llama.SetTokenCallback(onToken),
	}
	if len(settings.Stop) > 0 {
		opts = append(opts, llama.SetStopWords(settings.Stop...))
	}
	_, err := r.model.Predict(prompt, opts...)
	return err
}

func (r *llamaRuntime) Eval(text string) error {
	return r.model.Eval(text, llama.SetThreads(r.threads))
}

func (r *llamaRuntime) CountTokens(text string) int {
	count, _, err := r.model.TokenizeString(text, llama.SetThreads(r.threads))
	if err != nil {
		return 0
	}
	return int(count)
}

func (r *llamaRuntime) ContextSize() int { return r.nCtx }

func (r *llamaRuntime) Free() { r.model.Free() }
