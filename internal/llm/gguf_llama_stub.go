//go:build !llama

package llm

// openGgufRuntime in builds without the llama tag: the native llama.cpp
// binding needs CGO plus a compiled libllama, so it is opt-in. Tests swap
// this out for a scripted fake.
var openGgufRuntime = func(settings ggufSettings) (ggufRuntime, error) {
	return nil, Errorf(CategoryConfig,
		"this binary was built without llama.cpp support; rebuild with -tags llama to run gguf models")
}
