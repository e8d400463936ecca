//go:build !llama

package host

// This file provides a no-CGO stub for the llama engine. It is compiled
// when the 'llama' build tag is NOT set, keeping default builds and CI
// CGO-free. The real engine lives in engine_llama.go (tagged 'llama').
// The stub refuses to load rather than mock inference in production
// binaries built without CGO support.

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = false

type llamaEngine struct{}

// NewLlamaEngine returns the configured inference engine for this build.
func NewLlamaEngine() Engine { return llamaEngine{} }

func (llamaEngine) Load(modelPath string, opts EngineOptions) (EngineSession, error) {
	return nil, ErrEngineUnavailable("llama support not built (missing 'llama' build tag)")
}
