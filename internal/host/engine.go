package host

import "context"

// EngineOptions carries runtime configuration applied when the base model
// is loaded.
type EngineOptions struct {
	CtxSize int
	Threads int
}

// DeltaHandle identifies a delta loaded into an engine session. Handles
// stay valid until freed, whether or not the delta is currently applied.
type DeltaHandle uint64

// GenerateParams captures sampling parameters for one generation.
type GenerateParams struct {
	MaxTokens   int
	Temperature float32
	TopP        float32
	TopK        int
	Stop        []string
	Seed        int
}

// FinalResult summarizes a generation after streaming completes.
type FinalResult struct {
	Content      string
	TokenCount   int
	FinishReason string
}

// Engine abstracts the inference runtime. Concrete implementations
// (go-llama.cpp, test fakes) satisfy this interface.
type Engine interface {
	// Load makes the base model at modelPath resident and returns the
	// session owning it. At most one session per process is expected.
	Load(modelPath string, opts EngineOptions) (EngineSession, error)
}

// EngineSession is a live base model plus an index of delta weights.
// Loading a delta reads its (small) tensors into memory; applying and
// removing are cheap index operations that never touch the base weights.
type EngineSession interface {
	// LoadDelta reads the delta weights at path into the session.
	LoadDelta(path string, scale float32) (DeltaHandle, error)
	// ApplyDelta adds a loaded delta to the active composition. Order of
	// application matters: later deltas compose on top of earlier ones.
	ApplyDelta(h DeltaHandle) error
	// RemoveDelta takes an applied delta out of the composition without
	// unloading its weights.
	RemoveDelta(h DeltaHandle) error
	// ClearDeltas removes every applied delta (loaded weights stay).
	ClearDeltas() error
	// FreeDelta unloads a delta's weights. The handle becomes invalid.
	FreeDelta(h DeltaHandle) error
	// Generate streams tokens for the prompt with the current composition.
	// onToken is invoked per token; implementations must return between
	// token steps when the context is canceled.
	Generate(ctx context.Context, prompt string, params GenerateParams, onToken func(string) error) (FinalResult, error)
	// Close releases the base model and all loaded deltas.
	Close() error
}
