package host

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"adapterd/internal/gguf"
	"adapterd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultMaxTokens     = 128
)

// Config encapsulates all tunables for Host construction.
type Config struct {
	Engine        Engine
	EngineOptions EngineOptions
	MaxQueueDepth int
	MaxWait       time.Duration
	Publisher     EventPublisher
	Logger        zerolog.Logger
}

// Host owns the one resident base model handle per process and runs
// inference with whatever deltas are currently attached. The attachment
// state is mutated exclusively by the AttachmentManager.
type Host struct {
	cfg Config

	// attachMu orders attachment changes against inference: Infer holds
	// the read side for its whole duration, swaps hold the write side.
	attachMu sync.RWMutex
	sess     EngineSession
	baseRef  string
	baseArch string
	hidden   int

	// Attachment state, guarded by attachMu.
	active   []string
	lastSwap time.Time

	// swapping makes concurrent attach attempts fail fast (no queuing).
	swapping   atomic.Bool
	swapsTotal atomic.Uint64

	// Admission: single in-flight generation plus a bounded FIFO queue.
	genCh   chan struct{}
	queueCh chan struct{}
}

// New constructs a Host from Config, applying package defaults.
func New(cfg Config) *Host {
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = defaultMaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	return &Host{
		cfg:     cfg,
		genCh:   make(chan struct{}, 1),
		queueCh: make(chan struct{}, cfg.MaxQueueDepth),
	}
}

// Load validates and loads the base model at baseRef. Loading a second
// model while one is live fails with AlreadyLoaded until Release is called.
func (h *Host) Load(baseRef string) error {
	h.attachMu.Lock()
	defer h.attachMu.Unlock()
	if h.sess != nil {
		return alreadyLoadedError{ref: h.baseRef}
	}
	hdr, err := gguf.ReadFile(baseRef)
	if err != nil {
		return ErrModelLoad(err.Error())
	}
	arch := hdr.Architecture()
	if arch == "" {
		return ErrModelLoad(baseRef + ": header names no architecture")
	}
	sess, err := h.cfg.Engine.Load(baseRef, h.cfg.EngineOptions)
	if err != nil {
		if IsEngineUnavailable(err) {
			return err
		}
		return ErrModelLoad(err.Error())
	}
	h.sess = sess
	h.baseRef = baseRef
	h.baseArch = arch
	h.hidden = hdr.EmbeddingLength()
	h.cfg.Publisher.Publish(Event{Name: "base_loaded", Fields: map[string]any{"ref": baseRef, "arch": arch}})
	h.cfg.Logger.Info().Str("ref", baseRef).Str("arch", arch).Int("hidden", h.hidden).Msg("base model loaded")
	return nil
}

// Release closes the engine session and drops all attachment state.
func (h *Host) Release() error {
	h.attachMu.Lock()
	defer h.attachMu.Unlock()
	if h.sess == nil {
		return nil
	}
	err := h.sess.Close()
	h.sess = nil
	h.baseRef = ""
	h.baseArch = ""
	h.hidden = 0
	h.active = nil
	h.cfg.Publisher.Publish(Event{Name: "base_released"})
	return err
}

// Loaded reports whether a base model is resident.
func (h *Host) Loaded() bool {
	h.attachMu.RLock()
	defer h.attachMu.RUnlock()
	return h.sess != nil
}

// BaseModel returns the path the resident base model was loaded from.
func (h *Host) BaseModel() string {
	h.attachMu.RLock()
	defer h.attachMu.RUnlock()
	return h.baseRef
}

// BaseArch returns the architecture named by the base model header.
func (h *Host) BaseArch() string {
	h.attachMu.RLock()
	defer h.attachMu.RUnlock()
	return h.baseArch
}

// HiddenSize returns the base model's embedding length, 0 when unknown.
func (h *Host) HiddenSize() int {
	h.attachMu.RLock()
	defer h.attachMu.RUnlock()
	return h.hidden
}

// Attachment returns a point-in-time copy of the attachment state.
func (h *Host) Attachment() types.AttachmentState {
	h.attachMu.RLock()
	defer h.attachMu.RUnlock()
	ids := make([]string, len(h.active))
	copy(ids, h.active)
	return types.AttachmentState{
		ActiveAdapterIDs: ids,
		SwapInProgress:   h.swapping.Load(),
		LastSwap:         h.lastSwap,
	}
}

// SwapsTotal reports completed attachment swaps since construction.
func (h *Host) SwapsTotal() uint64 { return h.swapsTotal.Load() }

// QueueLen reports queued inference requests.
func (h *Host) QueueLen() int { return len(h.queueCh) }

// Inflight reports in-flight inference requests (0 or 1).
func (h *Host) Inflight() int { return len(h.genCh) }

// MaxQueueDepth reports the queue capacity before backpressure.
func (h *Host) MaxQueueDepth() int { return cap(h.queueCh) }

// Infer runs one generation with whatever deltas are attached when the
// call starts. Concurrent calls are serialized through the single
// generation lane; attachment changes cannot begin while the call holds
// the shared lock, so no half-attached state is ever observable.
func (h *Host) Infer(ctx context.Context, prompt string, sampling types.SamplingConfig) (types.InferenceResult, error) {
	release, err := h.beginInference(ctx)
	if err != nil {
		return types.InferenceResult{}, err
	}
	defer release()

	h.attachMu.RLock()
	defer h.attachMu.RUnlock()
	if h.sess == nil {
		return types.InferenceResult{}, ErrModelLoad("no base model loaded")
	}

	params := GenerateParams{
		MaxTokens:   sampling.MaxTokens,
		Temperature: float32(sampling.Temperature),
		TopP:        float32(sampling.TopP),
		TopK:        sampling.TopK,
		Stop:        sampling.Stop,
		Seed:        int(sampling.Seed),
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = defaultMaxTokens
	}

	tokens := 0
	start := time.Now()
	final, err := h.sess.Generate(ctx, prompt, params, func(string) error {
		tokens++
		return nil
	})
	if err != nil {
		return types.InferenceResult{}, err
	}
	if final.TokenCount > 0 {
		tokens = final.TokenCount
	}
	return types.InferenceResult{
		AdapterID:  strings.Join(h.active, "+"),
		Text:       final.Content,
		LatencyMs:  time.Since(start).Milliseconds(),
		TokenCount: tokens,
	}, nil
}
