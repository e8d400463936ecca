//go:build llama

package host

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// llamaEngine loads GGUF models through the go-llama.cpp binding.
//
// The binding exposes load-time LoRA only (no runtime adapter_lora_set /
// adapter_lora_remove surface), so a session supports at most one applied
// delta and swapping rebuilds the llama context with the new adapter. The
// base file itself is mmapped, which keeps the rebuild far cheaper than a
// cold load; true hot stacking needs the low-level adapter API.
type llamaEngine struct{}

// NewLlamaEngine returns the configured inference engine for this build.
func NewLlamaEngine() Engine { return llamaEngine{} }

type llamaDelta struct {
	path  string
	scale float32
}

type llamaSession struct {
	mu        sync.Mutex
	modelPath string
	opts      EngineOptions
	model     *llama.LLama
	deltas    map[DeltaHandle]llamaDelta
	applied   []DeltaHandle
	nextID    DeltaHandle
}

func (llamaEngine) Load(modelPath string, opts EngineOptions) (EngineSession, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	m, err := llama.New(modelPath, llama.SetContext(opts.CtxSize))
	if err != nil {
		return nil, err
	}
	return &llamaSession{
		modelPath: modelPath,
		opts:      opts,
		model:     m,
		deltas:    make(map[DeltaHandle]llamaDelta),
		nextID:    1,
	}, nil
}

func (s *llamaSession) LoadDelta(path string, scale float32) (DeltaHandle, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.nextID
	s.nextID++
	s.deltas[h] = llamaDelta{path: path, scale: scale}
	return h, nil
}

func (s *llamaSession) ApplyDelta(h DeltaHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deltas[h]
	if !ok {
		return errors.New("unknown delta handle")
	}
	if len(s.applied) > 0 {
		return errors.New("go-llama.cpp supports a single applied delta per session")
	}
	if err := s.rebuildLocked(d.path); err != nil {
		return err
	}
	s.applied = []DeltaHandle{h}
	return nil
}

func (s *llamaSession) RemoveDelta(h DeltaHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.applied) == 0 || s.applied[0] != h {
		return errors.New("delta not applied")
	}
	if err := s.rebuildLocked(""); err != nil {
		return err
	}
	s.applied = nil
	return nil
}

func (s *llamaSession) ClearDeltas() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.applied) == 0 {
		return nil
	}
	if err := s.rebuildLocked(""); err != nil {
		return err
	}
	s.applied = nil
	return nil
}

func (s *llamaSession) FreeDelta(h DeltaHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deltas, h)
	return nil
}

// rebuildLocked reinitializes the llama context, with or without a LoRA.
func (s *llamaSession) rebuildLocked(loraPath string) error {
	mo := []llama.ModelOption{llama.SetContext(s.opts.CtxSize)}
	if loraPath != "" {
		mo = append(mo, llama.SetLoraAdapter(loraPath), llama.SetLoraBase(s.modelPath))
	}
	m, err := llama.New(s.modelPath, mo...)
	if err != nil {
		return err
	}
	if s.model != nil {
		s.model.Free()
	}
	s.model = m
	return nil
}

func (s *llamaSession) Generate(ctx context.Context, prompt string, params GenerateParams, onToken func(string) error) (FinalResult, error) {
	s.mu.Lock()
	model := s.model
	s.mu.Unlock()
	if model == nil {
		return FinalResult{}, errors.New("llama model not initialized")
	}

	tokens := 0
	// Bridge token streaming to onToken and respect cancellation between
	// token steps.
	model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		tokens++
		if onToken != nil {
			if err := onToken(tok); err != nil {
				return false
			}
		}
		return true
	})
	po := mapGenerateParams(params, s.opts.Threads)
	text, err := model.Predict(prompt, po...)
	if err != nil {
		if ctx.Err() != nil {
			return FinalResult{}, ctx.Err()
		}
		return FinalResult{}, err
	}
	return FinalResult{Content: text, TokenCount: tokens, FinishReason: "stop"}, nil
}

func (s *llamaSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model != nil {
		s.model.Free()
		s.model = nil
	}
	s.deltas = nil
	s.applied = nil
	return nil
}

// helpers
func maxi(a, b int) int {
	if a > b {
		return a
	}
	return b
}
func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// mapGenerateParams converts engine params into go-llama.cpp options.
func mapGenerateParams(params GenerateParams, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(maxi(1, params.MaxTokens)),
		llama.SetThreads(maxi(1, threads)),
		llama.SetTopP(zf(params.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(zn(params.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(zf(params.Temperature, llama.DefaultOptions.Temperature)),
	}
	if params.Seed != 0 {
		po = append(po, llama.SetSeed(params.Seed))
	}
	if len(params.Stop) > 0 {
		po = append(po, llama.SetStopWords(params.Stop...))
	}
	return po
}
