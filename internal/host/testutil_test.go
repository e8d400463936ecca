package host

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"adapterd/internal/gguf/gguftest"
	"adapterd/internal/store"
	"adapterd/pkg/types"
)

// fakeEngine is a lightweight in-memory engine used for tests.
type fakeEngine struct {
	loadErr error
	sess    *fakeSession
}

func (e *fakeEngine) Load(path string, opts EngineOptions) (EngineSession, error) {
	if e.loadErr != nil {
		return nil, e.loadErr
	}
	if e.sess == nil {
		e.sess = newFakeSession()
	}
	e.sess.basePath = path
	return e.sess, nil
}

type fakeDelta struct {
	path  string
	scale float32
}

type fakeSession struct {
	mu       sync.Mutex
	basePath string
	nextID   DeltaHandle
	loaded   map[DeltaHandle]fakeDelta
	applied  []DeltaHandle

	// Failure injection, keyed on delta path substring.
	failLoad  string
	failApply string
	failAll   bool

	// Generation scripting.
	tokens  []string
	genGate chan struct{} // when set, Generate blocks until closed
	closed  bool

	loadCalls   int
	removeCalls int
	clearCalls  int
}

func newFakeSession() *fakeSession {
	return &fakeSession{nextID: 1, loaded: make(map[DeltaHandle]fakeDelta), tokens: []string{"ok"}}
}

func (s *fakeSession) LoadDelta(path string, scale float32) (DeltaHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadCalls++
	if s.failLoad != "" && strings.Contains(path, s.failLoad) {
		return 0, errors.New("injected load failure")
	}
	h := s.nextID
	s.nextID++
	s.loaded[h] = fakeDelta{path: path, scale: scale}
	return h, nil
}

func (s *fakeSession) ApplyDelta(h DeltaHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.loaded[h]
	if !ok {
		return errors.New("unknown handle")
	}
	if s.failAll || (s.failApply != "" && strings.Contains(d.path, s.failApply)) {
		return errors.New("injected apply failure")
	}
	s.applied = append(s.applied, h)
	return nil
}

func (s *fakeSession) RemoveDelta(h DeltaHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeCalls++
	for i, a := range s.applied {
		if a == h {
			s.applied = append(s.applied[:i], s.applied[i+1:]...)
			return nil
		}
	}
	return errors.New("delta not applied")
}

func (s *fakeSession) ClearDeltas() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearCalls++
	s.applied = nil
	return nil
}

func (s *fakeSession) FreeDelta(h DeltaHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loaded, h)
	return nil
}

func (s *fakeSession) Generate(ctx context.Context, prompt string, params GenerateParams, onToken func(string) error) (FinalResult, error) {
	if s.genGate != nil {
		select {
		case <-s.genGate:
		case <-ctx.Done():
			return FinalResult{}, ctx.Err()
		}
	}
	var b strings.Builder
	for _, tok := range s.tokens {
		select {
		case <-ctx.Done():
			return FinalResult{}, ctx.Err()
		default:
		}
		if onToken != nil {
			if err := onToken(tok); err != nil {
				return FinalResult{}, err
			}
		}
		b.WriteString(tok)
	}
	return FinalResult{Content: b.String(), TokenCount: len(s.tokens), FinishReason: "stop"}, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// appliedPaths returns the applied deltas' paths in application order.
func (s *fakeSession) appliedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.applied))
	for _, h := range s.applied {
		out = append(out, s.loaded[h].path)
	}
	return out
}

// testRig bundles a store, a loaded host on a fake engine, and a manager.
type testRig struct {
	store *store.Store
	host  *Host
	sess  *fakeSession
	mgr   *AttachmentManager
}

// newTestRig writes a base model plus adapters named by ids (all domain
// home, rank 8) and loads the host.
func newTestRig(t *testing.T, ids ...string) *testRig {
	t.Helper()
	dir := t.TempDir()
	base := gguftest.WriteBase(t, dir, "base.gguf", "llama", 4096)

	st := store.New(store.Config{BaseArch: "llama", HiddenSize: 4096})
	for _, id := range ids {
		p := gguftest.WriteAdapter(t, dir, id+".gguf", "llama", 8)
		if _, err := st.Register(p, types.DomainHome, 0); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}

	eng := &fakeEngine{}
	h := New(Config{Engine: eng, MaxQueueDepth: 4, MaxWait: 2 * time.Second})
	if err := h.Load(base); err != nil {
		t.Fatalf("load base: %v", err)
	}
	return &testRig{store: st, host: h, sess: eng.sess, mgr: NewAttachmentManager(st, h)}
}

// wantActive asserts the current attachment set.
func (r *testRig) wantActive(t *testing.T, want ...string) {
	t.Helper()
	got := r.mgr.Current().ActiveAdapterIDs
	if len(got) != len(want) {
		t.Fatalf("active = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("active = %v, want %v", got, want)
		}
	}
	if fmt.Sprint(r.sessAppliedIDs()) != fmt.Sprint(want) {
		t.Fatalf("session applied %v disagrees with state %v", r.sessAppliedIDs(), want)
	}
}

// sessAppliedIDs maps applied delta paths back to adapter ids.
func (r *testRig) sessAppliedIDs() []string {
	paths := r.sess.appliedPaths()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, store.AdapterID(p))
	}
	return out
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}
