package host

import (
	"sort"
	"sync"

	"adapterd/pkg/types"
)

// deltaArena indexes resident delta-weight handles by adapter id. Deltas
// are loaded once and stay resident across swaps; attach/detach are index
// operations over these handles, so repeated swaps never reload weights.
type deltaArena struct {
	mu      sync.Mutex
	handles map[string]DeltaHandle
}

func newDeltaArena() *deltaArena {
	return &deltaArena{handles: make(map[string]DeltaHandle)}
}

// acquire returns the resident handle for rec, loading the delta into the
// session on first use.
func (a *deltaArena) acquire(sess EngineSession, rec types.AdapterRecord) (DeltaHandle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if h, ok := a.handles[rec.ID]; ok {
		return h, nil
	}
	h, err := sess.LoadDelta(rec.Path, rec.Scale)
	if err != nil {
		return 0, err
	}
	a.handles[rec.ID] = h
	return h, nil
}

// handle returns the resident handle for id without loading.
func (a *deltaArena) handle(id string) (DeltaHandle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	h, ok := a.handles[id]
	return h, ok
}

// free unloads the delta for id. No-op when not resident.
func (a *deltaArena) free(sess EngineSession, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	h, ok := a.handles[id]
	if !ok {
		return nil
	}
	delete(a.handles, id)
	return sess.FreeDelta(h)
}

// resident returns the ids of all loaded deltas, sorted for stable output.
func (a *deltaArena) resident() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.handles))
	for id := range a.handles {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
