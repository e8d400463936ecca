package host

import (
	"context"
	"fmt"
	"slices"
	"time"

	"adapterd/internal/store"
	"adapterd/pkg/types"
)

// AttachmentManager is the only writer of a host's attachment state. It
// validates adapter ids against the store, swaps deltas on the engine
// session, and guarantees the active set never disagrees with what is
// actually applied: every failure path restores the previously-attached
// set, or base-only when even that fails.
type AttachmentManager struct {
	store *store.Store
	host  *Host
	arena *deltaArena
}

// NewAttachmentManager wires a manager to its store and host. Events and
// logging reuse the host's configuration.
func NewAttachmentManager(st *store.Store, h *Host) *AttachmentManager {
	return &AttachmentManager{store: st, host: h, arena: newDeltaArena()}
}

// Attach swaps the active composition to exactly ids, in order. Later ids
// compose on top of earlier ones. An empty sequence detaches everything.
// Attaching the already-active sequence is a no-op and never errors.
//
// Concurrent attach attempts fail fast with SwapInProgress; callers retry.
// The swap waits for any in-flight inference before touching the session.
func (m *AttachmentManager) Attach(ctx context.Context, ids []string) error {
	ids = dedupe(ids)
	recs, err := m.validate(ids)
	if err != nil {
		return err
	}

	if !m.host.swapping.CompareAndSwap(false, true) {
		return swapInProgressError{}
	}
	defer m.host.swapping.Store(false)

	if err := ctx.Err(); err != nil {
		return err
	}
	m.host.attachMu.Lock()
	defer m.host.attachMu.Unlock()
	if m.host.sess == nil {
		return ErrModelLoad("no base model loaded")
	}
	if slices.Equal(m.host.active, ids) {
		return nil
	}

	prev := slices.Clone(m.host.active)
	start := time.Now()
	if err := m.transitionLocked(prev, ids, recs); err != nil {
		if rerr := m.reapplyLocked(prev); rerr != nil {
			_ = m.host.sess.ClearDeltas()
			m.host.active = nil
			m.host.cfg.Publisher.Publish(Event{Name: "swap_rollback_base_only", Fields: map[string]any{"error": err.Error()}})
			return ErrAttachmentFailed(fmt.Errorf("%v (restore failed: %v)", err, rerr))
		}
		m.host.active = prev
		m.host.cfg.Publisher.Publish(Event{Name: "swap_rollback", Fields: map[string]any{"error": err.Error()}})
		return ErrAttachmentFailed(err)
	}

	m.host.active = slices.Clone(ids)
	m.host.lastSwap = time.Now()
	m.host.swapsTotal.Add(1)
	m.host.cfg.Publisher.Publish(Event{Name: "swap_done", Fields: map[string]any{
		"active": slices.Clone(ids), "dur_ms": time.Since(start).Milliseconds(),
	}})
	m.host.cfg.Logger.Debug().Strs("active", ids).Dur("dur", time.Since(start)).Msg("attachment swap")
	return nil
}

// DetachAll returns the host to base-only. Equivalent to Attach(ctx, nil).
func (m *AttachmentManager) DetachAll(ctx context.Context) error {
	return m.Attach(ctx, nil)
}

// Current returns the attachment state as seen by callers.
func (m *AttachmentManager) Current() types.AttachmentState {
	return m.host.Attachment()
}

// ResidentDeltas lists adapter ids whose weights are loaded in the arena.
func (m *AttachmentManager) ResidentDeltas() []string {
	return m.arena.resident()
}

// Uninstall frees an adapter's resident weights and removes its catalog
// record. The adapter must not be attached.
func (m *AttachmentManager) Uninstall(ctx context.Context, id string) error {
	if _, err := m.store.Lookup(id); err != nil {
		return unknownAdapterError{id: id}
	}
	if !m.host.swapping.CompareAndSwap(false, true) {
		return swapInProgressError{}
	}
	defer m.host.swapping.Store(false)

	m.host.attachMu.Lock()
	defer m.host.attachMu.Unlock()
	if slices.Contains(m.host.active, id) {
		return fmt.Errorf("adapter %s is attached; detach before uninstall", id)
	}
	if m.host.sess != nil {
		if err := m.arena.free(m.host.sess, id); err != nil {
			return err
		}
	}
	if err := m.store.Remove(id); err != nil {
		return err
	}
	m.host.cfg.Publisher.Publish(Event{Name: "adapter_uninstalled", AdapterID: id})
	return nil
}

// validate resolves every id against the store and checks the target
// architecture against the loaded base model.
func (m *AttachmentManager) validate(ids []string) (map[string]types.AdapterRecord, error) {
	baseArch := m.host.BaseArch()
	recs := make(map[string]types.AdapterRecord, len(ids))
	for _, id := range ids {
		rec, err := m.store.Lookup(id)
		if err != nil {
			return nil, unknownAdapterError{id: id}
		}
		if baseArch != "" && rec.Arch != "" && rec.Arch != baseArch {
			return nil, incompatibleAdapterError{id: id, arch: rec.Arch, baseArch: baseArch}
		}
		recs[id] = rec
	}
	return recs, nil
}

// transitionLocked moves the session composition from cur to target.
// Pure extensions apply only the new deltas and pure truncations remove
// only the dropped ones; anything else rebuilds the composition in target
// order, since application order is significant.
func (m *AttachmentManager) transitionLocked(cur, target []string, recs map[string]types.AdapterRecord) error {
	sess := m.host.sess
	switch {
	case isPrefix(cur, target):
		for _, id := range target[len(cur):] {
			if err := m.applyOneLocked(recs[id]); err != nil {
				return err
			}
		}
	case isPrefix(target, cur):
		for i := len(cur) - 1; i >= len(target); i-- {
			h, ok := m.arena.handle(cur[i])
			if !ok {
				return fmt.Errorf("delta %s not resident", cur[i])
			}
			if err := sess.RemoveDelta(h); err != nil {
				return err
			}
		}
	default:
		if err := sess.ClearDeltas(); err != nil {
			return err
		}
		for _, id := range target {
			if err := m.applyOneLocked(recs[id]); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyOneLocked loads the delta on first use and applies it.
func (m *AttachmentManager) applyOneLocked(rec types.AdapterRecord) error {
	h, err := m.arena.acquire(m.host.sess, rec)
	if err != nil {
		return fmt.Errorf("load %s: %w", rec.ID, err)
	}
	if err := m.host.sess.ApplyDelta(h); err != nil {
		return fmt.Errorf("apply %s: %w", rec.ID, err)
	}
	return nil
}

// reapplyLocked rebuilds a previously-active composition from resident
// handles. All of prev was applied before, so every handle must exist.
func (m *AttachmentManager) reapplyLocked(prev []string) error {
	if err := m.host.sess.ClearDeltas(); err != nil {
		return err
	}
	for _, id := range prev {
		h, ok := m.arena.handle(id)
		if !ok {
			return fmt.Errorf("delta %s not resident", id)
		}
		if err := m.host.sess.ApplyDelta(h); err != nil {
			return err
		}
	}
	return nil
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func isPrefix(p, s []string) bool {
	if len(p) > len(s) {
		return false
	}
	return slices.Equal(p, s[:len(p)])
}
