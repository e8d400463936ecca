// Package store keeps the catalog of adapter artifacts on disk. It owns
// metadata only; delta weights are loaded elsewhere. Insertion order is
// preserved because the router uses it to break ties.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"adapterd/internal/gguf"
	"adapterd/pkg/types"
)

// Config captures the base-model constraints adapters are validated against.
type Config struct {
	// Architecture of the configured base model; adapters naming a
	// different target are still registered (the attachment manager
	// rejects them at attach time) but a mismatch is logged.
	BaseArch string
	// Hidden size of the base model. Adapter rank must be positive and
	// strictly smaller; 0 disables the dimension check.
	HiddenSize int
	// Scale recorded for adapters whose header carries none.
	DefaultScale float32
	Logger       zerolog.Logger
}

// Store is the adapter catalog. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	cfg     Config
	records []types.AdapterRecord
	index   map[string]int
}

func New(cfg Config) *Store {
	if cfg.DefaultScale <= 0 {
		cfg.DefaultScale = 1.0
	}
	return &Store{cfg: cfg, index: make(map[string]int)}
}

// Register validates the artifact at path and adds it to the catalog under
// the given domain. The id is derived from the filename stem. Fails with a
// corrupt-artifact error when the header is unreadable, the artifact is not
// a LoRA delta, or its rank is incompatible with the base hidden size.
func (s *Store) Register(path string, domain types.Domain, scale float32) (types.AdapterRecord, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return types.AdapterRecord{}, ErrCorruptArtifact(path, err.Error())
	}
	h, err := gguf.ReadFile(path)
	if err != nil {
		return types.AdapterRecord{}, ErrCorruptArtifact(path, err.Error())
	}
	if at, _ := h.String(gguf.KeyAdapterType); at != "lora" {
		return types.AdapterRecord{}, ErrCorruptArtifact(path, fmt.Sprintf("adapter.type %q is not lora", at))
	}
	rank64, ok := h.Int(gguf.KeyAdapterRank)
	rank := int(rank64)
	if !ok || rank <= 0 {
		return types.AdapterRecord{}, ErrCorruptArtifact(path, "missing or non-positive adapter rank")
	}
	if s.cfg.HiddenSize > 0 && rank >= s.cfg.HiddenSize {
		return types.AdapterRecord{}, ErrCorruptArtifact(path,
			fmt.Sprintf("rank %d incompatible with base hidden size %d", rank, s.cfg.HiddenSize))
	}
	arch := h.Architecture()
	if s.cfg.BaseArch != "" && arch != "" && arch != s.cfg.BaseArch {
		s.cfg.Logger.Warn().Str("path", path).Str("arch", arch).Str("base_arch", s.cfg.BaseArch).
			Msg("adapter targets a different architecture; it will be rejected at attach time")
	}
	version, _ := h.String(gguf.KeyVersion)
	if version == "" {
		version = "1"
	}
	if scale <= 0 {
		scale = s.cfg.DefaultScale
	}

	rec := types.AdapterRecord{
		ID:        AdapterID(path),
		Domain:    domain,
		Path:      path,
		Arch:      arch,
		Rank:      rank,
		SizeBytes: fi.Size(),
		Version:   version,
		Scale:     scale,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.index[rec.ID]; exists {
		return types.AdapterRecord{}, alreadyRegisteredError{id: rec.ID}
	}
	s.index[rec.ID] = len(s.records)
	s.records = append(s.records, rec)
	s.cfg.Logger.Info().Str("id", rec.ID).Str("domain", string(domain)).Int("rank", rank).Msg("adapter registered")
	return rec, nil
}

// Lookup returns the record for id.
func (s *Store) Lookup(id string) (types.AdapterRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return types.AdapterRecord{}, notFoundError{id: id}
	}
	return s.records[i], nil
}

// ListByDomain returns all records for the domain in insertion order.
func (s *Store) ListByDomain(domain types.Domain) []types.AdapterRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.AdapterRecord
	for _, r := range s.records {
		if r.Domain == domain {
			out = append(out, r)
		}
	}
	return out
}

// List returns the whole catalog in insertion order.
func (s *Store) List() []types.AdapterRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.AdapterRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len reports the catalog size.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Remove uninstalls the record for id. Resident delta weights are the
// attachment manager's concern; callers detach first.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return notFoundError{id: id}
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.records); j++ {
		s.index[s.records[j].ID] = j
	}
	return nil
}

// AdapterID derives the catalog id from an artifact path: the filename stem
// with conventional "_adapter"/"_lora" suffixes stripped.
func AdapterID(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, suf := range []string{"_adapter", "-adapter", "_lora", "-lora"} {
		stem = strings.TrimSuffix(stem, suf)
	}
	return stem
}
