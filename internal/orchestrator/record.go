package orchestrator

import (
	"sync"

	"github.com/rs/zerolog"

	"adapterd/pkg/types"
)

// RecordSink receives one interaction record per answered query. It is
// the boundary to the external conversation-log collaborator; the core
// never writes log files itself.
type RecordSink interface {
	Record(rec types.QueryRecord)
}

// ZerologSink emits interaction records as structured log events.
type ZerologSink struct {
	Logger zerolog.Logger
}

func (s ZerologSink) Record(rec types.QueryRecord) {
	s.Logger.Info().
		Str("query_id", rec.QueryID).
		Strs("adapters", rec.AdapterIDs).
		Floats64("confidences", rec.Confidences).
		Str("method", string(rec.Method)).
		Int64("total_ms", rec.TotalMs).
		Msg("query answered")
}

// MemorySink retains records in memory for tests.
type MemorySink struct {
	mu   sync.Mutex
	recs []types.QueryRecord
}

func (s *MemorySink) Record(rec types.QueryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
}

// Records returns a snapshot of everything recorded so far.
func (s *MemorySink) Records() []types.QueryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.QueryRecord, len(s.recs))
	copy(out, s.recs)
	return out
}
