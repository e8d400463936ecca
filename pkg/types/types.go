package types

import "time"

// AdapterRecord describes a registered low-rank adapter artifact on disk.
// Records are immutable once registered; uninstalling removes them.
type AdapterRecord struct {
	// Stable identifier, derived from the artifact filename stem.
	ID string `json:"id"`
	// Personalization domain this adapter was trained for.
	Domain Domain `json:"domain"`
	// Absolute path to the delta weight file.
	Path string `json:"path"`
	// Target base architecture named by the artifact header.
	Arch string `json:"arch"`
	// Low-rank dimension of the delta matrices.
	Rank int `json:"rank"`
	// Artifact size on disk.
	SizeBytes int64 `json:"size_bytes"`
	// Artifact version string from the header ("1" when absent).
	Version string `json:"version"`
	// Delta strength applied when the adapter is attached (0,1].
	Scale float32 `json:"scale"`
}

// AttachmentState is a point-in-time view of what is attached to a host.
// Exactly one state exists per host; the attachment manager is its only
// writer.
type AttachmentState struct {
	// Currently attached adapter ids in application order. Empty means
	// base-only.
	ActiveAdapterIDs []string `json:"active_adapter_ids"`
	// True while a swap is running.
	SwapInProgress bool `json:"swap_in_progress"`
	// Completion time of the last successful swap; zero before any swap.
	LastSwap time.Time `json:"last_swap"`
}

// Selection is one adapter chosen by the router, with the confidence of the
// domain classification that produced it.
type Selection struct {
	AdapterID  string  `json:"adapter_id"`
	Domain     Domain  `json:"domain"`
	Confidence float64 `json:"confidence"`
}

// RoutingDecision is the router's answer for a single query. It is created
// per query and discarded once the response is produced.
type RoutingDecision struct {
	QueryID string `json:"query_id"`
	// Chosen adapters in attachment order; empty selects the base model.
	Selected []Selection `json:"selected"`
	// References into the external context memory that influenced scoring.
	ContextSnippets []string `json:"context_snippets,omitempty"`
}

// AdapterIDs returns the selected adapter ids in order.
func (d RoutingDecision) AdapterIDs() []string {
	ids := make([]string, 0, len(d.Selected))
	for _, s := range d.Selected {
		ids = append(ids, s.AdapterID)
	}
	return ids
}

// Confidence returns the confidence recorded for the given adapter id, or 0.
func (d RoutingDecision) Confidence(adapterID string) float64 {
	for _, s := range d.Selected {
		if s.AdapterID == adapterID {
			return s.Confidence
		}
	}
	return 0
}

// InferenceResult is the outcome of one inference pass. AdapterID is empty
// for a base-only pass.
type InferenceResult struct {
	AdapterID  string `json:"adapter_id,omitempty"`
	Text       string `json:"text"`
	LatencyMs  int64  `json:"latency_ms"`
	TokenCount int    `json:"token_count"`
}

// ConsensusMethod names how a final answer was produced from one or more
// inference results.
type ConsensusMethod string

const (
	MethodSinglePass        ConsensusMethod = "single-pass"
	MethodHighestConfidence ConsensusMethod = "highest-confidence"
	MethodMajorityMerge     ConsensusMethod = "majority-merge"
	MethodWeightedBlend     ConsensusMethod = "weighted-blend"
)

// ConsensusResult is the merged answer for a query. It is derived, never
// persisted here; the interaction-log collaborator owns persistence.
type ConsensusResult struct {
	FinalText    string            `json:"final_text"`
	Contributing []InferenceResult `json:"contributing"`
	Method       ConsensusMethod   `json:"method"`
}

// SamplingConfig carries generation parameters through the host to the
// inference engine.
type SamplingConfig struct {
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Seed        int64    `json:"seed,omitempty"`
}

// QueryRecord is the per-query record handed to the external logging
// collaborator after aggregation. One record is produced per query.
type QueryRecord struct {
	QueryID     string            `json:"query_id"`
	Query       string            `json:"query"`
	AdapterIDs  []string          `json:"adapter_ids"`
	Confidences []float64         `json:"confidences"`
	Method      ConsensusMethod   `json:"method"`
	Results     []InferenceResult `json:"results"`
	TotalMs     int64             `json:"total_ms"`
	Timestamp   time.Time         `json:"timestamp"`
}
