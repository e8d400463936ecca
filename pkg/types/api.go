package types

// QueryRequest is the POST /query payload.
type QueryRequest struct {
	// Query text to answer.
	Query string `json:"query"`
	// Optional explicit adapter ids, bypassing the router when non-empty.
	AdapterIDs []string `json:"adapter_ids,omitempty"`
	// Optional sampling overrides; zero values fall back to server defaults.
	Sampling SamplingConfig `json:"sampling,omitempty"`
}

// QueryResponse is returned by POST /query.
type QueryResponse struct {
	QueryID    string            `json:"query_id"`
	FinalText  string            `json:"final_text"`
	Method     ConsensusMethod   `json:"method"`
	AdapterIDs []string          `json:"adapter_ids"`
	Results    []InferenceResult `json:"results"`
	TotalMs    int64             `json:"total_ms"`
}

// AttachRequest is the POST /attach payload.
type AttachRequest struct {
	// Adapter ids to attach, in application order. Empty detaches all.
	AdapterIDs []string `json:"adapter_ids"`
}

// AdaptersResponse wraps the catalog returned by GET /adapters.
type AdaptersResponse struct {
	Adapters []AdapterRecord `json:"adapters"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// AdapterStatus summarizes one catalog entry for GET /status.
type AdapterStatus struct {
	ID        string `json:"id"`
	Domain    Domain `json:"domain"`
	Rank      int    `json:"rank"`
	SizeBytes int64  `json:"size_bytes"`
	// True when the delta is resident in the arena (loaded, possibly not
	// currently applied).
	Resident bool `json:"resident"`
	// True when the delta is applied to the live session.
	Attached bool `json:"attached"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Base model identifier (file path as loaded).
	BaseModel string `json:"base_model"`
	// Architecture read from the base model header.
	BaseArch string `json:"base_arch"`
	// Overall state: loading, ready, or error.
	State string `json:"state"`
	// Last error observed, if any.
	LastError string `json:"last_error,omitempty"`
	// Current attachment view.
	Attachment AttachmentState `json:"attachment"`
	// Catalog with residency/attachment flags.
	Adapters []AdapterStatus `json:"adapters"`
	// Queued inference requests.
	QueueLen int `json:"queue_len"`
	// In-flight inference requests (0 or 1).
	Inflight int `json:"inflight"`
	// Queue slots before backpressure triggers.
	MaxQueueDepth int `json:"max_queue_depth"`
	// Completed attachment swaps since start.
	SwapsTotal uint64 `json:"swaps_total"`
	// Uptime in seconds.
	UptimeSeconds int64 `json:"uptime_seconds"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
}
