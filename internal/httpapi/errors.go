package httpapi

import (
	"encoding/json"
	"net/http"

	"adapterd/internal/consensus"
	"adapterd/internal/host"
	"adapterd/internal/store"
	"adapterd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusForError maps core error taxonomy to HTTP status codes. Transient
// conditions get 429 so clients know to retry; bad artifacts get 422; a
// missing engine build gets 503.
func statusForError(err error) int {
	switch {
	case store.IsNotFound(err), host.IsUnknownAdapter(err):
		return http.StatusNotFound
	case host.IsSwapInProgress(err), host.IsBusy(err):
		return http.StatusTooManyRequests
	case store.IsCorruptArtifact(err), host.IsIncompatibleAdapter(err):
		return http.StatusUnprocessableEntity
	case host.IsEngineUnavailable(err):
		return http.StatusServiceUnavailable
	case consensus.IsEmptyResultSet(err):
		return http.StatusInternalServerError
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeError maps err to a status code and writes the JSON payload,
// bumping the backpressure counter for 429s.
func writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusTooManyRequests {
		reason := "busy"
		if host.IsSwapInProgress(err) {
			reason = "swap_in_progress"
		}
		IncrementBackpressure(reason)
	}
	writeJSONError(w, status, err.Error())
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// writeJSON writes v as the response body with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}
