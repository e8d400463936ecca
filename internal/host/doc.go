// Package host owns the single resident base model and the adapter deltas
// attached to it. It is structured into small files by concern:
//
//   - host.go: Host type, base model load/release, inference entry point.
//   - attachment.go: AttachmentManager and the attach/detach/rollback algorithm.
//   - arena.go: resident delta-weight handles indexed by adapter id.
//   - admission.go: bounded FIFO queue and single in-flight generation slot.
//   - engine.go: Engine/EngineSession interfaces over the inference runtime.
//   - errors.go: error types and predicate helpers (IsSwapInProgress, ...).
//   - events.go: lifecycle event publishing for observability.
//
// Build tags and runtimes:
//
//   - In-process llama (standard): uses the go-llama.cpp engine. Enabled
//     with `-tags=llama` (engine_llama.go). The binding exposes load-time
//     LoRA only, so that engine supports one applied delta per session.
//   - Default builds compile a no-CGO stub (engine_stub.go) that fails
//     fast instead of mocking inference.
//
// Locking model: attachment changes take the exclusive lock and inference
// takes the shared lock for its whole duration, so every inference call
// observes the attachment state that held when it started. A separate
// compare-and-swap flag makes concurrent attach attempts fail fast with
// SwapInProgress instead of queuing.
package host
