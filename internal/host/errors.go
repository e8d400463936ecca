package host

// modelLoadError signals a failed or absent base model. Fatal for the
// process when it happens at startup: no base model means no service.
type modelLoadError struct{ msg string }

func (e modelLoadError) Error() string { return "model load: " + e.msg }

// ErrModelLoad constructs a modelLoadError.
func ErrModelLoad(msg string) error { return modelLoadError{msg: msg} }

// IsModelLoad reports whether err indicates a base model load failure.
func IsModelLoad(err error) bool {
	_, ok := err.(modelLoadError)
	return ok
}

// alreadyLoadedError signals a second Load while a base model is live.
type alreadyLoadedError struct{ ref string }

func (e alreadyLoadedError) Error() string { return "base model already loaded: " + e.ref }

// IsAlreadyLoaded reports whether err indicates a duplicate Load.
func IsAlreadyLoaded(err error) bool {
	_, ok := err.(alreadyLoadedError)
	return ok
}

// unknownAdapterError signals an attach request naming an id absent from
// the store (caller error, recoverable).
type unknownAdapterError struct{ id string }

func (e unknownAdapterError) Error() string { return "unknown adapter: " + e.id }

// ErrUnknownAdapter constructs an unknownAdapterError for id.
func ErrUnknownAdapter(id string) error { return unknownAdapterError{id: id} }

// IsUnknownAdapter reports whether err indicates an unregistered adapter id.
func IsUnknownAdapter(err error) bool {
	_, ok := err.(unknownAdapterError)
	return ok
}

// incompatibleAdapterError signals an adapter whose header targets a
// different architecture than the loaded base model.
type incompatibleAdapterError struct {
	id       string
	arch     string
	baseArch string
}

func (e incompatibleAdapterError) Error() string {
	return "incompatible adapter " + e.id + ": targets " + e.arch + ", base is " + e.baseArch
}

// ErrIncompatibleAdapter constructs an incompatibleAdapterError.
func ErrIncompatibleAdapter(id, arch, baseArch string) error {
	return incompatibleAdapterError{id: id, arch: arch, baseArch: baseArch}
}

// IsIncompatibleAdapter reports whether err indicates an architecture mismatch.
func IsIncompatibleAdapter(err error) bool {
	_, ok := err.(incompatibleAdapterError)
	return ok
}

// swapInProgressError signals a concurrent attach attempt. Transient;
// callers retry after backoff, the manager never queues swaps.
type swapInProgressError struct{}

func (e swapInProgressError) Error() string { return "attachment swap in progress" }

// ErrSwapInProgress constructs a swapInProgressError.
func ErrSwapInProgress() error { return swapInProgressError{} }

// IsSwapInProgress reports whether err indicates a concurrent swap.
func IsSwapInProgress(err error) bool {
	_, ok := err.(swapInProgressError)
	return ok
}

// attachmentFailedError signals a partial failure during a swap. By the
// time it surfaces, the host has been rolled back to a well-defined state.
type attachmentFailedError struct{ cause error }

func (e attachmentFailedError) Error() string { return "attachment failed: " + e.cause.Error() }
func (e attachmentFailedError) Unwrap() error { return e.cause }

// ErrAttachmentFailed wraps the partial-failure cause of a swap.
func ErrAttachmentFailed(cause error) error { return attachmentFailedError{cause: cause} }

// IsAttachmentFailed reports whether err indicates a rolled-back swap.
func IsAttachmentFailed(err error) bool {
	_, ok := err.(attachmentFailedError)
	return ok
}

// busyError signals inference queue timeout/overflow (backpressure).
type busyError struct{}

func (e busyError) Error() string { return "inference queue full" }

// ErrBusy constructs a busyError.
func ErrBusy() error { return busyError{} }

// IsBusy reports whether err indicates inference backpressure.
func IsBusy(err error) bool {
	_, ok := err.(busyError)
	return ok
}

// engineUnavailableError signals a missing inference runtime (e.g. a
// binary built without the llama tag) so callers can report 503 instead
// of a generic failure.
type engineUnavailableError struct{ msg string }

func (e engineUnavailableError) Error() string { return e.msg }

// ErrEngineUnavailable constructs an engineUnavailableError.
func ErrEngineUnavailable(msg string) error { return engineUnavailableError{msg: msg} }

// IsEngineUnavailable reports whether err indicates a missing runtime.
func IsEngineUnavailable(err error) bool {
	_, ok := err.(engineUnavailableError)
	return ok
}
