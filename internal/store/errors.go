package store

// notFoundError signals an unknown adapter id (caller error, recoverable).
type notFoundError struct{ id string }

func (e notFoundError) Error() string { return "adapter not found: " + e.id }

// ErrNotFound returns the error for a missing adapter id.
func ErrNotFound(id string) error { return notFoundError{id: id} }

// IsNotFound reports whether err indicates a missing adapter id.
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}

// corruptArtifactError signals an unreadable or invalid adapter file.
// Reported to the caller; retrying cannot help.
type corruptArtifactError struct {
	path string
	msg  string
}

func (e corruptArtifactError) Error() string { return "corrupt artifact " + e.path + ": " + e.msg }

// ErrCorruptArtifact constructs a corruptArtifactError.
func ErrCorruptArtifact(path, msg string) error { return corruptArtifactError{path: path, msg: msg} }

// IsCorruptArtifact reports whether err indicates a bad adapter file.
func IsCorruptArtifact(err error) bool {
	_, ok := err.(corruptArtifactError)
	return ok
}

// alreadyRegisteredError signals a duplicate registration attempt; records
// are immutable once registered.
type alreadyRegisteredError struct{ id string }

func (e alreadyRegisteredError) Error() string { return "adapter already registered: " + e.id }

// IsAlreadyRegistered reports whether err indicates a duplicate adapter id.
func IsAlreadyRegistered(err error) bool {
	_, ok := err.(alreadyRegisteredError)
	return ok
}
