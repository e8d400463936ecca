package consensus

// emptyResultSetError flags aggregation over zero results, which means an
// upstream routing or attachment bug. It is surfaced, never defaulted.
type emptyResultSetError struct{}

func (emptyResultSetError) Error() string { return "empty inference result set" }

// ErrEmptyResultSet returns the zero-results aggregation error.
func ErrEmptyResultSet() error { return emptyResultSetError{} }

// IsEmptyResultSet reports whether err signals zero results.
func IsEmptyResultSet(err error) bool {
	_, ok := err.(emptyResultSetError)
	return ok
}
