package router

// noAdaptersRegisteredError signals an empty adapter catalog at routing
// time. Callers treat it as the sanctioned degradation to base-only.
type noAdaptersRegisteredError struct{}

func (noAdaptersRegisteredError) Error() string { return "no adapters registered" }

// ErrNoAdaptersRegistered returns the empty-catalog routing error.
func ErrNoAdaptersRegistered() error { return noAdaptersRegisteredError{} }

// IsNoAdaptersRegistered reports whether err signals an empty catalog.
func IsNoAdaptersRegistered(err error) bool {
	_, ok := err.(noAdaptersRegisteredError)
	return ok
}
