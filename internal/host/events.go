package host

// Event represents an attachment/host lifecycle event.
// Minimal and stable: name + adapter id and optional fields via key/values.
type Event struct {
	Name      string
	AdapterID string
	Fields    map[string]any
}

// EventPublisher receives events from the host and attachment manager.
// Implementations should be lightweight and non-blocking; Publish must not
// panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
