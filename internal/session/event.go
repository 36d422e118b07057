// Package session layers customer and admin flows over the machine's
// operations. Every mutating or rejected operation emits one event to
// the notification feed; displays and telemetry subscribe, the core
// does not care how events are rendered.
package session

type EventKind uint8

const (
	EventStatus EventKind = iota
	EventError
)

// Event is one entry of the notification feed: either a plain status
// line or a structured error.
type Event struct {
	Session string
	Kind    EventKind
	Message string
	Err     error
}

func (e Event) String() string {
	if e.Kind == EventError {
		return "error: " + e.Err.Error()
	}
	return e.Message
}

type NotifyFunc func(Event)

func notify(f NotifyFunc, e Event) {
	if f != nil {
		f(e)
	}
}
