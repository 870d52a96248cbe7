package gateway

import "time"

// RequestEvent describes one outbound request attempt against the remote
// service. One event is emitted per attempt, including retries.
type RequestEvent struct {
	Method   string
	URL      string
	Status   int
	Duration time.Duration
	Err      error
}

// RequestObserver receives request events. Implementations must be safe for
// concurrent use. Observer failures never affect the request outcome; the
// executor swallows them at the call site.
type RequestObserver interface {
	Observe(event RequestEvent)
}

// NopObserver discards all events.
type NopObserver struct{}

// Observe implements RequestObserver.
func (NopObserver) Observe(RequestEvent) {}
