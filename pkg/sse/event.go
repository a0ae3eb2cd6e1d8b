// Package sse reads Server-Sent Events from a chat backend. It parses event
// frames while optionally forwarding the raw bytes to another writer, and can
// unwrap an SSE stream back into the plain payload stream the chat parser
// consumes.
//
// The package does not provide SSE writer or server capabilities.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Done is the data payload some backends send as their final event.
const Done = "[DONE]"

// Event represents a single parsed SSE event, delimited by a blank line
// in the upstream byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type.
	Type string

	// Data is the contents of all "data:" lines for this event joined
	// with "\n".
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}

// IsDone reports whether the event is the end-of-stream sentinel.
func (e *Event) IsDone() bool {
	return e != nil && e.Data == Done
}
