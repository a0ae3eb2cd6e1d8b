package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/chatstream/pkg/streamparser"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeProgress is emitted for each progress marker in a reply.
	EventTypeProgress = "chatstream.progress"

	// EventTypeMetadata is emitted for each metadata marker in a reply.
	EventTypeMetadata = "chatstream.metadata"

	// EventTypeControl is emitted for each inline control object in a reply.
	EventTypeControl = "chatstream.control"
)

// ControlEvent is a transport-neutral envelope around one structured value
// extracted from a chat reply stream.
type ControlEvent struct {
	SchemaVersion  int            `json:"schema_version"`
	EventType      string         `json:"event_type"`
	EventID        string         `json:"event_id"`
	EmittedAt      time.Time      `json:"emitted_at"`
	RequestID      string         `json:"request_id,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Origin         string         `json:"origin"`
	Payload        map[string]any `json:"payload"`
}

// EventTypeFor maps a parser origin to its published event type.
func EventTypeFor(origin streamparser.Origin) string {
	switch origin {
	case streamparser.OriginProgress:
		return EventTypeProgress
	case streamparser.OriginMetadata:
		return EventTypeMetadata
	default:
		return EventTypeControl
	}
}

// NewControlEvent wraps a JSON parser event. It returns nil for text events.
func NewControlEvent(ev *streamparser.Event, requestID, conversationID string) *ControlEvent {
	if ev == nil || !ev.IsJSON() {
		return nil
	}

	return &ControlEvent{
		SchemaVersion:  SchemaVersionV1,
		EventType:      EventTypeFor(ev.Origin),
		EventID:        uuid.NewString(),
		EmittedAt:      time.Now().UTC(),
		RequestID:      requestID,
		ConversationID: conversationID,
		Origin:         string(ev.Origin),
		Payload:        ev.JSON,
	}
}
