package streamparser

// Kind discriminates the two event shapes.
type Kind string

const (
	// KindText is a run of literal stream content meant for display.
	KindText Kind = "text"

	// KindJSON is a fully parsed JSON object lifted out of the stream.
	KindJSON Kind = "json"
)

// Origin records where a JSON event was found.
type Origin string

const (
	// OriginInline is a bare {...} object embedded in the text.
	OriginInline Origin = "inline"

	// OriginProgress is the payload of a __PROGRESS__ marker.
	OriginProgress Origin = "progress"

	// OriginMetadata is the payload of a __METADATA__ marker.
	OriginMetadata Origin = "metadata"
)

// Event is a single classified unit of the stream. Text events carry Text;
// JSON events carry JSON and Origin.
type Event struct {
	Kind   Kind           `json:"kind"`
	Text   string         `json:"text,omitempty"`
	JSON   map[string]any `json:"json,omitempty"`
	Origin Origin         `json:"origin,omitempty"`
}

// TextEvent returns a text event.
func TextEvent(text string) *Event {
	return &Event{Kind: KindText, Text: text}
}

// JSONEvent returns a JSON event.
func JSONEvent(obj map[string]any, origin Origin) *Event {
	return &Event{Kind: KindJSON, JSON: obj, Origin: origin}
}

// IsText reports whether e is a text event.
func (e *Event) IsText() bool {
	return e != nil && e.Kind == KindText
}

// IsJSON reports whether e is a JSON event.
func (e *Event) IsJSON() bool {
	return e != nil && e.Kind == KindJSON
}

// Coalesce merges runs of consecutive text events. How text is split
// across events depends on read boundaries; the coalesced sequence does not.
func Coalesce(events []*Event) []*Event {
	out := make([]*Event, 0, len(events))
	for _, ev := range events {
		if ev.IsText() && len(out) > 0 && out[len(out)-1].IsText() {
			last := out[len(out)-1]
			out[len(out)-1] = TextEvent(last.Text + ev.Text)
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Text concatenates the payloads of all text events.
func Text(events []*Event) string {
	n := 0
	for _, ev := range events {
		if ev.IsText() {
			n += len(ev.Text)
		}
	}

	buf := make([]byte, 0, n)
	for _, ev := range events {
		if ev.IsText() {
			buf = append(buf, ev.Text...)
		}
	}
	return string(buf)
}
