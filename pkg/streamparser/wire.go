package streamparser

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotJSON is returned when a typed decoder is given a text event.
var ErrNotJSON = errors.New("event is not a json event")

// Progress is the payload of a __PROGRESS__ marker.
type Progress struct {
	Type      string   `json:"type"`
	Message   string   `json:"message"`
	Step      string   `json:"step,omitempty"`
	Progress  *float64 `json:"progress,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

// Control is the subset of an inline control object the chat client acts on.
// Unknown keys stay available on Event.JSON.
type Control struct {
	ConversationID string   `json:"conversation_id,omitempty"`
	Thoughts       []string `json:"thoughts,omitempty"`
}

// DecodeProgress decodes a JSON event into a Progress.
func DecodeProgress(ev *Event) (*Progress, error) {
	p := &Progress{}
	if err := decodeInto(ev, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DecodeControl decodes a JSON event into a Control.
func DecodeControl(ev *Event) (*Control, error) {
	c := &Control{}
	if err := decodeInto(ev, c); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeInto(ev *Event, v any) error {
	if !ev.IsJSON() {
		return ErrNotJSON
	}

	raw, err := json.Marshal(ev.JSON)
	if err != nil {
		return fmt.Errorf("re-encoding payload: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", ev.Origin, err)
	}
	return nil
}
