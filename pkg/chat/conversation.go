package chat

import (
	"maps"
	"strings"

	"github.com/papercomputeco/chatstream/pkg/streamparser"
)

// Update describes what one event changed in a Conversation.
type Update struct {
	// Text is the text appended to the reply.
	Text string

	// ConversationID is set when the event assigned a new conversation id.
	ConversationID string

	// Thoughts are the thoughts the event added.
	Thoughts []string

	// Progress is set for progress marker events.
	Progress *streamparser.Progress

	// Metadata is set for metadata marker events.
	Metadata map[string]any
}

// Empty reports whether the update changed nothing.
func (u Update) Empty() bool {
	return u.Text == "" && u.ConversationID == "" && len(u.Thoughts) == 0 &&
		u.Progress == nil && u.Metadata == nil
}

// Conversation folds reply events into client-side state. Its id and
// metadata persist across turns; reply text, thoughts and progress are per
// turn and cleared by BeginTurn.
type Conversation struct {
	ID       string
	Thoughts []string
	Progress *streamparser.Progress
	Metadata map[string]any

	reply strings.Builder
}

// NewConversation returns a conversation, optionally resuming id.
func NewConversation(id string) *Conversation {
	return &Conversation{ID: id, Metadata: map[string]any{}}
}

// BeginTurn clears the per-turn state before a new message is sent.
func (c *Conversation) BeginTurn() {
	c.Thoughts = nil
	c.Progress = nil
	c.reply.Reset()
}

// Reply is the text accumulated for the current turn.
func (c *Conversation) Reply() string {
	return c.reply.String()
}

// Apply folds ev into the conversation. Payloads that do not decode into
// their expected shape are ignored and produce an empty Update.
func (c *Conversation) Apply(ev *streamparser.Event) Update {
	if ev == nil {
		return Update{}
	}

	if ev.IsText() {
		c.reply.WriteString(ev.Text)
		return Update{Text: ev.Text}
	}

	switch ev.Origin {
	case streamparser.OriginProgress:
		p, err := streamparser.DecodeProgress(ev)
		if err != nil {
			return Update{}
		}
		c.Progress = p
		return Update{Progress: p}

	case streamparser.OriginMetadata:
		if c.Metadata == nil {
			c.Metadata = map[string]any{}
		}
		maps.Copy(c.Metadata, ev.JSON)
		return Update{Metadata: ev.JSON}

	default:
		ctl, err := streamparser.DecodeControl(ev)
		if err != nil {
			return Update{}
		}

		var u Update
		if ctl.ConversationID != "" && ctl.ConversationID != c.ID {
			c.ID = ctl.ConversationID
			u.ConversationID = ctl.ConversationID
		}
		if len(ctl.Thoughts) > 0 {
			c.Thoughts = append(c.Thoughts, ctl.Thoughts...)
			u.Thoughts = ctl.Thoughts
		}
		return u
	}
}
