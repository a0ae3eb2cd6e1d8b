package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/chatstream/pkg/eventstream"
	"github.com/papercomputeco/chatstream/pkg/streamparser"
)

// Forwarder publishes the structured events of a reply.
type Forwarder struct {
	publisher eventstream.Publisher
	logger    *slog.Logger
}

// NewForwarder returns a Forwarder writing to publisher.
func NewForwarder(publisher eventstream.Publisher, logger *slog.Logger) *Forwarder {
	return &Forwarder{publisher: publisher, logger: orNop(logger)}
}

// Forward publishes ev when it is a JSON event. Text events are skipped.
func (f *Forwarder) Forward(ctx context.Context, ev *streamparser.Event, requestID, conversationID string) error {
	ce := eventstream.NewControlEvent(ev, requestID, conversationID)
	if ce == nil {
		return nil
	}

	if err := f.publisher.Publish(ctx, ce); err != nil {
		return fmt.Errorf("forwarding %s event: %w", ce.EventType, err)
	}

	f.logger.Debug("forwarded control event",
		"event_type", ce.EventType,
		"request_id", requestID,
	)
	return nil
}

// Close closes the underlying publisher.
func (f *Forwarder) Close() error {
	return f.publisher.Close()
}
