package eventstream

import "context"

// Publisher publishes control events to an event stream backend.
type Publisher interface {
	Publish(ctx context.Context, event *ControlEvent) error
	Close() error
}
