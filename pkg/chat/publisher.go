package chat

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/chatstream/pkg/eventstream"
	"github.com/papercomputeco/chatstream/pkg/eventstream/kafka"
	"github.com/papercomputeco/chatstream/pkg/eventstream/nop"
)

const (
	// PublisherNop discards control events.
	PublisherNop = "nop"

	// PublisherKafka writes control events to a Kafka topic.
	PublisherKafka = "kafka"
)

// PublishConfig selects and configures a control event publisher.
type PublishConfig struct {
	Provider string
	Brokers  []string
	Topic    string
}

// NewPublisher builds the publisher named by cfg.Provider. An empty
// provider selects the nop publisher.
func NewPublisher(cfg PublishConfig, logger *slog.Logger) (eventstream.Publisher, error) {
	switch cfg.Provider {
	case "", PublisherNop:
		return nop.NewPublisher(), nil

	case PublisherKafka:
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.Brokers,
			Topic:   cfg.Topic,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		return p, nil

	default:
		return nil, fmt.Errorf("unknown publisher %q (expected nop or kafka)", cfg.Provider)
	}
}
