package config

const (
	defaultClientTarget  = "http://localhost:8080"
	defaultClientPath    = "/api/chat"
	defaultClientFraming = "raw"
	defaultClientTimeout = "5m"

	defaultReadSize   = 4096
	defaultMaxPending = 1024 * 1024

	defaultPublishProvider = "nop"
	defaultPublishTopic    = "chatstream.events"

	defaultMockListen    = ":8080"
	defaultMockChunkSize = 16
	defaultMockDelay     = "20ms"
	defaultMockFraming   = "raw"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			Target:  defaultClientTarget,
			Path:    defaultClientPath,
			Framing: defaultClientFraming,
			Timeout: defaultClientTimeout,
		},
		Stream: StreamConfig{
			ReadSize:   defaultReadSize,
			MaxPending: defaultMaxPending,
		},
		Publish: PublishConfig{
			Provider: defaultPublishProvider,
			Topic:    defaultPublishTopic,
		},
		Mock: MockConfig{
			Listen:    defaultMockListen,
			ChunkSize: defaultMockChunkSize,
			Delay:     defaultMockDelay,
			Framing:   defaultMockFraming,
		},
	}
}
