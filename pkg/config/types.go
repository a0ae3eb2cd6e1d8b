package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent chatstream configuration stored as
// config.toml in the .chatstream/ directory.
type Config struct {
	Version int           `toml:"version"`
	Client  ClientConfig  `toml:"client"`
	Stream  StreamConfig  `toml:"stream"`
	Publish PublishConfig `toml:"publish"`
	Mock    MockConfig    `toml:"mock"`
}

// ClientConfig holds settings for commands that talk to a chat backend.
type ClientConfig struct {
	Target  string `toml:"target,omitempty"`
	Path    string `toml:"path,omitempty"`
	Framing string `toml:"framing,omitempty"`
	Timeout string `toml:"timeout,omitempty"`
}

// StreamConfig holds reply parser settings.
type StreamConfig struct {
	MarkdownImages bool `toml:"markdown_images,omitempty"`
	ReadSize       int  `toml:"read_size,omitempty"`
	MaxPending     int  `toml:"max_pending,omitempty"`
}

// PublishConfig selects where extracted control events are published.
type PublishConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// MockConfig holds settings for the mock chat backend.
type MockConfig struct {
	Listen     string `toml:"listen,omitempty"`
	ChunkSize  int    `toml:"chunk_size,omitempty"`
	Delay      string `toml:"delay,omitempty"`
	Framing    string `toml:"framing,omitempty"`
	Transcript string `toml:"transcript,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"client.target": {
		get: func(c *Config) string { return c.Client.Target },
		set: func(c *Config, v string) error { c.Client.Target = v; return nil },
	},
	"client.path": {
		get: func(c *Config) string { return c.Client.Path },
		set: func(c *Config, v string) error { c.Client.Path = v; return nil },
	},
	"client.framing": {
		get: func(c *Config) string { return c.Client.Framing },
		set: func(c *Config, v string) error {
			return setChoice(&c.Client.Framing, "client.framing", v, framings)
		},
	},
	"client.timeout": {
		get: func(c *Config) string { return c.Client.Timeout },
		set: func(c *Config, v string) error {
			return setDuration(&c.Client.Timeout, "client.timeout", v)
		},
	},
	"stream.markdown_images": {
		get: func(c *Config) string { return strconv.FormatBool(c.Stream.MarkdownImages) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for stream.markdown_images: %w", err)
			}
			c.Stream.MarkdownImages = b
			return nil
		},
	},
	"stream.read_size": {
		get: func(c *Config) string { return formatInt(c.Stream.ReadSize) },
		set: func(c *Config, v string) error {
			return setPositiveInt(&c.Stream.ReadSize, "stream.read_size", v)
		},
	},
	"stream.max_pending": {
		get: func(c *Config) string { return formatInt(c.Stream.MaxPending) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for stream.max_pending: %w", err)
			}
			c.Stream.MaxPending = n
			return nil
		},
	},
	"publish.provider": {
		get: func(c *Config) string { return c.Publish.Provider },
		set: func(c *Config, v string) error {
			return setChoice(&c.Publish.Provider, "publish.provider", v, publishProviders)
		},
	},
	"publish.brokers": {
		get: func(c *Config) string { return strings.Join(c.Publish.Brokers, ",") },
		set: func(c *Config, v string) error { c.Publish.Brokers = SplitList(v); return nil },
	},
	"publish.topic": {
		get: func(c *Config) string { return c.Publish.Topic },
		set: func(c *Config, v string) error { c.Publish.Topic = v; return nil },
	},
	"mock.listen": {
		get: func(c *Config) string { return c.Mock.Listen },
		set: func(c *Config, v string) error { c.Mock.Listen = v; return nil },
	},
	"mock.chunk_size": {
		get: func(c *Config) string { return formatInt(c.Mock.ChunkSize) },
		set: func(c *Config, v string) error {
			return setPositiveInt(&c.Mock.ChunkSize, "mock.chunk_size", v)
		},
	},
	"mock.delay": {
		get: func(c *Config) string { return c.Mock.Delay },
		set: func(c *Config, v string) error {
			return setDuration(&c.Mock.Delay, "mock.delay", v)
		},
	},
	"mock.framing": {
		get: func(c *Config) string { return c.Mock.Framing },
		set: func(c *Config, v string) error {
			return setChoice(&c.Mock.Framing, "mock.framing", v, framings)
		},
	},
	"mock.transcript": {
		get: func(c *Config) string { return c.Mock.Transcript },
		set: func(c *Config, v string) error { c.Mock.Transcript = v; return nil },
	},
}

var (
	framings         = []string{"raw", "sse"}
	publishProviders = []string{"nop", "kafka"}
)

// SplitList splits a comma-separated list, dropping blank entries.
func SplitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func formatInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func setChoice(dst *string, key, v string, choices []string) error {
	for _, c := range choices {
		if v == c {
			*dst = v
			return nil
		}
	}
	return fmt.Errorf("invalid value for %s: %q (expected one of %s)", key, v, strings.Join(choices, ", "))
}

func setDuration(dst *string, key, v string) error {
	if _, err := time.ParseDuration(v); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dst = v
	return nil
}

func setPositiveInt(dst *int, key, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if n <= 0 {
		return fmt.Errorf("invalid value for %s: must be positive", key)
	}
	*dst = n
	return nil
}
