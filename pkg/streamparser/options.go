package streamparser

import "log/slog"

const (
	// DefaultReadSize is the size of each read from the underlying reader.
	DefaultReadSize = 4096

	// DefaultMaxPending bounds how many bytes an unresolved marker or object
	// may hold back before it is released as text.
	DefaultMaxPending = 1024 * 1024
)

type options struct {
	markdown   bool
	readSize   int
	maxPending int
	logger     *slog.Logger
}

// Option configures a Parser.
type Option func(*options)

// WithMarkdownImages enables the markdown-aware variant: text that ends in
// an incomplete ![alt](url) tag is held back until the tag completes, so an
// image tag is never split across two text events.
func WithMarkdownImages(enabled bool) Option {
	return func(o *options) {
		o.markdown = enabled
	}
}

// WithReadSize sets the read buffer size. Values below 1 keep the default.
func WithReadSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.readSize = n
		}
	}
}

// WithMaxPending sets the pending bound. Zero or negative disables it.
func WithMaxPending(n int) Option {
	return func(o *options) {
		o.maxPending = n
	}
}

// WithLogger sets the logger used for dropped markers and released
// candidates.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
