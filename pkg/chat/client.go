// Package chat sends a message to a streaming chat backend and exposes the
// reply as parsed stream events.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/chatstream/pkg/logger"
	"github.com/papercomputeco/chatstream/pkg/sse"
	"github.com/papercomputeco/chatstream/pkg/streamparser"
	"github.com/papercomputeco/chatstream/pkg/utils"
)

const (
	// FramingRaw is a reply body that is the payload stream itself.
	FramingRaw = "raw"

	// FramingSSE is a reply body whose data fields carry the payload stream.
	FramingSSE = "sse"

	// DefaultPath is the chat endpoint path.
	DefaultPath = "/api/chat"

	// DefaultTimeout bounds a whole request including the streamed reply.
	DefaultTimeout = 5 * time.Minute

	// RequestIDHeader carries the per-request id.
	RequestIDHeader = "X-Request-ID"

	maxErrorBody = 512
)

// ErrUnexpectedStatus is wrapped by StatusError.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// ErrUnknownFraming is returned for a framing other than raw or sse.
var ErrUnknownFraming = errors.New("unknown framing")

// StatusError reports a non-200 reply.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// Config configures a Client.
type Config struct {
	// Target is the backend base URL, e.g. http://localhost:8080.
	Target string

	// Path is appended to Target. Defaults to DefaultPath.
	Path string

	// Framing is FramingRaw or FramingSSE. Defaults to FramingRaw.
	Framing string

	// Timeout bounds a whole request. Defaults to DefaultTimeout.
	Timeout time.Duration

	MarkdownImages bool
	ReadSize       int

	// MaxPending overrides the parser's pending bound when non-zero.
	// Negative disables the bound.
	MaxPending int
}

// Request is one user message.
type Request struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Client talks to one chat backend.
type Client struct {
	cfg        Config
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config, l *slog.Logger) (*Client, error) {
	if cfg.Target == "" {
		return nil, errors.New("chat target is required")
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Framing == "" {
		cfg.Framing = FramingRaw
	}
	if cfg.Framing != FramingRaw && cfg.Framing != FramingSSE {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFraming, cfg.Framing)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		cfg:    cfg,
		url:    strings.TrimRight(cfg.Target, "/") + "/" + strings.TrimLeft(cfg.Path, "/"),
		logger: orNop(l),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

func orNop(l *slog.Logger) *slog.Logger {
	if l == nil {
		return logger.Nop()
	}
	return l
}

// URL returns the endpoint the client posts to.
func (c *Client) URL() string {
	return c.url
}

// Send posts req and returns the reply stream. The caller must Close it.
func (c *Client) Send(ctx context.Context, req *Request) (*Stream, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	requestID := uuid.NewString()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if c.cfg.Framing == FramingSSE {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	c.logger.Debug("sending chat request",
		"url", c.url,
		"request_id", requestID,
		"conversation_id", req.ConversationID,
		"framing", c.cfg.Framing,
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request to backend: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       utils.Truncate(strings.TrimSpace(string(snippet)), maxErrorBody),
		}
	}

	var payload io.Reader = resp.Body
	if c.cfg.Framing == FramingSSE {
		payload = sse.NewDataReader(resp.Body, nil)
	}

	opts := []streamparser.Option{
		streamparser.WithMarkdownImages(c.cfg.MarkdownImages),
		streamparser.WithReadSize(c.cfg.ReadSize),
		streamparser.WithLogger(c.logger.With("request_id", requestID)),
	}
	if c.cfg.MaxPending != 0 {
		opts = append(opts, streamparser.WithMaxPending(c.cfg.MaxPending))
	}

	parser := streamparser.New(payload, opts...)

	return &Stream{
		body:      resp.Body,
		parser:    parser,
		requestID: requestID,
	}, nil
}
