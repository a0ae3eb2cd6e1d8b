// Package mockserver provides a chat backend that replays a recorded reply
// transcript as a chunked stream, for exercising clients against realistic
// chunk boundaries.
package mockserver

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
)

const (
	// FramingRaw writes transcript chunks as-is.
	FramingRaw = "raw"

	// FramingSSE wraps each chunk in an SSE data event and ends with [DONE].
	FramingSSE = "sse"

	// DefaultChunkSize is used when Config.ChunkSize is not positive.
	DefaultChunkSize = 16

	// ChatPath is the chat endpoint.
	ChatPath = "/api/chat"

	// HealthPath is the liveness endpoint.
	HealthPath = "/healthz"
)

//go:embed demo.txt
var demoTranscript []byte

// DemoTranscript returns a copy of the built-in reply transcript.
func DemoTranscript() []byte {
	return append([]byte(nil), demoTranscript...)
}

// LoadTranscript reads a transcript file.
func LoadTranscript(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}
	return data, nil
}

// Config is the mock server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080").
	ListenAddr string

	// Transcript is the reply body. Defaults to DemoTranscript.
	Transcript []byte

	// ChunkSize is the number of transcript bytes per write.
	ChunkSize int

	// Delay is the pause between writes.
	Delay time.Duration

	// Framing is FramingRaw or FramingSSE.
	Framing string
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server replays the transcript for every chat request.
type Server struct {
	config Config
	logger *slog.Logger
	server *fiber.App
	done   chan struct{}
}

// New creates a new Server.
func New(config Config, logger *slog.Logger) (*Server, error) {
	if config.Framing == "" {
		config.Framing = FramingRaw
	}
	if config.Framing != FramingRaw && config.Framing != FramingSSE {
		return nil, fmt.Errorf("unknown framing %q", config.Framing)
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.Transcript == nil {
		config.Transcript = DemoTranscript()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		logger: logger,
		server: app,
		done:   make(chan struct{}),
	}

	app.Get(HealthPath, s.handleHealth)
	app.Post(ChatPath, s.handleChat)

	return s, nil
}

// Handler exposes the server as an http.Handler. Streamed bodies are fully
// buffered through this path, so chunk timing is only observable on a real
// listener.
func (s *Server) Handler() http.Handler {
	return adaptor.FiberApp(s.server)
}

// Run starts the server on the configured listening address.
func (s *Server) Run() error {
	s.logger.Info("starting mock chat server",
		"listen", s.config.ListenAddr,
		"framing", s.config.Framing,
		"chunk_size", s.config.ChunkSize,
	)

	return s.server.Listen(s.config.ListenAddr)
}

// RunWithListener starts the server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting mock chat server",
		"listen", listener.Addr().String(),
		"framing", s.config.Framing,
	)

	return s.server.Listener(listener)
}

// Close stops in-flight replays and shuts the server down.
func (s *Server) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return s.server.Shutdown()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "message is required"})
	}

	requestID := c.Get("X-Request-ID")
	s.logger.Debug("replaying transcript",
		"request_id", requestID,
		"conversation_id", req.ConversationID,
		"bytes", len(s.config.Transcript),
	)

	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
	if s.config.Framing == FramingSSE {
		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
	} else {
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	}

	// pw.Write blocks until fasthttp drains the pipe, which flushes each
	// chunk to the socket as it is written.
	pr, pw := io.Pipe()
	go s.replay(pw, requestID)

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

func (s *Server) replay(pw *io.PipeWriter, requestID string) {
	err := s.writeChunks(pw)
	if err != nil && !errors.Is(err, io.ErrClosedPipe) {
		s.logger.Error("error replaying transcript", "request_id", requestID, "error", err)
	}
	pw.CloseWithError(err)
}

func (s *Server) writeChunks(w io.Writer) error {
	chunks := Split(s.config.Transcript, s.config.ChunkSize)
	for i, chunk := range chunks {
		if i > 0 && s.config.Delay > 0 {
			select {
			case <-s.done:
				return errors.New("server closing")
			case <-time.After(s.config.Delay):
			}
		}

		frame := chunk
		if s.config.Framing == FramingSSE {
			frame = SSEFrame(chunk)
		}
		if _, err := w.Write(frame); err != nil {
			return err
		}
	}

	if s.config.Framing == FramingSSE {
		_, err := io.WriteString(w, "data: [DONE]\n\n")
		return err
	}
	return nil
}

// Split cuts data into consecutive pieces of at most size bytes. Pieces may
// end inside a multi-byte rune.
func Split(data []byte, size int) [][]byte {
	if size <= 0 {
		size = DefaultChunkSize
	}

	var chunks [][]byte
	for len(data) > 0 {
		n := min(size, len(data))
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}

// SSEFrame encodes one chunk as an SSE event. Newlines in the chunk become
// separate data lines, which a reader joins back with "\n".
func SSEFrame(chunk []byte) []byte {
	var b strings.Builder
	for line := range strings.SplitSeq(string(chunk), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}
