package chat

import (
	"io"
	"iter"

	"github.com/papercomputeco/chatstream/pkg/streamparser"
)

// Stream is one streamed reply. It is not safe for concurrent use.
type Stream struct {
	body      io.ReadCloser
	parser    *streamparser.Parser
	requestID string
}

// Next returns the next reply event, or nil, nil once the reply is complete.
func (s *Stream) Next() (*streamparser.Event, error) {
	return s.parser.Next()
}

// All iterates the remaining reply events.
func (s *Stream) All() iter.Seq2[*streamparser.Event, error] {
	return s.parser.All()
}

// RequestID is the id sent in the X-Request-ID header.
func (s *Stream) RequestID() string {
	return s.requestID
}

// Close releases the response body. Calling it before the reply is
// complete abandons the rest of the stream.
func (s *Stream) Close() error {
	return s.body.Close()
}
