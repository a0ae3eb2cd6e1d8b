package streamparser

import (
	"encoding/json"
	"errors"
	"io"
	"iter"
	"strings"

	"github.com/papercomputeco/chatstream/pkg/logger"
	"github.com/papercomputeco/chatstream/pkg/utils"
)

// Parser classifies a byte stream into Events. It is driven entirely by
// Next: each call either hands out a queued event or performs one read and
// one classification pass. A Parser is single use and not safe for
// concurrent use.
//
//	ACCUMULATING -> MARKER/OBJECT scan -> TEXT emit -> ACCUMULATING
//	                    ... read returns io.EOF ... -> FLUSH
type Parser struct {
	src  io.Reader
	read []byte
	opts options

	// buf holds decoded text that has not been classified yet.
	buf string

	// held is the markdown variant's withheld image-tag tail. It always
	// precedes buf in stream order.
	held string

	// carry is the start of a rune cut off by a short read.
	carry []byte

	queue []*Event
	done  bool
	err   error
}

// New returns a Parser reading from r. Bytes are decoded as UTF-8; a
// sequence split across reads is reassembled and invalid bytes become
// U+FFFD.
func New(r io.Reader, opts ...Option) *Parser {
	o := options{
		readSize:   DefaultReadSize,
		maxPending: DefaultMaxPending,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Parser{
		src:  newDecodingReader(r),
		read: make([]byte, o.readSize),
		opts: o,
	}
}

// Next returns the next event. It blocks only while reading from the
// underlying reader. Next returns nil, nil once the stream has ended and all
// residual content has been flushed. A read error other than io.EOF is
// returned after any events that were already classified, and is returned
// again on every later call.
func (p *Parser) Next() (*Event, error) {
	for {
		if len(p.queue) > 0 {
			ev := p.queue[0]
			p.queue[0] = nil
			p.queue = p.queue[1:]
			return ev, nil
		}

		if p.err != nil {
			return nil, p.err
		}
		if p.done {
			return nil, nil
		}

		p.fill()
	}
}

// All adapts Next to a range-over-func iterator. Breaking out of the loop
// stops reading; the caller still owns and closes the underlying reader.
func (p *Parser) All() iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		for {
			ev, err := p.Next()
			if err != nil {
				yield(nil, err)
				return
			}
			if ev == nil {
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// Parse reads r to the end and returns every event.
func Parse(r io.Reader, opts ...Option) ([]*Event, error) {
	p := New(r, opts...)

	var events []*Event
	for ev, err := range p.All() {
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// fill performs one read and classifies whatever it produced.
func (p *Parser) fill() {
	n, err := p.src.Read(p.read)
	if n > 0 {
		p.carry = append(p.carry, p.read[:n]...)
		if k := completeRunes(p.carry); k > 0 {
			p.buf += string(p.carry[:k])
			p.carry = append(p.carry[:0], p.carry[k:]...)
			p.classify()
		}
	}

	switch {
	case errors.Is(err, io.EOF):
		p.buf += string(p.carry)
		p.carry = nil
		p.flush()
		p.done = true
	case err != nil:
		p.err = err
	}
}

// classify runs classification passes over buf until it hits something that
// needs more input. Text is emitted up to the earliest marker or '{'; the
// structure is then resolved or the pass stops and waits.
func (p *Parser) classify() {
	for p.buf != "" {
		start, m := nextStructure(p.buf)
		if start < 0 {
			p.emitTail()
			return
		}

		// A '{' in an open image tag's URL or title is part of the tag.
		if m == nil && p.insideImage(start) {
			p.holdText(start + 1)
			continue
		}

		// Text in front of a structure is final: whatever follows it,
		// ordering requires it to go out first.
		p.emitText(p.buf[:start])
		p.buf = p.buf[start:]

		var resolved bool
		if m != nil {
			resolved = p.consumeMarker(*m)
		} else {
			resolved = p.consumeObject()
		}
		if !resolved {
			return
		}
	}
}

// nextStructure returns the offset of the earliest marker token or '{' in
// s, and the marker when it is a marker. It returns -1 when there is none.
func nextStructure(s string) (int, *marker) {
	brace := strings.IndexByte(s, '{')
	start, m := nextMarker(s)
	if brace >= 0 && (m == nil || brace < start) {
		return brace, nil
	}
	return start, m
}

// nextMarker returns the offset of the earliest marker token in s, or -1.
func nextMarker(s string) (int, *marker) {
	start := -1
	var found *marker

	for i := range markers {
		idx := strings.Index(s, markers[i].token)
		if idx >= 0 && (start < 0 || idx < start) {
			start = idx
			found = &markers[i]
		}
	}

	return start, found
}

// consumeMarker resolves the marker at the start of buf. It returns false
// when the closing token has not arrived.
func (p *Parser) consumeMarker(m marker) bool {
	content, span, ok := m.match(p.buf)
	if !ok {
		if p.overPending() {
			p.opts.logger.Warn("releasing unterminated marker",
				"marker", m.token,
				"pending_bytes", len(p.buf),
			)
			p.buf = p.buf[len(m.token):]
			return true
		}
		return false
	}

	p.buf = p.buf[span:]
	p.emitMarker(m, content)
	return true
}

// emitMarker emits a marker's content as a JSON event. Malformed content is
// dropped.
func (p *Parser) emitMarker(m marker, content string) {
	obj, err := decodeObject(content)
	if err != nil {
		p.opts.logger.Warn("dropping malformed marker",
			"marker", m.token,
			"content", utils.Truncate(content, 64),
			"error", err,
		)
		return
	}

	p.emitJSON(obj, m.origin)
}

// consumeObject resolves the '{' at the start of buf. While the candidate is
// incomplete, or balanced but not valid JSON, complete markers behind it are
// still extracted. It returns false when the candidate stays unresolved;
// a balanced invalid one only resolves at end of stream, as text.
func (p *Parser) consumeObject() bool {
	for {
		n, ok := scanObject(p.buf)
		if ok {
			obj, err := decodeObject(p.buf[:n])
			if err == nil {
				p.buf = p.buf[n:]
				p.emitJSON(obj, OriginInline)
				return true
			}
			p.opts.logger.Debug("deferring unparseable object candidate",
				"candidate", utils.Truncate(p.buf[:n], 64),
				"error", err,
			)
		}

		if !p.liftMarker() {
			return p.releaseBrace()
		}
	}
}

// liftMarker removes the first marker behind the pending '{' at the start of
// buf and emits it, leaving the rest of the candidate in place. It reports
// false when there is no marker or the first one is still open.
func (p *Parser) liftMarker() bool {
	off, m := nextMarker(p.buf[1:])
	if m == nil {
		return false
	}

	at := off + 1
	content, span, ok := m.match(p.buf[at:])
	if !ok {
		return false
	}

	p.buf = p.buf[:at] + p.buf[at+span:]
	p.emitMarker(*m, content)
	return true
}

// releaseBrace gives up on the '{' at the start of buf once the pending
// bound is exceeded, emitting it as text so scanning can move on.
func (p *Parser) releaseBrace() bool {
	if !p.overPending() {
		return false
	}

	p.opts.logger.Warn("releasing unresolved object candidate",
		"pending_bytes", len(p.buf),
	)
	p.emitText("{")
	p.buf = p.buf[1:]
	return true
}

func (p *Parser) overPending() bool {
	return p.opts.maxPending > 0 && len(p.buf) > p.opts.maxPending
}

// insideImage reports whether the '{' at buf[start] falls in the URL or
// title of an image tag that is still open in the markdown variant.
func (p *Parser) insideImage(start int) bool {
	if !p.opts.markdown {
		return false
	}
	text := p.held + p.buf[:start+1]
	cut := imageHoldback(text)
	return cut < len(text) && strings.Contains(text[cut:], "](")
}

// emitTail handles a buffer with no structure in it. A suffix that may still
// grow into a marker token stays in buf; in the markdown variant a trailing
// incomplete image tag moves to held.
func (p *Parser) emitTail() {
	n := len(p.buf) - markerPrefixLen(p.buf)

	if !p.opts.markdown {
		p.push(p.buf[:n])
		p.buf = p.buf[n:]
		return
	}

	p.holdText(n)
}

// holdText moves the first n bytes of buf out as text, withholding an
// incomplete image tag at their end.
func (p *Parser) holdText(n int) {
	text := p.held + p.buf[:n]
	p.buf = p.buf[n:]

	cut := imageHoldback(text)
	p.held = text[cut:]
	p.push(text[:cut])
}

// emitText emits text that is known to be final, preceded by any held tail.
func (p *Parser) emitText(text string) {
	if p.held != "" {
		text = p.held + text
		p.held = ""
	}
	p.push(text)
}

func (p *Parser) emitJSON(obj map[string]any, origin Origin) {
	p.emitText("")
	p.queue = append(p.queue, JSONEvent(obj, origin))
}

func (p *Parser) push(text string) {
	if text == "" {
		return
	}
	p.queue = append(p.queue, TextEvent(text))
}

// flush ends the stream. Complete markers left in the residue are still
// extracted and bare marker tokens are dropped; everything else, the held
// tail included, goes out as literal text.
func (p *Parser) flush() {
	rest := p.held + p.buf
	p.held, p.buf = "", ""

	var text strings.Builder
	for {
		start, m := nextMarker(rest)
		if m == nil {
			break
		}
		text.WriteString(rest[:start])
		rest = rest[start:]

		content, span, ok := m.match(rest)
		if !ok {
			rest = rest[len(m.token):]
			continue
		}
		rest = rest[span:]

		p.push(text.String())
		text.Reset()
		p.emitMarker(*m, content)
	}

	text.WriteString(rest)
	p.push(text.String())
}

// decodeObject parses s as a JSON object.
func decodeObject(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errNotObject
	}
	return obj, nil
}

var errNotObject = errors.New("payload is not a JSON object")
