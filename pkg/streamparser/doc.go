// Package streamparser incrementally classifies a chat response body into
// display text and embedded JSON objects.
//
// The backend interleaves three things in one byte stream:
//
//   - prose meant for display,
//   - bracketed side-channel markers such as
//     __PROGRESS__{"type":"progress","message":"..."}__PROGRESS__ and
//     __METADATA__{...}__METADATA__,
//   - bare inline control objects such as {"conversation_id":"abc"}.
//
// A Parser reads from an io.Reader and hands out Events one at a time through
// Next. Network reads never line up with any of those units, so the parser
// keeps a buffer of decoded text and only emits what it can classify without
// looking further ahead. Whatever is still ambiguous when the reader ends is
// flushed as text.
//
// Markers win over a '{' that has not resolved yet: a complete marker behind
// such a brace is extracted at once, and the text held behind the brace
// follows the marker's event.
//
// Otherwise emission order follows stream order, and the classification does
// not depend on how the input was chunked: coalescing consecutive text
// events (see Coalesce) yields the same sequence for any split of the same
// bytes.
//
//	p := streamparser.New(resp.Body, streamparser.WithMarkdownImages(true))
//	for ev, err := range p.All() {
//		if err != nil {
//			return err
//		}
//		...
//	}
package streamparser
