package streamparser

import (
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// newDecodingReader wraps r with a streaming UTF-8 decoder. The x/text
// transformer keeps an incomplete trailing sequence until the next read
// completes it, and substitutes U+FFFD for bytes that can never be valid.
func newDecodingReader(r io.Reader) io.Reader {
	return unicode.UTF8.NewDecoder().Reader(r)
}

// completeRunes returns the length of the longest prefix of b that does not
// end inside a rune. The decoder only produces valid UTF-8, but a read
// buffer smaller than its output can still cut a rune in two.
func completeRunes(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return len(b)
		}
		return i
	}
	return len(b)
}
