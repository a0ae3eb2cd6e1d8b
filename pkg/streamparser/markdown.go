package streamparser

import "strings"

// maxImageTag caps how much text the markdown variant will hold back for a
// single image tag.
const maxImageTag = 2048

// imageHoldback returns the index at which s should be cut: s[:cut] can be
// emitted, s[cut:] is the start of an image tag that has not completed yet.
// The earliest viable '!' wins, since an alt text may itself contain '!'.
func imageHoldback(s string) int {
	from := max(0, len(s)-maxImageTag)

	for i := from; i < len(s); {
		j := strings.IndexByte(s[i:], '!')
		if j < 0 {
			break
		}
		i += j
		if isImagePrefix(s[i:]) {
			return i
		}
		i++
	}

	return len(s)
}

// isImagePrefix reports whether s, which starts with '!', is an incomplete
// prefix of ![alt](url) or ![alt](url "title"). A complete tag, or anything
// that can no longer become one, returns false. Newlines end a candidate.
func isImagePrefix(s string) bool {
	const (
		bang = iota
		alt
		paren
		url
		titleGap
		title
		titleEnd
	)

	state := bang
	escaped := false

	for i := 1; i < len(s); i++ {
		c := s[i]
		if c == '\n' || c == '\r' {
			return false
		}

		switch state {
		case bang:
			if c != '[' {
				return false
			}
			state = alt

		case alt:
			if c == ']' {
				state = paren
			}

		case paren:
			if c != '(' {
				return false
			}
			state = url

		case url:
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == ')':
				return false
			case c == ' ' || c == '\t':
				state = titleGap
			}

		case titleGap:
			switch c {
			case ' ', '\t':
			case '"':
				state = title
			default:
				// ')' completes the tag; anything else breaks it.
				return false
			}

		case title:
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				state = titleEnd
			}

		case titleEnd:
			switch c {
			case ' ', '\t':
			default:
				// ')' completes the tag; anything else breaks it.
				return false
			}
		}
	}

	return true
}
