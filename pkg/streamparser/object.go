package streamparser

// scanObject scans s, which starts with '{', for the brace that brings the
// depth back to zero and returns the length of that candidate. Braces inside
// JSON string literals do not count. ok is false while the candidate is still
// open at the end of s.
func scanObject(s string) (n int, ok bool) {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}

	return 0, false
}
