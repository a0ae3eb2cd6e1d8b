package streamparser

import (
	"regexp"
	"strings"
)

const (
	progressToken = "__PROGRESS__"
	metadataToken = "__METADATA__"
)

// marker is a bracketed side-channel annotation. The pattern is anchored at
// the opening token and non-greedy, so the content ends at the first closing
// token and never contains one. regexp.Regexp keeps no scan position
// between calls, so the shared patterns are safe to reuse.
type marker struct {
	token   string
	origin  Origin
	pattern *regexp.Regexp
}

var markers = []marker{
	newMarker(progressToken, OriginProgress),
	newMarker(metadataToken, OriginMetadata),
}

func newMarker(token string, origin Origin) marker {
	q := regexp.QuoteMeta(token)
	return marker{
		token:   token,
		origin:  origin,
		pattern: regexp.MustCompile(`(?s)\A` + q + `(.*?)` + q),
	}
}

// match returns the content of a complete marker at the start of s and the
// length of the whole span.
func (m marker) match(s string) (content string, span int, ok bool) {
	loc := m.pattern.FindStringSubmatchIndex(s)
	if loc == nil {
		return "", 0, false
	}
	return s[loc[2]:loc[3]], loc[1], true
}

// markerPrefixLen returns the length of the longest suffix of s that is a
// proper prefix of a marker token. That tail may still become a token and
// must not be emitted yet.
func markerPrefixLen(s string) int {
	longest := 0
	for _, m := range markers {
		limit := min(len(s), len(m.token)-1)
		for k := limit; k > longest; k-- {
			if strings.HasPrefix(m.token, s[len(s)-k:]) {
				longest = k
				break
			}
		}
	}
	return longest
}
