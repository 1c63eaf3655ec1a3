package pattern

import "strings"

// Match reports whether a wildcard pattern matches a context key.
//
// * matches any run of characters within the surrounding anchors; ** is the
// recursive form intended for path tails ("reading /project/**"). Matching
// is anchored at both ends of the key, not a substring search.
func Match(pat, text string) bool {
	if strings.Contains(pat, "**") {
		return matchParts(strings.Split(pat, "**"), text, true)
	}
	return matchParts(strings.Split(pat, "*"), text, false)
}

// matchParts matches the literal fragments between wildcard tokens in order.
// The first fragment anchors at the start, the last at the end (recursive
// patterns relax the end anchor since ** may swallow the tail).
func matchParts(parts []string, text string, recursive bool) bool {
	if len(parts) == 1 {
		return parts[0] == text
	}

	pos := 0
	for i, part := range parts {
		if part == "" {
			continue // leading or trailing wildcard
		}

		switch {
		case i == 0:
			if !strings.HasPrefix(text[pos:], part) {
				return false
			}
			pos += len(part)
		case i == len(parts)-1 && !recursive:
			if !strings.HasSuffix(text[pos:], part) {
				return false
			}
		default:
			idx := strings.Index(text[pos:], part)
			if idx < 0 {
				return false
			}
			pos += idx + len(part)
		}
	}

	return true
}
