package formatting

import (
	"strings"
	"unicode"
)

// NormalizeSnippet canonicalizes extracted snippet text for near-duplicate
// comparison: case-folded, punctuation stripped, whitespace collapsed to
// single spaces. Two snippets whose normalized forms are equal are treated
// as the same evidence.
func NormalizeSnippet(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			space = false
			sb.WriteRune(unicode.ToLower(r))
		default:
			// punctuation and symbols carry no evidence identity
		}
	}

	return sb.String()
}

// NormalizeIdentifier canonicalizes an identifier value for consistency
// checks: trimmed, case-folded, with spaces and dashes removed so
// "PRJ-0042" and "prj 0042" compare equal.
func NormalizeIdentifier(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) || r == '-' || r == '_' {
			continue
		}
		sb.WriteRune(unicode.ToLower(r))
	}

	return sb.String()
}
