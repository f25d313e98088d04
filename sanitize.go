package classifier

import (
	"strings"
	"unicode"
)

// Sanitize normalizes a raw name into canonical matching form: lowercase,
// single-spaced, stripped of every rune except letters, digits, spaces,
// hyphens and apostrophes. It is pure and idempotent; any garbage input
// collapses to the empty string.
//
// Note that stripping punctuation joins compound markers: "A/L" becomes
// "al" and "S/O" becomes "so". Rule tables are written against this
// sanitized form.
func Sanitize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	lastSpace := true // swallow leading whitespace
	for _, r := range strings.ToLower(raw) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '\'':
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		default:
			// Dropped entirely. Slashes, dots and other separators vanish
			// without leaving a space, so "A/L" joins into "al".
		}
	}

	return strings.TrimRight(b.String(), " ")
}
