package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// deaccent decomposes characters and strips combining marks, so that
// "Schrödinger" and "Schrodinger" normalize identically.
var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeTitle canonicalizes a title for identity computation and fuzzy
// matching: lowercased, accent-stripped, punctuation removed, whitespace
// collapsed. The citation matcher must use the exact same normalization
// as the identity resolver or the two disagree on what "the same title" is.
func NormalizeTitle(title string) string {
	stripped, _, err := transform.String(deaccent, title)
	if err != nil {
		// Fall back to the raw title; normalization is still deterministic.
		stripped = title
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r) || r == '-' || r == '_':
			b.WriteByte(' ')
		}
		// Remaining punctuation is dropped entirely.
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
