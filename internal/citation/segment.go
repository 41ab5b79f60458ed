// Package citation parses free-text bibliography sections and fuzzy-matches
// entries against the stored corpus to build citation edges.
package citation

import (
	"regexp"
	"strings"
	"unicode"
)

// minEntryLength is the shortest string worth treating as a citation.
const minEntryLength = 12

// numberedEntryRe matches leading entry markers like "[3]", "3.", "(3)".
var numberedEntryRe = regexp.MustCompile(`^\s*(?:\[\d+\]|\(\d+\)|\d+\.)\s*`)

// Segment splits a bibliography section into individual entries, one per
// line or numbered segment. Strings that are clearly not citations (too
// short, no alphabetic content) are discarded silently.
func Segment(text string) []string {
	var entries []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = numberedEntryRe.ReplaceAllString(line, "")
		if !looksLikeCitation(line) {
			continue
		}
		entries = append(entries, line)
	}
	return entries
}

// looksLikeCitation filters out fragments that cannot be references.
func looksLikeCitation(s string) bool {
	if len(s) < minEntryLength {
		return false
	}
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
