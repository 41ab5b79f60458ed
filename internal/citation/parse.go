package citation

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ParsedEntry is the best-effort (title, year) extraction from one
// bibliography entry. Year is 0 when no plausible year was found.
type ParsedEntry struct {
	Title string
	Year  int
	Raw   string
}

var (
	// parenYearRe matches the common author-list form "(2020)" or "(2020a)".
	parenYearRe = regexp.MustCompile(`\((\d{4})[a-z]?\)`)

	// bareYearRe matches a standalone plausible publication year.
	bareYearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// ParseEntry extracts a (title, year) pair from a bibliography entry.
// Returns ok=false when no title could be extracted; such entries are
// stored unmatched and skipped, never treated as fatal.
func ParseEntry(raw string) (ParsedEntry, bool) {
	entry := ParsedEntry{Raw: raw}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return entry, false
	}

	rest := trimmed
	if loc := parenYearRe.FindStringSubmatchIndex(trimmed); loc != nil {
		if y, err := strconv.Atoi(trimmed[loc[2]:loc[3]]); err == nil && plausibleYear(y) {
			entry.Year = y
			rest = trimmed[loc[1]:]
		}
	} else if m := bareYearRe.FindString(trimmed); m != "" {
		if y, err := strconv.Atoi(m); err == nil && plausibleYear(y) {
			entry.Year = y
		}
	}

	// The segment right after "(Year)." is the usual title position in
	// author-year styles. Fall back to the longest sentence-like segment.
	if title := firstSegment(rest); titleLike(title) {
		entry.Title = title
	} else if title := longestSegment(trimmed); titleLike(title) {
		entry.Title = title
	}

	return entry, entry.Title != ""
}

// plausibleYear bounds extracted years to the era of published papers.
func plausibleYear(y int) bool {
	return y >= 1900 && y <= 2099
}

// firstSegment returns the first period-delimited segment of s.
func firstSegment(s string) string {
	s = strings.TrimLeft(s, ". ")
	if idx := strings.Index(s, ". "); idx > 0 {
		s = s[:idx]
	}
	return strings.Trim(strings.TrimSpace(s), ".")
}

// longestSegment returns the longest period-delimited segment.
func longestSegment(s string) string {
	best := ""
	for _, seg := range strings.Split(s, ". ") {
		seg = strings.Trim(strings.TrimSpace(seg), ".")
		if len(seg) > len(best) {
			best = seg
		}
	}
	return best
}

// titleLike reports whether a segment is plausible as a paper title:
// at least two words and mostly alphabetic.
func titleLike(s string) bool {
	words := strings.Fields(s)
	if len(words) < 2 {
		return false
	}
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters*2 >= len(s)
}
