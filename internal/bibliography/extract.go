// Package bibliography extracts reference-section text from paper
// full-texts so the citation matcher can process it.
package bibliography

import (
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// headingRe matches a reference-section heading on its own line, with or
// without a numbering prefix ("7 References", "REFERENCES", "Bibliography").
var headingRe = regexp.MustCompile(`(?im)^\s*(?:[0-9]+\.?\s+)?(references|bibliography|works cited)\s*$`)

// trailingHeadingRe matches sections that follow the references and
// should be cut off ("Appendix", "Supplementary Material").
var trailingHeadingRe = regexp.MustCompile(`(?im)^\s*(?:[A-Z]\.?\s+)?(appendix|supplementary material|acknowledg(e)?ments)\s*$`)

// FromPDF extracts the reference section from a PDF file. Returns ""
// when the PDF has no recognizable reference section (not an error).
func FromPDF(filePath string) (string, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var builder strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}

	return ReferencesSection(builder.String()), nil
}

// ReferencesSection returns the reference-section slice of a full text.
// It takes the text after the last references heading (papers may cite
// "References" in their body) and trims trailing appendix material.
func ReferencesSection(text string) string {
	locs := headingRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return ""
	}
	section := text[locs[len(locs)-1][1]:]

	if loc := trailingHeadingRe.FindStringIndex(section); loc != nil {
		section = section[:loc[0]]
	}

	return strings.TrimSpace(section)
}
