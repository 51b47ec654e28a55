package document

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	blockTagRE = regexp.MustCompile(`(?i)<(div|p|br)\b[^>]*>`)
	stripAll   = bluemonday.StrictPolicy()
)

// Clean turns stored rich text into plain text. Entities are decoded
// first, block openers become line breaks and every other tag is dropped.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(s)
	s = blockTagRE.ReplaceAllString(s, "\n")
	// The strict policy escapes the text it keeps.
	return html.UnescapeString(stripAll.Sanitize(s))
}

// Paragraphs cleans s and returns its non-blank lines.
func Paragraphs(s string) []string {
	var out []string
	for _, line := range strings.Split(Clean(s), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
