package tasks

import (
	"strings"

	"golang.org/x/text/cases"

	"taskdesk/internal/schema"
)

// Filter returns, in order, the records where some schema field contains
// query under Unicode case folding. An empty query keeps everything.
func Filter(sc schema.Schema, records []Record, query string) []Record {
	if query == "" {
		out := make([]Record, len(records))
		copy(out, records)
		return out
	}
	// cases.Caser is stateful; one per call keeps Filter safe to share.
	fold := cases.Fold()
	needle := fold.String(query)
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if matches(sc, r, needle, fold) {
			out = append(out, r)
		}
	}
	return out
}

// Matches reports whether a single record passes Filter for query.
func Matches(sc schema.Schema, r Record, query string) bool {
	if query == "" {
		return true
	}
	fold := cases.Fold()
	return matches(sc, r, fold.String(query), fold)
}

func matches(sc schema.Schema, r Record, needle string, fold cases.Caser) bool {
	for _, f := range sc.Fields {
		if strings.Contains(fold.String(r.Value(f.Name)), needle) {
			return true
		}
	}
	return false
}
