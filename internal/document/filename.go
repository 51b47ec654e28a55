package document

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"taskdesk/internal/schema"
	"taskdesk/internal/tasks"
)

const (
	MaxFileNameLen = 100
	Ext            = ".docx"
)

// FileName derives a file-system safe base name (no extension) from the
// record's required fields: "<first>_<second>".
func FileName(sc schema.Schema, r tasks.Record) string {
	parts := []string{"no_id", "no_name"}
	for i, f := range sc.Required() {
		if i >= len(parts) {
			break
		}
		if v := strings.TrimSpace(r.Value(f.Name)); v != "" {
			parts[i] = v
		}
	}
	return sanitize(norm.NFC.String(parts[0] + "_" + parts[1]))
}

// sanitize keeps letters, digits, '_' and '-', turns each whitespace run
// into a single '_' and truncates to MaxFileNameLen runes.
func sanitize(s string) string {
	var b strings.Builder
	n := 0
	inSpace := false
	for _, r := range s {
		if n >= MaxFileNameLen {
			break
		}
		switch {
		case unicode.IsSpace(r):
			if inSpace {
				continue
			}
			inSpace = true
			b.WriteByte('_')
			n++
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-':
			inSpace = false
			b.WriteRune(r)
			n++
		}
	}
	return b.String()
}
