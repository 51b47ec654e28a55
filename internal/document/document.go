// Package document renders a single task as a human-readable document:
// a docx file for export and markdown for terminal preview.
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"taskdesk/internal/schema"
	"taskdesk/internal/tasks"
)

const (
	Heading      = "Project Tracker"
	NotSpecified = "Not specified"
	Untitled     = "Untitled task"

	dateLayout = "2 January 2006 15:04"
)

type Row struct {
	Label string
	Value string
	Empty bool
}

type Section struct {
	Title      string
	Paragraphs []string
	Empty      bool
}

type Document struct {
	Heading    string
	Title      string
	Info       []Row
	Sections   []Section
	ExportedAt time.Time
}

// Build lays out r: single-line fields go in the info table, multi-line
// fields become cleaned sections.
func Build(sc schema.Schema, r tasks.Record, now time.Time) Document {
	doc := Document{
		Heading:    Heading,
		Title:      title(sc, r),
		ExportedAt: now,
	}
	for _, f := range sc.Fields {
		if f.MultiLine {
			paras := Paragraphs(r.Value(f.Name))
			sec := Section{Title: f.Name, Paragraphs: paras}
			if len(paras) == 0 {
				sec.Paragraphs = []string{NotSpecified}
				sec.Empty = true
			}
			doc.Sections = append(doc.Sections, sec)
			continue
		}
		v := strings.TrimSpace(r.Value(f.Name))
		row := Row{Label: f.Name, Value: v}
		if v == "" {
			row.Value = NotSpecified
			row.Empty = true
		}
		doc.Info = append(doc.Info, row)
	}
	doc.Info = append(doc.Info, Row{Label: "Exported", Value: now.Format(dateLayout)})
	return doc
}

// title prefers the task name (the last required field) and falls back to
// the other required values, then Untitled.
func title(sc schema.Schema, r tasks.Record) string {
	req := sc.Required()
	for i := len(req) - 1; i >= 0; i-- {
		if v := strings.TrimSpace(r.Value(req[i].Name)); v != "" {
			return v
		}
	}
	return Untitled
}

func (d Document) Footer() string {
	return fmt.Sprintf("Generated by %s · exported %s", d.Heading, d.ExportedAt.Format("2 January 2006"))
}

// Markdown renders the document for glamour.
func Markdown(d Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Heading)
	fmt.Fprintf(&b, "## %s\n\n", mdInline(d.Title))
	b.WriteString("### Task information\n\n")
	b.WriteString("| Field | Value |\n")
	b.WriteString("| --- | --- |\n")
	for _, row := range d.Info {
		v := mdInline(row.Value)
		if row.Empty {
			v = "_" + v + "_"
		}
		fmt.Fprintf(&b, "| %s | %s |\n", mdInline(row.Label), v)
	}
	for _, sec := range d.Sections {
		fmt.Fprintf(&b, "\n### %s\n\n", mdInline(sec.Title))
		for i, p := range sec.Paragraphs {
			if i > 0 {
				b.WriteString("\n")
			}
			if sec.Empty {
				fmt.Fprintf(&b, "_%s_\n", p)
				continue
			}
			b.WriteString(mdInline(p))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n---\n\n")
	fmt.Fprintf(&b, "_%s_\n", d.Footer())
	return b.String()
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`,
	"<", `\<`, ">", `\>`, "#", `\#`, "|", `\|`, "~", `\~`,
)

// listMarkerRE matches text glamour would read as a list item or
// thematic break once it starts a line.
var listMarkerRE = regexp.MustCompile(`^(?:[-+=]|\d+[.)])`)

// mdInline flattens user text to one line with markdown syntax escaped, so
// stored text renders literally.
func mdInline(s string) string {
	s = mdEscaper.Replace(strings.TrimSpace(strings.ReplaceAll(s, "\n", " ")))
	if loc := listMarkerRE.FindStringIndex(s); loc != nil {
		s = s[:loc[1]-1] + `\` + s[loc[1]-1:]
	}
	return s
}

// WriteFile writes r as a docx file in dir and returns its path.
func WriteFile(dir string, sc schema.Schema, r tasks.Record, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName(sc, r)+Ext)
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := WriteDocx(out, Build(sc, r, now)); err != nil {
		out.Close()
		return "", err
	}
	return path, out.Close()
}
