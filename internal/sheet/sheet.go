// Package sheet converts task collections to and from xlsx workbooks.
// Column headers are schema field names, so a file exported here imports
// back without loss.
package sheet

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"taskdesk/internal/schema"
	"taskdesk/internal/tasks"
)

const (
	DefaultTitle    = "Tasks"
	DefaultFileName = "tasks.xlsx"

	// xlsx rejects sheet names longer than this.
	maxTitleLen = 31
)

// Rows projects records into a header row plus one row per record, in
// schema order. Record ids are not exported.
func Rows(sc schema.Schema, records []tasks.Record) [][]string {
	out := make([][]string, 0, len(records)+1)
	out = append(out, sc.Names())
	for _, r := range records {
		row := make([]string, len(sc.Fields))
		for i, f := range sc.Fields {
			row[i] = r.Value(f.Name)
		}
		out = append(out, row)
	}
	return out
}

// Encode writes records as a single-sheet workbook.
func Encode(w io.Writer, sc schema.Schema, records []tasks.Record, title string) error {
	f := excelize.NewFile()
	defer f.Close()

	title = SheetTitle(title)
	if err := f.SetSheetName("Sheet1", title); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	for i, row := range Rows(sc, records) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		vals := make([]any, len(row))
		for j, v := range row {
			vals[j] = v
		}
		if err := f.SetSheetRow(title, cell, &vals); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return f.Write(w)
}

// EncodeFile writes the workbook to path, creating parent directories.
func EncodeFile(path string, sc schema.Schema, records []tasks.Record, title string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(out, sc, records, title); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// SheetTitle trims title to what xlsx accepts, falling back to DefaultTitle.
func SheetTitle(title string) string {
	title = strings.TrimSpace(title)
	title = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return -1
		}
		return r
	}, title)
	if title == "" {
		return DefaultTitle
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		title = string([]rune(title)[:maxTitleLen])
	}
	return title
}

// Decode reads the first sheet. The first non-empty row is the header;
// each later non-empty row becomes a map keyed by header. Cells past the
// end of a short row are left absent. Any failure is a tasks.DecodeError.
func Decode(r io.Reader) ([]map[string]string, error) {
	return decode(r, "")
}

func DecodeFile(path string) ([]map[string]string, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, tasks.DecodeError{Source: path, Err: err}
	}
	defer in.Close()
	return decode(in, path)
}

func decode(r io.Reader, source string) ([]map[string]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, tasks.DecodeError{Source: source, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, tasks.DecodeError{Source: source, Err: errors.New("workbook has no sheets")}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, tasks.DecodeError{Source: source, Err: err}
	}

	var header []string
	out := []map[string]string{}
	for _, row := range rows {
		if blankRow(row) {
			continue
		}
		if header == nil {
			header = make([]string, len(row))
			for i, h := range row {
				header[i] = strings.TrimSpace(h)
			}
			continue
		}
		m := make(map[string]string, len(header))
		for i, h := range header {
			if h == "" || i >= len(row) {
				continue
			}
			m[h] = row[i]
		}
		out = append(out, m)
	}
	return out, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
