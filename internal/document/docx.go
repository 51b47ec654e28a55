package document

import (
	"fmt"
	"io"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
	"github.com/gomutex/godocx/wml/ctypes"
	"github.com/gomutex/godocx/wml/stypes"
)

// Colours and point sizes of the exported layout.
const (
	colorHeading = "1F4E79"
	colorAccent  = "2E75B6"
	colorRule    = "AAAAAA"
	colorGrid    = "CCCCCC"
	colorMuted   = "999999"

	sizeHeading = 24
	sizeTitle   = 16
	sizeBody    = 12
	sizeFooter  = 10
)

type run struct {
	text   string
	bold   bool
	italic bool
	size   uint64
	color  string
}

type para struct {
	runs      []run
	center    bool
	after     uint64
	before    uint64
	ruleBelow bool
	ruleAbove bool
}

// WriteDocx encodes d as a WordprocessingML package.
func WriteDocx(w io.Writer, d Document) error {
	rd, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("docx template: %w", err)
	}

	addPara(rd, para{
		runs:   []run{{text: d.Heading, bold: true, size: sizeHeading, color: colorHeading}},
		center: true, after: 200,
	})
	addPara(rd, para{
		runs:   []run{{text: d.Title, bold: true, size: sizeTitle}},
		center: true, after: 400,
	})

	addSectionTitle(rd, "Task information")
	addInfoTable(rd, d.Info)
	addPara(rd, para{after: 400})

	for _, sec := range d.Sections {
		addSectionTitle(rd, sec.Title)
		for _, p := range sec.Paragraphs {
			addPara(rd, para{
				runs:  []run{{text: p, italic: sec.Empty, size: sizeBody}},
				after: 100,
			})
		}
		addPara(rd, para{after: 200})
	}

	addPara(rd, para{ruleAbove: true, before: 400})
	addPara(rd, para{
		runs:   []run{{text: d.Footer(), italic: true, size: sizeFooter, color: colorMuted}},
		center: true, before: 100, after: 200,
	})

	if err := rd.Write(w); err != nil {
		return fmt.Errorf("docx write: %w", err)
	}
	return nil
}

func addSectionTitle(rd *docx.RootDoc, text string) {
	addPara(rd, para{
		runs:      []run{{text: text, bold: true, size: sizeTitle, color: colorAccent}},
		after:     200,
		ruleBelow: true,
	})
}

func addInfoTable(rd *docx.RootDoc, rows []Row) {
	tbl := rd.AddTable()
	tbl.Width(5000, stypes.TableWidthPct)
	tbl.Grid(3150, 5850)
	tbl.GetCT().TableProp.Borders = &ctypes.TableBorders{
		Top:     gridBorder(),
		Left:    gridBorder(),
		Bottom:  gridBorder(),
		Right:   gridBorder(),
		InsideH: gridBorder(),
		InsideV: gridBorder(),
	}
	for _, row := range rows {
		tr := tbl.AddRow()
		// Cell widths are fiftieths of a percent.
		label := tr.AddCell().Width(1750, stypes.TableWidthPct).AddEmptyPara()
		addRun(label, run{text: row.Label, bold: true, size: sizeBody, color: colorAccent})
		value := tr.AddCell().Width(3250, stypes.TableWidthPct).AddEmptyPara()
		addRun(value, run{text: row.Value, italic: row.Empty, size: sizeBody})
	}
}

func gridBorder() *ctypes.Border {
	return ctypes.NewCellBorder(stypes.BorderStyleSingle, colorGrid, "0", 4)
}

func addPara(rd *docx.RootDoc, p para) {
	dp := rd.AddEmptyParagraph()
	dp.Spacing(p.before, p.after)
	if p.center {
		dp.Justification(stypes.JustificationCenter)
	}
	if p.ruleAbove || p.ruleBelow {
		bdr := &ctypes.ParaBorder{}
		if p.ruleAbove {
			bdr.Top = ctypes.NewCellBorder(stypes.BorderStyleSingle, colorRule, "1", 6)
		}
		if p.ruleBelow {
			bdr.Bottom = ctypes.NewCellBorder(stypes.BorderStyleSingle, colorRule, "1", 6)
		}
		dp.GetCT().Property.Border = bdr
	}
	for _, r := range p.runs {
		addRun(dp, r)
	}
}

func addRun(p *docx.Paragraph, r run) {
	dr := p.AddText(r.text)
	if r.bold {
		dr.Bold(true)
	}
	if r.italic {
		dr.Italic(true)
	}
	if r.color != "" {
		dr.Color(r.color)
	}
	if r.size > 0 {
		dr.Size(r.size)
	}
}
