package tasks

import "taskdesk/internal/schema"

const DefaultPageSize = 5

// View is the ephemeral filter and page state owned by a presentation layer.
// It is never persisted.
type View struct {
	Query    string
	Page     int
	PageSize int
}

func NewView(pageSize int) View {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return View{Page: 1, PageSize: pageSize}
}

// SetQuery changes the filter and returns to the first page.
func (v *View) SetQuery(q string) {
	v.Query = q
	v.Page = 1
}

// GoTo moves to page when it lies in [1, total]; otherwise the current
// page is kept and ErrPageOutOfRange is returned.
func (v *View) GoTo(page, total int) error {
	if page < 1 || page > total {
		return ErrPageOutOfRange
	}
	v.Page = page
	return nil
}

func (v *View) Next(total int) error { return v.GoTo(v.Page+1, total) }

func (v *View) Prev(total int) error { return v.GoTo(v.Page-1, total) }

// Compute filters records and returns the current page. A stored page that
// no longer exists (the set shrank) is pulled back into range first.
func (v *View) Compute(sc schema.Schema, records []Record) Page {
	if v.PageSize < 1 {
		v.PageSize = DefaultPageSize
	}
	filtered := Filter(sc, records, v.Query)
	total := TotalPages(len(filtered), v.PageSize)
	v.Page = clampPage(v.Page, total)
	p, _ := Paginate(filtered, v.PageSize, v.Page)
	return p
}

func clampPage(page, total int) int {
	if page < 1 {
		return 1
	}
	if page > total {
		return total
	}
	return page
}
