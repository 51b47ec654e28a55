package tasks

// Page is one slice of a filtered sequence. Start and End are the
// half-open bounds of Items within the filtered sequence.
type Page struct {
	Number int
	Total  int
	Size   int
	Start  int
	End    int
	Count  int
	Items  []Record
}

// TotalPages is ceil(n/size), and 1 for an empty sequence so that page 1
// always exists.
func TotalPages(n, size int) int {
	if size < 1 {
		return 1
	}
	if n <= 0 {
		return 1
	}
	return (n + size - 1) / size
}

// Paginate returns page (1-based) of records. Pages outside [1, total]
// are rejected with ErrPageOutOfRange rather than clamped.
func Paginate(records []Record, size, page int) (Page, error) {
	if size < 1 {
		return Page{}, ErrInvalidPageSize
	}
	total := TotalPages(len(records), size)
	if page < 1 || page > total {
		return Page{}, ErrPageOutOfRange
	}
	start := min((page-1)*size, len(records))
	end := min(page*size, len(records))
	return Page{
		Number: page,
		Total:  total,
		Size:   size,
		Start:  start,
		End:    end,
		Count:  len(records),
		Items:  records[start:end],
	}, nil
}
