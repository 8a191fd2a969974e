// Package pagination computes the page-number window shown around the
// current page of a result set.
package pagination

// DefaultSize is the number of page links shown at once.
const DefaultSize = 3

// Window is the contiguous range of page numbers rendered as controls.
type Window struct {
	Start         int  `json:"start"`
	End           int  `json:"end"`
	ShowFirstPrev bool `json:"show_first_prev"`
	ShowNextLast  bool `json:"show_next_last"`
	Current       int  `json:"current"`
	Total         int  `json:"total"`
}

// Compute returns the window for current out of total pages. The window
// starts at page 1 on the first page, ends at total on the last page and
// is centered on current otherwise.
func Compute(current, total, size int) Window {
	if size <= 0 {
		size = DefaultSize
	}
	if total < 1 {
		total = 1
	}
	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}

	var start, end int
	switch {
	case total <= size:
		start, end = 1, total
	case current == 1:
		start, end = 1, size
	case current == total:
		start, end = total-size+1, total
	default:
		start = current - (size-1)/2
		end = start + size - 1
		if start < 1 {
			start, end = 1, size
		}
		if end > total {
			start, end = total-size+1, total
		}
	}

	return Window{
		Start:         start,
		End:           end,
		ShowFirstPrev: start > 1,
		ShowNextLast:  end < total,
		Current:       current,
		Total:         total,
	}
}

// Visible reports whether pagination controls should render at all.
func (w Window) Visible() bool {
	return w.Total > 1
}

// Pages lists the page numbers inside the window.
func (w Window) Pages() []int {
	if w.End < w.Start {
		return nil
	}
	out := make([]int, 0, w.End-w.Start+1)
	for p := w.Start; p <= w.End; p++ {
		out = append(out, p)
	}
	return out
}

// TotalPages returns the number of pages needed for count items.
func TotalPages(count, pageSize int) int {
	if count <= 0 || pageSize <= 0 {
		return 0
	}
	return (count + pageSize - 1) / pageSize
}
