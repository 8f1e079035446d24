package model

// DefaultWindowSize is the number of page links shown between "<" and ">".
const DefaultWindowSize = 5

// PaginationState is the state of the page selector under the plans table.
//
// Values are immutable: every transition returns a new state and the caller
// replaces the old one. The visible window is WindowStart..WindowStart+n-1
// where n is WindowSize, or LastPage when there are fewer pages than that.
type PaginationState struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	WindowStart int `json:"window_start"`
	WindowSize  int `json:"window_size"`
}

// NewPagination returns the state for the first page.
func NewPagination(lastPage, windowSize int) PaginationState {
	return RestorePagination(1, 1, lastPage, windowSize)
}

// RestorePagination rebuilds a state from untrusted input (query string,
// stale links after a delete). Values are clamped into range and the window
// is moved the minimum distance needed to show the current page.
func RestorePagination(current, windowStart, lastPage, windowSize int) PaginationState {
	if lastPage < 1 {
		lastPage = 1
	}
	if windowSize < 1 {
		windowSize = DefaultWindowSize
	}
	s := PaginationState{
		CurrentPage: clamp(current, 1, lastPage),
		LastPage:    lastPage,
		WindowSize:  windowSize,
	}
	s.WindowStart = clamp(windowStart, 1, s.maxWindowStart())
	return s.follow()
}

// Advance moves to the next page. The window slides forward by one when the
// new page falls past its upper edge. No-op on the last page.
func (s PaginationState) Advance() PaginationState {
	if s.CurrentPage >= s.LastPage {
		return s
	}
	s.CurrentPage++
	return s.follow()
}

// Retreat moves to the previous page. The window slides back by one when the
// new page falls below its lower edge. No-op on page 1.
func (s PaginationState) Retreat() PaginationState {
	if s.CurrentPage <= 1 {
		return s
	}
	s.CurrentPage--
	return s.follow()
}

// SelectPage jumps to page p, clamped to [1, LastPage]. The window is left
// where it is; the next Advance or Retreat re-anchors it on the current page.
func (s PaginationState) SelectPage(p int) PaginationState {
	s.CurrentPage = clamp(p, 1, s.LastPage)
	return s
}

// Window returns the page numbers to render, in ascending order.
func (s PaginationState) Window() []int {
	n := s.span()
	out := make([]int, 0, n)
	for p := s.WindowStart; p < s.WindowStart+n; p++ {
		out = append(out, p)
	}
	return out
}

func (s PaginationState) HasPrev() bool { return s.CurrentPage > 1 }
func (s PaginationState) HasNext() bool { return s.CurrentPage < s.LastPage }

// Offset is the index of the first item on the current page.
func (s PaginationState) Offset(pageSize int) int {
	return (s.CurrentPage - 1) * pageSize
}

// LastPageFor returns how many pages total items occupy. An empty list still
// has one (empty) page.
func LastPageFor(total, pageSize int) int {
	if pageSize < 1 || total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

func (s PaginationState) span() int { return min(s.WindowSize, s.LastPage) }

func (s PaginationState) maxWindowStart() int { return s.LastPage - s.span() + 1 }

func (s PaginationState) follow() PaginationState {
	if s.CurrentPage < s.WindowStart {
		s.WindowStart = s.CurrentPage
	}
	if end := s.WindowStart + s.span() - 1; s.CurrentPage > end {
		s.WindowStart = s.CurrentPage - s.span() + 1
	}
	return s
}

func clamp(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
