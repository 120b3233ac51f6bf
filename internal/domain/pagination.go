package domain

// PaginationCursor is the canonical cursor for a page of results.
// HasNext == Page < TotalPages and HasPrev == Page > 1.
type PaginationCursor struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// Page is one page of a paginated list
type Page[T any] struct {
	Items  []T              `json:"data"`
	Cursor PaginationCursor `json:"pagination"`
}

// InfiniteData is the ordered sequence of pages held by one infinite query
type InfiniteData[T any] struct {
	Pages []Page[T] `json:"pages"`
}

// LastCursor returns the cursor of the last loaded page
func (d InfiniteData[T]) LastCursor() (PaginationCursor, bool) {
	if len(d.Pages) == 0 {
		return PaginationCursor{}, false
	}
	return d.Pages[len(d.Pages)-1].Cursor, true
}

// HasNext reports whether another page can be loaded
func (d InfiniteData[T]) HasNext() bool {
	c, ok := d.LastCursor()
	return ok && c.HasNext
}

// Items flattens all loaded pages
func (d InfiniteData[T]) Items() []T {
	var out []T
	for _, p := range d.Pages {
		out = append(out, p.Items...)
	}
	return out
}
