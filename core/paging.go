package core

const DefaultPageSize = 10

// Pagination describes one page of a list of TotalItems items.
// Items[Start:End] is the page content.
type Pagination struct {
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalItems int        `json:"total_items"`
	TotalPages int        `json:"total_pages"`
	Links      []PageLink `json:"-"`
	Start      int        `json:"-"`
	End        int        `json:"-"`
}

// PageLink is one entry of a page navigation bar: either a page number or an ellipsis.
type PageLink struct {
	Page     int  `json:"page,omitempty"`
	Current  bool `json:"current,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
}

// Paginate clamps page into [1, TotalPages] and computes the slice bounds for it.
func Paginate(total, page, size int) Pagination {
	if size <= 0 {
		size = DefaultPageSize
	}
	if total < 0 {
		total = 0
	}
	pages := (total + size - 1) / size
	if page > pages {
		page = pages
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	return Pagination{
		Page:       page,
		PageSize:   size,
		TotalItems: total,
		TotalPages: pages,
		Links:      Window(page, pages, 5),
		Start:      start,
		End:        end,
	}
}

// Window returns a navigation bar of at most width consecutive pages around current,
// plus the first and last pages separated by ellipses when they fall outside of it.
func Window(current, pages, width int) []PageLink {
	if pages <= 0 {
		return []PageLink{}
	}
	if width <= 0 {
		width = 1
	}
	if current < 1 {
		current = 1
	} else if current > pages {
		current = pages
	}

	start := current - (width-1)/2
	end := start + width - 1
	if start < 1 {
		end += 1 - start
		start = 1
	}
	if end > pages {
		start -= end - pages
		end = pages
	}
	if start < 1 {
		start = 1
	}

	links := make([]PageLink, 0, width+4)
	if start > 1 {
		links = append(links, PageLink{Page: 1})
		if start > 2 {
			links = append(links, PageLink{Ellipsis: true})
		}
	}
	for p := start; p <= end; p++ {
		links = append(links, PageLink{Page: p, Current: p == current})
	}
	if end < pages {
		if end < pages-1 {
			links = append(links, PageLink{Ellipsis: true})
		}
		links = append(links, PageLink{Page: pages})
	}
	return links
}
