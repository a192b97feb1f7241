package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/playmate/core"
)

const (
	orderingParam = "ordering"
	pageParam     = "page"
	pageSizeParam = "page_size"

	maxPageSize = 100
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// Paging holds the requested page. Invalid values fall back to the first page of DefaultPageSize.
type Paging struct {
	Page     int
	PageSize int
}

func (p *Paging) Bind(ctx echo.Context) {
	p.Page, _ = strconv.Atoi(ctx.QueryParam(pageParam))
	if p.Page < 1 {
		p.Page = 1
	}
	p.PageSize, _ = strconv.Atoi(ctx.QueryParam(pageSizeParam))
	switch {
	case p.PageSize < 1:
		p.PageSize = core.DefaultPageSize
	case p.PageSize > maxPageSize:
		p.PageSize = maxPageSize
	}
}

// ListResponse is one page of a list endpoint.
type ListResponse struct {
	Items      interface{}     `json:"items"`
	Pagination core.Pagination `json:"pagination"`
	Links      []core.PageLink `json:"links"`
}

// paginate binds the paging params and returns the page of a list of total items.
// The items of the page are list[pg.Start:pg.End].
func paginate(ctx echo.Context, total int) core.Pagination {
	var p Paging
	p.Bind(ctx)
	return core.Paginate(total, p.Page, p.PageSize)
}

func newListResponse(items interface{}, pg core.Pagination) ListResponse {
	return ListResponse{Items: items, Pagination: pg, Links: pg.Links}
}
