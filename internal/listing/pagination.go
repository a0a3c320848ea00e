package listing

import (
	"context"
	"fmt"

	"github.com/simp-lee/pagination"

	"github.com/simp-lee/rentadmin/internal/domain"
)

// Page size defaults used when the configuration leaves them unset.
const (
	DefaultPageSize    = 10
	DefaultMaxPageSize = 100
)

// pagesInRange is the width of the page-number window.
const pagesInRange = 5

// PageInfo is a read-only snapshot of a Pagination for the rendering layer.
type PageInfo struct {
	CurrentPage  int  `json:"currentPage"`
	PageSize     int  `json:"pageSize"`
	TotalItems   int  `json:"totalItems"`
	TotalPages   int  `json:"totalPages"`
	DisplayPages int  `json:"displayPages"`
	DisplayStart int  `json:"displayStart"`
	DisplayEnd   int  `json:"displayEnd"`
	HasPrev      bool `json:"hasPrev"`
	HasNext      bool `json:"hasNext"`
	// Pages is the window of page numbers to offer around the current page.
	Pages  []int  `json:"pages"`
	Filter string `json:"filter,omitempty"`
}

// Pagination holds the current page, page size and server-reported total of
// one list view and derives the display range from them.
//
// A Pagination is not safe for concurrent use; View guards it.
type Pagination struct {
	page        int
	pageSize    int
	totalItems  int
	maxPageSize int
	filter      string
}

// NewPagination returns a Pagination on page 1. Non-positive arguments fall
// back to DefaultPageSize and DefaultMaxPageSize.
func NewPagination(pageSize, maxPageSize int) *Pagination {
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pagination{
		page:        1,
		pageSize:    min(pageSize, maxPageSize),
		maxPageSize: maxPageSize,
	}
}

func (p *Pagination) Page() int       { return p.page }
func (p *Pagination) PageSize() int   { return p.pageSize }
func (p *Pagination) TotalItems() int { return p.totalItems }
func (p *Pagination) Filter() string  { return p.filter }

// TotalPages returns ceil(totalItems/pageSize), 0 for an empty collection.
func (p *Pagination) TotalPages() int {
	if p.totalItems == 0 {
		return 0
	}
	return (p.totalItems + p.pageSize - 1) / p.pageSize
}

// DisplayPages is TotalPages with a minimum of one page.
func (p *Pagination) DisplayPages() int {
	return max(p.TotalPages(), 1)
}

func (p *Pagination) DisplayStart() int {
	return (p.page-1)*p.pageSize + 1
}

func (p *Pagination) DisplayEnd() int {
	return min(p.page*p.pageSize, p.totalItems)
}

func (p *Pagination) HasPrev() bool { return p.page > 1 }
func (p *Pagination) HasNext() bool { return p.page < p.TotalPages() }

// SetPage stores n as the current page. Pages past the end are accepted;
// fetching them yields an empty page.
func (p *Pagination) SetPage(n int) error {
	if n < 1 {
		return domain.NewAppError(domain.CodeValidation, "page must be at least 1", nil)
	}
	p.page = n
	return nil
}

// SetPageSize changes the page size and moves back to page 1. Sizes above
// the configured maximum are clamped.
func (p *Pagination) SetPageSize(n int) error {
	if n < 1 {
		return domain.NewAppError(domain.CodeValidation, "page size must be at least 1", nil)
	}
	p.pageSize = min(n, p.maxPageSize)
	p.page = 1
	return nil
}

// SetTotalItems records a fresh total. The current page is left alone even
// when it now lies past the last page.
func (p *Pagination) SetTotalItems(n int) error {
	if n < 0 {
		return domain.NewAppError(domain.CodeValidation, fmt.Sprintf("total items must not be negative, got %d", n), nil)
	}
	p.totalItems = n
	return nil
}

// Reset returns to page 1 and forgets the total.
func (p *Pagination) Reset() {
	p.page = 1
	p.totalItems = 0
}

// SetFilter switches to another subset of the list. The subsets are
// disjoint, so the page returns to 1 and the total is forgotten.
func (p *Pagination) SetFilter(name string) {
	p.filter = name
	p.Reset()
}

// Restore applies a persisted page, page size and filter without the
// page-size reset. Invalid page values are ignored; the caller validates
// the filter.
func (p *Pagination) Restore(req domain.PageRequest) {
	p.filter = req.Filter
	if req.PageSize > 0 {
		p.pageSize = min(req.PageSize, p.maxPageSize)
	}
	if req.Page > 0 {
		p.page = req.Page
	}
}

// Request returns the key inputs for the next fetch.
func (p *Pagination) Request() domain.PageRequest {
	return domain.PageRequest{Page: p.page, PageSize: p.pageSize, Filter: p.filter}
}

// Info returns a snapshot of the pagination state.
//
// The page window and next link come from a paginator over the known total.
// The paginator clamps a page past the end to the last page; CurrentPage
// and HasPrev keep the unclamped page so the view can step back from it.
func (p *Pagination) Info() PageInfo {
	info := PageInfo{
		CurrentPage:  p.page,
		PageSize:     p.pageSize,
		TotalItems:   p.totalItems,
		TotalPages:   p.TotalPages(),
		DisplayPages: p.DisplayPages(),
		DisplayStart: p.DisplayStart(),
		DisplayEnd:   p.DisplayEnd(),
		HasPrev:      p.HasPrev(),
		HasNext:      p.HasNext(),
		Pages:        []int{},
		Filter:       p.filter,
	}

	nav, err := pagination.NewPaginator(
		pagination.WithItemsPerPage[domain.Record](p.pageSize),
		pagination.WithPagesInRange[domain.Record](pagesInRange),
		pagination.WithKnownTotal[domain.Record](int64(p.totalItems)),
		pagination.WithSliceCallback(func(context.Context, int, int) ([]domain.Record, error) {
			return nil, nil
		}),
	).Paginate(context.Background(), p.page)
	if err != nil {
		return info
	}
	info.Pages = nav.Pages
	info.HasNext = nav.HasNextPage()
	return info
}
