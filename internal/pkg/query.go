package pkg

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/rentadmin/internal/domain"
)

// PageQuery holds the optional page, page_size and filter query parameters.
// A zero field means the parameter was absent.
type PageQuery struct {
	Page     int
	PageSize int
	Filter   string
}

// ParsePageQuery reads the optional page, page_size and filter query
// parameters. Present page values must be positive integers.
func ParsePageQuery(c *gin.Context) (PageQuery, error) {
	q := PageQuery{Filter: strings.TrimSpace(c.Query("filter"))}
	var err error
	if q.Page, err = positiveQuery(c, "page"); err != nil {
		return PageQuery{}, err
	}
	if q.PageSize, err = positiveQuery(c, "page_size"); err != nil {
		return PageQuery{}, err
	}
	return q, nil
}

func positiveQuery(c *gin.Context, name string) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, domain.NewAppError(domain.CodeValidation, name+" must be a positive integer", err)
	}
	return n, nil
}
