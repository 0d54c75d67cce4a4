package shared

import (
	"math"
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"perPage"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// PageRequest is the page window requested by a client.
type PageRequest struct {
	Page    int
	PerPage int
}

// Skip returns the number of records preceding the page.
func (p PageRequest) Skip() int64 {
	return int64((p.Page - 1) * p.PerPage)
}

// ParsePageRequest reads ?page= and ?perPage= with defaults and caps.
func ParsePageRequest(r *http.Request) PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("perPage"))
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return PageRequest{Page: page, PerPage: perPage}
}

// NewPagination computes pagination metadata.
func NewPagination(req PageRequest, total int64) Pagination {
	perPage := req.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}
