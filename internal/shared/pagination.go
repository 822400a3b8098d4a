package shared

import (
	"math"
	"net/http"
	"strconv"
)

// MaxPerPage caps page sizes requested by clients.
const MaxPerPage = 200

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// PageRequest is the window a listing asks for. The zero value means
// "everything".
type PageRequest struct {
	Page    int
	PerPage int
}

// Enabled reports whether a window was requested.
func (p PageRequest) Enabled() bool {
	return p.Page > 0
}

// Limit returns the SQL limit for the window.
func (p PageRequest) Limit() int {
	if p.PerPage <= 0 {
		return 20
	}
	if p.PerPage > MaxPerPage {
		return MaxPerPage
	}
	return p.PerPage
}

// Offset returns the SQL offset for the window.
func (p PageRequest) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// PageFromQuery reads page and per_page; malformed values are ignored.
func PageFromQuery(r *http.Request) PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if page < 0 {
		page = 0
	}
	return PageRequest{Page: page, PerPage: perPage}
}

// Headers carrying pagination totals.
const (
	TotalCountHeader = "X-Total-Count"
	TotalPagesHeader = "X-Total-Pages"
)

// WriteHeaders exposes totals on paginated responses.
func (p Pagination) WriteHeaders(w http.ResponseWriter) {
	w.Header().Set(TotalCountHeader, strconv.Itoa(p.Total))
	w.Header().Set(TotalPagesHeader, strconv.Itoa(p.TotalPages))
}
