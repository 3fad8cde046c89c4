package common

import (
	"net/http"
	"strconv"
)

const maxPerPage = 100

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// ParsePagination extracts page and per-page parameters from query values.
// per_page is capped at 100.
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	page = atoiDefault(r.URL.Query().Get("page"), 1)
	perPage = atoiDefault(r.URL.Query().Get("per_page"), defaultPerPage)
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

// Offset converts a 1-based page into a row offset.
func (p Pagination) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

func atoiDefault(value string, def int) int {
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
