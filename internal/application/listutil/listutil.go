// Package listutil parses list query parameters (search, filters, sort, page)
// and pages in-memory result sets.
package listutil

import (
	"net/url"
	"slices"
	"strconv"
)

// Params carries every list parameter parsed from a request.
type Params struct {
	Search  string            // free-text search query
	Filters map[string]string // exact-match filters, e.g. difficulty=Basic
	Sort    string            // column name; empty means the list's natural order
	Dir     string            // "asc" or "desc"
	Page    int               // 1-indexed page number
	PerPage int               // rows per page
}

// PageInfo carries pagination metadata for a response.
type PageInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// DefaultPerPage is the default number of rows per page.
const DefaultPerPage = 50

// PerPageOptions are the allowed rows-per-page values.
var PerPageOptions = []int{10, 25, 50, 100}

// Parse extracts list parameters from URL query values.
// PRE: sortColumns and filterKeys list the accepted names
// POST: Unknown sort columns and filter keys are ignored; Dir is "asc" or "desc";
// Page >= 1 and PerPage is one of PerPageOptions
func Parse(q url.Values, sortColumns, filterKeys []string) Params {
	p := Params{
		Search:  q.Get("q"),
		Filters: make(map[string]string),
		Sort:    q.Get("sort"),
		Dir:     q.Get("dir"),
	}
	for _, key := range filterKeys {
		if v := q.Get(key); v != "" {
			p.Filters[key] = v
		}
	}
	if !slices.Contains(sortColumns, p.Sort) {
		p.Sort = ""
	}
	if p.Dir != "asc" && p.Dir != "desc" {
		p.Dir = "asc"
	}
	p.Page, _ = strconv.Atoi(q.Get("page"))
	if p.Page < 1 {
		p.Page = 1
	}
	p.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	if !slices.Contains(PerPageOptions, p.PerPage) {
		p.PerPage = DefaultPerPage
	}
	return p
}

// NewPageInfo computes pagination metadata.
// PRE: total >= 0
// POST: TotalPages >= 1; Page is clamped to [1, TotalPages]
func NewPageInfo(page, perPage, total int) PageInfo {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	page = min(max(page, 1), totalPages)
	return PageInfo{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}

// Offset returns the index of the first row on the current page.
func (p PageInfo) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Slice returns the rows of items on the page described by p.
// INVARIANT: items is not mutated
func Slice[T any](items []T, p PageInfo) []T {
	start := min(p.Offset(), len(items))
	end := min(start+p.PerPage, len(items))
	return items[start:end]
}
