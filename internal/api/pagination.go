package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPageSize = 25
	maxPageSize     = 200
)

// Page is a window into an owner's Spark list. Offset is derived from the
// page number unless the request gives one directly.
type Page struct {
	Number int
	Size   int
	Offset int
}

// PageInfo describes where a listing sits in the full result set.
type PageInfo struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

// Listing is the envelope for paged list endpoints.
type Listing[T any] struct {
	Data       []T      `json:"data"`
	Pagination PageInfo `json:"pagination"`
}

// ParsePage reads page, limit and offset. Bad or missing values fall back to
// page 1 and the default size; limit is clamped to maxPageSize.
func ParsePage(r *http.Request) Page {
	q := r.URL.Query()
	size := queryInt(q.Get("limit"), defaultPageSize)
	if size > maxPageSize {
		size = maxPageSize
	}
	p := Page{Number: queryInt(q.Get("page"), 1), Size: size}
	p.Offset = (p.Number - 1) * size

	if off, err := strconv.Atoi(q.Get("offset")); err == nil && off >= 0 {
		p.Offset = off
		p.Number = off/size + 1
	}
	return p
}

// queryInt parses a positive integer, returning def otherwise.
func queryInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// NewListing wraps one page of items with its position in total matches.
// Data is never null in the JSON.
func NewListing[T any](items []T, p Page, total int) Listing[T] {
	if items == nil {
		items = []T{}
	}
	pages := (total + p.Size - 1) / p.Size
	if pages < 1 {
		pages = 1
	}
	return Listing[T]{
		Data: items,
		Pagination: PageInfo{
			Page:       p.Number,
			Limit:      p.Size,
			Offset:     p.Offset,
			Total:      total,
			TotalPages: pages,
			HasMore:    p.Offset+len(items) < total,
		},
	}
}
