package api

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		query string
		want  Page
	}{
		{"", Page{Number: 1, Size: defaultPageSize, Offset: 0}},
		{"?page=3&limit=10", Page{Number: 3, Size: 10, Offset: 20}},
		{"?limit=5000", Page{Number: 1, Size: maxPageSize, Offset: 0}},
		{"?page=0&limit=-4", Page{Number: 1, Size: defaultPageSize, Offset: 0}},
		{"?page=abc", Page{Number: 1, Size: defaultPageSize, Offset: 0}},
		{"?limit=10&offset=25", Page{Number: 3, Size: 10, Offset: 25}},
		{"?page=4&limit=10&offset=0", Page{Number: 1, Size: 10, Offset: 0}},
		{"?limit=10&offset=-1", Page{Number: 1, Size: 10, Offset: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/owners/rep-1/sparks"+tt.query, nil)
			assert.Equal(t, tt.want, ParsePage(r))
		})
	}
}

func TestNewListing(t *testing.T) {
	p := Page{Number: 2, Size: 2, Offset: 2}
	l := NewListing([]string{"c", "d"}, p, 5)
	assert.Equal(t, PageInfo{Page: 2, Limit: 2, Offset: 2, Total: 5, TotalPages: 3, HasMore: true}, l.Pagination)

	last := NewListing([]string{"e"}, Page{Number: 3, Size: 2, Offset: 4}, 5)
	assert.False(t, last.Pagination.HasMore)

	empty := NewListing[string](nil, Page{Number: 1, Size: 25}, 0)
	assert.NotNil(t, empty.Data)
	assert.Empty(t, empty.Data)
	assert.Equal(t, 1, empty.Pagination.TotalPages)
	assert.False(t, empty.Pagination.HasMore)
}
