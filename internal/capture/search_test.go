package capture

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/runnerr0/mirrorme/internal/behavior"
)

func TestEngineQuery(t *testing.T) {
	tests := []struct {
		raw   string
		query string
		cat   behavior.Category
		ok    bool
	}{
		{"https://www.google.com/search?q=go+generics", "go generics", behavior.CategorySearch, true},
		{"https://www.youtube.com/results?search_query=lofi", "lofi", behavior.CategoryEntertainment, true},
		{"https://www.reddit.com/search/?q=golang", "golang", behavior.CategorySocial, true},
		{"https://old.reddit.com/r/golang/search?q=modules", "modules", behavior.CategorySocial, true},
		{"https://www.google.com/maps?q=paris", "", "", false},
		{"https://www.google.com/search?q=+", "", "", false},
		{"https://www.youtube.com/watch?v=abc", "", "", false},
		{"https://example.com/search?q=x", "", "", false},
		{"https://notgoogle.com/search?q=x", "", "", false},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		assert.NoError(t, err)
		q, cat, ok := engineQuery(u)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.query, q, tt.raw)
		assert.Equal(t, tt.cat, cat, tt.raw)
	}
	_, _, ok := engineQuery(nil)
	assert.False(t, ok)
}

func TestFormQuery(t *testing.T) {
	tests := []struct {
		name   string
		fields []FormField
		want   string
		ok     bool
	}{
		{"named q", []FormField{{Name: "q", Value: " shoes "}}, "shoes", true},
		{"named keywords", []FormField{{Name: "Keywords", Value: "tents"}}, "tents", true},
		{"typed search", []FormField{{Name: "term", Type: "search", Value: "lamps"}}, "lamps", true},
		{"empty value skipped", []FormField{{Name: "q", Value: "  "}, {Name: "s", Value: "next"}}, "next", true},
		{"login form", []FormField{{Name: "user", Value: "me"}, {Name: "password", Type: "password", Value: "pw"}}, "", false},
		{"no fields", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := formQuery(tt.fields)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
