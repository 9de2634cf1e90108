package capture

import (
	"net/url"
	"strings"
	"time"

	"github.com/runnerr0/mirrorme/internal/analysis"
	"github.com/runnerr0/mirrorme/internal/behavior"
)

type searchEngine struct {
	domain   string
	param    string
	category behavior.Category
	path     func(string) bool
}

// Ordered; the first engine whose domain and path match wins.
var searchEngines = []searchEngine{
	{"google.com", "q", behavior.CategorySearch, func(p string) bool { return p == "/search" }},
	{"youtube.com", "search_query", behavior.CategoryEntertainment, func(p string) bool { return p == "/results" }},
	{"reddit.com", "q", behavior.CategorySocial, func(p string) bool {
		return strings.HasSuffix(strings.TrimSuffix(p, "/"), "/search")
	}},
}

// searchFields are form control names treated as a search box.
var searchFields = map[string]struct{}{
	"q": {}, "query": {}, "search": {}, "s": {},
	"keyword": {}, "keywords": {}, "search_query": {},
}

// engineQuery returns the query of a recognized search results URL.
func engineQuery(u *url.URL) (string, behavior.Category, bool) {
	if u == nil {
		return "", "", false
	}
	domain := analysis.Domain(u)
	for _, e := range searchEngines {
		if !onDomain(domain, e.domain) || !e.path(u.Path) {
			continue
		}
		q := strings.TrimSpace(u.Query().Get(e.param))
		if q == "" {
			return "", "", false
		}
		return q, e.category, true
	}
	return "", "", false
}

// formQuery returns the first non-empty search-like field of a form.
func formQuery(fields []FormField) (string, bool) {
	for _, f := range fields {
		_, named := searchFields[strings.ToLower(f.Name)]
		if !named && !strings.EqualFold(f.Type, "search") {
			continue
		}
		if v := strings.TrimSpace(f.Value); v != "" {
			return v, true
		}
	}
	return "", false
}

func searchEvent(query string, cat behavior.Category, at time.Time) behavior.Event {
	ev := behavior.New(behavior.TypeSearch, cat, at).
		WithContent(query, behavior.ShortContentLimit).
		WithKeywords(analysis.Extract(query))
	return analysis.Classify(query).Apply(ev)
}

// onDomain reports whether domain is base or one of its subdomains.
func onDomain(domain, base string) bool {
	return domain == base || strings.HasSuffix(domain, "."+base)
}
