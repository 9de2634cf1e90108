package background

import (
	"net/url"
	"time"

	"github.com/runnerr0/mirrorme/internal/analysis"
	"github.com/runnerr0/mirrorme/internal/behavior"
)

// PageURL parses raw and returns it with its domain when it is a web page
// worth recording. Browser-internal schemes (chrome://, about:, file:,
// extension pages and similar) are rejected.
func PageURL(raw string) (*url.URL, string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", false
	}
	domain := analysis.Domain(u)
	if domain == "" {
		return nil, "", false
	}
	return u, domain, true
}

// visitEvent describes a page load.
func visitEvent(u *url.URL, domain string, at time.Time) behavior.Event {
	return behavior.New(behavior.TypeVisit, analysis.Categorize(domain), at).
		WithKeywords(analysis.ExtractFromURL(u))
}

// timeSpentEvent describes foreground dwell on a page.
func timeSpentEvent(domain string, seconds int, at time.Time) behavior.Event {
	return behavior.New(behavior.TypeTimeSpent, analysis.Categorize(domain), at).
		WithKeywords([]string{domain}).
		WithDuration(seconds)
}
