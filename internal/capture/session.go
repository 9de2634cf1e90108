// Package capture turns page-level signals from a browser tab into behavior
// events. A host adapter (internal/browser, or an extension posting to the
// control endpoint) owns the DOM hooks and delivers Signals; the Session
// holds per-tab state and hands finished events to a Sink. Capture never
// touches storage.
package capture

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/runnerr0/mirrorme/internal/analysis"
	"github.com/runnerr0/mirrorme/internal/behavior"
	"github.com/runnerr0/mirrorme/internal/clock"
)

const (
	ComposeIdle       = 2 * time.Second
	VideoPollInterval = time.Second
	VideoSettle       = 2 * time.Second
	MinEngagement     = 10 * time.Second

	// engagementSample bounds the page text handed to the classifier.
	engagementSample = 1000
	// minTextLen is the length composed posts and comments must exceed.
	minTextLen = 10
)

// Page is the host's view of the tab a Session observes.
type Page interface {
	URL() string
	HTML(ctx context.Context) (string, error)
	Text(ctx context.Context) (string, error)
}

// Sink receives captured events. The daemon posts them to the coordinator.
type Sink func(behavior.Event)

type Options struct {
	Clock    clock.Clock
	Logger   *zap.Logger
	// Excluded reports whether a domain is on the denylist. Nothing is
	// captured while the tab is on an excluded domain.
	Excluded func(domain string) bool
}

type platform int

const (
	platformGeneric platform = iota
	platformMicroblog
	platformVideo
)

func platformOf(domain string) platform {
	switch {
	case onDomain(domain, "twitter.com"), onDomain(domain, "x.com"):
		return platformMicroblog
	case onDomain(domain, "youtube.com"):
		return platformVideo
	}
	return platformGeneric
}

// Session captures one tab. Handle and Run may be called from different
// goroutines.
type Session struct {
	page     Page
	emit     Sink
	clock    clock.Clock
	logger   *zap.Logger
	excluded func(string) bool

	mu           sync.Mutex
	url          *url.URL
	domain       string
	visibleSince time.Time
	composeText  string
	composeTimer *clock.Timer
	composeGen   uint64
	videoID      string
	videoTimer   *clock.Timer
	comments     *fingerprints
	closed       bool
}

// NewSession starts observing page. The page counts as visible from now.
func NewSession(page Page, emit Sink, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Excluded == nil {
		opts.Excluded = func(string) bool { return false }
	}
	s := &Session{
		page:     page,
		emit:     emit,
		clock:    opts.Clock,
		logger:   opts.Logger,
		excluded: opts.Excluded,
		comments: newFingerprints(maxFingerprints),
	}
	s.setURL(page.URL())
	s.visibleSince = s.clock.Now()
	return s
}

func (s *Session) setURL(raw string) {
	u, err := url.Parse(raw)
	if err != nil {
		s.url, s.domain = nil, ""
		return
	}
	s.url, s.domain = u, analysis.Domain(u)
}

// Handle processes one signal. Reads of the page happen on the calling
// goroutine.
func (s *Session) Handle(ctx context.Context, sig Signal) {
	switch sig := sig.(type) {
	case Navigated:
		s.navigated(sig)
	case NodesInserted:
		s.nodesInserted(sig)
	case ControlClicked:
		s.controlClicked(sig)
	case ComposerInput:
		s.composerInput(sig)
	case VisibilityChanged:
		s.visibilityChanged(ctx, sig)
	case FormSubmitted:
		s.formSubmitted(sig)
	}
}

// Run polls the video id once per second until ctx is done, then stops the
// session's timers.
func (s *Session) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(VideoPollInterval)
	defer ticker.Stop()
	defer s.Close()

	s.pollVideo(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.pollVideo(ctx)
		}
	}
}

// Close stops pending timers; later signals are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.composeTimer != nil {
		s.composeTimer.Stop()
	}
	if s.videoTimer != nil {
		s.videoTimer.Stop()
	}
}

// activeLocked reports whether signals should still produce events: the
// session is open and the current domain is not excluded. mu must be held.
func (s *Session) activeLocked() bool {
	return !s.closed && !s.excluded(s.domain)
}

func (s *Session) snapshot() (domain string, p platform, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.domain, platformOf(s.domain), s.activeLocked()
}

func (s *Session) navigated(sig Navigated) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.setURL(sig.URL)
	if !sig.SameDocument {
		s.visibleSince = s.clock.Now()
	}
	u := s.url
	active := s.activeLocked()
	s.mu.Unlock()
	if !active {
		return
	}

	if q, cat, ok := engineQuery(u); ok {
		s.emit(searchEvent(q, cat, s.clock.Now()))
	}
}

func (s *Session) formSubmitted(sig FormSubmitted) {
	domain, _, active := s.snapshot()
	if !active {
		return
	}
	q, ok := formQuery(sig.Fields)
	if !ok {
		return
	}
	s.emit(searchEvent(q, analysis.Categorize(domain), s.clock.Now()))
}

func (s *Session) visibilityChanged(ctx context.Context, sig VisibilityChanged) {
	now := s.clock.Now()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if !sig.Hidden {
		s.visibleSince = now
		s.mu.Unlock()
		return
	}
	since := s.visibleSince
	s.visibleSince = time.Time{}
	domain := s.domain
	active := s.activeLocked()
	s.mu.Unlock()

	if !active || since.IsZero() {
		return
	}
	elapsed := now.Sub(since)
	if elapsed < MinEngagement {
		return
	}

	text, err := s.page.Text(ctx)
	if err != nil {
		s.logger.Debug("page text unavailable", zap.String("domain", domain), zap.Error(err))
		return
	}
	sample := behavior.Truncate(strings.TrimSpace(text), engagementSample)
	ev := behavior.New(behavior.TypeEngagement, analysis.Categorize(domain), now).
		WithKeywords(analysis.Extract(sample)).
		WithDuration(int(elapsed / time.Second))
	s.emit(analysis.Classify(sample).Apply(ev))
}

// longEnough reports whether trimmed text exceeds the minimum length.
func longEnough(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) > minTextLen
}
