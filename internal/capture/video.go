package capture

import (
	"context"
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/runnerr0/mirrorme/internal/analysis"
	"github.com/runnerr0/mirrorme/internal/behavior"
)

const maxFingerprints = 4096

var (
	commentSels      = compileAll("ytd-comment-thread-renderer", "ytd-comment-renderer")
	commentTextSel   = cascadia.MustCompile("#content-text")
	commentAuthorSel = cascadia.MustCompile("#author-text")

	titleSels       = compileAll("h1.ytd-watch-metadata", "ytd-watch-metadata h1", "h1.title")
	channelSels     = compileAll("ytd-channel-name a", "#channel-name a", "#owner-name a")
	descriptionSels = compileAll("#description-inline-expander", "ytd-text-inline-expander", "#description")
	pageTitleSel    = cascadia.MustCompile("title")
	metaSels        = map[string]cascadia.Selector{
		"title":       cascadia.MustCompile("meta[name=title]"),
		"description": cascadia.MustCompile("meta[name=description]"),
	}
)

// compileAll compiles fallbacks tried in order, most specific first.
func compileAll(queries ...string) []cascadia.Selector {
	sels := make([]cascadia.Selector, len(queries))
	for i, q := range queries {
		sels[i] = cascadia.MustCompile(q)
	}
	return sels
}

// fingerprints remembers processed comments. It forgets everything once full
// so a long-lived tab cannot grow it without bound.
type fingerprints struct {
	limit int
	seen  map[[32]byte]struct{}
}

func newFingerprints(limit int) *fingerprints {
	return &fingerprints{limit: limit, seen: make(map[[32]byte]struct{})}
}

// add records author and text, reporting false when they were already seen.
func (f *fingerprints) add(author, text string) bool {
	key := blake3.Sum256([]byte(author + "\x00" + text))
	if _, dup := f.seen[key]; dup {
		return false
	}
	if len(f.seen) >= f.limit {
		clear(f.seen)
	}
	f.seen[key] = struct{}{}
	return true
}

// videoID returns the v parameter of a watch page URL.
func videoID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || !onDomain(analysis.Domain(u), "youtube.com") || u.Path != "/watch" {
		return ""
	}
	return u.Query().Get("v")
}

func (s *Session) pollVideo(ctx context.Context) {
	id := videoID(s.page.URL())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || id == s.videoID {
		return
	}
	s.videoID = id
	if s.videoTimer != nil {
		s.videoTimer.Stop()
		s.videoTimer = nil
	}
	if id != "" {
		s.videoTimer = s.clock.AfterFunc(VideoSettle, func() { s.captureVideo(ctx, id) })
	}
}

func (s *Session) captureVideo(ctx context.Context, id string) {
	s.mu.Lock()
	current := s.videoID == id && s.activeLocked()
	s.mu.Unlock()
	if !current {
		return
	}

	src, err := s.page.HTML(ctx)
	if err != nil {
		s.logger.Debug("watch page unreadable", zap.String("video_id", id), zap.Error(err))
		return
	}
	doc := parseDocument(src)
	title := videoTitle(doc)
	channel := textContent(first(doc, channelSels...))
	description := textContent(first(doc, descriptionSels...))
	if description == "" {
		description = metaContent(doc, "description")
	}

	text := strings.TrimSpace(title + " " + description)
	ev := behavior.New(behavior.TypeYouTubeVideoWatch, behavior.CategoryEntertainment, s.clock.Now()).
		WithContent(text, behavior.LongContentLimit).
		WithKeywords(analysis.Extract(text)).
		WithVideo(id, channel)
	s.emit(analysis.Classify(text).Apply(ev))
}

func videoTitle(doc *html.Node) string {
	if t := textContent(first(doc, titleSels...)); t != "" {
		return t
	}
	if t := metaContent(doc, "title"); t != "" {
		return t
	}
	return strings.TrimSuffix(textContent(first(doc, pageTitleSel)), " - YouTube")
}

func metaContent(doc *html.Node, name string) string {
	for _, n := range metaSels[name].MatchAll(doc) {
		if v := strings.TrimSpace(attr(n, "content")); v != "" {
			return v
		}
	}
	return ""
}

func (s *Session) commentsInserted(src string) {
	root := parseFragment(src)
	for _, sel := range commentSels {
		for _, n := range sel.MatchAll(root) {
			s.comment(n)
		}
	}
}

func (s *Session) comment(n *html.Node) {
	text := textContent(first(n, commentTextSel))
	if text == "" {
		text = textContent(n)
	}
	if !longEnough(text) {
		return
	}
	author := textContent(first(n, commentAuthorSel))

	s.mu.Lock()
	fresh := s.comments.add(author, text)
	id := s.videoID
	s.mu.Unlock()
	if !fresh {
		return
	}

	ev := behavior.New(behavior.TypeYouTubeCommentView, behavior.CategoryEntertainment, s.clock.Now()).
		WithContent(text, behavior.LongContentLimit).
		WithKeywords(analysis.Extract(text)).
		WithAuthor(author).
		WithVideo(id, "")
	s.emit(analysis.Classify(text).Apply(ev))
}
