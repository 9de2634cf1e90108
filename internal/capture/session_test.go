package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/mirrorme/internal/behavior"
	"github.com/runnerr0/mirrorme/internal/clock"
)

var t0 = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

type fakePage struct {
	mu   sync.Mutex
	url  string
	html string
	text string
	err  error
}

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *fakePage) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, p.err
}

func (p *fakePage) Text(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.text, p.err
}

func (p *fakePage) navigate(u string) {
	p.mu.Lock()
	p.url = u
	p.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []behavior.Event
}

func (r *recorder) sink(ev behavior.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []behavior.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]behavior.Event(nil), r.events...)
}

func newTestSession(url string) (*Session, *fakePage, *recorder, *clock.FakeClock) {
	page := &fakePage{url: url}
	rec := &recorder{}
	clk := clock.Fake(t0)
	return NewSession(page, rec.sink, Options{Clock: clk}), page, rec, clk
}

func TestNavigatedSearchEngines(t *testing.T) {
	s, _, rec, _ := newTestSession("https://www.google.com/")
	ctx := context.Background()

	s.Handle(ctx, Navigated{URL: "https://www.google.com/search?q=best+climate+policy"})
	s.Handle(ctx, Navigated{URL: "https://www.youtube.com/results?search_query=jazz", SameDocument: true})
	s.Handle(ctx, Navigated{URL: "https://github.com/explore"})

	evs := rec.all()
	require.Len(t, evs, 2)

	assert.Equal(t, behavior.TypeSearch, evs[0].BehaviorType)
	assert.Equal(t, behavior.CategorySearch, evs[0].Category)
	assert.Equal(t, "best climate policy", evs[0].Content)
	assert.Equal(t, []string{"best", "climate", "policy"}, evs[0].Keywords)
	assert.Equal(t, behavior.SentimentPositive, evs[0].Sentiment)
	assert.Equal(t, behavior.TiltLeft, evs[0].PoliticalTilt)
	assert.Equal(t, t0, evs[0].Timestamp)

	assert.Equal(t, behavior.CategoryEntertainment, evs[1].Category)
	assert.Equal(t, "jazz", evs[1].Content)
}

const tweetsHTML = `
<div>
  <article data-testid="tweet">
    <div data-testid="User-Name"><span>Ada</span><span>@ada</span></div>
    <div data-testid="tweetText">What a great launch today</div>
  </article>
  <article data-testid="tweet">
    <div data-testid="User-Name">Bob</div>
    <img src="photo.png">
  </article>
</div>`

func TestInsertedPostsEmitViews(t *testing.T) {
	s, _, rec, _ := newTestSession("https://x.com/home")
	s.Handle(context.Background(), NodesInserted{HTML: []string{tweetsHTML}})

	evs := rec.all()
	require.Len(t, evs, 1, "posts without text are skipped")
	ev := evs[0]
	assert.Equal(t, behavior.TypeTweetView, ev.BehaviorType)
	assert.Equal(t, behavior.CategorySocial, ev.Category)
	assert.Equal(t, "What a great launch today", ev.Content)
	assert.Equal(t, "Ada @ada", ev.Author)
	assert.Equal(t, behavior.SentimentPositive, ev.Sentiment)
	require.NotNil(t, ev.Confidence)
}

func TestInsertedPostsIgnoredOffPlatform(t *testing.T) {
	s, _, rec, _ := newTestSession("https://example.com/")
	s.Handle(context.Background(), NodesInserted{HTML: []string{tweetsHTML}})
	assert.Empty(t, rec.all())
}

func TestControlClicked(t *testing.T) {
	s, _, rec, _ := newTestSession("https://twitter.com/home")
	ctx := context.Background()

	s.Handle(ctx, ControlClicked{Action: ActionLike, PostHTML: tweetsHTML})
	s.Handle(ctx, ControlClicked{Action: ActionRetweet, PostHTML: `<button>Taxes are too high</button>`})
	s.Handle(ctx, ControlClicked{Action: "bookmark", PostHTML: tweetsHTML})
	s.Handle(ctx, ControlClicked{Action: ActionLike, PostHTML: ``})

	evs := rec.all()
	require.Len(t, evs, 2)
	assert.Equal(t, behavior.TypeTweetLike, evs[0].BehaviorType)
	assert.Equal(t, "What a great launch today", evs[0].Content)
	assert.Equal(t, behavior.TypeTweetRetweet, evs[1].BehaviorType)
	assert.Equal(t, "Taxes are too high", evs[1].Content)
	assert.Equal(t, behavior.TiltRight, evs[1].PoliticalTilt)
}

func TestComposeDebounce(t *testing.T) {
	s, _, rec, clk := newTestSession("https://x.com/compose/post")
	ctx := context.Background()

	s.Handle(ctx, ComposerInput{Text: "Hello"})
	clk.Advance(time.Second)
	s.Handle(ctx, ComposerInput{Text: "Hello world, this is"})
	clk.Advance(1900 * time.Millisecond)
	assert.Empty(t, rec.all(), "timer restarts on every keystroke")

	s.Handle(ctx, ComposerInput{Text: "Hello world, this is my post"})
	clk.Advance(ComposeIdle)

	evs := rec.all()
	require.Len(t, evs, 1)
	assert.Equal(t, behavior.TypeTweetCompose, evs[0].BehaviorType)
	assert.Equal(t, "Hello world, this is my post", evs[0].Content)
	assert.Equal(t, 0, clk.PendingTimers())
}

func TestLateComposeTimerLeavesNewerDraft(t *testing.T) {
	s, _, rec, clk := newTestSession("https://x.com/compose/post")
	ctx := context.Background()

	s.Handle(ctx, ComposerInput{Text: "first draft that is long"})
	s.mu.Lock()
	late := s.composeGen
	s.mu.Unlock()
	s.Handle(ctx, ComposerInput{Text: "second draft that is longer"})

	// The first timer fired just before it was stopped and only now gets mu.
	s.flushCompose(late)
	assert.Empty(t, rec.all())

	clk.Advance(ComposeIdle)
	evs := rec.all()
	require.Len(t, evs, 1)
	assert.Equal(t, "second draft that is longer", evs[0].Content)
}

func TestComposeTooShortIsDropped(t *testing.T) {
	s, _, rec, clk := newTestSession("https://x.com/compose/post")
	s.Handle(context.Background(), ComposerInput{Text: "  0123456789  "})
	clk.Advance(ComposeIdle)
	assert.Empty(t, rec.all(), "exactly 10 characters is not enough")
}

func TestCloseStopsPendingCompose(t *testing.T) {
	s, _, rec, clk := newTestSession("https://x.com/home")
	s.Handle(context.Background(), ComposerInput{Text: "a draft that is long enough"})
	s.Close()
	clk.Advance(time.Minute)
	assert.Empty(t, rec.all())

	s.Handle(context.Background(), NodesInserted{HTML: []string{tweetsHTML}})
	assert.Empty(t, rec.all())
}

const watchHTML = `<html><head>
<title>Ignored - YouTube</title>
<meta name="description" content="Fallback description">
</head><body>
<ytd-watch-metadata>
  <h1 class="style-scope ytd-watch-metadata"><yt-formatted-string>Learning Go concurrency</yt-formatted-string></h1>
  <div id="owner"><ytd-channel-name><a href="/@gophers">Gopher Academy</a></ytd-channel-name></div>
  <div id="description-inline-expander">Channels and goroutines explained</div>
</ytd-watch-metadata>
</body></html>`

func TestVideoWatchAfterSettle(t *testing.T) {
	s, page, rec, clk := newTestSession("https://www.youtube.com/watch?v=abc123")
	page.html = watchHTML
	ctx := context.Background()

	s.pollVideo(ctx)
	clk.Advance(VideoSettle - time.Millisecond)
	assert.Empty(t, rec.all())
	clk.Advance(time.Millisecond)

	evs := rec.all()
	require.Len(t, evs, 1)
	ev := evs[0]
	assert.Equal(t, behavior.TypeYouTubeVideoWatch, ev.BehaviorType)
	assert.Equal(t, behavior.CategoryEntertainment, ev.Category)
	assert.Equal(t, "abc123", ev.VideoID)
	assert.Equal(t, "Gopher Academy", ev.Channel)
	assert.Equal(t, "Learning Go concurrency Channels and goroutines explained", ev.Content)

	s.pollVideo(ctx)
	clk.Advance(time.Minute)
	assert.Len(t, rec.all(), 1, "same video is not captured twice")
}

func TestVideoChangeBeforeSettleCapturesLatest(t *testing.T) {
	s, page, rec, clk := newTestSession("https://www.youtube.com/watch?v=first")
	page.html = watchHTML
	ctx := context.Background()

	s.pollVideo(ctx)
	clk.Advance(time.Second)
	page.navigate("https://www.youtube.com/watch?v=second")
	s.pollVideo(ctx)
	clk.Advance(VideoSettle)

	evs := rec.all()
	require.Len(t, evs, 1)
	assert.Equal(t, "second", evs[0].VideoID)
}

func TestVideoTitleFallbacks(t *testing.T) {
	doc := parseDocument(`<html><head><title>Plain title - YouTube</title></head><body></body></html>`)
	assert.Equal(t, "Plain title", videoTitle(doc))

	doc = parseDocument(`<html><head><meta name="title" content="Meta title"></head><body></body></html>`)
	assert.Equal(t, "Meta title", videoTitle(doc))
}

func TestVideoUnreadablePageIsSkipped(t *testing.T) {
	s, page, rec, clk := newTestSession("https://www.youtube.com/watch?v=abc")
	page.err = errors.New("target closed")
	s.pollVideo(context.Background())
	clk.Advance(VideoSettle)
	assert.Empty(t, rec.all())
}

func TestRunPollsVideo(t *testing.T) {
	s, page, rec, clk := newTestSession("https://www.youtube.com/")
	page.html = watchHTML

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	page.navigate("https://www.youtube.com/watch?v=polled")
	require.Eventually(t, func() bool {
		clk.Advance(VideoPollInterval)
		return clk.PendingTimers() == 1
	}, time.Second, time.Millisecond)
	clk.Advance(VideoSettle)

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "polled", rec.all()[0].VideoID)

	cancel()
	require.NoError(t, <-done)
}

func TestCommentsDeduplicated(t *testing.T) {
	s, _, rec, _ := newTestSession("https://www.youtube.com/watch?v=vid")
	s.pollVideo(context.Background())

	thread := `<ytd-comment-thread-renderer>
  <ytd-comment-renderer>
    <a id="author-text">@carol</a>
    <span id="content-text">This was a terrible explanation</span>
  </ytd-comment-renderer>
</ytd-comment-thread-renderer>`
	short := `<ytd-comment-renderer><span id="content-text">nice!</span></ytd-comment-renderer>`

	s.Handle(context.Background(), NodesInserted{HTML: []string{thread, short}})
	s.Handle(context.Background(), NodesInserted{HTML: []string{thread}})

	evs := rec.all()
	require.Len(t, evs, 1)
	ev := evs[0]
	assert.Equal(t, behavior.TypeYouTubeCommentView, ev.BehaviorType)
	assert.Equal(t, "@carol", ev.Author)
	assert.Equal(t, "vid", ev.VideoID)
	assert.Equal(t, behavior.SentimentNegative, ev.Sentiment)
}

func TestFingerprintsResetWhenFull(t *testing.T) {
	f := newFingerprints(2)
	assert.True(t, f.add("a", "one"))
	assert.False(t, f.add("a", "one"))
	assert.True(t, f.add("a", "two"))
	assert.True(t, f.add("a", "three"))
	assert.Len(t, f.seen, 1)
}

func TestEngagement(t *testing.T) {
	s, page, rec, clk := newTestSession("https://www.bbc.com/news/article")
	page.text = "Reform of healthcare regulation remains unclear according to reports"
	ctx := context.Background()

	clk.Advance(5 * time.Second)
	s.Handle(ctx, VisibilityChanged{Hidden: true})
	assert.Empty(t, rec.all(), "visible under 10 s")

	s.Handle(ctx, VisibilityChanged{Hidden: false})
	clk.Advance(12*time.Second + 500*time.Millisecond)
	s.Handle(ctx, VisibilityChanged{Hidden: true})

	evs := rec.all()
	require.Len(t, evs, 1)
	ev := evs[0]
	assert.Equal(t, behavior.TypeEngagement, ev.BehaviorType)
	assert.Equal(t, behavior.CategoryNews, ev.Category)
	require.NotNil(t, ev.SessionDuration)
	assert.Equal(t, 12, *ev.SessionDuration)
	assert.Equal(t, behavior.TiltLeft, ev.PoliticalTilt)
	assert.Empty(t, ev.Content)

	s.Handle(ctx, VisibilityChanged{Hidden: true})
	assert.Len(t, rec.all(), 1, "hidden twice without becoming visible")
}

func TestEngagementResetsOnNavigation(t *testing.T) {
	s, page, rec, clk := newTestSession("https://example.com/a")
	page.text = "some page text"
	ctx := context.Background()

	clk.Advance(8 * time.Second)
	s.Handle(ctx, Navigated{URL: "https://example.com/b"})
	clk.Advance(8 * time.Second)
	s.Handle(ctx, VisibilityChanged{Hidden: true})
	assert.Empty(t, rec.all())
}

func TestFormSubmitted(t *testing.T) {
	s, _, rec, _ := newTestSession("https://www.amazon.com/")
	ctx := context.Background()

	s.Handle(ctx, FormSubmitted{Fields: []FormField{{Name: "field-keywords", Value: "x"}, {Name: "k", Type: "search", Value: "hiking boots"}}})
	s.Handle(ctx, FormSubmitted{Fields: []FormField{{Name: "email", Value: "a@b.c"}}})

	evs := rec.all()
	require.Len(t, evs, 1)
	assert.Equal(t, behavior.TypeSearch, evs[0].BehaviorType)
	assert.Equal(t, behavior.CategoryShopping, evs[0].Category)
	assert.Equal(t, "hiking boots", evs[0].Content)
	assert.Equal(t, []string{"hiking", "boots"}, evs[0].Keywords)
}

func TestExcludedDomainCapturesNothing(t *testing.T) {
	page := &fakePage{url: "https://mail.google.com/mail/u/0/#inbox", text: "Quarterly invoice from the accounting team"}
	rec := &recorder{}
	clk := clock.Fake(t0)
	s := NewSession(page, rec.sink, Options{
		Clock:    clk,
		Excluded: func(d string) bool { return onDomain(d, "google.com") },
	})
	ctx := context.Background()

	s.Handle(ctx, FormSubmitted{Fields: []FormField{{Name: "q", Value: "quarterly invoice"}}})
	clk.Advance(15 * time.Second)
	s.Handle(ctx, VisibilityChanged{Hidden: true})
	s.Handle(ctx, Navigated{URL: "https://www.google.com/search?q=salary+negotiation"})
	assert.Empty(t, rec.all())

	s.Handle(ctx, Navigated{URL: "https://www.reddit.com/search/?q=salary+negotiation"})
	evs := rec.all()
	require.Len(t, evs, 1, "capture resumes off the excluded domain")
	assert.Equal(t, "salary negotiation", evs[0].Content)
}

func TestExcludedDomainSkipsPlatformCapture(t *testing.T) {
	page := &fakePage{url: "https://x.com/home"}
	rec := &recorder{}
	clk := clock.Fake(t0)
	s := NewSession(page, rec.sink, Options{
		Clock:    clk,
		Excluded: func(d string) bool { return d == "x.com" },
	})
	ctx := context.Background()

	s.Handle(ctx, NodesInserted{HTML: []string{tweetsHTML}})
	s.Handle(ctx, ControlClicked{Action: ActionLike, PostHTML: tweetsHTML})
	s.Handle(ctx, ComposerInput{Text: "a draft that is long enough"})
	clk.Advance(ComposeIdle)
	assert.Empty(t, rec.all())
}
