package capture

import (
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/runnerr0/mirrorme/internal/analysis"
	"github.com/runnerr0/mirrorme/internal/behavior"
)

const maxAuthor = 100

var (
	postSel       = cascadia.MustCompile("article[data-testid=tweet]")
	postTextSel   = cascadia.MustCompile("[data-testid=tweetText]")
	postAuthorSel = cascadia.MustCompile("[data-testid=User-Name]")
)

type post struct {
	text   string
	author string
}

// readPost extracts a post's text and author. With whole set, a node without
// a text block contributes all of its text.
func readPost(n *html.Node, whole bool) post {
	p := post{text: textContent(first(n, postTextSel))}
	if p.text == "" && whole {
		p.text = textContent(n)
	}
	p.author = behavior.Truncate(textContent(first(n, postAuthorSel)), maxAuthor)
	return p
}

func postEvent(t behavior.Type, p post, at time.Time) behavior.Event {
	ev := behavior.New(t, behavior.CategorySocial, at).
		WithContent(p.text, behavior.ShortContentLimit).
		WithKeywords(analysis.Extract(p.text)).
		WithAuthor(p.author)
	return analysis.Classify(p.text).Apply(ev)
}

func (s *Session) nodesInserted(sig NodesInserted) {
	_, p, active := s.snapshot()
	if !active {
		return
	}
	switch p {
	case platformMicroblog:
		for _, src := range sig.HTML {
			s.postsInserted(src)
		}
	case platformVideo:
		for _, src := range sig.HTML {
			s.commentsInserted(src)
		}
	}
}

func (s *Session) postsInserted(src string) {
	root := parseFragment(src)
	for _, n := range postSel.MatchAll(root) {
		p := readPost(n, false)
		if p.text == "" {
			continue
		}
		s.emit(postEvent(behavior.TypeTweetView, p, s.clock.Now()))
	}
}

func (s *Session) controlClicked(sig ControlClicked) {
	_, p, active := s.snapshot()
	if !active || p != platformMicroblog {
		return
	}
	var t behavior.Type
	switch sig.Action {
	case ActionLike:
		t = behavior.TypeTweetLike
	case ActionRetweet:
		t = behavior.TypeTweetRetweet
	default:
		return
	}

	root := parseFragment(sig.PostHTML)
	n := first(root, postSel)
	whole := n == nil
	if whole {
		n = root
	}
	pst := readPost(n, whole)
	if pst.text == "" {
		return
	}
	s.emit(postEvent(t, pst, s.clock.Now()))
}

func (s *Session) composerInput(sig ComposerInput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked() || platformOf(s.domain) != platformMicroblog {
		return
	}
	s.composeText = sig.Text
	if s.composeTimer != nil {
		s.composeTimer.Stop()
	}
	// A timer that already fired may still be waiting on mu; its generation
	// no longer matches and it leaves the newer text alone.
	s.composeGen++
	gen := s.composeGen
	s.composeTimer = s.clock.AfterFunc(ComposeIdle, func() { s.flushCompose(gen) })
}

func (s *Session) flushCompose(gen uint64) {
	s.mu.Lock()
	if gen != s.composeGen {
		s.mu.Unlock()
		return
	}
	text := strings.TrimSpace(s.composeText)
	s.composeText = ""
	s.composeTimer = nil
	active := s.activeLocked()
	s.mu.Unlock()

	if !active || !longEnough(text) {
		return
	}
	s.emit(postEvent(behavior.TypeTweetCompose, post{text: text}, s.clock.Now()))
}
