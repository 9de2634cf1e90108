// Package browser attaches to a Chromium instance over the DevTools protocol
// with go-rod. It installs the capture hook in every tab, feeds the hook's
// signals to a capture.Session per tab, and reports tab activation and page
// loads to the coordinator.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/runnerr0/mirrorme/internal/background"
	"github.com/runnerr0/mirrorme/internal/behavior"
	"github.com/runnerr0/mirrorme/internal/capture"
	"github.com/runnerr0/mirrorme/internal/clock"
)

// ErrUnknownTab is returned by TabURL for tabs the host is not tracking.
var ErrUnknownTab = errors.New("unknown tab")

// Poster delivers messages to the coordinator without waiting for a reply.
// *background.Coordinator implements it.
type Poster interface {
	Post(ctx context.Context, msg background.Message) error
}

type Options struct {
	// ControlURL of a running browser. When empty a browser is launched.
	ControlURL   string
	Bin          string
	Headless     bool
	PollInterval time.Duration
	Clock        clock.Clock
	Logger       *zap.Logger
	// Excluded is handed to every capture session; see capture.Options.
	Excluded     func(domain string) bool
}

type tab struct {
	id      int
	page    *rod.Page
	view    *pageView
	session *capture.Session
	cancel  context.CancelFunc
}

// Host tracks the browser's page targets.
type Host struct {
	opts   Options
	poster Poster
	logger *zap.Logger

	browser  *rod.Browser
	launched bool

	mu        sync.Mutex
	tabs      map[proto.TargetTargetID]*tab
	byID      map[int]*tab
	nextID    int
	activeTab int

	wg sync.WaitGroup
}

func New(opts Options, poster Poster) *Host {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Host{
		opts:   opts,
		poster: poster,
		logger: opts.Logger,
		tabs:   make(map[proto.TargetTargetID]*tab),
		byID:   make(map[int]*tab),
	}
}

// Run connects, attaches to every page and keeps watching targets until ctx
// is done.
func (h *Host) Run(ctx context.Context) error {
	if err := h.connect(ctx); err != nil {
		return err
	}
	defer h.shutdown()

	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(h.browser); err != nil {
		return fmt.Errorf("discover targets: %w", err)
	}

	pages, err := h.browser.Pages()
	if err != nil {
		return fmt.Errorf("list pages: %w", err)
	}
	for _, p := range pages {
		h.attach(ctx, p)
	}

	wait := h.browser.Context(ctx).EachEvent(
		func(e *proto.TargetTargetCreated) {
			if e.TargetInfo.Type != proto.TargetTargetInfoTypePage {
				return
			}
			// Attaching issues protocol calls, which must not run on the
			// event dispatch goroutine.
			h.wg.Add(1)
			go func(id proto.TargetTargetID) {
				defer h.wg.Done()
				p, err := h.browser.PageFromTarget(id)
				if err != nil {
					h.logger.Debug("page target not attachable", zap.Error(err))
					return
				}
				h.attach(ctx, p)
			}(e.TargetInfo.TargetID)
		},
		func(e *proto.TargetTargetDestroyed) {
			h.detach(e.TargetID)
		},
	)
	h.logger.Info("browser host attached", zap.Int("tabs", len(pages)))
	wait()
	return nil
}

func (h *Host) connect(ctx context.Context) error {
	controlURL := h.opts.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(h.opts.Headless)
		if h.opts.Bin != "" {
			l = l.Bin(h.opts.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
		h.launched = true
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}
	h.browser = b
	return nil
}

func (h *Host) shutdown() {
	h.mu.Lock()
	for id := range h.tabs {
		h.detachLocked(id)
	}
	h.mu.Unlock()
	h.wg.Wait()

	if h.launched {
		if err := h.browser.Close(); err != nil {
			h.logger.Debug("browser close", zap.Error(err))
		}
	}
}

func (h *Host) attach(ctx context.Context, p *rod.Page) {
	h.mu.Lock()
	if _, ok := h.tabs[p.TargetID]; ok {
		h.mu.Unlock()
		return
	}
	h.nextID++
	tabCtx, cancel := context.WithCancel(ctx)
	view := &pageView{page: p}
	t := &tab{id: h.nextID, page: p, view: view, cancel: cancel}
	t.session = capture.NewSession(view, h.sink(tabCtx), capture.Options{
		Clock:    h.opts.Clock,
		Logger:   h.logger.With(zap.Int("tab_id", t.id)),
		Excluded: h.opts.Excluded,
	})
	h.tabs[p.TargetID] = t
	h.byID[t.id] = t
	h.mu.Unlock()

	if _, err := p.EvalOnNewDocument(hookScript); err != nil {
		h.logger.Debug("hook not installed", zap.Int("tab_id", t.id), zap.Error(err))
	}
	if info, err := p.Info(); err == nil {
		view.setURL(info.URL)
	}
	h.installHook(tabCtx, t)

	h.wg.Add(3)
	go func() {
		defer h.wg.Done()
		if err := t.session.Run(tabCtx); err != nil {
			h.logger.Debug("capture session ended", zap.Error(err))
		}
	}()
	go func() {
		defer h.wg.Done()
		h.watchNavigation(tabCtx, t)
	}()
	go func() {
		defer h.wg.Done()
		h.pollSignals(tabCtx, t)
	}()
}

func (h *Host) detach(id proto.TargetTargetID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(id)
}

func (h *Host) detachLocked(id proto.TargetTargetID) {
	t, ok := h.tabs[id]
	if !ok {
		return
	}
	t.cancel()
	delete(h.tabs, id)
	delete(h.byID, t.id)
}

func (h *Host) installHook(ctx context.Context, t *tab) {
	_, err := t.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           hookScript,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		h.logger.Debug("hook not evaluated", zap.Int("tab_id", t.id), zap.Error(err))
	}
}

func (h *Host) watchNavigation(ctx context.Context, t *tab) {
	wait := t.page.Context(ctx).EachEvent(
		func(e *proto.PageFrameNavigated) {
			if e.Frame == nil || e.Frame.ParentID != "" {
				return
			}
			t.view.setURL(e.Frame.URL)
			t.session.Handle(ctx, capture.Navigated{URL: e.Frame.URL})
			h.post(ctx, background.TabLoaded{TabID: t.id, URL: e.Frame.URL})
		},
		func(e *proto.PageNavigatedWithinDocument) {
			if e.FrameID != t.page.FrameID {
				return
			}
			t.view.setURL(e.URL)
			t.session.Handle(ctx, capture.Navigated{URL: e.URL, SameDocument: true})
		},
	)
	wait()
}

func (h *Host) pollSignals(ctx context.Context, t *tab) {
	ticker := h.opts.Clock.NewTicker(h.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		res, err := t.page.Context(ctx).Evaluate(&rod.EvalOptions{
			JS:           drainScript,
			ByValue:      true,
			AwaitPromise: true,
		})
		if err != nil || res == nil || res.Value.Nil() {
			continue
		}
		raw, err := res.Value.MarshalJSON()
		if err != nil {
			continue
		}
		signals, err := decodeSignals(raw)
		if err != nil {
			h.logger.Debug("hook queue unreadable", zap.Int("tab_id", t.id), zap.Error(err))
			continue
		}
		for _, sig := range signals {
			if v, ok := sig.(capture.VisibilityChanged); ok && !v.Hidden {
				h.activated(ctx, t.id)
			}
			t.session.Handle(ctx, sig)
		}
	}
}

// activated reports a tab becoming visible. Repeated reports for the tab
// already active, such as a reload, are not forwarded.
func (h *Host) activated(ctx context.Context, id int) {
	h.mu.Lock()
	if h.activeTab == id {
		h.mu.Unlock()
		return
	}
	h.activeTab = id
	h.mu.Unlock()
	h.post(ctx, background.TabActivated{TabID: id})
}

func (h *Host) sink(ctx context.Context) capture.Sink {
	return func(ev behavior.Event) {
		h.post(ctx, background.StoreBehaviorData{Event: ev})
	}
}

func (h *Host) post(ctx context.Context, msg background.Message) {
	if err := h.poster.Post(ctx, msg); err != nil && ctx.Err() == nil {
		h.logger.Debug("message not delivered", zap.Error(err))
	}
}

// TabURL implements background.TabResolver.
func (h *Host) TabURL(ctx context.Context, id int) (string, error) {
	h.mu.Lock()
	t, ok := h.byID[id]
	h.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownTab, id)
	}
	info, err := t.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("tab %d info: %w", id, err)
	}
	return info.URL, nil
}
