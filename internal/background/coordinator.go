package background

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/runnerr0/mirrorme/internal/behavior"
	"github.com/runnerr0/mirrorme/internal/clock"
	"github.com/runnerr0/mirrorme/internal/queue"
	"github.com/runnerr0/mirrorme/internal/storage"
	"github.com/runnerr0/mirrorme/internal/syncer"
)

// ErrStopped is returned by Send once the coordinator loop has exited.
var ErrStopped = errors.New("coordinator stopped")

// Store is the persistence the coordinator needs. *storage.SQLiteStore
// implements it.
type Store interface {
	queue.Backend
	LoadEvents(ctx context.Context) ([]behavior.Event, error)
	LoadSettings(ctx context.Context) (storage.Settings, error)
	SaveSettings(ctx context.Context, s storage.Settings) error
	IsExcluded(domain string) bool
	RecordAudit(ctx context.Context, action, detail string, at time.Time) error
}

// Uploader ships a batch to the ingestion service. *syncer.Client
// implements it.
type Uploader interface {
	Upload(ctx context.Context, token string, batch []behavior.Event) error
}

// TabResolver looks up the current URL of a browser tab.
type TabResolver interface {
	TabURL(ctx context.Context, tabID int) (string, error)
}

// Sealer encrypts the auth token for storage. *secrets.Sealer implements it.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(ciphertext string) (string, error)
}

// Response is the reply to a Send.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Options struct {
	Store    Store
	Uploader Uploader
	Sealer   Sealer
	Tabs     TabResolver // optional
	Clock    clock.Clock
	Logger   *zap.Logger

	QueueCapacity  int
	BatchSize      int
	SyncInterval   time.Duration
	ResolveTimeout time.Duration
}

type envelope struct {
	msg   Message
	reply chan Response
}

// Coordinator runs the message loop. Construct with New, start with Run.
type Coordinator struct {
	store    Store
	uploader Uploader
	sealer   Sealer
	tabs     TabResolver
	clock    clock.Clock
	logger   *zap.Logger

	interval       time.Duration
	resolveTimeout time.Duration

	// Owned by the loop goroutine.
	state State
	queue *queue.Queue

	inbox    chan envelope
	done     chan struct{}
	runCtx   context.Context
	inflight sync.WaitGroup
}

// New restores state from the store. On first install it generates the
// device id and persists the initial settings.
func New(ctx context.Context, opts Options) (*Coordinator, error) {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = queue.DefaultCapacity
	}
	if opts.BatchSize <= 0 || opts.BatchSize > syncer.MaxBatch {
		opts.BatchSize = syncer.MaxBatch
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = 5 * time.Minute
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = 5 * time.Second
	}

	c := &Coordinator{
		store:          opts.Store,
		uploader:       opts.Uploader,
		sealer:         opts.Sealer,
		tabs:           opts.Tabs,
		clock:          opts.Clock,
		logger:         opts.Logger,
		interval:       opts.SyncInterval,
		resolveTimeout: opts.ResolveTimeout,
		inbox:          make(chan envelope),
		done:           make(chan struct{}),
	}

	settings, err := c.store.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	token, err := c.sealer.Open(settings.SealedToken)
	if err != nil {
		c.logger.Warn("stored auth token unreadable, signing out", zap.Error(err))
		token = ""
		settings.SyncEnabled = false
	}

	c.state = InitialState(opts.QueueCapacity, opts.BatchSize)
	c.state.TrackingEnabled = settings.TrackingEnabled
	c.state.SyncEnabled = settings.SyncEnabled
	c.state.AuthToken = token
	c.state.DeviceID = settings.DeviceID

	if c.state.DeviceID == "" {
		c.state.DeviceID = uuid.NewString()
		if err := c.persistSettings(ctx); err != nil {
			return nil, err
		}
		c.logger.Info("first install", zap.String("device_id", c.state.DeviceID))
	}

	events, err := c.store.LoadEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	c.queue = queue.New(opts.QueueCapacity, c.store, events)
	c.state.QueueSize = c.queue.Size()
	return c, nil
}

// Run processes messages until ctx is cancelled, then waits for in-flight
// uploads and lookups to finish.
func (c *Coordinator) Run(ctx context.Context) error {
	c.runCtx = ctx
	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info("coordinator started",
		zap.Int("queued", c.queue.Size()),
		zap.Bool("tracking", c.state.TrackingEnabled),
		zap.Bool("sync", c.state.SyncEnabled),
		zap.Duration("sync_interval", c.interval),
	)

	for {
		select {
		case <-ctx.Done():
			close(c.done)
			c.inflight.Wait()
			c.logger.Info("coordinator stopped")
			return nil
		case <-ticker.C:
			c.handle(ctx, SyncTick{})
		case env := <-c.inbox:
			resp := c.handle(ctx, env.msg)
			if env.reply != nil {
				env.reply <- resp
			}
		}
	}
}

// Send delivers msg to the loop and waits for its response.
func (c *Coordinator) Send(ctx context.Context, msg Message) (Response, error) {
	reply := make(chan Response, 1)
	select {
	case c.inbox <- envelope{msg: msg, reply: reply}:
	case <-c.done:
		return Response{}, ErrStopped
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Post delivers msg without waiting for a response. It is used by capture
// sessions and browser hooks, which have nothing to do with the reply.
func (c *Coordinator) Post(ctx context.Context, msg Message) error {
	select {
	case c.inbox <- envelope{msg: msg}:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post is used by goroutines started from the loop to report back.
func (c *Coordinator) post(msg Message) {
	select {
	case c.inbox <- envelope{msg: msg}:
	case <-c.done:
	}
}

func (c *Coordinator) handle(ctx context.Context, msg Message) Response {
	now := c.clock.Now()

	switch m := msg.(type) {
	case tabResolved:
		if m.Err != nil {
			c.logger.Debug("tab lookup failed, dropping dwell",
				zap.Int("tab_id", m.Dwell.TabID), zap.Error(m.Err))
		}
	case syncFinished:
		c.recordSync(ctx, m)
	}

	prevTracking := c.state.TrackingEnabled
	next, effects := Reduce(c.state, msg, now)
	c.state = next

	resp := Response{Success: true}
	for _, eff := range effects {
		if err := c.apply(ctx, eff); err != nil {
			resp = Response{Success: false, Error: err.Error()}
		}
	}
	c.state.QueueSize = c.queue.Size()

	switch m := msg.(type) {
	case StoreBehaviorData:
		resp.Data = map[string]bool{"stored": prevTracking}
	case GetBehaviorData:
		resp.Data = c.queue.All()
	case GetState:
		resp.Data = c.state.View()
	case ToggleTracking:
		c.logger.Info("tracking toggled", zap.Bool("enabled", m.Enabled))
	case SetAuthToken:
		c.logger.Info("auth token updated", zap.Bool("sync_enabled", c.state.SyncEnabled))
	}
	return resp
}

func (c *Coordinator) apply(ctx context.Context, eff Effect) error {
	switch e := eff.(type) {
	case AppendEvent:
		if err := c.queue.Append(ctx, e.Event); err != nil {
			// The in-memory queue stays authoritative for this process.
			c.logger.Warn("event not persisted", zap.Error(err))
		}
		c.logger.Debug("event buffered",
			zap.String("behavior_type", string(e.Event.BehaviorType)),
			zap.String("category", string(e.Event.Category)),
			zap.Int("queued", c.queue.Size()),
		)
		return nil

	case ClearQueue:
		n := c.queue.Size()
		if err := c.queue.Clear(ctx); err != nil {
			c.logger.Warn("persisted queue not cleared", zap.Error(err))
		}
		if e.Reason == "requested" {
			c.audit(ctx, storage.AuditClear, fmt.Sprintf("%d events", n))
		}
		return nil

	case PersistSettings:
		return c.persistSettings(ctx)

	case ResolveTab:
		c.resolveTab(e)
		return nil

	case RecordPage:
		c.recordPage(ctx, e)
		return nil

	case StartSync:
		c.startSync(e)
		return nil
	}
	return nil
}

func (c *Coordinator) persistSettings(ctx context.Context) error {
	sealed, err := c.sealer.Seal(c.state.AuthToken)
	if err != nil {
		return fmt.Errorf("seal auth token: %w", err)
	}
	err = c.store.SaveSettings(ctx, storage.Settings{
		TrackingEnabled: c.state.TrackingEnabled,
		SyncEnabled:     c.state.SyncEnabled,
		SealedToken:     sealed,
		DeviceID:        c.state.DeviceID,
	})
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (c *Coordinator) resolveTab(e ResolveTab) {
	if c.tabs == nil {
		c.logger.Debug("no tab resolver, dropping dwell", zap.Int("tab_id", e.Dwell.TabID))
		return
	}
	ctx := c.loopContext()
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		lookupCtx, cancel := context.WithTimeout(ctx, c.resolveTimeout)
		defer cancel()
		url, err := c.tabs.TabURL(lookupCtx, e.Dwell.TabID)
		c.post(tabResolved{Dwell: e.Dwell, URL: url, At: e.At, Err: err})
	}()
}

func (c *Coordinator) recordPage(ctx context.Context, e RecordPage) {
	u, domain, ok := PageURL(e.URL)
	if !ok {
		return
	}
	if c.store.IsExcluded(domain) {
		c.logger.Debug("denylisted domain skipped", zap.String("domain", domain))
		return
	}

	var ev behavior.Event
	if e.Seconds > 0 {
		ev = timeSpentEvent(domain, e.Seconds, e.At)
	} else {
		ev = visitEvent(u, domain, e.At)
	}
	c.handle(ctx, StoreBehaviorData{Event: ev})
}

func (c *Coordinator) startSync(e StartSync) {
	batch := c.queue.Last(e.Limit)
	ctx := c.loopContext()
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		err := c.uploader.Upload(ctx, e.Token, batch)
		c.post(syncFinished{Sent: len(batch), Err: err})
	}()
}

func (c *Coordinator) recordSync(ctx context.Context, m syncFinished) {
	switch {
	case m.Err == nil:
		c.logger.Info("sync complete, clearing queue",
			zap.Int("sent", m.Sent), zap.Int("cleared", c.queue.Size()))
		c.audit(ctx, storage.AuditSyncOK, fmt.Sprintf("%d events", m.Sent))
	case errors.Is(m.Err, syncer.ErrUnauthorized):
		c.logger.Warn("sync rejected, token may be expired", zap.Error(m.Err))
		c.audit(ctx, storage.AuditSyncFailed, m.Err.Error())
	default:
		c.logger.Warn("sync failed, will retry", zap.Error(m.Err))
		c.audit(ctx, storage.AuditSyncFailed, m.Err.Error())
	}
}

func (c *Coordinator) audit(ctx context.Context, action, detail string) {
	if err := c.store.RecordAudit(ctx, action, detail, c.clock.Now()); err != nil {
		c.logger.Debug("audit not recorded", zap.Error(err))
	}
}

// loopContext is the context background work runs under: the Run context
// once the loop started, otherwise a never-cancelled one.
func (c *Coordinator) loopContext() context.Context {
	if c.runCtx != nil {
		return c.runCtx
	}
	return context.Background()
}
