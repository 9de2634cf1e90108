package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/runnerr0/mirrorme/internal/background"
	"github.com/runnerr0/mirrorme/internal/browser"
	"github.com/runnerr0/mirrorme/internal/config"
	"github.com/runnerr0/mirrorme/internal/control"
	"github.com/runnerr0/mirrorme/internal/logging"
	"github.com/runnerr0/mirrorme/internal/secrets"
	"github.com/runnerr0/mirrorme/internal/storage"
	"github.com/runnerr0/mirrorme/internal/syncer"
)

// coordinatorRef lets the browser host be built before the coordinator it
// posts to, since the coordinator resolves tab URLs through the host.
type coordinatorRef struct {
	c *background.Coordinator
}

func (r *coordinatorRef) Post(ctx context.Context, msg background.Message) error {
	return r.c.Post(ctx, msg)
}

// addDenylist records each domain under its curated group name, or
// "configured" for user additions.
func addDenylist(ctx context.Context, store *storage.SQLiteStore, domains []string) error {
	groups := make(map[string][]string)
	var order []string
	for _, d := range domains {
		reason := config.DenylistGroup(d)
		if reason == "" {
			reason = "configured"
		}
		if _, ok := groups[reason]; !ok {
			order = append(order, reason)
		}
		groups[reason] = append(groups[reason], d)
	}
	for _, reason := range order {
		if err := store.AddExclusions(ctx, groups[reason], reason); err != nil {
			return fmt.Errorf("load denylist: %w", err)
		}
	}
	return nil
}

// Execute implements the go-flags Commander interface for CollectCommand.
func (c *CollectCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	if c.Port > 0 {
		cfg.Daemon.Port = c.Port
	}
	if c.ControlURL != "" {
		cfg.Browser.ControlURL = c.ControlURL
	}
	if c.NoBrowser {
		cfg.Browser.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir, err := config.ExpandPath(cfg.Storage.Path)
	if err != nil {
		return err
	}
	verbose := c.globals != nil && c.globals.Verbose
	logger, err := logging.New(cfg.Logging, dir, verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.run(ctx, cfg, logger)
}

func (c *CollectCommand) run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	if err := addDenylist(ctx, store, cfg.Denylist()); err != nil {
		return err
	}

	keyPath, err := cfg.KeyPath()
	if err != nil {
		return err
	}
	sealer, err := secrets.LoadOrCreate(keyPath)
	if err != nil {
		return err
	}
	tokenPath, err := cfg.TokenPath()
	if err != nil {
		return err
	}
	token, err := secrets.LoadOrCreateToken(tokenPath)
	if err != nil {
		return err
	}

	compression, err := syncer.ParseCompression(cfg.Sync.Compression)
	if err != nil {
		return err
	}
	uploader := syncer.New(syncer.Options{
		APIBase:     cfg.Sync.APIBase,
		Timeout:     cfg.SyncTimeout(),
		Compression: compression,
		UserAgent:   "mirrorme/" + c.version,
	}, logger.Named("sync"))

	opts := background.Options{
		Store:         store,
		Uploader:      uploader,
		Sealer:        sealer,
		Logger:        logger.Named("coordinator"),
		QueueCapacity: cfg.Capture.QueueCapacity,
		BatchSize:     cfg.Sync.BatchSize,
		SyncInterval:  cfg.SyncInterval(),
	}

	ref := &coordinatorRef{}
	var host *browser.Host
	if cfg.Browser.Enabled {
		host = browser.New(browser.Options{
			ControlURL:   cfg.Browser.ControlURL,
			Bin:          cfg.Browser.Bin,
			Headless:     cfg.Browser.Headless,
			PollInterval: cfg.BrowserPollInterval(),
			Logger:       logger.Named("browser"),
			Excluded:     store.IsExcluded,
		}, ref)
		opts.Tabs = host
	}

	coord, err := background.New(ctx, opts)
	if err != nil {
		return err
	}
	ref.c = coord

	server := control.NewServer(coord, control.ServerOptions{
		Addr:           cfg.DaemonAddr(),
		Version:        c.version,
		MaxRequestSize: int64(cfg.Daemon.MaxRequestSize),
		Logger:         logger.Named("control"),
		Token:          token,
		AllowedOrigins: cfg.Daemon.AllowedOrigins,
	})

	logger.Info("mirrorme starting",
		zap.String("version", c.version),
		zap.String("addr", cfg.DaemonAddr()),
		zap.String("endpoint", uploader.Endpoint()),
		zap.String("control_token_file", tokenPath),
		zap.Bool("browser", host != nil),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return coord.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })
	if host != nil {
		g.Go(func() error {
			// Losing the browser leaves the control endpoint serving other producers.
			if err := host.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("browser host stopped", zap.Error(err))
			}
			return nil
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("mirrorme stopped")
	return err
}
