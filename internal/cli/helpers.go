package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/runnerr0/mirrorme/internal/background"
	"github.com/runnerr0/mirrorme/internal/behavior"
	"github.com/runnerr0/mirrorme/internal/config"
	"github.com/runnerr0/mirrorme/internal/control"
	"github.com/runnerr0/mirrorme/internal/secrets"
	"github.com/runnerr0/mirrorme/internal/storage"
)

// daemonTimeout bounds one CLI round trip to the control endpoint.
const daemonTimeout = 5 * time.Second

// daemon is the part of *control.Client the commands use.
type daemon interface {
	Do(ctx context.Context, req control.Request) (control.Reply, error)
	Status(ctx context.Context) (control.Status, error)
	Events(ctx context.Context) ([]behavior.Event, error)
	State(ctx context.Context) (background.StateView, error)
}

// loadConfig reads --config, or the default path, creating defaults on first run.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	path := config.DefaultConfigPath
	if globals != nil && globals.Config != "" {
		path = globals.Config
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadOrCreateAt(expanded)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openStore opens the configured database, runs migrations, and returns a
// ready-to-use store and the underlying *sql.DB.
func openStore(ctx context.Context, cfg *config.Config) (*storage.SQLiteStore, *sql.DB, error) {
	path, err := cfg.DatabasePath()
	if err != nil {
		return nil, nil, err
	}
	db, err := storage.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create store: %w", err)
	}
	return store, db, nil
}

// newDaemonClient presents the token the daemon wrote at startup. Without a
// readable token file the daemon, if any, answers ErrUnauthorized.
func newDaemonClient(cfg *config.Config) *control.Client {
	var token string
	if path, err := cfg.TokenPath(); err == nil {
		token, _ = secrets.LoadToken(path)
	}
	return control.NewClient(cfg.DaemonURL(), token, daemonTimeout)
}

// connectDaemon loads the config and returns a client for the running daemon.
func connectDaemon(globals *GlobalFlags) (daemon, error) {
	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, err
	}
	return newDaemonClient(cfg), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func wantJSON(globals *GlobalFlags) bool {
	return globals != nil && globals.JSON
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if i > 0 {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// formatAgo renders how long before now t was, at minute resolution.
func formatAgo(t, now time.Time) string {
	d := now.Sub(t).Round(time.Minute)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d min ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%d h ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%d days ago", int(d.Hours()/24))
	}
}
