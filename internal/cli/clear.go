package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/runnerr0/mirrorme/internal/config"
	"github.com/runnerr0/mirrorme/internal/control"
	"github.com/runnerr0/mirrorme/internal/storage"
)

// setDB allows tests to inject a database connection.
func (c *ClearCommand) setDB(db *sql.DB) {
	c.db = db
}

// Execute implements the go-flags Commander interface for ClearCommand.
func (c *ClearCommand) Execute(args []string) error {
	if !c.Force {
		if err := c.confirm(); err != nil {
			return err
		}
	}

	ctx := context.Background()
	via := "daemon"
	if c.db != nil {
		if err := clearStore(ctx, c.db); err != nil {
			return err
		}
		via = "database"
	} else {
		cfg, err := loadConfig(c.globals)
		if err != nil {
			return err
		}
		_, err = newDaemonClient(cfg).Do(ctx, control.Request{Action: control.ActionClearData})
		if errors.Is(err, control.ErrUnavailable) {
			err = clearConfigured(ctx, cfg)
			via = "database"
		}
		if err != nil {
			return fmt.Errorf("clear failed: %w", err)
		}
	}

	if wantJSON(c.globals) {
		return printJSON(map[string]any{
			"cleared": true,
			"via":     via,
		})
	}
	fmt.Println("Cleared all queued events.")
	return nil
}

func (c *ClearCommand) confirm() error {
	in := c.in
	if in == nil {
		in = os.Stdin
	}
	fmt.Println("⚠ WARNING: This will permanently delete every queued event.")
	fmt.Println("Events not yet uploaded are lost.")
	fmt.Println()
	fmt.Print(`Type "CLEAR" to confirm: `)

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return fmt.Errorf("aborted: no input received")
	}
	if strings.TrimSpace(scanner.Text()) != "CLEAR" {
		return fmt.Errorf("aborted: confirmation text did not match")
	}
	return nil
}

func clearConfigured(ctx context.Context, cfg *config.Config) error {
	path, err := cfg.DatabasePath()
	if err != nil {
		return err
	}
	db, err := storage.Open(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()
	return clearStore(ctx, db)
}

// clearStore empties the buffer when no daemon owns it.
func clearStore(ctx context.Context, db *sql.DB) error {
	store, err := storage.NewSQLiteStore(db)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer store.Close()

	if err := store.ClearEvents(ctx); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}
	return store.RecordAudit(ctx, storage.AuditClear, "cli", time.Now())
}
