package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/mirrorme/internal/background"
	"github.com/runnerr0/mirrorme/internal/control"
)

// syncWait bounds how long the command waits for an upload to finish.
const syncWait = 2 * time.Minute

// Execute implements the go-flags Commander interface for SyncCommand.
func (c *SyncCommand) Execute(args []string) error {
	d, err := connectDaemon(c.globals)
	if err != nil {
		return err
	}
	return c.executeWith(d, time.Second)
}

// executeWith triggers a sync and polls the daemon state until the upload
// settles.
func (c *SyncCommand) executeWith(d daemon, poll time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), syncWait)
	defer cancel()

	before, err := d.State(ctx)
	if err != nil {
		return err
	}
	if !before.SyncEnabled || !before.Authenticated {
		return fmt.Errorf("sync is disabled; run `mirrorme auth --token ...` first")
	}
	if before.QueueSize == 0 && !before.Syncing {
		return c.report(before)
	}

	if _, err := d.Do(ctx, control.Request{Action: control.ActionSyncNow}); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	for {
		view, err := d.State(ctx)
		if err != nil {
			return err
		}
		if !view.Syncing && !sameSync(before, view) {
			return c.report(view)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("sync still running after %s", syncWait)
		case <-time.After(poll):
		}
	}
}

func sameSync(a, b background.StateView) bool {
	if a.LastSyncAt == nil || b.LastSyncAt == nil {
		return a.LastSyncAt == b.LastSyncAt
	}
	return a.LastSyncAt.Equal(*b.LastSyncAt)
}

func (c *SyncCommand) report(view background.StateView) error {
	if wantJSON(c.globals) {
		return printJSON(view)
	}
	if view.LastSyncError != "" {
		return fmt.Errorf("sync failed: %s (%d events kept)", view.LastSyncError, view.QueueSize)
	}
	fmt.Printf("Synced %d events. %d queued.\n", view.LastSyncSent, view.QueueSize)
	return nil
}
