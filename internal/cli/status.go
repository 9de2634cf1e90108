package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/mirrorme/internal/control"
	"github.com/runnerr0/mirrorme/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string      `json:"version"`
	DatabasePath      string      `json:"database_path"`
	DatabaseSizeBytes int64       `json:"database_size_bytes"`
	QueuedEvents      int64       `json:"queued_events"`
	OldestEvent       string      `json:"oldest_event,omitempty"`
	NewestEvent       string      `json:"newest_event,omitempty"`
	ByCategory        []countJSON `json:"by_category"`
	ByType            []countJSON `json:"by_type"`
	LastSync          *syncJSON   `json:"last_sync,omitempty"`
	DaemonRunning     bool        `json:"daemon_running"`
	Daemon            *daemonJSON `json:"daemon,omitempty"`
}

type countJSON struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

type syncJSON struct {
	OK        bool   `json:"ok"`
	Detail    string `json:"detail"`
	Timestamp string `json:"timestamp"`
}

type daemonJSON struct {
	Version         string `json:"version"`
	TrackingEnabled bool   `json:"tracking_enabled"`
	SyncEnabled     bool   `json:"sync_enabled"`
	DeviceID        string `json:"device_id"`
	QueueCapacity   int    `json:"queue_capacity"`
	Syncing         bool   `json:"syncing"`
	LastSyncError   string `json:"last_sync_error,omitempty"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	store, db, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	dbPath, _ := cfg.DatabasePath()
	return c.executeWithStore(store, newDaemonClient(cfg), dbPath)
}

// executeWithStore runs status against a provided store and daemon (for testing).
func (c *StatusCommand) executeWithStore(store *storage.SQLiteStore, d daemon, dbPath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), daemonTimeout)
	defer cancel()

	stats, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	var st *control.Status
	if d != nil {
		if s, err := d.Status(ctx); err == nil {
			st = &s
		}
	}

	if wantJSON(c.globals) {
		return c.printStatusJSON(stats, dbPath, st)
	}
	return c.printStatusHuman(stats, dbPath, st)
}

func (c *StatusCommand) printStatusHuman(stats *storage.Stats, dbPath string, st *control.Status) error {
	fmt.Println("mirrorme status")
	fmt.Println("===============")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Database:      %s (%s)\n", dbPath, formatBytes(stats.DatabaseSizeBytes))
	fmt.Printf("Queued:        %s\n", formatNumber(stats.TotalEvents))

	if stats.TotalEvents > 0 {
		fmt.Printf("Oldest:        %s\n", stats.OldestEvent.Local().Format("2006-01-02 15:04"))
		fmt.Printf("Newest:        %s\n", stats.NewestEvent.Local().Format("2006-01-02 15:04"))
	}

	if stats.LastSync != nil {
		outcome := "ok"
		if stats.LastSync.Action == storage.AuditSyncFailed {
			outcome = "failed"
		}
		fmt.Printf("Last sync:     %s %s (%s)\n", outcome, formatAgo(stats.LastSync.Timestamp, time.Now()), stats.LastSync.Detail)
	} else {
		fmt.Println("Last sync:     never")
	}

	printCounts("By category:", stats.ByCategory)
	printCounts("By type:", stats.ByType)

	fmt.Println()
	if st == nil {
		fmt.Println("Daemon:        not running")
		return nil
	}
	fmt.Printf("Daemon:        running (%s)\n", st.Version)
	fmt.Printf("Tracking:      %s\n", onOff(st.State.TrackingEnabled))
	fmt.Printf("Sync:          %s\n", onOff(st.State.SyncEnabled))
	fmt.Printf("Device:        %s\n", st.State.DeviceID)
	if st.State.LastSyncError != "" {
		fmt.Printf("Sync error:    %s\n", st.State.LastSyncError)
	}
	return nil
}

func printCounts(title string, counts []storage.Count) {
	if len(counts) == 0 {
		return
	}
	fmt.Println()
	fmt.Println(title)
	for _, c := range counts {
		fmt.Printf("  %-20s %s\n", c.Key, formatNumber(c.Count))
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func toCountJSON(counts []storage.Count) []countJSON {
	out := make([]countJSON, len(counts))
	for i, c := range counts {
		out[i] = countJSON{Key: c.Key, Count: c.Count}
	}
	return out
}

func (c *StatusCommand) printStatusJSON(stats *storage.Stats, dbPath string, st *control.Status) error {
	out := statusJSON{
		Version:           c.version,
		DatabasePath:      dbPath,
		DatabaseSizeBytes: stats.DatabaseSizeBytes,
		QueuedEvents:      stats.TotalEvents,
		ByCategory:        toCountJSON(stats.ByCategory),
		ByType:            toCountJSON(stats.ByType),
		DaemonRunning:     st != nil,
	}

	if stats.TotalEvents > 0 {
		out.OldestEvent = stats.OldestEvent.UTC().Format(time.RFC3339)
		out.NewestEvent = stats.NewestEvent.UTC().Format(time.RFC3339)
	}
	if stats.LastSync != nil {
		out.LastSync = &syncJSON{
			OK:        stats.LastSync.Action == storage.AuditSyncOK,
			Detail:    stats.LastSync.Detail,
			Timestamp: stats.LastSync.Timestamp.UTC().Format(time.RFC3339),
		}
	}
	if st != nil {
		out.Daemon = &daemonJSON{
			Version:         st.Version,
			TrackingEnabled: st.State.TrackingEnabled,
			SyncEnabled:     st.State.SyncEnabled,
			DeviceID:        st.State.DeviceID,
			QueueCapacity:   st.State.QueueCapacity,
			Syncing:         st.State.Syncing,
			LastSyncError:   st.State.LastSyncError,
		}
	}

	return printJSON(out)
}
