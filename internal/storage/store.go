package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/runnerr0/mirrorme/internal/behavior"
)

// Store defines the persistence operations used by the coordinator and CLI.
type Store interface {
	AppendEvent(ctx context.Context, ev behavior.Event, capacity int) error
	ClearEvents(ctx context.Context) error
	LoadEvents(ctx context.Context) ([]behavior.Event, error)
	LoadSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) error
	IsExcluded(domain string) bool
	RecordAudit(ctx context.Context, action, detail string, at time.Time) error
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}

var _ Store = (*SQLiteStore)(nil)

// Settings keys.
const (
	keyTrackingEnabled = "is_enabled"
	keySyncEnabled     = "sync_enabled"
	keyAuthToken       = "auth_token"
	keyDeviceID        = "device_id"
)

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	insertEvent  *sql.Stmt
	trimEvents   *sql.Stmt
	upsertConfig *sql.Stmt
	insertAudit  *sql.Stmt

	mu               sync.RWMutex
	domainExclusions []string
	regexExclusions  []*regexp.Regexp
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}
	if err := s.loadExclusions(); err != nil {
		return nil, fmt.Errorf("load exclusions: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertEvent, err = s.db.Prepare(`
		INSERT INTO behavior_events (payload, behavior_type, category, ts)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.trimEvents, err = s.db.Prepare(`
		DELETE FROM behavior_events WHERE seq NOT IN (
			SELECT seq FROM behavior_events ORDER BY seq DESC LIMIT ?
		)
	`)
	if err != nil {
		return err
	}

	s.upsertConfig, err = s.db.Prepare(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}

	s.insertAudit, err = s.db.Prepare(`INSERT INTO audit_log (action, detail, ts) VALUES (?, ?, ?)`)
	return err
}

// loadExclusions loads domain and regex exclusion rules from the database.
func (s *SQLiteStore) loadExclusions() error {
	rows, err := s.db.Query("SELECT rule_type, rule_value FROM exclusions")
	if err != nil {
		return err
	}
	defer rows.Close()

	var domains []string
	var patterns []*regexp.Regexp
	for rows.Next() {
		var ruleType, ruleValue string
		if err := rows.Scan(&ruleType, &ruleValue); err != nil {
			return err
		}
		switch ruleType {
		case "domain":
			domains = append(domains, strings.ToLower(ruleValue))
		case "regex":
			re, err := regexp.Compile(ruleValue)
			if err != nil {
				continue // skip invalid regex
			}
			patterns = append(patterns, re)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.domainExclusions = domains
	s.regexExclusions = patterns
	s.mu.Unlock()
	return nil
}

// AddExclusions registers domain rules (typically the configured denylist)
// and refreshes the cached rule set. Existing rules are left alone.
func (s *SQLiteStore) AddExclusions(ctx context.Context, domains []string, reason string) error {
	err := RetryWithBackoff(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback() //nolint:errcheck

		for _, d := range domains {
			d = strings.ToLower(strings.TrimSpace(d))
			if d == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO exclusions (rule_type, rule_value, reason) VALUES ('domain', ?, ?)`,
				d, reason,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("add exclusions: %w", err)
	}
	return s.loadExclusions()
}

// IsExcluded reports whether domain, or any parent domain of it, is
// denylisted, or whether it matches a regex rule.
func (s *SQLiteStore) IsExcluded(domain string) bool {
	domain = strings.ToLower(domain)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.domainExclusions {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	for _, re := range s.regexExclusions {
		if re.MatchString(domain) {
			return true
		}
	}
	return false
}

// AppendEvent stores ev and trims the table to the newest capacity rows in
// the same transaction.
func (s *SQLiteStore) AppendEvent(ctx context.Context, ev behavior.Event, capacity int) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	ts := ev.Timestamp.UTC().Format(time.RFC3339Nano)

	return RetryWithBackoff(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		if _, err := tx.StmtContext(ctx, s.insertEvent).ExecContext(ctx,
			string(payload), string(ev.BehaviorType), string(ev.Category), ts,
		); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		if capacity > 0 {
			if _, err := tx.StmtContext(ctx, s.trimEvents).ExecContext(ctx, capacity); err != nil {
				return fmt.Errorf("trim events: %w", err)
			}
		}
		return tx.Commit()
	})
}

// LoadEvents returns every buffered event, oldest first. Rows whose payload
// no longer decodes are skipped.
func (s *SQLiteStore) LoadEvents(ctx context.Context) ([]behavior.Event, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM behavior_events ORDER BY seq ASC")
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []behavior.Event{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var ev behavior.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue
		}
		if ev.Keywords == nil {
			ev.Keywords = []string{}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ClearEvents deletes every buffered event.
func (s *SQLiteStore) ClearEvents(ctx context.Context) error {
	return RetryWithBackoff(ctx, func() error {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM behavior_events"); err != nil {
			return fmt.Errorf("clear events: %w", err)
		}
		return nil
	})
}

// LoadSettings returns the persisted settings. Missing keys keep their
// DefaultSettings value, so a fresh database yields the first-install state.
func (s *SQLiteStore) LoadSettings(ctx context.Context) (Settings, error) {
	out := DefaultSettings()

	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return out, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return out, fmt.Errorf("scan setting: %w", err)
		}
		switch key {
		case keyTrackingEnabled:
			out.TrackingEnabled = parseBool(value, out.TrackingEnabled)
		case keySyncEnabled:
			out.SyncEnabled = parseBool(value, out.SyncEnabled)
		case keyAuthToken:
			out.SealedToken = value
		case keyDeviceID:
			out.DeviceID = value
		}
	}
	return out, rows.Err()
}

// SaveSettings writes every settings key in one transaction.
func (s *SQLiteStore) SaveSettings(ctx context.Context, st Settings) error {
	pairs := [][2]string{
		{keyTrackingEnabled, strconv.FormatBool(st.TrackingEnabled)},
		{keySyncEnabled, strconv.FormatBool(st.SyncEnabled)},
		{keyAuthToken, st.SealedToken},
		{keyDeviceID, st.DeviceID},
	}

	return RetryWithBackoff(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		stmt := tx.StmtContext(ctx, s.upsertConfig)
		for _, p := range pairs {
			if _, err := stmt.ExecContext(ctx, p[0], p[1]); err != nil {
				return fmt.Errorf("save setting %s: %w", p[0], err)
			}
		}
		return tx.Commit()
	})
}

// RecordAudit appends an entry to the audit log.
func (s *SQLiteStore) RecordAudit(ctx context.Context, action, detail string, at time.Time) error {
	_, err := s.insertAudit.ExecContext(ctx, action, detail, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

// LastAudit returns the newest entry for any of actions, or nil when none exists.
func (s *SQLiteStore) LastAudit(ctx context.Context, actions ...string) (*AuditEntry, error) {
	if len(actions) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(actions)), ",")
	args := make([]interface{}, len(actions))
	for i, a := range actions {
		args[i] = a
	}

	var e AuditEntry
	var tsStr string
	err := s.db.QueryRowContext(ctx,
		"SELECT action, detail, ts FROM audit_log WHERE action IN ("+placeholders+") ORDER BY id DESC LIMIT 1",
		args...,
	).Scan(&e.Action, &e.Detail, &tsStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last audit: %w", err)
	}
	e.Timestamp, _ = parseTimestamp(tsStr)
	return &e, nil
}

// GetStats returns aggregate statistics about the buffer.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM behavior_events").Scan(&stats.TotalEvents)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	if stats.TotalEvents > 0 {
		var oldestStr, newestStr string
		err = s.db.QueryRowContext(ctx, "SELECT MIN(ts), MAX(ts) FROM behavior_events").Scan(&oldestStr, &newestStr)
		if err != nil {
			return nil, fmt.Errorf("event time range: %w", err)
		}
		stats.OldestEvent, _ = parseTimestamp(oldestStr)
		stats.NewestEvent, _ = parseTimestamp(newestStr)
	}

	stats.ByCategory, err = s.countBy(ctx, "category")
	if err != nil {
		return nil, err
	}
	stats.ByType, err = s.countBy(ctx, "behavior_type")
	if err != nil {
		return nil, err
	}

	stats.LastSync, err = s.LastAudit(ctx, AuditSyncOK, AuditSyncFailed)
	if err != nil {
		return nil, err
	}

	stats.DatabaseSizeBytes = s.databaseSize(ctx)
	return stats, nil
}

// countBy groups events by one of the indexed columns. column is never user input.
func (s *SQLiteStore) countBy(ctx context.Context, column string) ([]Count, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+column+", COUNT(*) AS cnt FROM behavior_events GROUP BY "+column+" ORDER BY cnt DESC, "+column+" ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("count by %s: %w", column, err)
	}
	defer rows.Close()

	out := []Count{}
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// databaseSize queries page_count * page_size, which works for both on-disk
// and in-memory databases.
func (s *SQLiteStore) databaseSize(ctx context.Context) int64 {
	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.insertEvent, s.trimEvents, s.upsertConfig, s.insertAudit} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}

func parseBool(s string, fallback bool) bool {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return v
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}
