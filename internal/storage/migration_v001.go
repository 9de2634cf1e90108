package storage

import "database/sql"

// migrateV001 creates the event buffer and the settings table. Every
// statement uses IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS behavior_events (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			payload       TEXT NOT NULL,
			behavior_type TEXT NOT NULL,
			category      TEXT NOT NULL,
			ts            DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_behavior_events_ts       ON behavior_events(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_behavior_events_category ON behavior_events(category)`,
		`CREATE INDEX IF NOT EXISTS idx_behavior_events_type     ON behavior_events(behavior_type)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// migrateV002 adds capture exclusions and the audit log.
func migrateV002(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS exclusions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			rule_type  TEXT NOT NULL CHECK (rule_type IN ('domain', 'regex')),
			rule_value TEXT NOT NULL,
			reason     TEXT NOT NULL DEFAULT '',
			is_default BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(rule_type, rule_value)
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id     INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			ts     DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action, ts)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return seedDefaultExclusions(tx)
}

// seedDefaultExclusions inserts pattern rules that a plain domain list cannot
// express. Domain rules come from the configured denylist at open time.
func seedDefaultExclusions(tx *sql.Tx) error {
	defaults := []struct {
		value  string
		reason string
	}{
		{`.*\.xxx$`, "Adult content exclusion"},
		{`.*pornhub\.com$`, "Adult content exclusion"},
	}

	const insertSQL = `INSERT OR IGNORE INTO exclusions (rule_type, rule_value, reason, is_default) VALUES ('regex', ?, ?, 1)`
	for _, r := range defaults {
		if _, err := tx.Exec(insertSQL, r.value, r.reason); err != nil {
			return err
		}
	}
	return nil
}
