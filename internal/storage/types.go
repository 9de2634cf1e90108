package storage

import "time"

// Settings is the persisted subset of the coordinator state. SealedToken is
// the age ciphertext of the ingestion token, never the token itself.
type Settings struct {
	TrackingEnabled bool
	SyncEnabled     bool
	SealedToken     string
	DeviceID        string
}

// DefaultSettings is the first-install state: tracking on, sync off.
func DefaultSettings() Settings {
	return Settings{TrackingEnabled: true}
}

// Stats holds aggregate statistics about the local buffer.
type Stats struct {
	TotalEvents       int64
	OldestEvent       time.Time
	NewestEvent       time.Time
	DatabaseSizeBytes int64
	ByCategory        []Count
	ByType            []Count
	LastSync          *AuditEntry
}

// Count pairs a grouping key (category or behavior type) with a row count.
type Count struct {
	Key   string
	Count int64
}

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	Action    string
	Detail    string
	Timestamp time.Time
}

// Audit actions.
const (
	AuditSyncOK     = "sync_ok"
	AuditSyncFailed = "sync_failed"
	AuditClear      = "clear"
)
