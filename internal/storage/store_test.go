package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/mirrorme/internal/behavior"
)

// openTestStore creates a migrated in-memory Store for testing.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var ts0 = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func sampleEvent(i int, c behavior.Category) behavior.Event {
	return behavior.New(behavior.TypeVisit, c, ts0.Add(time.Duration(i)*time.Minute)).
		WithKeywords([]string{"example.com", "item"}).
		WithDuration(i)
}

// --- events ---

func TestAppendEvent_LoadEvents_Roundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	ev := behavior.New(behavior.TypeTweetView, behavior.CategorySocial, ts0).
		WithKeywords([]string{"golang", "release"}).
		WithContent("Go 1.24 is out", behavior.ShortContentLimit).
		WithAnalysis(behavior.SentimentPositive, behavior.TiltNeutral, 0.5).
		WithAuthor("@golang").
		WithDeviceID("dev-1")
	require.NoError(t, store.AppendEvent(ctx, ev, 1000))

	got, err := store.LoadEvents(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ev, got[0])
}

func TestAppendEvent_TrimsToCapacity(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 7; i++ {
		require.NoError(t, store.AppendEvent(ctx, sampleEvent(i, behavior.CategoryGeneral), 5))
	}

	got, err := store.LoadEvents(ctx)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, 3, *got[0].SessionDuration)
	assert.Equal(t, 7, *got[4].SessionDuration)
}

func TestLoadEvents_EmptyIsNotNil(t *testing.T) {
	store := openTestStore(t)
	got, err := store.LoadEvents(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLoadEvents_SkipsCorruptPayload(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.db.Exec(`INSERT INTO behavior_events (payload, behavior_type, category, ts) VALUES ('{not json', 'visit', 'general', ?)`,
		ts0.Format(time.RFC3339))
	require.NoError(t, err)
	require.NoError(t, store.AppendEvent(ctx, sampleEvent(1, behavior.CategoryNews), 10))

	got, err := store.LoadEvents(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, behavior.CategoryNews, got[0].Category)
}

func TestClearEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.AppendEvent(ctx, sampleEvent(i, behavior.CategoryGeneral), 10))
	}
	require.NoError(t, store.ClearEvents(ctx))

	got, err := store.LoadEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// --- settings ---

func TestLoadSettings_FirstInstallDefaults(t *testing.T) {
	store := openTestStore(t)
	got, err := store.LoadSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Settings{TrackingEnabled: true}, got)
}

func TestSaveSettings_Roundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	want := Settings{TrackingEnabled: false, SyncEnabled: true, SealedToken: "c2VhbGVk", DeviceID: "abc"}
	require.NoError(t, store.SaveSettings(ctx, want))
	got, err := store.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	want.SealedToken = ""
	want.SyncEnabled = false
	require.NoError(t, store.SaveSettings(ctx, want))
	got, err = store.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadSettings_IgnoresGarbageBooleans(t *testing.T) {
	store := openTestStore(t)
	_, err := store.db.Exec(`INSERT INTO settings (key, value) VALUES ('is_enabled', 'maybe')`)
	require.NoError(t, err)

	got, err := store.LoadSettings(context.Background())
	require.NoError(t, err)
	assert.True(t, got.TrackingEnabled)
}

// --- exclusions ---

func TestIsExcluded(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.AddExclusions(context.Background(), []string{"Chase.com", " ", "mychart.com"}, "denylist"))

	tests := []struct {
		domain string
		want   bool
	}{
		{"chase.com", true},
		{"secure.chase.com", true},
		{"notchase.com", false},
		{"mychart.com", true},
		{"example.xxx", true},
		{"www.pornhub.com", true},
		{"github.com", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, store.IsExcluded(tt.domain), tt.domain)
	}
}

func TestAddExclusions_Idempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddExclusions(ctx, []string{"chase.com"}, "denylist"))
	require.NoError(t, store.AddExclusions(ctx, []string{"chase.com"}, "denylist"))

	var count int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM exclusions WHERE rule_type = 'domain'").Scan(&count))
	assert.Equal(t, 1, count)
}

// --- audit + stats ---

func TestGetStats_Empty(t *testing.T) {
	store := openTestStore(t)
	stats, err := store.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalEvents)
	assert.True(t, stats.OldestEvent.IsZero())
	assert.Empty(t, stats.ByCategory)
	assert.Nil(t, stats.LastSync)
	assert.Greater(t, stats.DatabaseSizeBytes, int64(0))
}

func TestGetStats_Counts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendEvent(ctx, sampleEvent(1, behavior.CategoryNews), 10))
	require.NoError(t, store.AppendEvent(ctx, sampleEvent(2, behavior.CategoryNews), 10))
	require.NoError(t, store.AppendEvent(ctx, sampleEvent(3, behavior.CategoryTechnology), 10))
	require.NoError(t, store.RecordAudit(ctx, AuditSyncFailed, "status 500", ts0))
	require.NoError(t, store.RecordAudit(ctx, AuditSyncOK, "3 events", ts0.Add(time.Minute)))
	require.NoError(t, store.RecordAudit(ctx, AuditClear, "", ts0.Add(2*time.Minute)))

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalEvents)
	assert.Equal(t, ts0.Add(time.Minute), stats.OldestEvent.UTC())
	assert.Equal(t, ts0.Add(3*time.Minute), stats.NewestEvent.UTC())
	assert.Equal(t, []Count{{"news", 2}, {"technology", 1}}, stats.ByCategory)
	assert.Equal(t, []Count{{"visit", 3}}, stats.ByType)

	require.NotNil(t, stats.LastSync)
	assert.Equal(t, AuditSyncOK, stats.LastSync.Action)
	assert.Equal(t, "3 events", stats.LastSync.Detail)
}

func TestLastAudit_NoActions(t *testing.T) {
	store := openTestStore(t)
	e, err := store.LastAudit(context.Background())
	require.NoError(t, err)
	assert.Nil(t, e)
}

// --- open + retry ---

func TestOpen_OnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mirrorme.db")
	ctx := context.Background()

	db, err := Open(ctx, path)
	require.NoError(t, err)
	store, err := NewSQLiteStore(db)
	require.NoError(t, err)
	require.NoError(t, store.AppendEvent(ctx, sampleEvent(1, behavior.CategoryGeneral), 10))
	store.Close()
	require.NoError(t, db.Close())

	db, err = Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()
	store, err = NewSQLiteStore(db)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.LoadEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRetryWithBackoff_RetriesBusy(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return sqlite3.Error{Code: sqlite3.ErrBusy}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_StopsOnOtherErrors(t *testing.T) {
	boom := errors.New("UNIQUE constraint failed")
	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}
