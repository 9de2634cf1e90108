package background

import (
	"time"

	"github.com/runnerr0/mirrorme/internal/tabs"
)

// State is everything the reducer decides on. AuthToken is plaintext and
// exists only in memory; the coordinator seals it before persisting.
type State struct {
	TrackingEnabled bool
	SyncEnabled     bool
	AuthToken       string
	DeviceID        string

	Tab tabs.Tracker

	QueueSize     int
	QueueCapacity int
	BatchSize     int

	Syncing      bool
	LastSyncAt   time.Time
	LastSyncErr  string
	LastSyncSent int
}

// InitialState is the first-install state.
func InitialState(capacity, batch int) State {
	return State{
		TrackingEnabled: true,
		QueueCapacity:   capacity,
		BatchSize:       batch,
	}
}

// StateView is the externally visible summary returned by GetState. The
// token itself is never exposed.
type StateView struct {
	TrackingEnabled bool       `json:"tracking_enabled"`
	SyncEnabled     bool       `json:"sync_enabled"`
	Authenticated   bool       `json:"authenticated"`
	DeviceID        string     `json:"device_id"`
	QueueSize       int        `json:"queue_size"`
	QueueCapacity   int        `json:"queue_capacity"`
	ActiveTabID     *int       `json:"active_tab_id,omitempty"`
	Syncing         bool       `json:"syncing"`
	LastSyncAt      *time.Time `json:"last_sync_at,omitempty"`
	LastSyncError   string     `json:"last_sync_error,omitempty"`
	LastSyncSent    int        `json:"last_sync_sent,omitempty"`
}

func (s State) View() StateView {
	v := StateView{
		TrackingEnabled: s.TrackingEnabled,
		SyncEnabled:     s.SyncEnabled,
		Authenticated:   s.AuthToken != "",
		DeviceID:        s.DeviceID,
		QueueSize:       s.QueueSize,
		QueueCapacity:   s.QueueCapacity,
		Syncing:         s.Syncing,
		LastSyncError:   s.LastSyncErr,
		LastSyncSent:    s.LastSyncSent,
	}
	if s.Tab.Active() {
		id := s.Tab.ActiveTabID
		v.ActiveTabID = &id
	}
	if !s.LastSyncAt.IsZero() {
		at := s.LastSyncAt
		v.LastSyncAt = &at
	}
	return v
}
