package background

import (
	"time"

	"github.com/runnerr0/mirrorme/internal/behavior"
	"github.com/runnerr0/mirrorme/internal/tabs"
)

// Message is the closed set of inputs the coordinator handles.
type Message interface {
	isMessage()
}

// StoreBehaviorData asks the coordinator to buffer an event.
type StoreBehaviorData struct {
	Event behavior.Event
}

// GetBehaviorData returns every buffered event.
type GetBehaviorData struct{}

// ClearData empties the buffer.
type ClearData struct{}

// ToggleTracking turns capture on or off.
type ToggleTracking struct {
	Enabled bool
}

// SetAuthToken stores the ingestion token. A nil Token logs out and
// disables sync.
type SetAuthToken struct {
	Token *string
}

// TabActivated reports that TabID moved to the foreground.
type TabActivated struct {
	TabID int
}

// TabLoaded reports that TabID finished loading URL.
type TabLoaded struct {
	TabID int
	URL   string
}

// SyncTick is delivered by the periodic sync timer.
type SyncTick struct{}

// SyncNow requests an immediate sync attempt.
type SyncNow struct{}

// GetState returns a StateView.
type GetState struct{}

// tabResolved carries the URL of a tab whose dwell was measured.
type tabResolved struct {
	Dwell tabs.Dwell
	URL   string
	At    time.Time
	Err   error
}

// syncFinished reports the outcome of an upload.
type syncFinished struct {
	Sent int
	Err  error
}

func (StoreBehaviorData) isMessage() {}
func (GetBehaviorData) isMessage()   {}
func (ClearData) isMessage()         {}
func (ToggleTracking) isMessage()    {}
func (SetAuthToken) isMessage()      {}
func (TabActivated) isMessage()      {}
func (TabLoaded) isMessage()         {}
func (SyncTick) isMessage()          {}
func (SyncNow) isMessage()           {}
func (GetState) isMessage()          {}
func (tabResolved) isMessage()       {}
func (syncFinished) isMessage()      {}

// Effect is work the coordinator performs after a state transition.
type Effect interface {
	isEffect()
}

// AppendEvent appends to the persistent queue.
type AppendEvent struct {
	Event behavior.Event
}

// ClearQueue empties the persistent queue.
type ClearQueue struct {
	Reason string
}

// PersistSettings writes toggles, the sealed token and the device id.
type PersistSettings struct{}

// ResolveTab looks up the URL of the tab a dwell belongs to.
type ResolveTab struct {
	Dwell tabs.Dwell
	At    time.Time
}

// RecordPage turns a page URL into a visit (Seconds == 0) or time_spent
// event, subject to scheme and denylist filtering.
type RecordPage struct {
	URL     string
	At      time.Time
	Seconds int
}

// StartSync uploads the newest Limit events with Token.
type StartSync struct {
	Token string
	Limit int
}

func (AppendEvent) isEffect()     {}
func (ClearQueue) isEffect()      {}
func (PersistSettings) isEffect() {}
func (ResolveTab) isEffect()      {}
func (RecordPage) isEffect()      {}
func (StartSync) isEffect()       {}
