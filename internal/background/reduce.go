// Package background is the single owner of collector state: the event
// buffer, the tracking and sync toggles, the auth token and the active-tab
// tracker. All inputs arrive as Messages; Reduce decides the next State and
// the Effects, and the Coordinator executes them one message at a time.
package background

import (
	"time"

	"github.com/runnerr0/mirrorme/internal/behavior"
)

// maxKeywords bounds keywords on events posted by external producers.
const maxKeywords = 15

// Reduce is the pure transition function. now is the coordinator clock at
// the moment m is handled.
func Reduce(s State, m Message, now time.Time) (State, []Effect) {
	switch m := m.(type) {
	case StoreBehaviorData:
		if !s.TrackingEnabled {
			return s, nil
		}
		ev := normalize(m.Event, now, s.DeviceID)
		s.QueueSize++
		if s.QueueCapacity > 0 && s.QueueSize > s.QueueCapacity {
			s.QueueSize = s.QueueCapacity
		}
		s, more := maybeSync(s)
		return s, append([]Effect{AppendEvent{Event: ev}}, more...)

	case ClearData:
		s.QueueSize = 0
		return s, []Effect{ClearQueue{Reason: "requested"}}

	case ToggleTracking:
		s.TrackingEnabled = m.Enabled
		if !m.Enabled {
			s.Tab.Reset()
		}
		return s, []Effect{PersistSettings{}}

	case SetAuthToken:
		if m.Token != nil && *m.Token != "" {
			s.AuthToken = *m.Token
			s.SyncEnabled = true
		} else {
			s.AuthToken = ""
			s.SyncEnabled = false
		}
		s, more := maybeSync(s)
		return s, append([]Effect{PersistSettings{}}, more...)

	case TabActivated:
		d, ok := s.Tab.Activate(m.TabID, now)
		if !ok || !s.TrackingEnabled {
			return s, nil
		}
		return s, []Effect{ResolveTab{Dwell: d, At: now}}

	case tabResolved:
		if m.Err != nil || !s.TrackingEnabled {
			return s, nil
		}
		return s, []Effect{RecordPage{URL: m.URL, At: m.At, Seconds: m.Dwell.Seconds}}

	case TabLoaded:
		if !s.TrackingEnabled {
			return s, nil
		}
		return s, []Effect{RecordPage{URL: m.URL, At: now}}

	case SyncTick, SyncNow:
		return maybeSync(s)

	case syncFinished:
		s.Syncing = false
		s.LastSyncAt = now
		if m.Err != nil {
			s.LastSyncErr = m.Err.Error()
			return s, nil
		}
		s.LastSyncErr = ""
		s.LastSyncSent = m.Sent
		s.QueueSize = 0
		return s, []Effect{ClearQueue{Reason: "synced"}}

	case GetBehaviorData, GetState:
		return s, nil
	}
	return s, nil
}

// maybeSync starts an upload when sync is enabled, a token is present, the
// queue is non-empty and no upload is in flight.
func maybeSync(s State) (State, []Effect) {
	if !s.SyncEnabled || s.AuthToken == "" || s.QueueSize == 0 || s.Syncing {
		return s, nil
	}
	s.Syncing = true
	return s, []Effect{StartSync{Token: s.AuthToken, Limit: s.BatchSize}}
}

// normalize enforces the invariants of buffered events regardless of who
// produced them.
func normalize(ev behavior.Event, now time.Time, deviceID string) behavior.Event {
	ev = ev.Clone()
	ev.Source = behavior.SourceExtension
	if ev.Timestamp.IsZero() {
		ev.Timestamp = now.UTC()
	}
	if !ev.Category.Valid() {
		ev.Category = behavior.CategoryGeneral
	}
	if ev.Keywords == nil {
		ev.Keywords = []string{}
	}
	if len(ev.Keywords) > maxKeywords {
		ev.Keywords = ev.Keywords[:maxKeywords]
	}
	if ev.DeviceID == "" {
		ev.DeviceID = deviceID
	}
	return ev
}
