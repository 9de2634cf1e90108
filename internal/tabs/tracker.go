// Package tabs tracks which browser tab is in the foreground and how long it
// stayed there.
package tabs

import "time"

// MinDwell is the shortest foreground time that produces a Dwell.
const MinDwell = 5 * time.Second

// Dwell reports that a tab was in the foreground for Seconds whole seconds
// before another tab was activated.
type Dwell struct {
	TabID   int
	Seconds int
}

// Tracker holds the active tab and the instant it became active. The zero
// value has no active tab. A Tracker is not safe for concurrent use; the
// coordinator owns it.
type Tracker struct {
	ActiveTabID int
	StartTime   time.Time
}

// Active reports whether a tab is currently tracked.
func (t *Tracker) Active() bool {
	return !t.StartTime.IsZero()
}

// Activate records id as the foreground tab at now. When the previously
// active tab stayed in front for more than MinDwell, the elapsed time is
// returned as a Dwell and ok is true. Clocks that step backwards yield no
// dwell.
func (t *Tracker) Activate(id int, now time.Time) (d Dwell, ok bool) {
	if t.Active() {
		elapsed := now.Sub(t.StartTime)
		if elapsed > MinDwell {
			d = Dwell{TabID: t.ActiveTabID, Seconds: int(elapsed / time.Second)}
			ok = true
		}
	}
	t.ActiveTabID = id
	t.StartTime = now
	return d, ok
}

// Reset forgets the active tab.
func (t *Tracker) Reset() {
	*t = Tracker{}
}
