// Package queue is the bounded, ordered buffer of behavior events awaiting
// upload. The in-memory slice is authoritative for the running process and
// every mutation is written through to a Backend so the buffer survives
// restarts.
package queue

import (
	"context"
	"fmt"

	"github.com/runnerr0/mirrorme/internal/behavior"
)

// DefaultCapacity is the maximum number of buffered events.
const DefaultCapacity = 1000

// Backend persists queue mutations. AppendEvent must leave at most capacity
// rows, dropping the oldest.
type Backend interface {
	AppendEvent(ctx context.Context, ev behavior.Event, capacity int) error
	ClearEvents(ctx context.Context) error
}

// Queue is not safe for concurrent use; the coordinator goroutine owns it.
type Queue struct {
	capacity int
	events   []behavior.Event
	backend  Backend
}

// New returns a Queue seeded with initial (oldest first). When initial holds
// more than capacity events only the newest capacity are kept. backend may
// be nil for a memory-only queue.
func New(capacity int, backend Backend, initial []behavior.Event) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if len(initial) > capacity {
		initial = initial[len(initial)-capacity:]
	}
	events := make([]behavior.Event, 0, len(initial))
	for _, ev := range initial {
		events = append(events, ev.Clone())
	}
	return &Queue{capacity: capacity, events: events, backend: backend}
}

// Append adds ev at the tail, evicting from the head until the queue fits.
// The new event is never dropped. The returned error reports a backend
// failure only; the in-memory append has happened regardless.
func (q *Queue) Append(ctx context.Context, ev behavior.Event) error {
	q.events = append(q.events, ev.Clone())
	if over := len(q.events) - q.capacity; over > 0 {
		copy(q.events, q.events[over:])
		for i := len(q.events) - over; i < len(q.events); i++ {
			q.events[i] = behavior.Event{}
		}
		q.events = q.events[:len(q.events)-over]
	}
	if q.backend == nil {
		return nil
	}
	if err := q.backend.AppendEvent(ctx, ev, q.capacity); err != nil {
		return fmt.Errorf("persist event: %w", err)
	}
	return nil
}

// Last returns copies of the newest min(n, Size()) events in capture order
// without removing them.
func (q *Queue) Last(n int) []behavior.Event {
	if n <= 0 {
		return []behavior.Event{}
	}
	if n > len(q.events) {
		n = len(q.events)
	}
	return cloneAll(q.events[len(q.events)-n:])
}

// All returns copies of every buffered event, oldest first.
func (q *Queue) All() []behavior.Event {
	return cloneAll(q.events)
}

// Clear empties the queue. Like Append, the in-memory clear always happens.
func (q *Queue) Clear(ctx context.Context) error {
	q.events = q.events[:0]
	if q.backend == nil {
		return nil
	}
	if err := q.backend.ClearEvents(ctx); err != nil {
		return fmt.Errorf("clear persisted events: %w", err)
	}
	return nil
}

func (q *Queue) Size() int { return len(q.events) }

func (q *Queue) Capacity() int { return q.capacity }

func cloneAll(in []behavior.Event) []behavior.Event {
	out := make([]behavior.Event, len(in))
	for i, ev := range in {
		out[i] = ev.Clone()
	}
	return out
}
