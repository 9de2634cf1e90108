package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/mirrorme/internal/behavior"
)

var base = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

func event(i int) behavior.Event {
	return behavior.New(behavior.TypeVisit, behavior.CategoryGeneral, base.Add(time.Duration(i)*time.Second)).
		WithKeywords([]string{"k"}).
		WithDuration(i)
}

type recordingBackend struct {
	appended []behavior.Event
	clears   int
	err      error
}

func (b *recordingBackend) AppendEvent(_ context.Context, ev behavior.Event, capacity int) error {
	b.appended = append(b.appended, ev)
	if len(b.appended) > capacity {
		b.appended = b.appended[len(b.appended)-capacity:]
	}
	return b.err
}

func (b *recordingBackend) ClearEvents(context.Context) error {
	b.clears++
	b.appended = nil
	return b.err
}

func TestAppend_EvictsOldestFirst(t *testing.T) {
	q := New(DefaultCapacity, nil, nil)
	ctx := context.Background()
	for i := 1; i <= 1001; i++ {
		require.NoError(t, q.Append(ctx, event(i)))
	}

	all := q.All()
	require.Len(t, all, 1000)
	assert.Equal(t, 2, *all[0].SessionDuration)
	assert.Equal(t, 1001, *all[999].SessionDuration)
}

func TestAppend_NeverExceedsCapacity(t *testing.T) {
	q := New(3, nil, nil)
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Append(context.Background(), event(i)))
		assert.LessOrEqual(t, q.Size(), 3)
	}
	assert.Equal(t, 3, q.Size())
}

func TestLast(t *testing.T) {
	q := New(10, nil, nil)
	for i := 1; i <= 5; i++ {
		require.NoError(t, q.Append(context.Background(), event(i)))
	}

	last := q.Last(2)
	require.Len(t, last, 2)
	assert.Equal(t, 4, *last[0].SessionDuration)
	assert.Equal(t, 5, *last[1].SessionDuration)
	assert.Equal(t, 5, q.Size(), "Last does not remove")

	assert.Len(t, q.Last(50), 5)
	assert.Empty(t, q.Last(0))
}

func TestLast_ReturnsCopies(t *testing.T) {
	q := New(10, nil, nil)
	require.NoError(t, q.Append(context.Background(), event(1)))

	got := q.Last(1)
	got[0].Keywords[0] = "mutated"
	*got[0].SessionDuration = 99

	again := q.Last(1)
	assert.Equal(t, "k", again[0].Keywords[0])
	assert.Equal(t, 1, *again[0].SessionDuration)
}

func TestAppend_CopiesInput(t *testing.T) {
	q := New(10, nil, nil)
	ev := event(1)
	require.NoError(t, q.Append(context.Background(), ev))
	ev.Keywords[0] = "changed"
	assert.Equal(t, "k", q.All()[0].Keywords[0])
}

func TestClear(t *testing.T) {
	b := &recordingBackend{}
	q := New(10, b, nil)
	require.NoError(t, q.Append(context.Background(), event(1)))
	require.NoError(t, q.Clear(context.Background()))

	assert.Equal(t, 0, q.Size())
	assert.Equal(t, 1, b.clears)
}

func TestBackendWriteThrough(t *testing.T) {
	b := &recordingBackend{}
	q := New(2, b, nil)
	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Append(context.Background(), event(i)))
	}
	require.Len(t, b.appended, 2)
	assert.Equal(t, q.All(), b.appended)
}

func TestBackendFailureKeepsMemory(t *testing.T) {
	b := &recordingBackend{err: errors.New("disk full")}
	q := New(10, b, nil)

	err := q.Append(context.Background(), event(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, q.Size())

	require.Error(t, q.Clear(context.Background()))
	assert.Equal(t, 0, q.Size())
}

func TestNew_SeedsFromInitial(t *testing.T) {
	var initial []behavior.Event
	for i := 1; i <= 5; i++ {
		initial = append(initial, event(i))
	}
	q := New(3, nil, initial)

	all := q.All()
	require.Len(t, all, 3)
	assert.Equal(t, 3, *all[0].SessionDuration)
	assert.Equal(t, 3, q.Capacity())
}

func TestNew_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New(0, nil, nil).Capacity())
}
