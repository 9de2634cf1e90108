package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFuncFiresOnAdvance(t *testing.T) {
	c := Fake(epoch)
	fired := 0
	c.AfterFunc(2*time.Second, func() { fired++ })

	c.Advance(1999 * time.Millisecond)
	assert.Equal(t, 0, fired)

	c.Advance(time.Millisecond)
	assert.Equal(t, 1, fired)

	c.Advance(time.Hour)
	assert.Equal(t, 1, fired)
}

func TestFakeTimerStop(t *testing.T) {
	c := Fake(epoch)
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	c.Advance(2 * time.Second)
	assert.False(t, fired)
	assert.Equal(t, 0, c.PendingTimers())
}

func TestFakeCallbackSeesDeadlineTime(t *testing.T) {
	c := Fake(epoch)
	var seen time.Time
	c.AfterFunc(3*time.Second, func() { seen = c.Now() })
	c.Advance(10 * time.Second)

	assert.Equal(t, epoch.Add(3*time.Second), seen)
	assert.Equal(t, epoch.Add(10*time.Second), c.Now())
}

func TestFakeCallbackMayRearm(t *testing.T) {
	c := Fake(epoch)
	count := 0
	var arm func()
	arm = func() {
		count++
		if count < 3 {
			c.AfterFunc(time.Second, arm)
		}
	}
	c.AfterFunc(time.Second, arm)
	c.Advance(5 * time.Second)
	assert.Equal(t, 3, count)
}

func TestFakeTicker(t *testing.T) {
	c := Fake(epoch)
	tk := c.NewTicker(time.Minute)
	defer tk.Stop()

	c.Advance(30 * time.Second)
	select {
	case <-tk.C:
		t.Fatal("tick before interval")
	default:
	}

	c.Advance(30 * time.Second)
	select {
	case at := <-tk.C:
		assert.Equal(t, epoch.Add(time.Minute), at)
	default:
		t.Fatal("expected tick")
	}
}
