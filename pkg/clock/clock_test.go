package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManualFiresInOrder(t *testing.T) {
	c := NewManual(epoch)
	var fired []string
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	c.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	c.AfterFunc(5*time.Second, func() { fired = append(fired, "c") })

	c.Advance(3 * time.Second)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, epoch.Add(3*time.Second), c.Now())
	assert.Equal(t, 1, c.Pending())

	next, ok := c.NextIn()
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, next)
}

func TestManualStop(t *testing.T) {
	c := NewManual(epoch)
	ran := false
	tm := c.AfterFunc(time.Second, func() { ran = true })

	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop(), "second stop reports nothing prevented")
	c.Advance(time.Minute)
	assert.False(t, ran)
	assert.Zero(t, c.Pending())
}

func TestManualRearmDuringAdvance(t *testing.T) {
	c := NewManual(epoch)
	var at []time.Duration
	var tick func()
	tick = func() {
		at = append(at, c.Now().Sub(epoch))
		c.AfterFunc(10*time.Second, tick)
	}
	c.AfterFunc(0, tick)

	c.Advance(25 * time.Second)
	assert.Equal(t, []time.Duration{0, 10 * time.Second, 20 * time.Second}, at)
}

func TestManualAdvanceZeroFiresDue(t *testing.T) {
	c := NewManual(epoch)
	ran := false
	tm := c.AfterFunc(0, func() { ran = true })
	c.Advance(0)
	assert.True(t, ran)
	assert.False(t, tm.Stop(), "fired timer cannot be stopped")
}

func TestRealClock(t *testing.T) {
	c := Real()
	done := make(chan struct{})
	c.AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real timer never fired")
	}
	assert.WithinDuration(t, time.Now(), c.Now(), time.Second)
}
