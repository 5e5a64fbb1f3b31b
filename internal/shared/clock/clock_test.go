package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestFakeAdvanceFiresInOrder(t *testing.T) {
	c := NewFake(epoch)
	var order []string

	c.AfterFunc(300*time.Millisecond, func() { order = append(order, "c") })
	c.AfterFunc(100*time.Millisecond, func() { order = append(order, "a") })
	c.AfterFunc(200*time.Millisecond, func() { order = append(order, "b") })

	c.Advance(250 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, 1, c.Pending())

	c.Advance(50 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, epoch.Add(300*time.Millisecond), c.Now())
}

func TestFakeStop(t *testing.T) {
	c := NewFake(epoch)
	fired := false

	timer := c.AfterFunc(time.Second, func() { fired = true })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	c.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestFakeCallbackSchedulesWithinWindow(t *testing.T) {
	c := NewFake(epoch)
	var at []time.Duration

	c.AfterFunc(time.Second, func() {
		at = append(at, c.Now().Sub(epoch))
		c.AfterFunc(time.Second, func() {
			at = append(at, c.Now().Sub(epoch))
		})
	})

	c.Advance(5 * time.Second)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, at)
	assert.Equal(t, 0, c.Pending())
}

func TestFakeDeadlines(t *testing.T) {
	c := NewFake(epoch)
	c.AfterFunc(5*time.Minute, func() {})
	c.AfterFunc(time.Minute, func() {})

	c.Advance(30 * time.Second)
	assert.Equal(t, []time.Duration{30 * time.Second, 270 * time.Second}, c.Deadlines())
}

func TestRealAfterFunc(t *testing.T) {
	c := New()
	done := make(chan struct{})

	c.AfterFunc(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "timer did not fire")
	}

	stopped := c.AfterFunc(time.Hour, func() {})
	assert.True(t, stopped.Stop())
}
