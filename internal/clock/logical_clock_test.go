package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mycastiel/kudu/internal/mvcc"
)

func TestLogicalClock_FirstNowReturnsInitial(t *testing.T) {
	c := NewLogicalClock()
	assert.Equal(t, mvcc.TimestampInitial, c.Now())
}

func TestLogicalClock_NowIncrementsOnEveryCall(t *testing.T) {
	c := NewLogicalClock()
	assert.Equal(t, mvcc.Timestamp(1), c.Now())
	assert.Equal(t, mvcc.Timestamp(2), c.Now())
	assert.Equal(t, mvcc.Timestamp(3), c.Now())
}

func TestLogicalClock_PeekDoesNotIncrement(t *testing.T) {
	c := NewLogicalClock()
	c.Now()
	before := c.Peek()
	assert.Equal(t, before, c.Peek())
}

func TestLogicalClock_UpdateAdvancesToMax(t *testing.T) {
	c := NewLogicalClockAt(1)
	assert.NoError(t, c.Update(10))
	assert.Equal(t, mvcc.Timestamp(10), c.Peek())

	// Update with a lower value never regresses the counter.
	assert.NoError(t, c.Update(5))
	assert.Equal(t, mvcc.Timestamp(10), c.Peek())
}

func TestLogicalClock_NowLatestDelegatesToNow(t *testing.T) {
	c := NewLogicalClockAt(0)
	assert.Equal(t, mvcc.Timestamp(1), c.NowLatest())
}

func TestLogicalClock_WaitUntilAfterReturnsOnceAdvanced(t *testing.T) {
	c := NewLogicalClockAt(5)
	go func() {
		time.Sleep(5 * time.Millisecond)
		c.Update(10)
	}()
	err := c.WaitUntilAfter(5, time.Now().Add(time.Second))
	assert.NoError(t, err)
}

func TestLogicalClock_WaitUntilAfterTimesOut(t *testing.T) {
	c := NewLogicalClockAt(5)
	err := c.WaitUntilAfter(5, time.Now().Add(10*time.Millisecond))
	assert.Error(t, err)
	assert.True(t, mvcc.IsTimedOut(err))
}
