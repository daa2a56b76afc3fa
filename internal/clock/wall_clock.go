package clock

import (
	"time"

	"go.uber.org/atomic"

	"github.com/mycastiel/kudu/internal/mvcc"
)

// WallClock is the production Clock: timestamps are wall-clock nanoseconds
// since the Unix epoch. Now is strictly increasing because it never hands
// out a value at or below the last one: if the wall clock has not moved
// past it, Now returns the last value plus one. Update folds in an
// externally observed value via a compare-and-swap loop so concurrent
// callers never regress it.
type WallClock struct {
	latest atomic.Int64
}

// NewWallClock returns a clock seeded at the current time.
func NewWallClock() *WallClock {
	c := &WallClock{}
	c.latest.Store(time.Now().UnixNano())
	return c
}

func (c *WallClock) Now() mvcc.Timestamp {
	for {
		now := time.Now().UnixNano()
		prev := c.latest.Load()
		if now <= prev {
			now = prev + 1
		}
		if c.latest.CAS(prev, now) {
			return mvcc.Timestamp(now)
		}
	}
}

// NowLatest pads the current wall time forward by a generous margin so the
// returned timestamp is guaranteed to be in the future of any concurrent
// Now caller, for commit-wait use.
func (c *WallClock) NowLatest() mvcc.Timestamp {
	return c.Now() + mvcc.Timestamp(time.Millisecond)
}

func (c *WallClock) Update(ts mvcc.Timestamp) error {
	for {
		prev := c.latest.Load()
		if int64(ts) <= prev {
			return nil
		}
		if c.latest.CAS(prev, int64(ts)) {
			return nil
		}
	}
}

func (c *WallClock) WaitUntilAfter(ts mvcc.Timestamp, deadline time.Time) error {
	for {
		if c.latest.Load() > int64(ts) {
			return nil
		}
		if time.Now().After(deadline) {
			return mvcc.ErrTimedOut("wall clock", ts)
		}
		time.Sleep(time.Millisecond)
	}
}
