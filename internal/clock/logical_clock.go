package clock

import (
	"sync"
	"time"

	"github.com/mycastiel/kudu/internal/mvcc"
)

// LogicalClock is the deterministic clock used by coordinator tests. Now
// increments an internal counter and returns the post-increment value, so
// callers that need to predict the timestamp a future Now call will
// produce must count their own calls exactly, as the original source's
// logical clock variant does.
type LogicalClock struct {
	mu      sync.Mutex
	counter int64
}

// NewLogicalClock returns a clock whose counter starts at Timestamp MIN, so
// the first Now call returns TimestampInitial.
func NewLogicalClock() *LogicalClock {
	return &LogicalClock{counter: int64(mvcc.TimestampMin)}
}

// NewLogicalClockAt returns a clock whose counter starts at the given value,
// without incrementing it. Useful for seeding tests at a known point.
func NewLogicalClockAt(initial mvcc.Timestamp) *LogicalClock {
	return &LogicalClock{counter: int64(initial)}
}

func (c *LogicalClock) Now() mvcc.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counter++
	return mvcc.Timestamp(c.counter)
}

// Peek returns the current counter value without incrementing it, for
// assertions that must not perturb a subsequent Now call.
func (c *LogicalClock) Peek() mvcc.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return mvcc.Timestamp(c.counter)
}

func (c *LogicalClock) NowLatest() mvcc.Timestamp {
	return c.Now()
}

func (c *LogicalClock) Update(ts mvcc.Timestamp) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if int64(ts) > c.counter {
		c.counter = int64(ts)
	}
	return nil
}

func (c *LogicalClock) WaitUntilAfter(ts mvcc.Timestamp, deadline time.Time) error {
	for {
		if c.Peek() > ts {
			return nil
		}
		if time.Now().After(deadline) {
			return mvcc.ErrTimedOut("logical clock", ts)
		}
		time.Sleep(time.Millisecond)
	}
}
