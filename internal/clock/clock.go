// Package clock defines the timestamp source for ops the mvcc coordinator
// tracks. The coordinator itself never reads a clock: callers take a
// timestamp from a Clock and pass it in, which lets tests use a
// deterministic logical clock.
package clock

import (
	"time"

	"github.com/mycastiel/kudu/internal/mvcc"
)

// Clock produces the timestamps the mvcc coordinator assigns to ops.
type Clock interface {
	// Now returns a monotonically non-decreasing timestamp.
	Now() mvcc.Timestamp

	// NowLatest returns a timestamp guaranteed to be in the future of any
	// concurrent caller of Now, for use by commit-wait callers.
	NowLatest() mvcc.Timestamp

	// Update advances the clock to at least ts.
	Update(ts mvcc.Timestamp) error

	// WaitUntilAfter blocks until the clock is guaranteed to have passed ts,
	// or the deadline elapses.
	WaitUntilAfter(ts mvcc.Timestamp, deadline time.Time) error
}
