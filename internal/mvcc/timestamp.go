// Package mvcc implements the multi-version concurrency control coordinator
// for a single tablet: it assigns a total order to write ops, tracks which
// are in flight versus durably committed, and publishes point-in-time
// snapshots readers use to decide visibility.
package mvcc

import (
	"fmt"
	"math"
)

// Timestamp is an opaque, totally ordered logical instant. Only comparison
// and +1 are meaningful operations; callers must not interpret the value as
// wall time.
type Timestamp int64

const (
	// TimestampMin is the absolute floor, below every real op timestamp.
	TimestampMin Timestamp = 0
	// TimestampInitial is the value a fresh coordinator's clean watermark
	// holds before any op has ever been assigned a timestamp. It is
	// distinct from TimestampMin: real op timestamps start at 1 (the first
	// value a logical clock's Now() returns), so INITIAL marks "nothing
	// has happened yet" one step above the absolute floor.
	TimestampInitial Timestamp = 1
	// TimestampMax sorts after every timestamp a real op can carry.
	TimestampMax Timestamp = math.MaxInt64
)

func (t Timestamp) String() string {
	switch t {
	case TimestampMin:
		return "MIN"
	case TimestampMax:
		return "MAX"
	default:
		return fmt.Sprintf("%d", int64(t))
	}
}

// OpState is the state of a single op inside the in-flight table. There is
// no terminal state: commit and abort both remove the entry.
type OpState int

const (
	// Reserved means the timestamp has been reserved but the op has not yet
	// entered its apply phase.
	Reserved OpState = iota
	// Applying means the op has entered its commit-point-sensitive apply
	// phase and may no longer be aborted.
	Applying
)

func (s OpState) String() string {
	switch s {
	case Reserved:
		return "RESERVED"
	case Applying:
		return "APPLYING"
	default:
		return fmt.Sprintf("OpState(%d)", int(s))
	}
}
