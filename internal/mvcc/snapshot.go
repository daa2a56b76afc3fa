package mvcc

import (
	"strconv"
	"strings"
)

// Snapshot is an immutable-by-convention description of which timestamps
// are visible. Every timestamp strictly below AllCommittedBefore is
// considered committed; every timestamp at or after NoneCommittedAtOrAfter
// is guaranteed uncommitted; everything in between is resolved by explicit
// membership in the committed set.
type Snapshot struct {
	allCommittedBefore    Timestamp
	committedTimestamps   []Timestamp
	noneCommittedAtOrAfter Timestamp
}

// NewSnapshot returns the empty snapshot: nothing has ever committed.
func NewSnapshot() Snapshot {
	return Snapshot{
		allCommittedBefore:     TimestampInitial,
		noneCommittedAtOrAfter: TimestampInitial,
	}
}

// NewSnapshotAt returns a point-in-time snapshot: everything strictly below
// t is considered committed, t itself and above are not.
func NewSnapshotAt(t Timestamp) Snapshot {
	return Snapshot{
		allCommittedBefore:     t,
		noneCommittedAtOrAfter: t,
	}
}

// NewSnapshotIncludingAllOps returns a snapshot in which every timestamp is
// considered committed.
func NewSnapshotIncludingAllOps() Snapshot {
	return NewSnapshotAt(TimestampMax)
}

// NewSnapshotIncludingNoOps returns a snapshot in which no timestamp is
// considered committed.
func NewSnapshotIncludingNoOps() Snapshot {
	return NewSnapshotAt(TimestampMin)
}

// IsCommitted reports whether t is visible under this snapshot.
func (s Snapshot) IsCommitted(t Timestamp) bool {
	if t < s.allCommittedBefore {
		return true
	}
	return s.isCommittedFallback(t)
}

func (s Snapshot) isCommittedFallback(t Timestamp) bool {
	for _, v := range s.committedTimestamps {
		if v == t {
			return true
		}
	}
	return false
}

// MayHaveCommittedOpsAtOrAfter reports whether any op with timestamp >= t
// could possibly have committed under this snapshot.
func (s Snapshot) MayHaveCommittedOpsAtOrAfter(t Timestamp) bool {
	return t < s.noneCommittedAtOrAfter
}

// MayHaveUncommittedOpsAtOrBefore reports whether any op with timestamp <= t
// could possibly still be uncommitted under this snapshot.
func (s Snapshot) MayHaveUncommittedOpsAtOrBefore(t Timestamp) bool {
	return t > s.allCommittedBefore || (t == s.allCommittedBefore && !s.isCommittedFallback(t))
}

// AllCommittedBefore returns the snapshot's lower watermark.
func (s Snapshot) AllCommittedBefore() Timestamp {
	return s.allCommittedBefore
}

// IsClean reports whether the snapshot has no explicit committed entries,
// i.e. its visibility is fully described by the two watermarks.
func (s Snapshot) IsClean() bool {
	return len(s.committedTimestamps) == 0
}

// AddCommitted records t as committed, extending the upper watermark if
// necessary. It is a no-op if t is already considered committed.
func (s *Snapshot) AddCommitted(t Timestamp) {
	if s.IsCommitted(t) {
		return
	}
	s.committedTimestamps = append(s.committedTimestamps, t)
	if s.noneCommittedAtOrAfter <= t {
		s.noneCommittedAtOrAfter = t + 1
	}
}

// AddCommittedTimestamps is the batch form of AddCommitted.
func (s *Snapshot) AddCommittedTimestamps(ts []Timestamp) {
	for _, t := range ts {
		s.AddCommitted(t)
	}
}

// Equals reports whether two snapshots describe the same visibility state.
// The committed set is compared order-independently.
func (s Snapshot) Equals(other Snapshot) bool {
	if s.allCommittedBefore != other.allCommittedBefore {
		return false
	}
	if s.noneCommittedAtOrAfter != other.noneCommittedAtOrAfter {
		return false
	}
	if len(s.committedTimestamps) != len(other.committedTimestamps) {
		return false
	}
	seen := make(map[Timestamp]int, len(s.committedTimestamps))
	for _, v := range s.committedTimestamps {
		seen[v]++
	}
	for _, v := range other.committedTimestamps {
		seen[v]--
	}
	for _, n := range seen {
		if n != 0 {
			return false
		}
	}
	return true
}

// String renders the deterministic grammar used by the seed scenarios:
// "MvccSnapshot[committed={T|T < <acb>}]" when the explicit set is empty,
// otherwise "MvccSnapshot[committed={T|T < <acb> or (T in {v1,v2,...})}]"
// with explicit values in insertion order.
func (s Snapshot) String() string {
	var b strings.Builder
	b.WriteString("MvccSnapshot[committed={T|T < ")
	b.WriteString(s.allCommittedBefore.String())
	if len(s.committedTimestamps) == 0 {
		b.WriteString("}]")
		return b.String()
	}
	b.WriteString(" or (T in {")
	for i, t := range s.committedTimestamps {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(int64(t), 10))
	}
	b.WriteString("})}]")
	return b.String()
}
