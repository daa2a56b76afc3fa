package mvcc

import (
	"sync"
	"time"

	"github.com/google/btree"
	"go.uber.org/atomic"

	"github.com/mycastiel/kudu/config"
	"github.com/mycastiel/kudu/internal/metrics"
	"github.com/mycastiel/kudu/log"
)

const defaultLowerBoundWarnInterval = 10 * time.Second

// inFlightEntry is the btree.Item backing the coordinator's in-flight
// table. The table is ordered on timestamp so that recomputing
// earliestInFlight and enumerating applying ops are cheap ordered scans.
type inFlightEntry struct {
	ts    Timestamp
	state OpState
}

func (e *inFlightEntry) Less(than btree.Item) bool {
	return e.ts < than.(*inFlightEntry).ts
}

// Coordinator is the per-tablet MVCC coordinator. All mutation of its
// authoritative state happens under mu; open is a lock-free atomic so wait
// paths can check it before acquiring the lock.
type Coordinator struct {
	mu sync.Mutex

	open atomic.Bool

	snapshot         Snapshot
	inFlight         *btree.BTree
	earliestInFlight Timestamp
	newOpExcLB       Timestamp

	waiters []*waiter

	lowerBoundWarnInterval time.Duration
	lastLowerBoundWarn     time.Time

	// defaultWaitTimeout bounds WaitForAllCommittedWithTimeout and
	// WaitForApplyingOpsToCommit when set from a Config; zero means block
	// indefinitely, matching the bare NewCoordinator default.
	defaultWaitTimeout time.Duration
}

// NewCoordinator returns a coordinator with an empty snapshot, ready to
// accept ops.
func NewCoordinator() *Coordinator {
	c := &Coordinator{
		inFlight:               btree.New(8),
		earliestInFlight:       TimestampMax,
		newOpExcLB:             TimestampMin,
		lowerBoundWarnInterval: defaultLowerBoundWarnInterval,
		snapshot:               NewSnapshot(),
	}
	c.open.Store(true)
	return c
}

// NewCoordinatorFromConfig validates cfg, applies it to this package's log
// level, and returns a coordinator with cfg's tunables wired in: the
// backward lower-bound adjustment warning rate limit and the default
// timeout used by WaitForAllCommittedWithTimeout and
// WaitForApplyingOpsToCommit.
func NewCoordinatorFromConfig(cfg *config.Config) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ApplyLogLevel()
	c := NewCoordinator()
	c.SetLowerBoundWarnInterval(cfg.AdjustLowerBoundLogEvery)
	c.defaultWaitTimeout = cfg.WaitTimeout
	return c, nil
}

// SetLowerBoundWarnInterval overrides the default rate limit on the
// backward-adjustment warning log.
func (c *Coordinator) SetLowerBoundWarnInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lowerBoundWarnInterval = d
}

// StartOp registers t as RESERVED. Fatal if t is already committed, already
// in flight, or at-or-below the current lower bound: these are programming
// errors in the caller, not runtime conditions.
func (c *Coordinator) StartOp(t Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot.IsCommitted(t) {
		log.Fatalf("trying to start a new op at an already committed timestamp: %s, current snapshot: %s",
			t, c.snapshot)
	}
	if !c.initOpLocked(t) {
		log.Fatalf("there is already an op with timestamp %s in flight, or this timestamp is at or below "+
			"the exclusive lower bound for new op timestamps. current lower bound: %s, current snapshot: %s",
			t, c.newOpExcLB, c.snapshot)
	}
	c.publishMetricsLocked()
}

func (c *Coordinator) initOpLocked(t Timestamp) bool {
	if t <= c.newOpExcLB {
		return false
	}
	if c.inFlight.Get(&inFlightEntry{ts: t}) != nil {
		return false
	}
	c.inFlight.ReplaceOrInsert(&inFlightEntry{ts: t, state: Reserved})
	if t < c.earliestInFlight {
		c.earliestInFlight = t
	}
	return true
}

// StartApplying transitions t from RESERVED to APPLYING. Fatal if t is not
// in flight or not RESERVED.
func (c *Coordinator) StartApplying(t Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := c.inFlight.Get(&inFlightEntry{ts: t})
	if item == nil {
		log.Fatalf("cannot mark timestamp %s as APPLYING: not in the in-flight table", t)
	}
	entry := item.(*inFlightEntry)
	if entry.state != Reserved {
		log.Fatalf("cannot mark timestamp %s as APPLYING: wrong state: %s", t, entry.state)
	}
	entry.state = Applying
}

// CommitOp removes t from the in-flight table, adds it to the committed
// set, and advances the clean timestamp if t was the earliest in-flight op
// and the lower bound has already caught up to it. Fatal if t is not in
// flight or not APPLYING.
func (c *Coordinator) CommitOp(t Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasEarliest := t == c.earliestInFlight

	oldState := c.removeInFlightLocked(t)
	if oldState != Applying {
		log.Fatalf("trying to commit an op which never entered APPLYING state: %s state=%s", t, oldState)
	}

	c.snapshot.AddCommitted(t)

	if wasEarliest {
		c.advanceEarliestInFlightLocked()
		// The guard below prevents the clean watermark from being driven by
		// a commit that is ahead of the declared lower bound; this can
		// happen for commit-wait ops started in the future. Callers of such
		// ops are expected to advance the lower bound explicitly.
		if c.newOpExcLB >= t {
			c.adjustCleanTimeLocked()
		}
	}
	c.publishMetricsLocked()
}

// AbortOp removes t from the in-flight table. If the coordinator is
// closed, this silently succeeds with a warning log instead of requiring
// the RESERVED-state invariant, so dropping scoped handles during shutdown
// does not abort the process. Otherwise fatal if t is not in flight or is
// APPLYING.
func (c *Coordinator) AbortOp(t Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	oldState := c.removeInFlightLocked(t)

	if !c.open.Load() {
		log.Warnf("aborting op with timestamp %s in state %s; MVCC is closed", t, oldState)
		c.publishMetricsLocked()
		return
	}

	if oldState != Reserved {
		log.Fatalf("op with timestamp %s cannot be aborted in state %s", t, oldState)
	}

	if c.earliestInFlight == t {
		c.advanceEarliestInFlightLocked()
	}
	c.publishMetricsLocked()
}

func (c *Coordinator) removeInFlightLocked(t Timestamp) OpState {
	item := c.inFlight.Delete(&inFlightEntry{ts: t})
	if item == nil {
		log.Fatalf("trying to remove timestamp which isn't in the in-flight table: %s", t)
	}
	return item.(*inFlightEntry).state
}

func (c *Coordinator) advanceEarliestInFlightLocked() {
	if c.inFlight.Len() == 0 {
		c.earliestInFlight = TimestampMax
		return
	}
	c.earliestInFlight = c.inFlight.Min().(*inFlightEntry).ts
}

// AdjustNewOpLowerBound sets newOpExcLB = max(newOpExcLB, t) and, if it
// advanced, recomputes the clean timestamp. Moving the bound backward is
// never an error: it is a benign anomaly, logged at a rate limit.
func (c *Coordinator) AdjustNewOpLowerBound(t Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.newOpExcLB > t {
		// Getting here means an op is about to be applied out of order.
		// That is only safe because concurrent ops are guaranteed not to
		// touch the same state, enforced by locks taken before the op
		// started (e.g. row locks, out of scope here).
		now := time.Now()
		if now.Sub(c.lastLowerBoundWarn) >= c.lowerBoundWarnInterval {
			log.Warnf("tried to move new op lower bound back from %s to %s; current snapshot: %s",
				c.newOpExcLB, t, c.snapshot)
			c.lastLowerBoundWarn = now
		}
		return
	}
	c.newOpExcLB = t
	c.adjustCleanTimeLocked()
	c.publishMetricsLocked()
}

// adjustCleanTimeLocked recomputes allCommittedBefore as the minimum of
// earliestInFlight and newOpExcLB, drops any now-stale committed entries,
// and wakes any waiter whose condition is now satisfied.
func (c *Coordinator) adjustCleanTimeLocked() {
	if c.earliestInFlight < c.newOpExcLB {
		c.snapshot.allCommittedBefore = c.earliestInFlight
	} else {
		c.snapshot.allCommittedBefore = c.newOpExcLB
	}

	filtered := c.snapshot.committedTimestamps[:0]
	for _, ts := range c.snapshot.committedTimestamps {
		if ts >= c.snapshot.allCommittedBefore {
			filtered = append(filtered, ts)
		}
	}
	c.snapshot.committedTimestamps = filtered

	if len(c.snapshot.committedTimestamps) == 0 {
		c.snapshot.noneCommittedAtOrAfter = c.snapshot.allCommittedBefore
	}

	c.wakeSatisfiedWaitersLocked()
}

func (c *Coordinator) wakeSatisfiedWaitersLocked() {
	if len(c.waiters) == 0 {
		return
	}
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if c.isDoneWaitingLocked(w.cond, w.timestamp) {
			w.wake()
			continue
		}
		remaining = append(remaining, w)
	}
	c.waiters = remaining
	metrics.Waiters.Set(float64(len(c.waiters)))
}

func (c *Coordinator) isDoneWaitingLocked(cond waitCondition, ts Timestamp) bool {
	switch cond {
	case waitAllCommitted:
		return c.areAllOpsCommittedLocked(ts)
	case waitNoneApplying:
		return !c.anyInFlightAtOrBeforeLocked(ts)
	default:
		log.Fatalf("unreachable wait condition %d", cond)
		return false
	}
}

func (c *Coordinator) areAllOpsCommittedLocked(ts Timestamp) bool {
	if ts < c.snapshot.allCommittedBefore {
		return true
	}
	return ts < c.earliestInFlight
}

// anyInFlightAtOrBeforeLocked scans every in-flight entry regardless of
// state, not just those APPLYING. This over-approximates NONE_APPLYING by
// design, documented rather than "fixed".
func (c *Coordinator) anyInFlightAtOrBeforeLocked(ts Timestamp) bool {
	found := false
	c.inFlight.Ascend(func(item btree.Item) bool {
		entry := item.(*inFlightEntry)
		if entry.ts <= ts {
			found = true
		}
		return entry.ts <= ts
	})
	return found
}

// WaitForAllCommitted blocks until every op with ts <= t is committed, or
// the deadline elapses, or the coordinator closes. On success it returns a
// point-in-time snapshot at t.
func (c *Coordinator) WaitForAllCommitted(t Timestamp, deadline time.Time) (Snapshot, error) {
	if err := c.waitUntil(waitAllCommitted, t, deadline); err != nil {
		return Snapshot{}, err
	}
	return NewSnapshotAt(t), nil
}

// WaitForAllCommittedWithTimeout is WaitForAllCommitted using the
// coordinator's configured default wait timeout in place of an explicit
// deadline; with no configured timeout it blocks indefinitely.
func (c *Coordinator) WaitForAllCommittedWithTimeout(t Timestamp) (Snapshot, error) {
	return c.WaitForAllCommitted(t, c.defaultDeadline())
}

// WaitForApplyingOpsToCommit takes the highest timestamp APPLYING at call
// time and blocks until no op at or below it remains in flight, whatever
// its state, so RESERVED ops below that timestamp are waited on too. It is
// a best-effort barrier: ops above that timestamp are not waited on. It
// respects the coordinator's configured default wait timeout, if any.
func (c *Coordinator) WaitForApplyingOpsToCommit() error {
	if !c.open.Load() {
		return ErrAborted("MVCC is closed")
	}

	waitFor := TimestampMin
	c.mu.Lock()
	c.inFlight.Ascend(func(item btree.Item) bool {
		entry := item.(*inFlightEntry)
		if entry.state == Applying && entry.ts > waitFor {
			waitFor = entry.ts
		}
		return true
	})
	c.mu.Unlock()

	if waitFor == TimestampMin {
		return nil
	}
	return c.waitUntil(waitNoneApplying, waitFor, c.defaultDeadline())
}

// defaultDeadline turns defaultWaitTimeout into an absolute deadline, or
// the zero Time (block indefinitely) when unset.
func (c *Coordinator) defaultDeadline() time.Time {
	if c.defaultWaitTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.defaultWaitTimeout)
}

// waitUntil implements the four-step wait protocol: check under lock,
// enqueue and release, block on the latch, and on timeout re-acquire the
// lock to self-remove unless a racing wake already fired.
func (c *Coordinator) waitUntil(cond waitCondition, ts Timestamp, deadline time.Time) error {
	if !c.open.Load() {
		return ErrAborted("MVCC is closed")
	}

	c.mu.Lock()
	if c.isDoneWaitingLocked(cond, ts) {
		c.mu.Unlock()
		return nil
	}
	w := newWaiter(cond, ts)
	c.waiters = append(c.waiters, w)
	metrics.Waiters.Set(float64(len(c.waiters)))
	c.mu.Unlock()

	if deadline.IsZero() {
		<-w.done
		if !c.open.Load() {
			return ErrAborted("MVCC is closed")
		}
		return nil
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case <-w.done:
		if !c.open.Load() {
			return ErrAborted("MVCC is closed")
		}
		return nil
	case <-timer.C:
		c.mu.Lock()
		defer c.mu.Unlock()
		select {
		case <-w.done:
			if !c.open.Load() {
				return ErrAborted("MVCC is closed")
			}
			return nil
		default:
		}
		c.removeWaiterLocked(w)
		return ErrTimedOut(cond.label(), ts)
	}
}

func (c *Coordinator) removeWaiterLocked(target *waiter) {
	for i, w := range c.waiters {
		if w == target {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			metrics.Waiters.Set(float64(len(c.waiters)))
			return
		}
	}
}

// TakeSnapshot copies the live snapshot under the lock. The copy is
// independent of subsequent coordinator mutations.
func (c *Coordinator) TakeSnapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot.clone()
}

func (s Snapshot) clone() Snapshot {
	out := s
	if len(s.committedTimestamps) > 0 {
		out.committedTimestamps = make([]Timestamp, len(s.committedTimestamps))
		copy(out.committedTimestamps, s.committedTimestamps)
	}
	return out
}

// GetCleanTimestamp returns the current all_committed_before watermark.
func (c *Coordinator) GetCleanTimestamp() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot.allCommittedBefore
}

// CheckCleanInitialized reports ErrNotInitialized until the clean
// timestamp has advanced past TimestampInitial.
func (c *Coordinator) CheckCleanInitialized() error {
	if c.GetCleanTimestamp() <= TimestampInitial {
		return ErrNotInitialized()
	}
	return nil
}

// GetApplyingTimestamps returns every timestamp currently APPLYING, in
// ascending order.
func (c *Coordinator) GetApplyingTimestamps() []Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Timestamp
	c.inFlight.Ascend(func(item btree.Item) bool {
		entry := item.(*inFlightEntry)
		if entry.state == Applying {
			out = append(out, entry.ts)
		}
		return true
	})
	return out
}

// MayHaveUncommittedOpsAtOrBefore is a convenience pass-through onto a
// freshly taken snapshot.
func (c *Coordinator) MayHaveUncommittedOpsAtOrBefore(t Timestamp) bool {
	return c.TakeSnapshot().MayHaveUncommittedOpsAtOrBefore(t)
}

// Close idempotently shuts the coordinator down, waking every waiter with
// AbortedErr.
func (c *Coordinator) Close() {
	if !c.open.CAS(true, false) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.waiters {
		w.wake()
	}
	c.waiters = nil
	metrics.Waiters.Set(0)
}

func (c *Coordinator) publishMetricsLocked() {
	metrics.InFlightOps.Set(float64(c.inFlight.Len()))
	metrics.CleanTimestamp.Set(float64(c.snapshot.allCommittedBefore))
}
