package mvcc

// ScopedOp is a lifetime-bound handle that guarantees exactly-once
// resolution of one op: construction reserves the timestamp, and Release
// aborts it if neither Commit nor Abort already ran. Go has no
// destructors, so callers must defer Release immediately after a
// successful StartOp, mirroring the RAII idiom the handle is modeled on.
//
// ScopedOp is not copyable: copy by value and you get two handles racing
// to resolve the same op. Use a pointer.
type ScopedOp struct {
	coordinator *Coordinator
	timestamp   Timestamp
	done        bool
}

// StartOp reserves t on coordinator and returns a handle owning its
// resolution. Fatal (via coordinator.StartOp) if t cannot be started.
func StartOp(coordinator *Coordinator, t Timestamp) *ScopedOp {
	coordinator.StartOp(t)
	return &ScopedOp{coordinator: coordinator, timestamp: t}
}

// Timestamp returns the op's reserved timestamp.
func (s *ScopedOp) Timestamp() Timestamp {
	return s.timestamp
}

// StartApplying transitions the op to APPLYING.
func (s *ScopedOp) StartApplying() {
	s.coordinator.StartApplying(s.timestamp)
}

// Commit resolves the op as committed. Idempotent with Release: once
// called, Release becomes a no-op.
func (s *ScopedOp) Commit() {
	s.coordinator.CommitOp(s.timestamp)
	s.done = true
}

// Abort resolves the op as aborted. Idempotent with Release: once called,
// Release becomes a no-op.
func (s *ScopedOp) Abort() {
	s.coordinator.AbortOp(s.timestamp)
	s.done = true
}

// Release aborts the op if it was not already resolved by Commit or
// Abort. Callers should defer this immediately after StartOp.
func (s *ScopedOp) Release() {
	if !s.done {
		s.Abort()
	}
}
