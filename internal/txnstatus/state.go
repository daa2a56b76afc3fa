// Package txnstatus implements the companion durable registry of
// multi-statement transaction and participant status. It follows the same
// locking and commit discipline as the mvcc coordinator but owns its own
// on-disk state, independent of any single tablet's in-memory snapshot.
package txnstatus

import "fmt"

// State is the status alphabet shared by transactions and participants.
type State int

const (
	StateUnknown State = iota
	StateOpen
	StateCommitInProgress
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "UNKNOWN"
	case StateOpen:
		return "OPEN"
	case StateCommitInProgress:
		return "COMMIT_IN_PROGRESS"
	case StateCommitted:
		return "COMMITTED"
	case StateAborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
