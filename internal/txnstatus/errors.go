package txnstatus

import (
	"fmt"

	"github.com/pingcap/errors"
)

// IllegalStateErr is returned when a caller attempts a transition that is
// not legal from the entry's current state. Unlike the mvcc coordinator's
// contract violations, this is an expected runtime condition: a caller can
// race with another caller against the same durable, externally-observed
// transaction.
type IllegalStateErr struct {
	TxnID    int64
	TabletID string // empty for transaction-level violations
	Observed State
	Attempted string
}

func (e *IllegalStateErr) Error() string {
	if e.TabletID == "" {
		return fmt.Sprintf("txn %d: cannot %s from state %s", e.TxnID, e.Attempted, e.Observed)
	}
	return fmt.Sprintf("txn %d participant %s: cannot %s from state %s", e.TxnID, e.TabletID, e.Attempted, e.Observed)
}

// NotMonotonicErr is returned by Begin when txn_id does not strictly exceed
// the highest txn_id ever seen by this registry.
type NotMonotonicErr struct {
	TxnID       int64
	HighestSeen int64
}

func (e *NotMonotonicErr) Error() string {
	return fmt.Sprintf("txn id %d is not greater than the highest seen id %d", e.TxnID, e.HighestSeen)
}

// NotFoundErr is returned by lookups that find no entry for the given id.
type NotFoundErr struct {
	TxnID    int64
	TabletID string
}

func (e *NotFoundErr) Error() string {
	if e.TabletID == "" {
		return fmt.Sprintf("no transaction entry for txn %d", e.TxnID)
	}
	return fmt.Sprintf("no participant entry for txn %d tablet %s", e.TxnID, e.TabletID)
}

func errIllegalState(txnID int64, tabletID string, observed State, attempted string) error {
	return errors.WithStack(&IllegalStateErr{TxnID: txnID, TabletID: tabletID, Observed: observed, Attempted: attempted})
}

func errNotMonotonic(txnID, highestSeen int64) error {
	return errors.WithStack(&NotMonotonicErr{TxnID: txnID, HighestSeen: highestSeen})
}

func errNotFound(txnID int64, tabletID string) error {
	return errors.WithStack(&NotFoundErr{TxnID: txnID, TabletID: tabletID})
}

// IsIllegalState reports whether err is, or wraps, an IllegalStateErr.
func IsIllegalState(err error) bool {
	_, ok := errors.Cause(err).(*IllegalStateErr)
	return ok
}

// IsNotFound reports whether err is, or wraps, a NotFoundErr.
func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundErr)
	return ok
}
