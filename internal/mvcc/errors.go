package mvcc

import (
	"fmt"

	"github.com/pingcap/errors"
)

// TimedOutErr is returned by the waiter paths when a deadline elapses
// before the awaited condition becomes true.
type TimedOutErr struct {
	WaitFor   string
	Timestamp Timestamp
}

func (e *TimedOutErr) Error() string {
	return fmt.Sprintf("timed out waiting for all ops with ts <= %s to %s", e.Timestamp, e.WaitFor)
}

// AbortedErr is returned by the waiter paths when the coordinator is or
// becomes closed. Its message always contains the literal word "closed",
// per the failure-semantics contract.
type AbortedErr struct {
	Reason string
}

func (e *AbortedErr) Error() string {
	return e.Reason
}

// NotInitializedErr is returned by CheckCleanInitialized before the clean
// timestamp has ever advanced past TimestampInitial.
type NotInitializedErr struct{}

func (e *NotInitializedErr) Error() string {
	return "clean time has not yet been initialized"
}

// ErrTimedOut constructs a stack-carrying TimedOutErr.
func ErrTimedOut(waitFor string, ts Timestamp) error {
	return errors.WithStack(&TimedOutErr{WaitFor: waitFor, Timestamp: ts})
}

// ErrAborted constructs a stack-carrying AbortedErr. reason must contain
// the word "closed" wherever it signals shutdown, per the coordinator's
// failure-semantics contract.
func ErrAborted(reason string) error {
	return errors.WithStack(&AbortedErr{Reason: reason})
}

// ErrNotInitialized constructs a stack-carrying NotInitializedErr.
func ErrNotInitialized() error {
	return errors.WithStack(&NotInitializedErr{})
}

// IsTimedOut reports whether err is, or wraps, a TimedOutErr.
func IsTimedOut(err error) bool {
	_, ok := errors.Cause(err).(*TimedOutErr)
	return ok
}

// IsAborted reports whether err is, or wraps, an AbortedErr.
func IsAborted(err error) bool {
	_, ok := errors.Cause(err).(*AbortedErr)
	return ok
}
