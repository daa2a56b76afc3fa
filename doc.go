// Package kudu provides an in-process MVCC coordinator for a single
// tablet, along with a durable companion registry tracking the status of
// multi-statement transactions spanning several tablets.
//
// The coordinator (internal/mvcc) assigns a total order to writes via a
// pluggable clock (internal/clock), tracks in-flight ops, and publishes
// point-in-time snapshots. The registry (internal/txnstatus) is a separate,
// durable state machine for transaction and participant lifecycle,
// persisted through github.com/coocood/badger.
package kudu
