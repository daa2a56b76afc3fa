package txnstatus

import "sync"

// TxnRecord is the durable-shaped snapshot of one transaction's status.
type TxnRecord struct {
	TxnID int64
	User  string
	State State
}

// ParticipantRecord is the durable-shaped snapshot of one participant's
// status within a transaction.
type ParticipantRecord struct {
	TxnID    int64
	TabletID string
	State    State
}

// TxnEntry is the in-memory handle the registry's index holds for one
// transaction. It is never freed while any caller holds a reference to it,
// since Go's garbage collector keeps it alive for as long as that reference
// lives, with no refcounting required. Readers take the read lock and get a
// self-consistent copy of the record; writers swap in a new record only
// after it is durable.
type TxnEntry struct {
	mu     sync.RWMutex
	record TxnRecord
}

func newTxnEntry(r TxnRecord) *TxnEntry {
	return &TxnEntry{record: r}
}

// Snapshot returns a copy of the entry's current record.
func (e *TxnEntry) Snapshot() TxnRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.record
}

// Mutate holds the entry's write lock for the whole transition: it derives
// the next record from the current one, persists it, and only then swaps
// it in. If either step fails, the entry is left untouched and the error
// propagates to the caller.
func (e *TxnEntry) Mutate(derive func(TxnRecord) (TxnRecord, error), persist func(TxnRecord) error) (TxnRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := derive(e.record)
	if err != nil {
		return e.record, err
	}
	if err := persist(next); err != nil {
		return e.record, err
	}
	e.record = next
	return next, nil
}

// ParticipantEntry is the participant-level counterpart of TxnEntry.
type ParticipantEntry struct {
	mu     sync.RWMutex
	record ParticipantRecord
}

func newParticipantEntry(r ParticipantRecord) *ParticipantEntry {
	return &ParticipantEntry{record: r}
}

func (e *ParticipantEntry) Snapshot() ParticipantRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.record
}

func (e *ParticipantEntry) Mutate(derive func(ParticipantRecord) (ParticipantRecord, error), persist func(ParticipantRecord) error) (ParticipantRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := derive(e.record)
	if err != nil {
		return e.record, err
	}
	if err := persist(next); err != nil {
		return e.record, err
	}
	e.record = next
	return next, nil
}
