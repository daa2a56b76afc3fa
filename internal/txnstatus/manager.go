package txnstatus

import (
	"sync"

	"github.com/mycastiel/kudu/config"
	"github.com/mycastiel/kudu/internal/metrics"
)

// Manager is the companion transaction-status registry. It is not owned by
// the mvcc coordinator and does not touch any tablet's in-memory snapshot;
// it tracks the lifecycle of multi-statement transactions and the tablets
// participating in them, durably, behind the same lock-per-entry discipline
// described in entry.go.
//
// indexMu guards only the two index maps (insertion of brand-new entries
// and lookups); once an entry exists, all further mutation of its state
// goes through the entry's own lock, so two transitions on different
// transactions contend on indexMu only for the brief entry lookup.
type Manager struct {
	store Store

	indexMu      sync.Mutex
	highestSeen  int64
	txns         map[int64]*TxnEntry
	participants map[string]*ParticipantEntry
}

// NewManager opens a registry backed by store, rebuilding its in-memory
// index from whatever was already persisted.
func NewManager(store Store) (*Manager, error) {
	m := &Manager{
		store:        store,
		txns:         make(map[int64]*TxnEntry),
		participants: make(map[string]*ParticipantEntry),
	}
	if err := m.rebuild(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewManagerFromConfig opens the registry's production store at cfg.DBPath
// and builds a Manager over it.
func NewManagerFromConfig(cfg *config.Config) (*Manager, error) {
	store, err := OpenBadgerStoreFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return NewManager(store)
}

func (m *Manager) rebuild() error {
	txnRecords, participantRecords, err := m.store.LoadAll()
	if err != nil {
		return err
	}
	for _, r := range txnRecords {
		m.txns[r.TxnID] = newTxnEntry(r)
		if r.TxnID > m.highestSeen {
			m.highestSeen = r.TxnID
		}
	}
	for _, r := range participantRecords {
		m.participants[participantKey(r.TxnID, r.TabletID)] = newParticipantEntry(r)
	}
	return nil
}

func participantKey(txnID int64, tabletID string) string {
	return string(encodeParticipantKey(txnID, tabletID))
}

// Begin registers a new transaction. txnID must strictly exceed every
// txnID ever passed to Begin on this registry; unlike the other
// transitions, Begin is not idempotent, so every later call with an id
// that has already begun returns the same monotonicity error.
func (m *Manager) Begin(txnID int64, user string) error {
	m.indexMu.Lock()
	defer m.indexMu.Unlock()

	if txnID <= m.highestSeen {
		return errNotMonotonic(txnID, m.highestSeen)
	}
	record := TxnRecord{TxnID: txnID, User: user, State: StateOpen}
	if err := m.store.PutTxn(record); err != nil {
		return err
	}
	m.highestSeen = txnID
	m.txns[txnID] = newTxnEntry(record)
	return nil
}

// BeginCommit transitions txnID from OPEN to COMMIT_IN_PROGRESS. Idempotent
// if already COMMIT_IN_PROGRESS; any other observed state is illegal.
func (m *Manager) BeginCommit(txnID int64) error {
	entry, err := m.txnEntry(txnID)
	if err != nil {
		return err
	}
	_, err = entry.Mutate(func(cur TxnRecord) (TxnRecord, error) {
		switch cur.State {
		case StateOpen, StateCommitInProgress:
			cur.State = StateCommitInProgress
			return cur, nil
		default:
			return cur, errIllegalState(txnID, "", cur.State, "begin_commit")
		}
	}, m.store.PutTxn)
	return err
}

// FinalizeCommit transitions txnID from COMMIT_IN_PROGRESS to COMMITTED.
// Idempotent if already COMMITTED; any other observed state is illegal.
func (m *Manager) FinalizeCommit(txnID int64) error {
	entry, err := m.txnEntry(txnID)
	if err != nil {
		return err
	}
	before := entry.Snapshot().State
	_, err = entry.Mutate(func(cur TxnRecord) (TxnRecord, error) {
		switch cur.State {
		case StateCommitInProgress, StateCommitted:
			cur.State = StateCommitted
			return cur, nil
		default:
			return cur, errIllegalState(txnID, "", cur.State, "finalize_commit")
		}
	}, m.store.PutTxn)
	if err == nil && before != StateCommitted {
		metrics.TransactionsTotal.WithLabelValues("committed").Inc()
	}
	return err
}

// Abort transitions txnID from OPEN or COMMIT_IN_PROGRESS to ABORTED.
// Idempotent if already ABORTED; any other observed state is illegal.
func (m *Manager) Abort(txnID int64) error {
	entry, err := m.txnEntry(txnID)
	if err != nil {
		return err
	}
	before := entry.Snapshot().State
	_, err = entry.Mutate(func(cur TxnRecord) (TxnRecord, error) {
		switch cur.State {
		case StateOpen, StateCommitInProgress, StateAborted:
			cur.State = StateAborted
			return cur, nil
		default:
			return cur, errIllegalState(txnID, "", cur.State, "abort")
		}
	}, m.store.PutTxn)
	if err == nil && before != StateAborted {
		metrics.TransactionsTotal.WithLabelValues("aborted").Inc()
	}
	return err
}

// RegisterParticipant requires txnID to be OPEN, then transitions
// (txnID, tabletID) from UNKNOWN to OPEN, idempotent if already OPEN.
func (m *Manager) RegisterParticipant(txnID int64, tabletID string) error {
	txn, err := m.txnEntry(txnID)
	if err != nil {
		return err
	}
	if state := txn.Snapshot().State; state != StateOpen {
		return errIllegalState(txnID, tabletID, state, "register_participant (transaction not open)")
	}

	entry := m.getOrCreateParticipantEntry(txnID, tabletID)
	_, err = entry.Mutate(func(cur ParticipantRecord) (ParticipantRecord, error) {
		switch cur.State {
		case StateUnknown, StateOpen:
			cur.TxnID = txnID
			cur.TabletID = tabletID
			cur.State = StateOpen
			return cur, nil
		default:
			return cur, errIllegalState(txnID, tabletID, cur.State, "register_participant")
		}
	}, m.store.PutParticipant)
	return err
}

// GetTransaction returns a read-only snapshot of txnID's status.
func (m *Manager) GetTransaction(txnID int64) (TxnRecord, error) {
	entry, err := m.txnEntry(txnID)
	if err != nil {
		return TxnRecord{}, err
	}
	return entry.Snapshot(), nil
}

// GetParticipant returns a read-only snapshot of (txnID, tabletID)'s
// status.
func (m *Manager) GetParticipant(txnID int64, tabletID string) (ParticipantRecord, error) {
	m.indexMu.Lock()
	entry, ok := m.participants[participantKey(txnID, tabletID)]
	m.indexMu.Unlock()
	if !ok {
		return ParticipantRecord{}, errNotFound(txnID, tabletID)
	}
	return entry.Snapshot(), nil
}

func (m *Manager) txnEntry(txnID int64) (*TxnEntry, error) {
	m.indexMu.Lock()
	entry, ok := m.txns[txnID]
	m.indexMu.Unlock()
	if !ok {
		return nil, errNotFound(txnID, "")
	}
	return entry, nil
}

func (m *Manager) getOrCreateParticipantEntry(txnID int64, tabletID string) *ParticipantEntry {
	key := participantKey(txnID, tabletID)
	m.indexMu.Lock()
	defer m.indexMu.Unlock()
	if entry, ok := m.participants[key]; ok {
		return entry
	}
	entry := newParticipantEntry(ParticipantRecord{TxnID: txnID, TabletID: tabletID, State: StateUnknown})
	m.participants[key] = entry
	return entry
}

// Close releases the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}
