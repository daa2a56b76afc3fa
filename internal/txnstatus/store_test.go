package txnstatus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore()

	require.NoError(t, store.PutTxn(TxnRecord{TxnID: 1, User: "alice", State: StateOpen}))
	require.NoError(t, store.PutTxn(TxnRecord{TxnID: 2, User: "bob", State: StateCommitted}))
	require.NoError(t, store.PutParticipant(ParticipantRecord{TxnID: 1, TabletID: "tablet-a", State: StateOpen}))
	require.NoError(t, store.PutParticipant(ParticipantRecord{TxnID: 1, TabletID: "tablet-b", State: StateOpen}))

	txns, participants, err := store.LoadAll()
	require.NoError(t, err)
	assert.Len(t, txns, 2)
	assert.Len(t, participants, 2)
}

func TestMemoryStore_ListParticipantsOrdersByTabletID(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.PutParticipant(ParticipantRecord{TxnID: 1, TabletID: "tablet-b", State: StateOpen}))
	require.NoError(t, store.PutParticipant(ParticipantRecord{TxnID: 1, TabletID: "tablet-a", State: StateOpen}))
	require.NoError(t, store.PutParticipant(ParticipantRecord{TxnID: 2, TabletID: "tablet-z", State: StateOpen}))

	got := store.ListParticipants(1)
	require.Len(t, got, 2)
	assert.Equal(t, "tablet-a", got[0].TabletID)
	assert.Equal(t, "tablet-b", got[1].TabletID)
}

func TestMemoryStore_PutOverwritesPriorState(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.PutTxn(TxnRecord{TxnID: 1, User: "alice", State: StateOpen}))
	require.NoError(t, store.PutTxn(TxnRecord{TxnID: 1, User: "alice", State: StateCommitted}))

	txns, _, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, StateCommitted, txns[0].State)
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.PutTxn(TxnRecord{TxnID: 1, User: "alice", State: StateOpen}))
	require.NoError(t, store.PutParticipant(ParticipantRecord{TxnID: 1, TabletID: "tablet-a", State: StateOpen}))
	require.NoError(t, store.Close())

	reopened, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	txns, participants, err := reopened.LoadAll()
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, int64(1), txns[0].TxnID)
	assert.Equal(t, StateOpen, txns[0].State)
	require.Len(t, participants, 1)
	assert.Equal(t, "tablet-a", participants[0].TabletID)
}
