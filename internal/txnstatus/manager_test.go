package txnstatus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycastiel/kudu/config"
)

func TestManager_TransactionLifecycle(t *testing.T) {
	store := NewMemoryStore()
	m, err := NewManager(store)
	require.NoError(t, err)

	require.NoError(t, m.Begin(1, "alice"))
	require.NoError(t, m.RegisterParticipant(1, "tablet-a"))
	require.NoError(t, m.BeginCommit(1))
	require.NoError(t, m.FinalizeCommit(1))

	txn, err := m.GetTransaction(1)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, txn.State)

	p, err := m.GetParticipant(1, "tablet-a")
	require.NoError(t, err)
	assert.Equal(t, StateOpen, p.State)

	// Reopening the registry against the same store rebuilds the same view.
	reopened, err := NewManager(store)
	require.NoError(t, err)

	txn2, err := reopened.GetTransaction(1)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, txn2.State)

	p2, err := reopened.GetParticipant(1, "tablet-a")
	require.NoError(t, err)
	assert.Equal(t, StateOpen, p2.State)
}

func TestManager_BeginRejectsDuplicateID(t *testing.T) {
	m, err := NewManager(NewMemoryStore())
	require.NoError(t, err)

	require.NoError(t, m.Begin(5, "bob"))

	err = m.Begin(5, "bob")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not greater than")

	// A second attempt returns the same class of error, not a different one
	// (begin is not granted idempotency).
	err2 := m.Begin(5, "bob")
	require.Error(t, err2)
	assert.Contains(t, err2.Error(), "not greater than")
}

func TestManager_IllegalTransition(t *testing.T) {
	m, err := NewManager(NewMemoryStore())
	require.NoError(t, err)

	require.NoError(t, m.Begin(1, "carol"))
	require.NoError(t, m.Abort(1))

	err = m.BeginCommit(1)
	require.Error(t, err)
	assert.True(t, IsIllegalState(err))

	txn, getErr := m.GetTransaction(1)
	require.NoError(t, getErr)
	assert.Equal(t, StateAborted, txn.State)
}

func TestManager_RegisterParticipantRequiresOpenTransaction(t *testing.T) {
	m, err := NewManager(NewMemoryStore())
	require.NoError(t, err)

	require.NoError(t, m.Begin(1, "dave"))
	require.NoError(t, m.Abort(1))

	err = m.RegisterParticipant(1, "tablet-a")
	require.Error(t, err)
	assert.True(t, IsIllegalState(err))
}

func TestManager_RegisterParticipantIsIdempotent(t *testing.T) {
	m, err := NewManager(NewMemoryStore())
	require.NoError(t, err)

	require.NoError(t, m.Begin(1, "erin"))
	require.NoError(t, m.RegisterParticipant(1, "tablet-a"))
	require.NoError(t, m.RegisterParticipant(1, "tablet-a"))

	p, err := m.GetParticipant(1, "tablet-a")
	require.NoError(t, err)
	assert.Equal(t, StateOpen, p.State)
}

func TestManager_AbortIsIdempotent(t *testing.T) {
	m, err := NewManager(NewMemoryStore())
	require.NoError(t, err)

	require.NoError(t, m.Begin(1, "frank"))
	require.NoError(t, m.Abort(1))
	require.NoError(t, m.Abort(1))

	txn, err := m.GetTransaction(1)
	require.NoError(t, err)
	assert.Equal(t, StateAborted, txn.State)
}

func TestManager_GetTransactionNotFound(t *testing.T) {
	m, err := NewManager(NewMemoryStore())
	require.NoError(t, err)

	_, err = m.GetTransaction(42)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestManager_FinalizeCommitRequiresCommitInProgress(t *testing.T) {
	m, err := NewManager(NewMemoryStore())
	require.NoError(t, err)

	require.NoError(t, m.Begin(1, "gina"))
	err = m.FinalizeCommit(1)
	require.Error(t, err)
	assert.True(t, IsIllegalState(err))
}

func TestManager_FromConfigPersistsAcrossReopen(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.DBPath = t.TempDir()

	m, err := NewManagerFromConfig(cfg)
	require.NoError(t, err)
	require.NoError(t, m.Begin(7, "harold"))
	require.NoError(t, m.Close())

	reopened, err := NewManagerFromConfig(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	txn, err := reopened.GetTransaction(7)
	require.NoError(t, err)
	assert.Equal(t, StateOpen, txn.State)
}
