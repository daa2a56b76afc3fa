package mvcc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycastiel/kudu/config"
)

func TestCoordinator_BasicSingleOp(t *testing.T) {
	c := NewCoordinator()
	assert.Equal(t, "MvccSnapshot[committed={T|T < 1}]", c.TakeSnapshot().String())

	c.StartOp(1)
	assert.Equal(t, "MvccSnapshot[committed={T|T < 1}]", c.TakeSnapshot().String())

	c.StartApplying(1)
	c.CommitOp(1)

	snap := c.TakeSnapshot()
	assert.Equal(t, "MvccSnapshot[committed={T|T < 1 or (T in {1})}]", snap.String())
	assert.True(t, snap.IsCommitted(1))
	assert.False(t, snap.IsCommitted(2))
}

func TestCoordinator_MultipleInFlightOutOfOrderCommit(t *testing.T) {
	c := NewCoordinator()
	c.StartOp(1)
	c.StartOp(2)
	c.StartOp(3)

	c.StartApplying(2)
	c.CommitOp(2)
	assert.Equal(t, "MvccSnapshot[committed={T|T < 1 or (T in {2})}]", c.TakeSnapshot().String())

	c.StartApplying(3)
	c.CommitOp(3)
	assert.Equal(t, "MvccSnapshot[committed={T|T < 1 or (T in {2,3})}]", c.TakeSnapshot().String())

	c.StartApplying(1)
	c.CommitOp(1)
	c.AdjustNewOpLowerBound(3)
	assert.Equal(t, "MvccSnapshot[committed={T|T < 3 or (T in {3})}]", c.TakeSnapshot().String())
}

func TestCoordinator_PastTimestampOp(t *testing.T) {
	c := NewCoordinator()

	c.StartOp(50)
	c.StartApplying(50)
	c.CommitOp(50)

	assert.Equal(t, TimestampInitial, c.GetCleanTimestamp())
	assert.False(t, c.TakeSnapshot().IsCommitted(40))

	c.AdjustNewOpLowerBound(50)
	assert.Equal(t, Timestamp(50), c.GetCleanTimestamp())
	assert.True(t, c.TakeSnapshot().IsCommitted(40))
}

func TestCoordinator_WaiterTimeout(t *testing.T) {
	c := NewCoordinator()
	c.StartOp(1)

	_, err := c.WaitForAllCommitted(1, time.Now().Add(10*time.Millisecond))
	require.Error(t, err)
	assert.True(t, IsTimedOut(err))
}

func TestCoordinator_CloseAbortsWaiters(t *testing.T) {
	c := NewCoordinator()
	c.StartOp(1)
	c.StartApplying(1)

	done := make(chan error, 1)
	go func() {
		done <- c.WaitForApplyingOpsToCommit()
	}()

	// Give the background waiter time to register before closing.
	time.Sleep(20 * time.Millisecond)
	c.Close()

	err := <-done
	require.Error(t, err)
	assert.True(t, IsAborted(err))
	assert.Contains(t, err.Error(), "closed")

	err = c.WaitForApplyingOpsToCommit()
	require.Error(t, err)
	assert.True(t, IsAborted(err))
}

func TestCoordinator_AdjustLowerBoundNeverFails(t *testing.T) {
	c := NewCoordinator()
	c.AdjustNewOpLowerBound(10)
	c.AdjustNewOpLowerBound(5) // backward, silently ignored
	assert.Equal(t, Timestamp(10), c.GetCleanTimestamp())
}

func TestCoordinator_CheckCleanInitialized(t *testing.T) {
	c := NewCoordinator()
	assert.Error(t, c.CheckCleanInitialized())

	c.AdjustNewOpLowerBound(2)
	assert.NoError(t, c.CheckCleanInitialized())
}

func TestCoordinator_GetApplyingTimestamps(t *testing.T) {
	c := NewCoordinator()
	c.StartOp(1)
	c.StartOp(2)
	c.StartApplying(1)

	assert.Equal(t, []Timestamp{1}, c.GetApplyingTimestamps())
}

func TestCoordinator_WaitForApplyingOpsToCommitReturnsImmediatelyWhenNoneApplying(t *testing.T) {
	c := NewCoordinator()
	c.StartOp(1)
	assert.NoError(t, c.WaitForApplyingOpsToCommit())
}

func TestCoordinator_AbortOpAfterCloseSucceedsSilently(t *testing.T) {
	c := NewCoordinator()
	c.StartOp(1)
	c.Close()
	c.AbortOp(1) // would be fatal if open; must not panic/exit once closed
}

func TestCoordinator_FromConfigWiresTunablesAndRejectsInvalid(t *testing.T) {
	cfg := config.NewTestConfig()
	c, err := NewCoordinatorFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.AdjustLowerBoundLogEvery, c.lowerBoundWarnInterval)
	assert.Equal(t, cfg.WaitTimeout, c.defaultWaitTimeout)

	cfg.WaitTimeout = 0
	_, err = NewCoordinatorFromConfig(cfg)
	require.Error(t, err)
}

func TestCoordinator_WaitForApplyingOpsToCommitTimesOutWithConfiguredDeadline(t *testing.T) {
	cfg := config.NewTestConfig()
	c, err := NewCoordinatorFromConfig(cfg)
	require.NoError(t, err)

	c.StartOp(1)
	c.StartApplying(1)

	err = c.WaitForApplyingOpsToCommit()
	require.Error(t, err)
	assert.True(t, IsTimedOut(err))
}
