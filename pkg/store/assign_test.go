package store

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/qscheduler/pkg/plan"
	"github.com/cuemby/qscheduler/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStagePlan(t *testing.T, s *Store, jobID string, stageID int) {
	t.Helper()
	scan := &plan.TableScan{Table: "t", SchemaCols: []string{"a"}, NumPartition: 2}
	encoded, err := plan.Encode(scan)
	require.NoError(t, err)
	require.NoError(t, s.SaveStagePlan(context.Background(), StagePlan{
		JobID: jobID, StageID: stageID, Encoded: encoded,
	}))
}

func TestAssignNextSchedulableTaskPicksLexicographicallyFirstPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveJobMetadata(ctx, types.JobStatus{JobID: "job-1", Phase: types.JobRunning, UpdatedAt: time.Now()}))
	seedStagePlan(t, s, "job-1", 0)

	require.NoError(t, s.SaveTaskStatus(ctx, types.TaskStatus{
		PartitionID: types.PartitionID{JobID: "job-1", StageID: 0, PartitionID: 1}, Phase: types.TaskPending,
	}))
	require.NoError(t, s.SaveTaskStatus(ctx, types.TaskStatus{
		PartitionID: types.PartitionID{JobID: "job-1", StageID: 0, PartitionID: 0}, Phase: types.TaskPending,
	}))

	assignment, ok, err := s.AssignNextSchedulableTask(ctx, "exec-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, assignment.Task.PartitionID.PartitionID)
	assert.Equal(t, types.TaskRunning, assignment.Task.Phase)
	assert.Equal(t, "exec-1", assignment.Task.ExecutorID)
}

func TestAssignNextSchedulableTaskSkipsUnreadyStage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveJobMetadata(ctx, types.JobStatus{JobID: "job-1", Phase: types.JobRunning, UpdatedAt: time.Now()}))
	seedStagePlan(t, s, "job-1", 0)
	seedStagePlan(t, s, "job-1", 1)

	// Stage 0 still has a pending task, so stage 1 isn't ready yet.
	require.NoError(t, s.SaveTaskStatus(ctx, types.TaskStatus{
		PartitionID: types.PartitionID{JobID: "job-1", StageID: 0, PartitionID: 0}, Phase: types.TaskPending,
	}))
	require.NoError(t, s.SaveTaskStatus(ctx, types.TaskStatus{
		PartitionID: types.PartitionID{JobID: "job-1", StageID: 1, PartitionID: 0}, Phase: types.TaskPending,
	}))

	assignment, ok, err := s.AssignNextSchedulableTask(ctx, "exec-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, assignment.Task.PartitionID.StageID)
}

func TestAssignNextSchedulableTaskUnblocksOnceUpstreamComplete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveJobMetadata(ctx, types.JobStatus{JobID: "job-1", Phase: types.JobRunning, UpdatedAt: time.Now()}))
	seedStagePlan(t, s, "job-1", 0)
	seedStagePlan(t, s, "job-1", 1)

	require.NoError(t, s.SaveTaskStatus(ctx, types.TaskStatus{
		PartitionID: types.PartitionID{JobID: "job-1", StageID: 0, PartitionID: 0}, Phase: types.TaskCompleted,
	}))
	require.NoError(t, s.SaveTaskStatus(ctx, types.TaskStatus{
		PartitionID: types.PartitionID{JobID: "job-1", StageID: 1, PartitionID: 0}, Phase: types.TaskPending,
	}))

	assignment, ok, err := s.AssignNextSchedulableTask(ctx, "exec-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, assignment.Task.PartitionID.StageID)
}

func TestAssignNextSchedulableTaskReturnsFalseWhenNothingPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveJobMetadata(ctx, types.JobStatus{JobID: "job-1", Phase: types.JobRunning, UpdatedAt: time.Now()}))
	seedStagePlan(t, s, "job-1", 0)
	require.NoError(t, s.SaveTaskStatus(ctx, types.TaskStatus{
		PartitionID: types.PartitionID{JobID: "job-1", StageID: 0, PartitionID: 0}, Phase: types.TaskCompleted,
	}))

	_, ok, err := s.AssignNextSchedulableTask(ctx, "exec-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAssignNextSchedulableTaskIgnoresNonRunningJobs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveJobMetadata(ctx, types.JobStatus{JobID: "job-1", Phase: types.JobQueued, UpdatedAt: time.Now()}))
	seedStagePlan(t, s, "job-1", 0)
	require.NoError(t, s.SaveTaskStatus(ctx, types.TaskStatus{
		PartitionID: types.PartitionID{JobID: "job-1", StageID: 0, PartitionID: 0}, Phase: types.TaskPending,
	}))

	_, ok, err := s.AssignNextSchedulableTask(ctx, "exec-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

// A Running task whose executor has gone silent is never handed back out
// to a different poller; reassignment on executor loss is left
// unimplemented, so the only schedulable work is genuinely Pending work.
func TestAssignNextSchedulableTaskNeverReassignsARunningTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveJobMetadata(ctx, types.JobStatus{JobID: "job-1", Phase: types.JobRunning, UpdatedAt: time.Now()}))
	seedStagePlan(t, s, "job-1", 0)
	require.NoError(t, s.SaveTaskStatus(ctx, types.TaskStatus{
		PartitionID: types.PartitionID{JobID: "job-1", StageID: 0, PartitionID: 0},
		Phase:       types.TaskRunning,
		ExecutorID:  "exec-1",
	}))

	_, ok, err := s.AssignNextSchedulableTask(ctx, "exec-2")
	require.NoError(t, err)
	assert.False(t, ok)
}
