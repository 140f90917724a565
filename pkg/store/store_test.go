package store

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/qscheduler/pkg/apierr"
	"github.com/cuemby/qscheduler/pkg/kv/embedded"
	"github.com/cuemby/qscheduler/pkg/plan"
	"github.com/cuemby/qscheduler/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	b, err := embedded.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return New(b, "test")
}

func TestSaveAndGetJobMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	status := types.JobStatus{JobID: "abc1234", Phase: types.JobQueued, UpdatedAt: time.Now()}
	require.NoError(t, s.SaveJobMetadata(ctx, status))

	got, err := s.GetJobMetadata(ctx, "abc1234")
	require.NoError(t, err)
	assert.Equal(t, status.JobID, got.JobID)
	assert.Equal(t, status.Phase, got.Phase)
}

func TestGetJobMetadataUnknownJobFailsWithJobUnknown(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetJobMetadata(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apierr.JobUnknown, apierr.KindOf(err))
}

func TestExecutorMetadataRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveExecutorMetadata(ctx, types.Executor{ID: "exec-1", Host: "10.0.0.1", Port: 9000}))
	require.NoError(t, s.SaveExecutorMetadata(ctx, types.Executor{ID: "exec-2", Host: "10.0.0.2", Port: 9001}))

	executors, err := s.GetExecutorsMetadata(ctx)
	require.NoError(t, err)
	assert.Len(t, executors, 2)
}

func TestStagePlanRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	scan := &plan.TableScan{Table: "t", SchemaCols: []string{"a"}, NumPartition: 2}
	encoded, err := plan.Encode(scan)
	require.NoError(t, err)

	sp := StagePlan{
		JobID:              "job-1",
		StageID:            0,
		OutputPartitioning: plan.Partitioning{Scheme: plan.RoundRobinPartitioning, PartitionCount: 2},
		Encoded:            encoded,
	}
	require.NoError(t, s.SaveStagePlan(ctx, sp))

	got, err := s.GetStagePlan(ctx, "job-1", 0)
	require.NoError(t, err)
	assert.Equal(t, sp.OutputPartitioning, got.OutputPartitioning)

	decoded, err := plan.Decode(got.Encoded)
	require.NoError(t, err)
	assert.Equal(t, plan.TableScanKind, decoded.Kind())
}

func TestTaskStatusScans(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tasks := []types.TaskStatus{
		{PartitionID: types.PartitionID{JobID: "job-1", StageID: 0, PartitionID: 0}, Phase: types.TaskPending},
		{PartitionID: types.PartitionID{JobID: "job-1", StageID: 0, PartitionID: 1}, Phase: types.TaskPending},
		{PartitionID: types.PartitionID{JobID: "job-2", StageID: 0, PartitionID: 0}, Phase: types.TaskPending},
	}
	for _, task := range tasks {
		require.NoError(t, s.SaveTaskStatus(ctx, task))
	}

	all, err := s.GetAllTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	job1Tasks, err := s.GetJobTasks(ctx, "job-1")
	require.NoError(t, err)
	assert.Len(t, job1Tasks, 2)
}

func TestLockIsMutuallyExclusive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	guard, err := s.Lock(ctx)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		g2, err := s.Lock(ctx)
		require.NoError(t, err)
		close(acquired)
		_ = g2.Unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock acquired while first guard still held")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, guard.Unlock())
	<-acquired
}
