package autoscaler

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/qscheduler/pkg/kv/embedded"
	"github.com/cuemby/qscheduler/pkg/store"
	"github.com/cuemby/qscheduler/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScaler(t *testing.T) (*Scaler, *store.Store) {
	t.Helper()
	b, err := embedded.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	s := store.New(b, "test")
	return New(s), s
}

func TestIsActiveFalseWhenNoTasks(t *testing.T) {
	scaler, _ := newTestScaler(t)
	active, err := scaler.IsActive(context.Background())
	require.NoError(t, err)
	assert.False(t, active)
}

func TestIsActiveTrueWhileAnyTaskNonTerminal(t *testing.T) {
	scaler, s := newTestScaler(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTaskStatus(ctx, types.TaskStatus{
		PartitionID: types.PartitionID{JobID: "job-1", StageID: 0, PartitionID: 0},
		Phase:       types.TaskRunning,
		UpdatedAt:   time.Now(),
	}))

	active, err := scaler.IsActive(ctx)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestIsActiveFalseOnceAllTasksTerminal(t *testing.T) {
	scaler, s := newTestScaler(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTaskStatus(ctx, types.TaskStatus{
		PartitionID: types.PartitionID{JobID: "job-1", StageID: 0, PartitionID: 0},
		Phase:       types.TaskCompleted,
		UpdatedAt:   time.Now(),
	}))
	require.NoError(t, s.SaveTaskStatus(ctx, types.TaskStatus{
		PartitionID: types.PartitionID{JobID: "job-1", StageID: 0, PartitionID: 1},
		Phase:       types.TaskFailed,
		UpdatedAt:   time.Now(),
	}))

	active, err := scaler.IsActive(ctx)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestGetMetricSpecReportsTargetOne(t *testing.T) {
	scaler, _ := newTestScaler(t)
	specs := scaler.GetMetricSpec(context.Background())
	require.Len(t, specs, 1)
	assert.Equal(t, InflightTasksMetric, specs[0].MetricName)
	assert.EqualValues(t, 1, specs[0].TargetSize)
}

func TestGetMetricsReportsSaturatingValue(t *testing.T) {
	scaler, _ := newTestScaler(t)
	values := scaler.GetMetrics(context.Background())
	require.Len(t, values, 1)
	assert.Equal(t, InflightTasksMetric, values[0].MetricName)
	assert.EqualValues(t, saturatingMetricValue, values[0].MetricValue)
}
