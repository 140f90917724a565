// Package autoscaler implements the KEDA ExternalScaler adapter: a
// single inflight_tasks metric with target size 1 and a saturating value
// on GetMetrics, so the HPA always scales toward its configured max
// while any task is in flight and back to zero once the fleet drains.
package autoscaler

import (
	"context"

	"github.com/cuemby/qscheduler/pkg/store"
)

// InflightTasksMetric is the metric name KEDA's ScaledObject is
// configured to watch.
const InflightTasksMetric = "inflight_tasks"

// saturatingMetricValue is a deliberately large value so the HPA always
// concludes it should scale toward its configured max while any task is
// in flight; the actual comparison math happens on the target_size (1)
// side, not here.
const saturatingMetricValue = 10_000_000

// Scaler answers the three ExternalScaler RPCs against the State Store's
// task statuses.
type Scaler struct {
	store *store.Store
}

// New creates a Scaler over s.
func New(s *store.Store) *Scaler {
	return &Scaler{store: s}
}

// MetricSpec is the (name, target) pair GetMetricSpec returns.
type MetricSpec struct {
	MetricName string
	TargetSize int64
}

// MetricValue is the (name, value) pair GetMetrics returns.
type MetricValue struct {
	MetricName  string
	MetricValue int64
}

// IsActive reports whether any task across any job is non-terminal.
func (s *Scaler) IsActive(ctx context.Context) (bool, error) {
	tasks, err := s.store.GetAllTasks(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range tasks {
		if !t.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

// GetMetricSpec returns the single inflight_tasks spec with target 1,
// meaning KEDA scales up whenever there's at least one inflight task.
func (s *Scaler) GetMetricSpec(ctx context.Context) []MetricSpec {
	return []MetricSpec{{MetricName: InflightTasksMetric, TargetSize: 1}}
}

// GetMetrics always reports a saturating value for inflight_tasks; actual
// scale decisions are driven by IsActive plus the fixed target size.
func (s *Scaler) GetMetrics(ctx context.Context) []MetricValue {
	return []MetricValue{{MetricName: InflightTasksMetric, MetricValue: saturatingMetricValue}}
}
