// Package reconciler runs the background loop that promotes a job's
// status from the statuses of its tasks: read every Running job's tasks
// each tick, and write a terminal job status once they allow one.
package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/qscheduler/pkg/log"
	"github.com/cuemby/qscheduler/pkg/metrics"
	"github.com/cuemby/qscheduler/pkg/store"
	"github.com/cuemby/qscheduler/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultInterval is how often the loop reconciles job status when the
// caller doesn't override it.
const DefaultInterval = 5 * time.Second

// Reconciler promotes Running jobs to Failed as soon as any task has
// Failed, and to Completed once every task has Completed.
type Reconciler struct {
	store    *store.Store
	interval time.Duration
	logger   zerolog.Logger
	mu       sync.Mutex
	stopCh   chan struct{}
}

// New creates a Reconciler over s. interval <= 0 uses DefaultInterval.
func New(s *store.Store, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reconciler{
		store:    s,
		interval: interval,
		logger:   log.WithComponent("reconciler"),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the reconciliation loop in a background goroutine.
func (r *Reconciler) Start() {
	go r.run()
}

// Stop stops the reconciliation loop.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.interval).Msg("reconciler started")

	for {
		select {
		case <-ticker.C:
			if err := r.reconcile(context.Background()); err != nil {
				r.logger.Error().Err(err).Msg("reconciliation cycle failed")
			}
		case <-r.stopCh:
			r.logger.Info().Msg("reconciler stopped")
			return
		}
	}
}

// reconcile performs one reconciliation cycle: every Running job with
// any Failed task is promoted to Failed (even while other tasks are
// still non-terminal), and every Running job whose tasks are all
// Completed is promoted to Completed. Idempotent — re-running against an
// already-terminal job is a no-op because GetJobMetadata is filtered to
// JobRunning below.
func (r *Reconciler) reconcile(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	tasks, err := r.store.GetAllTasks(ctx)
	if err != nil {
		return err
	}

	byJob := make(map[string][]types.TaskStatus)
	for _, t := range tasks {
		byJob[t.PartitionID.JobID] = append(byJob[t.PartitionID.JobID], t)
	}

	for jobID, jobTasks := range byJob {
		status, err := r.store.GetJobMetadata(ctx, jobID)
		if err != nil {
			r.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to load job metadata during reconciliation")
			continue
		}
		if status.Phase != types.JobRunning {
			continue
		}
		if err := r.reconcileJob(ctx, status, jobTasks); err != nil {
			r.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to reconcile job")
		}
	}

	return nil
}

func (r *Reconciler) reconcileJob(ctx context.Context, status types.JobStatus, tasks []types.TaskStatus) error {
	allTerminal := true
	anyFailed := false
	var failureMsg string
	maxStageID := 0

	for _, t := range tasks {
		if t.Phase == types.TaskFailed {
			anyFailed = true
			if failureMsg == "" {
				failureMsg = t.Error
			}
			continue
		}
		if !t.IsTerminal() {
			allTerminal = false
		}
		if t.PartitionID.StageID > maxStageID {
			maxStageID = t.PartitionID.StageID
		}
	}

	// A single Failed task fails the job immediately, even while siblings
	// are still Pending/Running — task reassignment on executor loss is
	// unimplemented, so waiting for every task to go terminal would leave
	// the job Running forever.
	if !anyFailed && !allTerminal {
		return nil
	}

	status.UpdatedAt = time.Now()
	if anyFailed {
		status.Phase = types.JobFailed
		status.Error = failureMsg
		metrics.JobsFailedByReconciler.Inc()
		r.logger.Warn().Str("job_id", status.JobID).Str("error", failureMsg).Msg("job failed")
	} else {
		var locations []types.PartitionLocation
		for _, t := range tasks {
			if t.PartitionID.StageID == maxStageID {
				locations = append(locations, t.Locations...)
			}
		}
		status.Phase = types.JobCompleted
		status.Locations = locations
		metrics.JobsCompletedByReconciler.Inc()
		r.logger.Info().Str("job_id", status.JobID).Msg("job completed")
	}

	return r.store.SaveJobMetadata(ctx, status)
}
