// Package execsim is a minimal executor simulator used by tests and the
// qexec demo binary: a ticker-driven poll loop that immediately reports
// every task it receives as Completed, without actually reading or
// shuffling any data. Real executors live outside this system; this one
// exists to drive the poll protocol end to end.
package execsim

import (
	"context"
	"time"

	"github.com/cuemby/qscheduler/pkg/api/rpc"
	"github.com/cuemby/qscheduler/pkg/log"
	"github.com/cuemby/qscheduler/pkg/types"
	"github.com/rs/zerolog"
)

const defaultPollInterval = 500 * time.Millisecond

// Poller is the subset of client.Client an Executor needs; satisfied by
// *client.Client and, in tests, by a fake.
type Poller interface {
	PollWork(ctx context.Context, req *rpc.PollWorkRequest) (*rpc.PollWorkResponse, error)
}

// Executor simulates one executor process: it polls, and for any task
// handed to it, reports Completed on the next poll.
type Executor struct {
	id           string
	host         string
	port         int
	poller       Poller
	pollInterval time.Duration
	logger       zerolog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates an Executor identified by id, polling poller.
func New(id, host string, port int, poller Poller) *Executor {
	return &Executor{
		id:           id,
		host:         host,
		port:         port,
		poller:       poller,
		pollInterval: defaultPollInterval,
		logger:       log.WithComponent("execsim").With().Str("executor_id", id).Logger(),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Run polls in a loop until ctx is canceled or Stop is called.
func (e *Executor) Run(ctx context.Context) {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	var pending []rpc.TaskStatusReport

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			pending = e.pollOnce(ctx, pending)
		}
	}
}

// Stop signals Run to return and blocks until it has.
func (e *Executor) Stop() {
	close(e.stopCh)
	<-e.doneCh
}

// pollOnce sends one PollWork carrying reports for any task completed
// since the previous poll, and returns the reports for the task (if any)
// just assigned, which a real executor would replace with actual task
// execution — this simulator marks it Completed immediately.
func (e *Executor) pollOnce(ctx context.Context, reports []rpc.TaskStatusReport) []rpc.TaskStatusReport {
	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := e.poller.PollWork(callCtx, &rpc.PollWorkRequest{
		Metadata:      rpc.ExecutorMetadata{ID: e.id, Host: e.host, Port: e.port},
		CanAcceptTask: true,
		TaskStatus:    reports,
	})
	if err != nil {
		e.logger.Error().Err(err).Msg("poll work failed")
		return nil
	}
	if resp.Task == nil {
		return nil
	}

	e.logger.Info().
		Str("job_id", resp.Task.PartitionID.JobID).
		Int("stage_id", resp.Task.PartitionID.StageID).
		Int("partition_id", resp.Task.PartitionID.PartitionID).
		Msg("task assigned, reporting completed")

	return []rpc.TaskStatusReport{{
		Status: types.TaskStatus{
			PartitionID: resp.Task.PartitionID,
			Phase:       types.TaskCompleted,
			ExecutorID:  e.id,
			UpdatedAt:   time.Now(),
		},
	}}
}
