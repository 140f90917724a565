// Package store implements the typed State Store on top of a
// pkg/kv.Backend: one exported method per operation, each
// JSON-marshaling its entity before handing it to the backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cuemby/qscheduler/pkg/apierr"
	"github.com/cuemby/qscheduler/pkg/kv"
	"github.com/cuemby/qscheduler/pkg/plan"
	"github.com/cuemby/qscheduler/pkg/types"
)

// Store is the scheduler's sole shared mutable resource: every
// persisted entity and the global advisory lock are reached through it.
type Store struct {
	backend   kv.Backend
	namespace string
}

// New creates a Store scoped to namespace over backend.
func New(backend kv.Backend, namespace string) *Store {
	return &Store{backend: backend, namespace: namespace}
}

func (s *Store) key(parts ...string) string {
	key := "/" + s.namespace
	for _, p := range parts {
		key += "/" + p
	}
	return key
}

func wrapBackendErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, kv.ErrKeyNotFound):
		return apierr.Wrap(apierr.BackendNotFound, op, err)
	case errors.Is(err, kv.ErrUnavailable):
		return apierr.Wrap(apierr.BackendUnavailable, op, err)
	default:
		return apierr.Wrap(apierr.BackendUnavailable, op, err)
	}
}

// Guard is the held global scheduler lock.
type Guard struct {
	lock kv.Lock
}

// Unlock releases the scheduler-wide lock.
func (g *Guard) Unlock() error {
	if g.lock == nil {
		return nil
	}
	return g.lock.Unlock()
}

const globalLockName = "scheduler"

// Lock acquires the single scheduler-wide advisory lock.
func (s *Store) Lock(ctx context.Context) (*Guard, error) {
	l, err := s.backend.Lock(ctx, globalLockName)
	if err != nil {
		return nil, wrapBackendErr("lock", err)
	}
	return &Guard{lock: l}, nil
}

// --- Executors -------------------------------------------------------------

// SaveExecutorMetadata upserts e under /{ns}/executors/{id}.
func (s *Store) SaveExecutorMetadata(ctx context.Context, e types.Executor) error {
	data, err := json.Marshal(e)
	if err != nil {
		return apierr.Wrap(apierr.BackendSerialization, "marshal executor", err)
	}
	if err := s.backend.Put(ctx, s.key("executors", e.ID), data); err != nil {
		return wrapBackendErr("save executor metadata", err)
	}
	return nil
}

// GetExecutorsMetadata scans the executors prefix.
func (s *Store) GetExecutorsMetadata(ctx context.Context) ([]types.Executor, error) {
	entries, err := s.backend.Scan(ctx, s.key("executors")+"/")
	if err != nil {
		return nil, wrapBackendErr("scan executors", err)
	}
	executors := make([]types.Executor, 0, len(entries))
	for _, entry := range entries {
		var e types.Executor
		if err := json.Unmarshal(entry.Value, &e); err != nil {
			return nil, apierr.Wrap(apierr.BackendSerialization, "unmarshal executor", err)
		}
		executors = append(executors, e)
	}
	return executors, nil
}

// --- Jobs -------------------------------------------------------------------

// SaveJobMetadata upserts status under /{ns}/jobs/{job_id}.
func (s *Store) SaveJobMetadata(ctx context.Context, status types.JobStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return apierr.Wrap(apierr.BackendSerialization, "marshal job status", err)
	}
	if err := s.backend.Put(ctx, s.key("jobs", status.JobID), data); err != nil {
		return wrapBackendErr("save job metadata", err)
	}
	return nil
}

// GetJobMetadata reads a job's status, failing with JobUnknown if absent.
func (s *Store) GetJobMetadata(ctx context.Context, jobID string) (types.JobStatus, error) {
	data, err := s.backend.Get(ctx, s.key("jobs", jobID))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return types.JobStatus{}, apierr.New(apierr.JobUnknown, fmt.Sprintf("job %q not found", jobID))
		}
		return types.JobStatus{}, wrapBackendErr("get job metadata", err)
	}
	var status types.JobStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return types.JobStatus{}, apierr.Wrap(apierr.BackendSerialization, "unmarshal job status", err)
	}
	return status, nil
}

// --- Stages -------------------------------------------------------------------

// StagePlan is what's actually persisted for a stage: the plan
// operator tree can't be unmarshaled back into the plan.Node interface
// without a concrete type tag, so SaveStagePlan/GetStagePlan round-trip a
// StagePlan value that callers build/consume directly instead of a
// generic plan.Node (the planner and the RPC layer are the only callers
// and both already hold typed stage data at the call site).
type StagePlan struct {
	JobID              string
	StageID            int
	OutputPartitioning plan.Partitioning
	Encoded            []byte // opaque, planner-produced serialization of the subplan
}

// SaveStagePlan upserts a stage's plan under /{ns}/stages/{job_id}/{stage_id}.
func (s *Store) SaveStagePlan(ctx context.Context, sp StagePlan) error {
	data, err := json.Marshal(sp)
	if err != nil {
		return apierr.Wrap(apierr.BackendSerialization, "marshal stage plan", err)
	}
	if err := s.backend.Put(ctx, s.key("stages", sp.JobID, fmt.Sprint(sp.StageID)), data); err != nil {
		return wrapBackendErr("save stage plan", err)
	}
	return nil
}

// GetStagePlan reads one stage's plan.
func (s *Store) GetStagePlan(ctx context.Context, jobID string, stageID int) (StagePlan, error) {
	data, err := s.backend.Get(ctx, s.key("stages", jobID, fmt.Sprint(stageID)))
	if err != nil {
		return StagePlan{}, wrapBackendErr("get stage plan", err)
	}
	var sp StagePlan
	if err := json.Unmarshal(data, &sp); err != nil {
		return StagePlan{}, apierr.Wrap(apierr.BackendSerialization, "unmarshal stage plan", err)
	}
	return sp, nil
}

// --- Tasks -------------------------------------------------------------------

// SaveTaskStatus upserts a task status under
// /{ns}/tasks/{job_id}/{stage_id}/{partition_id}.
func (s *Store) SaveTaskStatus(ctx context.Context, status types.TaskStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return apierr.Wrap(apierr.BackendSerialization, "marshal task status", err)
	}
	if err := s.backend.Put(ctx, s.key("tasks", status.PartitionID.String()), data); err != nil {
		return wrapBackendErr("save task status", err)
	}
	return nil
}

// GetAllTasks scans the tasks prefix, returning every task status in key
// order (the keys themselves are not returned).
func (s *Store) GetAllTasks(ctx context.Context) ([]types.TaskStatus, error) {
	entries, err := s.backend.Scan(ctx, s.key("tasks")+"/")
	if err != nil {
		return nil, wrapBackendErr("scan tasks", err)
	}
	statuses := make([]types.TaskStatus, 0, len(entries))
	for _, entry := range entries {
		var t types.TaskStatus
		if err := json.Unmarshal(entry.Value, &t); err != nil {
			return nil, apierr.Wrap(apierr.BackendSerialization, "unmarshal task status", err)
		}
		statuses = append(statuses, t)
	}
	return statuses, nil
}

// GetJobTasks returns every task belonging to jobID.
func (s *Store) GetJobTasks(ctx context.Context, jobID string) ([]types.TaskStatus, error) {
	entries, err := s.backend.Scan(ctx, s.key("tasks", jobID)+"/")
	if err != nil {
		return nil, wrapBackendErr("scan job tasks", err)
	}
	statuses := make([]types.TaskStatus, 0, len(entries))
	for _, entry := range entries {
		var t types.TaskStatus
		if err := json.Unmarshal(entry.Value, &t); err != nil {
			return nil, apierr.Wrap(apierr.BackendSerialization, "unmarshal task status", err)
		}
		statuses = append(statuses, t)
	}
	return statuses, nil
}
