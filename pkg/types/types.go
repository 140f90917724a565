// Package types holds the data model shared by the scheduler's components:
// executors, jobs, stages and tasks, as persisted in the state store.
package types

import (
	"fmt"
	"time"
)

// Executor identifies a stateless worker process that polls the scheduler
// for work. Registered (or refreshed) on every PollWork call.
type Executor struct {
	ID   string
	Host string
	Port int
}

// JobPhase is the current lifecycle phase of a job.
type JobPhase string

const (
	JobQueued    JobPhase = "queued"
	JobRunning   JobPhase = "running"
	JobCompleted JobPhase = "completed"
	JobFailed    JobPhase = "failed"
)

// PartitionLocation names where one output partition of a completed stage
// or job can be read from.
type PartitionLocation struct {
	ExecutorID string
	Path       string
}

// JobStatus is the oneof{Queued,Running,Completed,Failed} from the wire
// protocol, represented as a closed Go sum via a phase tag instead of a
// protobuf oneof.
type JobStatus struct {
	JobID     string
	Phase     JobPhase
	Error     string              // set when Phase == JobFailed
	Locations []PartitionLocation // set when Phase == JobCompleted
	UpdatedAt time.Time
}

// PartitionID identifies one task: a single partition of a single stage of
// a single job.
type PartitionID struct {
	JobID       string
	StageID     int
	PartitionID int
}

// String renders the id as "{job_id}/{stage_id}/{partition_id}", the same
// shape the state store uses for task keys.
func (p PartitionID) String() string {
	return fmt.Sprintf("%s/%d/%d", p.JobID, p.StageID, p.PartitionID)
}

// TaskPhase is the current lifecycle phase of a task.
type TaskPhase string

const (
	TaskPending   TaskPhase = "pending"
	TaskRunning   TaskPhase = "running"
	TaskCompleted TaskPhase = "completed"
	TaskFailed    TaskPhase = "failed"
)

// TaskStatus is the oneof{Pending,Running,Completed,Failed} task state,
// keyed by PartitionID.
type TaskStatus struct {
	PartitionID PartitionID
	Phase       TaskPhase
	ExecutorID  string              // set when Phase == TaskRunning
	Locations   []PartitionLocation // set when Phase == TaskCompleted
	Error       string              // set when Phase == TaskFailed
	UpdatedAt   time.Time
}

// IsTerminal reports whether the task has reached a phase an executor
// cannot move on from without intervention.
func (t TaskStatus) IsTerminal() bool {
	return t.Phase == TaskCompleted || t.Phase == TaskFailed
}
