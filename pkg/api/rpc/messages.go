package rpc

import (
	"github.com/cuemby/qscheduler/pkg/config"
	"github.com/cuemby/qscheduler/pkg/types"
)

// ExecutorMetadata identifies the caller of PollWork.
type ExecutorMetadata struct {
	ID   string
	Host string
	Port int
}

// ExecuteQueryRequest carries either raw SQL or an already-serialized
// plan (the query oneof), plus per-query config overrides.
type ExecuteQueryRequest struct {
	SQL      string
	PlanJSON []byte
	Settings []config.KeyValue
}

type ExecuteQueryResponse struct {
	JobID string
}

type GetJobStatusRequest struct {
	JobID string
}

type GetJobStatusResponse struct {
	Status types.JobStatus
}

type TaskStatusReport struct {
	Status types.TaskStatus
}

// PollWorkRequest is what an executor sends: its identity, whether it
// can accept a new task, and any completed/failed task reports since the
// last poll.
type PollWorkRequest struct {
	Metadata      ExecutorMetadata
	CanAcceptTask bool
	TaskStatus    []TaskStatusReport
}

// TaskDefinition is everything an executor needs to run one task: the
// identity of the partition it owns and the stage's encoded plan.
type TaskDefinition struct {
	PartitionID types.PartitionID
	StagePlan   []byte
}

type PollWorkResponse struct {
	Task *TaskDefinition
}

type GetFileMetadataRequest struct {
	Path     string
	FileType string
}

type FilePartitionMetadata struct {
	Filenames []string
}

type GetFileMetadataResponse struct {
	Schema     []string
	Partitions []FilePartitionMetadata
}

// ScaledObjectRef and the three ExternalScaler message pairs below match
// KEDA's external scaler protocol (see pkg/autoscaler).
type ScaledObjectRef struct {
	Name string
}

type IsActiveResponse struct {
	Result bool
}

type MetricSpec struct {
	MetricName string
	TargetSize int64
}

type GetMetricSpecResponse struct {
	MetricSpecs []MetricSpec
}

type GetMetricsRequest struct {
	ScaledObjectRef ScaledObjectRef
	MetricName      string
}

type MetricValue struct {
	MetricName  string
	MetricValue int64
}

type GetMetricsResponse struct {
	MetricValues []MetricValue
}
