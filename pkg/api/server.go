// Package api implements the Scheduler Service facade: the
// four client-facing RPCs plus the asynchronous compile+plan pipeline
// ExecuteQuery spawns, wrapping a single domain owner (*store.Store)
// behind gRPC, minus any mTLS bootstrap since authentication is out of
// scope here.
package api

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cuemby/qscheduler/pkg/apierr"
	"github.com/cuemby/qscheduler/pkg/api/rpc"
	"github.com/cuemby/qscheduler/pkg/autoscaler"
	"github.com/cuemby/qscheduler/pkg/config"
	"github.com/cuemby/qscheduler/pkg/filemeta"
	"github.com/cuemby/qscheduler/pkg/log"
	"github.com/cuemby/qscheduler/pkg/metrics"
	"github.com/cuemby/qscheduler/pkg/plan"
	"github.com/cuemby/qscheduler/pkg/planner"
	"github.com/cuemby/qscheduler/pkg/store"
	"github.com/cuemby/qscheduler/pkg/types"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Server implements rpc.SchedulerServiceServer and rpc.ExternalScalerServer
// over a single *store.Store.
type Server struct {
	rpc.UnimplementedSchedulerServiceServer
	rpc.UnimplementedExternalScalerServer

	store          *store.Store
	planner        *planner.Planner
	logicalPlanner LogicalPlanner
	scaler         *autoscaler.Scaler
	logger         zerolog.Logger

	grpc *grpc.Server
}

// NewServer creates a Server over s. lp resolves the SQL branch of
// ExecuteQuery's query oneof; pass a DefaultLogicalPlanner unless the
// caller has wired a real analytic engine.
func NewServer(s *store.Store, lp LogicalPlanner) *Server {
	return &Server{
		store:          s,
		planner:        planner.New(),
		logicalPlanner: lp,
		scaler:         autoscaler.New(s),
		logger:         log.WithComponent("api"),
	}
}

// Start runs the gRPC server on addr, registering both services. Blocks
// until the listener errors or Stop is called.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: failed to listen: %w", err)
	}

	s.grpc = grpc.NewServer(grpc.UnaryInterceptor(requestMetricsInterceptor))
	rpc.RegisterSchedulerServiceServer(s.grpc, s)
	rpc.RegisterExternalScalerServer(s.grpc, s)

	s.logger.Info().Str("addr", addr).Msg("scheduler service listening")
	return s.grpc.Serve(lis)
}

// requestMetricsInterceptor records per-RPC counts and latencies for
// every method on both registered services.
func requestMetricsInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	timer := metrics.NewTimer()
	resp, err := handler(ctx, req)
	timer.ObserveDurationVec(metrics.APIRequestDuration, info.FullMethod)
	metrics.APIRequestsTotal.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
	return resp, err
}

// Stop gracefully stops the gRPC server.
func (s *Server) Stop() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
}

// ExecuteQuery resolves the plan (serialized plan or LogicalPlanner)
// and persists Queued synchronously, spawns the stage-planning
// pipeline, and returns the job id.
func (s *Server) ExecuteQuery(ctx context.Context, req *rpc.ExecuteQueryRequest) (*rpc.ExecuteQueryResponse, error) {
	cfg, err := config.Parse(req.Settings)
	if err != nil {
		return nil, apierr.ToGRPCStatus(err)
	}

	logicalPlan, err := s.resolveLogicalPlan(req, cfg)
	if err != nil {
		return nil, apierr.ToGRPCStatus(err)
	}

	jobID := newJobID()
	now := time.Now()

	if err := s.store.SaveJobMetadata(ctx, types.JobStatus{
		JobID: jobID, Phase: types.JobQueued, UpdatedAt: now,
	}); err != nil {
		return nil, apierr.ToGRPCStatus(err)
	}
	metrics.JobsTotal.WithLabelValues(string(types.JobQueued)).Inc()

	go s.runPipeline(jobID, logicalPlan)

	return &rpc.ExecuteQueryResponse{JobID: jobID}, nil
}

func (s *Server) resolveLogicalPlan(req *rpc.ExecuteQueryRequest, cfg config.Config) (plan.Node, error) {
	switch {
	case len(req.PlanJSON) > 0:
		n, err := plan.FromSerialized(req.PlanJSON)
		if err != nil {
			return nil, apierr.Wrap(apierr.BadRequest, "execute query: invalid serialized plan", err)
		}
		return n, nil
	case req.SQL != "":
		n, err := s.logicalPlanner.Plan(req.SQL, cfg)
		if err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, apierr.New(apierr.BadRequest, "execute query: request carries neither a plan nor sql")
	}
}

// runPipeline is the detached unit of work spawned by ExecuteQuery: it
// persists Running, cuts the already-resolved plan into stages, and
// persists the stage set plus one Pending task per output partition.
// Optimizing and lowering are collapsed into the LogicalPlanner seam
// (see sqlplanner.go), which ExecuteQuery calls before spawning this.
// Any failure after the Running write persists Failed.
func (s *Server) runPipeline(jobID string, logicalPlan plan.Node) {
	ctx := context.Background()
	timer := metrics.NewTimer()
	jobLog := log.WithJobID(jobID)

	if err := s.store.SaveJobMetadata(ctx, types.JobStatus{
		JobID: jobID, Phase: types.JobRunning, UpdatedAt: time.Now(),
	}); err != nil {
		// Best-effort: log and continue, don't abort the pipeline over a
		// status-update failure.
		jobLog.Error().Err(err).Msg("failed to persist Running status")
	}

	stages, _, err := s.planner.Plan(logicalPlan)
	timer.ObserveDuration(metrics.PlanningDuration)
	if err != nil {
		s.failJob(ctx, jobID, err)
		return
	}

	for _, stage := range stages {
		encoded, err := plan.Encode(stage.Plan)
		if err != nil {
			s.failJob(ctx, jobID, apierr.Wrap(apierr.BackendSerialization, "encode stage plan", err))
			return
		}

		sp := store.StagePlan{
			JobID:              jobID,
			StageID:            stage.ID,
			OutputPartitioning: stage.Output,
			Encoded:            encoded,
		}
		if err := s.store.SaveStagePlan(ctx, sp); err != nil {
			s.failJob(ctx, jobID, err)
			return
		}
		metrics.StagesTotal.Inc()

		partitionCount := stage.Output.PartitionCount
		if partitionCount <= 0 {
			partitionCount = 1
		}
		for p := 0; p < partitionCount; p++ {
			task := types.TaskStatus{
				PartitionID: types.PartitionID{JobID: jobID, StageID: stage.ID, PartitionID: p},
				Phase:       types.TaskPending,
				UpdatedAt:   time.Now(),
			}
			if err := s.store.SaveTaskStatus(ctx, task); err != nil {
				s.failJob(ctx, jobID, err)
				return
			}
		}
	}

	metrics.JobsPlanned.Inc()
	jobLog.Info().Int("stages", len(stages)).Msg("job planned")
}

func (s *Server) failJob(ctx context.Context, jobID string, cause error) {
	metrics.JobsFailed.Inc()
	s.logger.Error().Err(cause).Str("job_id", jobID).Msg("job failed during planning pipeline")
	if err := s.store.SaveJobMetadata(ctx, types.JobStatus{
		JobID: jobID, Phase: types.JobFailed, Error: cause.Error(), UpdatedAt: time.Now(),
	}); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to persist Failed status")
	}
}

// PollWork implements the poll/assign protocol: register the caller,
// ingest any task status reports it carries, and, if it can accept more
// work, assign the next schedulable task.
func (s *Server) PollWork(ctx context.Context, req *rpc.PollWorkRequest) (*rpc.PollWorkResponse, error) {
	if req.Metadata.ID == "" {
		return nil, apierr.ToGRPCStatus(apierr.New(apierr.InvalidArgument, "poll work: executor metadata is required"))
	}

	host := req.Metadata.Host
	if host == "" {
		host = sourceHost(ctx)
	}

	guard, err := s.store.Lock(ctx)
	if err != nil {
		return nil, apierr.ToGRPCStatus(err)
	}
	defer func() {
		if uerr := guard.Unlock(); uerr != nil {
			s.logger.Error().Err(uerr).Msg("failed to release scheduler lock")
		}
	}()

	if err := s.store.SaveExecutorMetadata(ctx, types.Executor{
		ID: req.Metadata.ID, Host: host, Port: req.Metadata.Port,
	}); err != nil {
		return nil, apierr.ToGRPCStatus(err)
	}

	for _, report := range req.TaskStatus {
		if err := s.store.SaveTaskStatus(ctx, report.Status); err != nil {
			return nil, apierr.ToGRPCStatus(err)
		}
	}

	if !req.CanAcceptTask {
		return &rpc.PollWorkResponse{}, nil
	}

	timer := metrics.NewTimer()
	assignment, ok, err := s.store.AssignNextSchedulableTask(ctx, req.Metadata.ID)
	timer.ObserveDuration(metrics.TaskAssignmentLatency)
	if err != nil {
		return nil, apierr.ToGRPCStatus(err)
	}
	if !ok {
		return &rpc.PollWorkResponse{}, nil
	}
	metrics.TasksAssigned.Inc()

	root, err := plan.Decode(assignment.Stage.Encoded)
	if err != nil {
		return nil, apierr.ToGRPCStatus(apierr.Wrap(apierr.BackendSerialization, "decode stage plan", err))
	}
	if root.Kind() != plan.ShuffleWriterKind {
		return nil, apierr.ToGRPCStatus(apierr.New(apierr.InvalidState, "poll work: stage root is not a shuffle writer"))
	}

	return &rpc.PollWorkResponse{
		Task: &rpc.TaskDefinition{
			PartitionID: assignment.Task.PartitionID,
			StagePlan:   assignment.Stage.Encoded,
		},
	}, nil
}

// sourceHost substitutes the caller's transport-level address when the
// executor didn't supply one.
func sourceHost(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}

// GetJobStatus returns the current status of a job.
func (s *Server) GetJobStatus(ctx context.Context, req *rpc.GetJobStatusRequest) (*rpc.GetJobStatusResponse, error) {
	status, err := s.store.GetJobMetadata(ctx, req.JobID)
	if err != nil {
		return nil, apierr.ToGRPCStatus(err)
	}
	return &rpc.GetJobStatusResponse{Status: status}, nil
}

// GetFileMetadata probes the filesystem and returns partition metadata.
func (s *Server) GetFileMetadata(ctx context.Context, req *rpc.GetFileMetadataRequest) (*rpc.GetFileMetadataResponse, error) {
	ft, err := parseFileType(req.FileType)
	if err != nil {
		return nil, apierr.ToGRPCStatus(err)
	}

	md, err := filemeta.Probe(req.Path, ft)
	if err != nil {
		return nil, apierr.ToGRPCStatus(err)
	}

	partitions := make([]rpc.FilePartitionMetadata, len(md.Partitions))
	for i, p := range md.Partitions {
		partitions[i] = rpc.FilePartitionMetadata{Filenames: p.Filenames}
	}

	return &rpc.GetFileMetadataResponse{
		Schema:     md.Schema,
		Partitions: partitions,
	}, nil
}

func parseFileType(s string) (filemeta.FileType, error) {
	switch s {
	case "parquet":
		return filemeta.ParquetFileType, nil
	case "csv":
		return filemeta.CSVFileType, nil
	default:
		return filemeta.UnknownFileType, apierr.New(apierr.Unsupported, "get file metadata: unsupported file type "+s)
	}
}

// IsActive, GetMetricSpec and GetMetrics implement rpc.ExternalScalerServer
// by delegating to pkg/autoscaler against the same store.
// ScaledObjectRef/MetricName are unused: there is exactly one scaled
// workload, the executor fleet, so no routing by name is needed.

func (s *Server) IsActive(ctx context.Context, _ *rpc.ScaledObjectRef) (*rpc.IsActiveResponse, error) {
	active, err := s.scaler.IsActive(ctx)
	if err != nil {
		return nil, apierr.ToGRPCStatus(err)
	}
	return &rpc.IsActiveResponse{Result: active}, nil
}

func (s *Server) GetMetricSpec(ctx context.Context, _ *rpc.ScaledObjectRef) (*rpc.GetMetricSpecResponse, error) {
	specs := s.scaler.GetMetricSpec(ctx)
	out := make([]rpc.MetricSpec, len(specs))
	for i, spec := range specs {
		out[i] = rpc.MetricSpec{MetricName: spec.MetricName, TargetSize: spec.TargetSize}
	}
	return &rpc.GetMetricSpecResponse{MetricSpecs: out}, nil
}

func (s *Server) GetMetrics(ctx context.Context, _ *rpc.GetMetricsRequest) (*rpc.GetMetricsResponse, error) {
	values := s.scaler.GetMetrics(ctx)
	out := make([]rpc.MetricValue, len(values))
	for i, v := range values {
		out[i] = rpc.MetricValue{MetricName: v.MetricName, MetricValue: v.MetricValue}
	}
	return &rpc.GetMetricsResponse{MetricValues: out}, nil
}
