package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster metrics
	ExecutorsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qscheduler_executors_total",
			Help: "Total number of registered executors",
		},
	)

	JobsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "qscheduler_jobs_total",
			Help: "Total number of jobs by phase",
		},
		[]string{"phase"},
	)

	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "qscheduler_tasks_total",
			Help: "Total number of tasks by phase",
		},
		[]string{"phase"},
	)

	StagesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qscheduler_stages_total",
			Help: "Total number of stages across all tracked jobs",
		},
	)

	// Raft metrics (only populated when the raftkv backend is in use)
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qscheduler_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qscheduler_raft_peers_total",
			Help: "Total number of Raft peers in the cluster",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qscheduler_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qscheduler_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qscheduler_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qscheduler_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Planner metrics
	PlanningDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qscheduler_planning_duration_seconds",
			Help:    "Time taken to cut a physical plan into stages",
			Buckets: prometheus.DefBuckets,
		},
	)

	JobsPlanned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qscheduler_jobs_planned_total",
			Help: "Total number of jobs successfully planned",
		},
	)

	JobsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qscheduler_jobs_failed_total",
			Help: "Total number of jobs that failed during the planning pipeline",
		},
	)

	// Task assignment metrics
	TaskAssignmentLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qscheduler_task_assignment_latency_seconds",
			Help:    "Time taken to find and assign a schedulable task while the global lock is held",
			Buckets: prometheus.DefBuckets,
		},
	)

	TasksAssigned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qscheduler_tasks_assigned_total",
			Help: "Total number of tasks handed out to executors",
		},
	)

	// Raft apply metrics (kv backend)
	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qscheduler_raft_apply_duration_seconds",
			Help:    "Time taken to apply a Raft log entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Reconciler metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qscheduler_reconciliation_duration_seconds",
			Help:    "Time taken for a reconciliation cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qscheduler_reconciliation_cycles_total",
			Help: "Total number of reconciliation cycles completed",
		},
	)

	JobsCompletedByReconciler = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qscheduler_reconciler_jobs_completed_total",
			Help: "Total number of jobs promoted to Completed by the reconciliation loop",
		},
	)

	JobsFailedByReconciler = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qscheduler_reconciler_jobs_failed_total",
			Help: "Total number of jobs promoted to Failed by the reconciliation loop",
		},
	)

	// Autoscaler metrics
	InflightTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qscheduler_inflight_tasks",
			Help: "Number of non-terminal tasks, the signal the ExternalScaler exposes to KEDA",
		},
	)
)

func init() {
	prometheus.MustRegister(ExecutorsTotal)
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(StagesTotal)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftPeers)
	prometheus.MustRegister(RaftLogIndex)
	prometheus.MustRegister(RaftAppliedIndex)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(PlanningDuration)
	prometheus.MustRegister(JobsPlanned)
	prometheus.MustRegister(JobsFailed)
	prometheus.MustRegister(TaskAssignmentLatency)
	prometheus.MustRegister(TasksAssigned)
	prometheus.MustRegister(RaftApplyDuration)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(JobsCompletedByReconciler)
	prometheus.MustRegister(JobsFailedByReconciler)
	prometheus.MustRegister(InflightTasks)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
