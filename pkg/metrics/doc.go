/*
Package metrics provides Prometheus metrics collection and exposition for
the scheduler, plus the HTTP health/readiness endpoints the serve command
mounts next to /metrics.

All metrics are defined as package-level collectors, registered once in
an init function, and written to from the packages that own the
corresponding behavior: pkg/api records planning and assignment timings,
pkg/reconciler records cycle durations and promotions, and the Collector
in this package periodically derives gauge values from the State Store.

# Metric Inventory

State gauges (set by Collector on a fixed interval):

	qscheduler_executors_total:
	  - Number of executors currently persisted in the state store.

	qscheduler_jobs_total{phase}:
	  - Jobs by phase (queued, running, completed, failed), counted over
	    jobs that have at least one task row.

	qscheduler_tasks_total{phase}:
	  - Tasks by phase across all jobs.

	qscheduler_inflight_tasks:
	  - Non-terminal (pending or running) tasks; the same signal the
	    ExternalScaler service reports to KEDA.

Raft gauges (populated only when the raft backend is in use):

	qscheduler_raft_is_leader:
	  - 1 when this node holds leadership, 0 otherwise.

	qscheduler_raft_peers_total:
	  - Voting members in the raft configuration.

	qscheduler_raft_log_index / qscheduler_raft_applied_index:
	  - Last appended and last applied log indexes; their difference is
	    the apply lag.

Operation counters and histograms (written at the call site):

	qscheduler_planning_duration_seconds:
	  - Time to cut one physical plan into stages.

	qscheduler_jobs_planned_total / qscheduler_jobs_failed_total:
	  - Jobs that finished the planning pipeline, by outcome.

	qscheduler_task_assignment_latency_seconds:
	  - Time spent inside assignment while the global lock is held. This
	    is the number to watch when poll volume grows: it bounds how
	    fast the whole fleet can drain work.

	qscheduler_tasks_assigned_total:
	  - Tasks handed out to executors.

	qscheduler_reconciliation_duration_seconds,
	qscheduler_reconciliation_cycles_total,
	qscheduler_reconciler_jobs_completed_total,
	qscheduler_reconciler_jobs_failed_total:
	  - Reconciliation loop activity and the job promotions it performed.

	qscheduler_stages_total:
	  - Stages persisted since process start.

	qscheduler_api_requests_total{method,status},
	qscheduler_api_request_duration_seconds{method}:
	  - Per-RPC request accounting for the gRPC facade.

# Usage

Timing an operation with the Timer helper:

	timer := metrics.NewTimer()
	stages, _, err := planner.Plan(root)
	timer.ObserveDuration(metrics.PlanningDuration)

Running the background collector next to a server:

	collector := metrics.NewCollector(stateStore, kvBackend)
	collector.Start()
	defer collector.Stop()

The collector type-asserts the kv backend for raft status; the embedded
backend simply never populates the raft gauges.

# Endpoints

Handler returns the promhttp handler for /metrics. HealthHandler,
ReadyHandler and LivenessHandler back /health, /ready and /live:
liveness always answers 200 while the process runs, readiness requires
every critical component (the state store and the API server) to have
registered healthy, and health reports per-component detail for
operators.

# Useful Queries

Work backlog and drain rate:

	qscheduler_tasks_total{phase="pending"}
	rate(qscheduler_tasks_assigned_total[5m])

Scheduler lock pressure:

	histogram_quantile(0.95, qscheduler_task_assignment_latency_seconds_bucket)

Job failure rate:

	rate(qscheduler_jobs_failed_total[15m])

Raft health (raft backend only):

	max(qscheduler_raft_is_leader) == 0
	qscheduler_raft_log_index - qscheduler_raft_applied_index
*/
package metrics
