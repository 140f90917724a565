package metrics

import (
	"context"
	"time"

	"github.com/cuemby/qscheduler/pkg/store"
	"github.com/cuemby/qscheduler/pkg/types"
)

// raftStatusProvider is satisfied by pkg/kv/raftkv.Backend. Collector type-
// asserts for it so the embedded kv.Backend keeps working without exposing
// raft-specific metrics.
type raftStatusProvider interface {
	IsLeader() bool
	RaftStats() map[string]interface{}
}

// Collector collects scheduler metrics from the State Store.
type Collector struct {
	store  *store.Store
	raft   raftStatusProvider
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over s. backend is the kv
// backend the store was built with; if it implements raftStatusProvider,
// raft gauges are populated too.
func NewCollector(s *store.Store, backend interface{}) *Collector {
	c := &Collector{store: s, stopCh: make(chan struct{})}
	if rp, ok := backend.(raftStatusProvider); ok {
		c.raft = rp
	}
	return c
}

// Start begins collecting metrics on a fixed interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.collectExecutorMetrics(ctx)
	c.collectJobMetrics(ctx)
	c.collectTaskMetrics(ctx)
	c.collectRaftMetrics()
}

func (c *Collector) collectExecutorMetrics(ctx context.Context) {
	executors, err := c.store.GetExecutorsMetadata(ctx)
	if err != nil {
		return
	}
	ExecutorsTotal.Set(float64(len(executors)))
}

func (c *Collector) collectJobMetrics(ctx context.Context) {
	tasks, err := c.store.GetAllTasks(ctx)
	if err != nil {
		return
	}

	seenJobs := make(map[string]struct{})
	for _, t := range tasks {
		seenJobs[t.PartitionID.JobID] = struct{}{}
	}

	jobCounts := make(map[types.JobPhase]int)
	inflight := 0
	for jobID := range seenJobs {
		status, err := c.store.GetJobMetadata(ctx, jobID)
		if err != nil {
			continue
		}
		jobCounts[status.Phase]++
	}
	for _, t := range tasks {
		if !t.IsTerminal() {
			inflight++
		}
	}

	for phase, count := range jobCounts {
		JobsTotal.WithLabelValues(string(phase)).Set(float64(count))
	}
	InflightTasks.Set(float64(inflight))
}

func (c *Collector) collectTaskMetrics(ctx context.Context) {
	tasks, err := c.store.GetAllTasks(ctx)
	if err != nil {
		return
	}

	taskCounts := make(map[types.TaskPhase]int)
	for _, t := range tasks {
		taskCounts[t.Phase]++
	}
	for phase, count := range taskCounts {
		TasksTotal.WithLabelValues(string(phase)).Set(float64(count))
	}
}

func (c *Collector) collectRaftMetrics() {
	if c.raft == nil {
		return
	}

	if c.raft.IsLeader() {
		RaftLeader.Set(1)
	} else {
		RaftLeader.Set(0)
	}

	stats := c.raft.RaftStats()
	if stats == nil {
		return
	}
	if lastIndex, ok := stats["last_log_index"].(uint64); ok {
		RaftLogIndex.Set(float64(lastIndex))
	}
	if appliedIndex, ok := stats["applied_index"].(uint64); ok {
		RaftAppliedIndex.Set(float64(appliedIndex))
	}
	if peers, ok := stats["peers"].(uint64); ok {
		RaftPeers.Set(float64(peers))
	}
}
