package store

import (
	"context"
	"sort"

	"github.com/cuemby/qscheduler/pkg/types"
)

// Assignment is the task + enclosing stage plan handed back to an executor.
type Assignment struct {
	Task  types.TaskStatus
	Stage StagePlan
}

// AssignNextSchedulableTask is the heart of the scheduler.
// It must be called with the global lock held. It:
//  1. Reads all task statuses and groups them by (job_id, stage_id).
//  2. For each Running job, finds the ready stages — a stage is ready when
//     every task of every stage with a smaller stage_id in the same job is
//     Completed (stage ids are dense, assigned leaves-first, so "smaller id
//     = upstream" is a valid shortcut).
//  3. Within ready stages, picks the first Pending task in lexicographic
//     (job_id, stage_id, partition_id) order.
//  4. Writes a Running status for it stamped with executorID and returns it
//     plus the enclosing stage's saved plan.
//
// Returns (Assignment{}, false, nil) if no task qualifies.
func (s *Store) AssignNextSchedulableTask(ctx context.Context, executorID string) (Assignment, bool, error) {
	allTasks, err := s.GetAllTasks(ctx)
	if err != nil {
		return Assignment{}, false, err
	}

	type stageKey struct {
		jobID   string
		stageID int
	}
	byStage := make(map[stageKey][]types.TaskStatus)
	for _, t := range allTasks {
		k := stageKey{jobID: t.PartitionID.JobID, stageID: t.PartitionID.StageID}
		byStage[k] = append(byStage[k], t)
	}

	// Collect candidate Pending tasks from ready stages across all jobs,
	// then pick the lexicographically-first one so ordering is independent
	// of map iteration order.
	var candidates []types.TaskStatus

	byJob := make(map[string][]int) // job_id -> sorted stage ids present
	for k := range byStage {
		byJob[k.jobID] = append(byJob[k.jobID], k.stageID)
	}
	for jobID, stageIDs := range byJob {
		jobStatus, err := s.GetJobMetadata(ctx, jobID)
		if err != nil || jobStatus.Phase != types.JobRunning {
			continue
		}

		sort.Ints(stageIDs)
		upstreamComplete := true
		for _, stageID := range stageIDs {
			tasks := byStage[stageKey{jobID: jobID, stageID: stageID}]
			if !upstreamComplete {
				break
			}
			stageAllComplete := true
			for _, t := range tasks {
				if t.Phase == types.TaskPending {
					candidates = append(candidates, t)
				}
				if t.Phase != types.TaskCompleted {
					stageAllComplete = false
				}
			}
			upstreamComplete = stageAllComplete
		}
	}

	if len(candidates) == 0 {
		return Assignment{}, false, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i].PartitionID, candidates[j].PartitionID
		if a.JobID != b.JobID {
			return a.JobID < b.JobID
		}
		if a.StageID != b.StageID {
			return a.StageID < b.StageID
		}
		return a.PartitionID < b.PartitionID
	})
	selected := candidates[0]
	selected.Phase = types.TaskRunning
	selected.ExecutorID = executorID

	if err := s.SaveTaskStatus(ctx, selected); err != nil {
		return Assignment{}, false, err
	}

	stagePlan, err := s.GetStagePlan(ctx, selected.PartitionID.JobID, selected.PartitionID.StageID)
	if err != nil {
		return Assignment{}, false, err
	}

	return Assignment{Task: selected, Stage: stagePlan}, true, nil
}
