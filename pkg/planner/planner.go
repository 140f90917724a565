// Package planner implements the distributed planner: a post-order walk
// over a physical plan that cuts a shuffle boundary at every edge where
// a consumer's required input distribution disagrees with what its child
// produces, yielding an ordered list of shuffle-writer-rooted stages.
package planner

import (
	"github.com/cuemby/qscheduler/pkg/apierr"
	"github.com/cuemby/qscheduler/pkg/log"
	"github.com/cuemby/qscheduler/pkg/plan"
	"github.com/rs/zerolog"
)

// Stage is one shuffle-bounded unit of work: a ShuffleWriter-rooted
// subplan whose leaves are either TableScans or ShuffleReaders pointing
// at earlier (strictly lower StageID) stages.
type Stage struct {
	ID     int
	Plan   plan.Node
	Output plan.Partitioning
}

// Planner cuts a physical plan into an ordered list of stages.
type Planner struct {
	logger zerolog.Logger
}

// New creates a Planner.
func New() *Planner {
	return &Planner{logger: log.WithComponent("planner")}
}

// Plan walks root post-order, severing a new stage at every edge where a
// consumer's RequiredChildDistributions demands a partitioning scheme the
// producer doesn't already present, and finally wraps the whole
// (possibly rewritten) tree in a terminal single-partition ShuffleWriter
// stage. Stages are returned in ascending ID order, which is also a valid
// dependency order: a stage only ever reads from stages with a smaller ID.
func (p *Planner) Plan(root plan.Node) ([]Stage, int, error) {
	if root == nil {
		return nil, 0, apierr.New(apierr.InvalidArgument, "planner: nil plan root")
	}

	c := &cutter{}
	rewritten, _, err := c.walk(root)
	if err != nil {
		return nil, 0, err
	}

	finalID := c.nextID
	c.nextID++
	finalWriter := plan.NewShuffleWriter(finalID, rewritten, plan.Partitioning{
		Scheme:         plan.SinglePartitioning,
		PartitionCount: 1,
	})
	c.stages = append(c.stages, Stage{ID: finalID, Plan: finalWriter, Output: finalWriter.Output})

	p.logger.Debug().Int("stages", len(c.stages)).Int("final_stage", finalID).Msg("plan cut into stages")
	return c.stages, finalID, nil
}

// cutter carries the monotonic stage-id counter and the accumulated
// stage list across one Plan call's recursive walk.
type cutter struct {
	nextID int
	stages []Stage
}

// walk returns the (possibly rewritten) node and the partitioning its
// output now presents to its parent.
func (c *cutter) walk(n plan.Node) (plan.Node, plan.Partitioning, error) {
	switch n.Kind() {
	case plan.TableScanKind:
		ts := n.(*plan.TableScan)
		return ts, plan.Partitioning{Scheme: plan.RoundRobinPartitioning, PartitionCount: ts.NumPartition}, nil

	case plan.ShuffleReaderKind:
		sr := n.(*plan.ShuffleReader)
		return sr, sr.InputPartition, nil

	case plan.UnknownKind:
		return nil, plan.Partitioning{}, apierr.New(apierr.PlannerUnsupportedOperator, "planner: unknown operator kind")
	}

	children := n.Children()
	reqs := n.RequiredChildDistributions()
	newChildren := make([]plan.Node, len(children))
	effective := make([]plan.Partitioning, len(children))

	for i, child := range children {
		rewrittenChild, childOut, err := c.walk(child)
		if err != nil {
			return nil, plan.Partitioning{}, err
		}

		var required plan.Partitioning
		if i < len(reqs) {
			required = reqs[i].Required
		}

		if required.Scheme != plan.UnknownPartitioning && !satisfies(childOut, required) {
			stageID := c.nextID
			c.nextID++

			writer := plan.NewShuffleWriter(stageID, rewrittenChild, required)
			c.stages = append(c.stages, Stage{ID: stageID, Plan: writer, Output: required})

			newChildren[i] = &plan.ShuffleReader{
				StageID:        stageID,
				InputSchema:    rewrittenChild.Schema(),
				InputPartition: required,
			}
			effective[i] = required
		} else {
			newChildren[i] = rewrittenChild
			effective[i] = childOut
		}
	}

	rebuilt := n.WithChildren(newChildren)
	return rebuilt, outputPartitioning(n, reqs, effective), nil
}

// outputPartitioning derives the partitioning a node presents upstream
// once its children have been cut. Operators with a real distribution
// requirement produce rows laid out exactly as that requirement demands
// (that's the point of satisfying it); passthrough operators forward
// their single child's effective partitioning unchanged.
func outputPartitioning(n plan.Node, reqs []plan.Distribution, effective []plan.Partitioning) plan.Partitioning {
	for _, r := range reqs {
		if r.Required.Scheme != plan.UnknownPartitioning {
			return r.Required
		}
	}
	if len(effective) > 0 {
		return effective[0]
	}
	return plan.Partitioning{}
}

// satisfies reports whether have already matches what want demands,
// meaning no shuffle boundary is needed at this edge.
func satisfies(have, want plan.Partitioning) bool {
	if have.Scheme != want.Scheme || have.PartitionCount != want.PartitionCount {
		return false
	}
	if want.Scheme != plan.HashPartitioning {
		return true
	}
	if len(have.HashExprs) != len(want.HashExprs) {
		return false
	}
	for i := range have.HashExprs {
		if have.HashExprs[i] != want.HashExprs[i] {
			return false
		}
	}
	return true
}
