package planner

import (
	"testing"

	"github.com/cuemby/qscheduler/pkg/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanFilterOnlyYieldsOneStage(t *testing.T) {
	scan := &plan.TableScan{Table: "t", SchemaCols: []string{"a"}, NumPartition: 4}
	filter := plan.NewFilter(scan, "a > 0", scan.SchemaCols)

	stages, finalID, err := New().Plan(filter)
	require.NoError(t, err)

	assert.Len(t, stages, 1)
	assert.Equal(t, 0, finalID)
	assert.Equal(t, plan.ShuffleWriterKind, stages[0].Plan.Kind())
	assert.Equal(t, plan.SinglePartitioning, stages[0].Output.Scheme)
}

func TestPlanGroupByCutsOneUpstreamStage(t *testing.T) {
	scan := &plan.TableScan{Table: "t", SchemaCols: []string{"k", "v"}, NumPartition: 4}
	partial := plan.NewHashAggregatePartial(scan, []string{"k"}, scan.SchemaCols)
	final := plan.NewHashAggregateFinal(partial, []string{"k"}, scan.SchemaCols, 8)

	stages, finalID, err := New().Plan(final)
	require.NoError(t, err)

	// One stage for the partial-aggregate-over-scan subtree (severed
	// because HashAggregateFinal requires hash partitioning, while its
	// partial-aggregate child only forwards the TableScan's round-robin
	// partitioning), plus the terminal single-partition stage wrapping the
	// final aggregate.
	require.Len(t, stages, 2)
	assert.Equal(t, finalID, stages[len(stages)-1].ID)

	upstream := stages[0]
	assert.Equal(t, plan.ShuffleWriterKind, upstream.Plan.Kind())
	writer := upstream.Plan.(*plan.ShuffleWriter)
	assert.Equal(t, plan.HashAggregatePartialKind, writer.Children()[0].Kind())

	terminal := stages[1]
	terminalWriter := terminal.Plan.(*plan.ShuffleWriter)
	reader, ok := terminalWriter.Children()[0].(*plan.HashAggregateFinal).Children()[0].(*plan.ShuffleReader)
	require.True(t, ok)
	assert.Equal(t, upstream.ID, reader.StageID)
}

func TestPlanHashJoinCutsBothSides(t *testing.T) {
	left := &plan.TableScan{Table: "l", SchemaCols: []string{"k"}, NumPartition: 2}
	right := &plan.TableScan{Table: "r", SchemaCols: []string{"k"}, NumPartition: 2}
	join := plan.NewHashJoin(left, right, []string{"k"}, []string{"k"}, []string{"k"}, 4)

	stages, finalID, err := New().Plan(join)
	require.NoError(t, err)

	// left stage, right stage, terminal stage.
	require.Len(t, stages, 3)
	assert.Equal(t, finalID, stages[2].ID)
	for _, s := range stages[:2] {
		assert.Equal(t, plan.HashPartitioning, s.Output.Scheme)
	}
}

func TestPlanRejectsNilRoot(t *testing.T) {
	_, _, err := New().Plan(nil)
	assert.Error(t, err)
}

func TestPlanIsDeterministic(t *testing.T) {
	build := func() plan.Node {
		scan := &plan.TableScan{Table: "t", SchemaCols: []string{"k", "v"}, NumPartition: 4}
		partial := plan.NewHashAggregatePartial(scan, []string{"k"}, scan.SchemaCols)
		return plan.NewHashAggregateFinal(partial, []string{"k"}, scan.SchemaCols, 8)
	}

	first, firstFinal, err := New().Plan(build())
	require.NoError(t, err)
	second, secondFinal, err := New().Plan(build())
	require.NoError(t, err)

	assert.Equal(t, firstFinal, secondFinal)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Output, second[i].Output)
	}
}

func TestPlanStageIDsAreDenseAndAscending(t *testing.T) {
	left := &plan.TableScan{Table: "l", SchemaCols: []string{"k"}, NumPartition: 2}
	right := &plan.TableScan{Table: "r", SchemaCols: []string{"k"}, NumPartition: 2}
	join := plan.NewHashJoin(left, right, []string{"k"}, []string{"k"}, []string{"k"}, 4)

	stages, _, err := New().Plan(join)
	require.NoError(t, err)

	for i, s := range stages {
		assert.Equal(t, i, s.ID)
	}
}
