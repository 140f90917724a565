package api

import (
	"testing"

	"github.com/cuemby/qscheduler/pkg/apierr"
	"github.com/cuemby/qscheduler/pkg/config"
	"github.com/cuemby/qscheduler/pkg/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanSelectStarIsABareScan(t *testing.T) {
	lp := NewDefaultLogicalPlanner(3, 2)

	node, err := lp.Plan("SELECT * FROM events", config.Config{})
	require.NoError(t, err)

	scan, ok := node.(*plan.TableScan)
	require.True(t, ok)
	assert.Equal(t, "events", scan.Table)
	assert.Equal(t, 3, scan.NumPartition)
}

func TestPlanFullClauseChain(t *testing.T) {
	lp := NewDefaultLogicalPlanner(2, 4)

	node, err := lp.Plan(
		"SELECT user_id, amount FROM events WHERE amount > 0 GROUP BY user_id ORDER BY user_id",
		config.Config{},
	)
	require.NoError(t, err)

	// Sort over projection over final aggregate over partial over filter
	// over scan, mirroring the clause order.
	sort, ok := node.(*plan.Sort)
	require.True(t, ok)
	proj, ok := sort.Children()[0].(*plan.Projection)
	require.True(t, ok)
	final, ok := proj.Children()[0].(*plan.HashAggregateFinal)
	require.True(t, ok)
	partial, ok := final.Children()[0].(*plan.HashAggregatePartial)
	require.True(t, ok)
	filter, ok := partial.Children()[0].(*plan.Filter)
	require.True(t, ok)
	assert.Equal(t, plan.TableScanKind, filter.Children()[0].Kind())
}

func TestPlanConfigShufflePartitionsWinOverPlannerDefault(t *testing.T) {
	lp := NewDefaultLogicalPlanner(2, 4)

	node, err := lp.Plan("SELECT k FROM t GROUP BY k", config.Config{ShufflePartitions: 9})
	require.NoError(t, err)

	final := findKind(node, plan.HashAggregateFinalKind)
	require.NotNil(t, final)
	reqs := final.RequiredChildDistributions()
	require.Len(t, reqs, 1)
	assert.Equal(t, 9, reqs[0].Required.PartitionCount)
}

func findKind(n plan.Node, k plan.Kind) plan.Node {
	if n == nil {
		return nil
	}
	if n.Kind() == k {
		return n
	}
	for _, c := range n.Children() {
		if found := findKind(c, k); found != nil {
			return found
		}
	}
	return nil
}

func TestPlanRejectsMalformedSQL(t *testing.T) {
	lp := NewDefaultLogicalPlanner(2, 2)

	tests := []struct {
		name string
		sql  string
	}{
		{name: "empty", sql: ""},
		{name: "not a select", sql: "DELETE FROM events"},
		{name: "missing from", sql: "SELECT a, b"},
		{name: "missing table", sql: "SELECT a FROM WHERE a > 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lp.Plan(tt.sql, config.Config{})
			require.Error(t, err)
			assert.Equal(t, apierr.BadRequest, apierr.KindOf(err))
		})
	}
}
