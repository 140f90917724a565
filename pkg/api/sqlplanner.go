// The real SQL compiler — parsing text into a logical plan, optimizing it,
// and lowering it to a physical plan — is an out-of-scope external
// collaborator (a separate analytic engine). LogicalPlanner is the seam
// for it: Server depends on the interface, not a concrete compiler.
// DefaultLogicalPlanner below is a minimal stand-in good enough to drive
// ExecuteQuery end to end in tests and the demo CLI — it recognizes a
// fixed SQL subset and emits a plan.Node tree directly, collapsing
// "optimize" and "lower to physical plan" into the one seam call.
package api

import (
	"strings"

	"github.com/cuemby/qscheduler/pkg/apierr"
	"github.com/cuemby/qscheduler/pkg/config"
	"github.com/cuemby/qscheduler/pkg/plan"
)

// LogicalPlanner turns SQL text into a plan ready for the distributed
// planner to cut into stages. The per-query config rides along so
// settings like default.shuffle.partitions can steer the plan shape.
type LogicalPlanner interface {
	Plan(sql string, cfg config.Config) (plan.Node, error)
}

// DefaultLogicalPlanner recognizes:
//
//	SELECT <cols> FROM <table> [WHERE <pred>] [GROUP BY <cols>] [ORDER BY <cols>]
//
// An empty query, a query not starting with SELECT, a missing FROM or a
// missing table name fails with BadRequest. Other text is not validated:
// anything after the last recognized clause is kept verbatim in that
// clause (or in the table name when no clause follows FROM). Real SQL
// parsing is the out-of-scope analytic engine's job, not this stand-in's.
type DefaultLogicalPlanner struct {
	// ScanPartitions is the TableScan partition count assumed for every
	// query (a real engine would derive this from file metadata).
	ScanPartitions int
	// ShufflePartitions is the output partition count used for any
	// GROUP BY's hash-final stage when cfg.ShufflePartitions is zero or
	// negative. config.Parse always fills that field (default 16), so a
	// Config built by config.Parse never falls back to this value.
	ShufflePartitions int
}

// NewDefaultLogicalPlanner returns a planner with the given defaults.
func NewDefaultLogicalPlanner(scanPartitions, shufflePartitions int) *DefaultLogicalPlanner {
	if scanPartitions <= 0 {
		scanPartitions = 4
	}
	if shufflePartitions <= 0 {
		shufflePartitions = 1
	}
	return &DefaultLogicalPlanner{ScanPartitions: scanPartitions, ShufflePartitions: shufflePartitions}
}

func (d *DefaultLogicalPlanner) Plan(sql string, cfg config.Config) (plan.Node, error) {
	q, err := parseSelect(sql)
	if err != nil {
		return nil, err
	}

	schema := q.columns
	if len(schema) == 0 {
		schema = []string{"*"}
	}

	var node plan.Node = &plan.TableScan{
		Table:        q.table,
		SchemaCols:   schema,
		NumPartition: d.ScanPartitions,
	}

	if q.where != "" {
		node = plan.NewFilter(node, q.where, schema)
	}

	if len(q.groupBy) > 0 {
		shufflePartitions := cfg.ShufflePartitions
		if shufflePartitions <= 0 {
			shufflePartitions = d.ShufflePartitions
		}
		node = plan.NewHashAggregatePartial(node, q.groupBy, schema)
		node = plan.NewHashAggregateFinal(node, q.groupBy, schema, shufflePartitions)
	}

	if !q.selectStar {
		node = plan.NewProjection(node, q.columns, schema)
	}

	if len(q.orderBy) > 0 {
		node = plan.NewSort(node, q.orderBy, schema)
	}

	return node, nil
}

type selectQuery struct {
	columns    []string
	selectStar bool
	table      string
	where      string
	groupBy    []string
	orderBy    []string
}

// parseSelect is a minimal, whitespace-tolerant parser for the fixed
// clause order this stand-in supports. It is deliberately not a general
// SQL grammar.
func parseSelect(sql string) (selectQuery, error) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return selectQuery{}, apierr.New(apierr.BadRequest, "sql: empty query")
	}
	upper := strings.ToUpper(sql)
	if !strings.HasPrefix(upper, "SELECT ") {
		return selectQuery{}, apierr.New(apierr.BadRequest, "sql: expected SELECT")
	}

	fromIdx := indexOfKeyword(upper, "FROM")
	if fromIdx < 0 {
		return selectQuery{}, apierr.New(apierr.BadRequest, "sql: missing FROM")
	}

	colsPart := strings.TrimSpace(sql[len("SELECT "):fromIdx])
	q := selectQuery{}
	if colsPart == "*" {
		q.selectStar = true
	} else {
		for _, c := range strings.Split(colsPart, ",") {
			q.columns = append(q.columns, strings.TrimSpace(c))
		}
	}

	rest := sql[fromIdx+len("FROM"):]
	restUpper := upper[fromIdx+len("FROM"):]

	whereIdx := indexOfKeyword(restUpper, "WHERE")
	groupIdx := indexOfKeyword(restUpper, "GROUP BY")
	orderIdx := indexOfKeyword(restUpper, "ORDER BY")

	end := len(rest)
	for _, idx := range []int{whereIdx, groupIdx, orderIdx} {
		if idx >= 0 && idx < end {
			end = idx
		}
	}
	q.table = strings.TrimSpace(rest[:end])
	if q.table == "" {
		return selectQuery{}, apierr.New(apierr.BadRequest, "sql: missing table name")
	}

	if whereIdx >= 0 {
		whereEnd := len(rest)
		for _, idx := range []int{groupIdx, orderIdx} {
			if idx > whereIdx && idx < whereEnd {
				whereEnd = idx
			}
		}
		q.where = strings.TrimSpace(rest[whereIdx+len("WHERE") : whereEnd])
	}

	if groupIdx >= 0 {
		groupEnd := len(rest)
		if orderIdx > groupIdx && orderIdx < groupEnd {
			groupEnd = orderIdx
		}
		cols := strings.TrimSpace(rest[groupIdx+len("GROUP BY") : groupEnd])
		for _, c := range strings.Split(cols, ",") {
			q.groupBy = append(q.groupBy, strings.TrimSpace(c))
		}
	}

	if orderIdx >= 0 {
		cols := strings.TrimSpace(rest[orderIdx+len("ORDER BY"):])
		for _, c := range strings.Split(cols, ",") {
			q.orderBy = append(q.orderBy, strings.TrimSpace(c))
		}
	}

	return q, nil
}

func indexOfKeyword(upperHaystack, keyword string) int {
	return strings.Index(upperHaystack, keyword)
}
