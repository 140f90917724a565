// Package plan models the physical query plan tree the distributed planner
// cuts into shuffle-bounded stages. The operator set is a closed, tagged
// variant: callers branch on Kind rather than relying on runtime type
// discovery.
package plan

// Kind identifies a physical operator's variant.
type Kind int

const (
	UnknownKind Kind = iota
	TableScanKind
	FilterKind
	ProjectionKind
	HashAggregatePartialKind
	HashAggregateFinalKind
	SortKind
	HashJoinKind
	ShuffleWriterKind
	ShuffleReaderKind
)

func (k Kind) String() string {
	switch k {
	case TableScanKind:
		return "TableScan"
	case FilterKind:
		return "Filter"
	case ProjectionKind:
		return "Projection"
	case HashAggregatePartialKind:
		return "HashAggregatePartial"
	case HashAggregateFinalKind:
		return "HashAggregateFinal"
	case SortKind:
		return "Sort"
	case HashJoinKind:
		return "HashJoin"
	case ShuffleWriterKind:
		return "ShuffleWriter"
	case ShuffleReaderKind:
		return "ShuffleReader"
	default:
		return "Unknown"
	}
}

// Scheme is the partitioning scheme of a stage's output.
type Scheme int

const (
	UnknownPartitioning Scheme = iota
	RoundRobinPartitioning
	HashPartitioning
	SinglePartitioning
)

// Partitioning describes how a stage's output rows are split across
// partitions.
type Partitioning struct {
	Scheme         Scheme
	PartitionCount int
	HashExprs      []string // column names, only meaningful when Scheme == HashPartitioning
}

// Distribution is what a consumer operator requires its input to look like.
// A nil/UnknownPartitioning Distribution means "no requirement" (pass
// whatever partitioning the child already has) and therefore no shuffle
// boundary is needed at that edge.
type Distribution struct {
	Required Partitioning
}

// Node is one operator in the physical plan tree.
type Node interface {
	Kind() Kind
	Children() []Node
	// RequiredChildDistributions returns, per child (same order and length
	// as Children()), the partitioning that child's output must already
	// have. An entry with Scheme == UnknownPartitioning means no
	// requirement — the planner will not cut a shuffle boundary there.
	RequiredChildDistributions() []Distribution
	// Schema is an opaque, display-only description of the operator's
	// output columns; the real analytic engine's schema type is an
	// out-of-scope external collaborator.
	Schema() []string
	// WithChildren returns a shallow copy of the node with its children
	// replaced, same order and length as Children(). Leaves ignore it.
	// This is how the distributed planner splices ShuffleReader
	// placeholders in without a second type switch outside this package.
	WithChildren(children []Node) Node
}

// passthrough is embedded by single-child operators to avoid repeating
// the one-child Children()/no-requirement boilerplate on each of them.
type passthrough struct {
	child  Node
	schema []string
}

func (p passthrough) Children() []Node { return []Node{p.child} }
func (p passthrough) RequiredChildDistributions() []Distribution {
	return []Distribution{{}}
}
func (p passthrough) Schema() []string { return p.schema }

// TableScan reads a base relation; it has no children.
type TableScan struct {
	Table        string
	SchemaCols   []string
	NumPartition int // number of source file/row-group partitions
}

func (t *TableScan) Kind() Kind                                 { return TableScanKind }
func (t *TableScan) Children() []Node                           { return nil }
func (t *TableScan) RequiredChildDistributions() []Distribution { return nil }
func (t *TableScan) Schema() []string                           { return t.SchemaCols }
func (t *TableScan) WithChildren(children []Node) Node          { return t }

// Filter is a row-level predicate; never requires repartitioning.
type Filter struct {
	passthrough
	Predicate string
}

func NewFilter(child Node, predicate string, schema []string) *Filter {
	return &Filter{passthrough: passthrough{child: child, schema: schema}, Predicate: predicate}
}
func (f *Filter) Kind() Kind { return FilterKind }
func (f *Filter) WithChildren(children []Node) Node {
	return &Filter{passthrough: passthrough{child: children[0], schema: f.schema}, Predicate: f.Predicate}
}

// Projection selects/renames columns; never requires repartitioning.
type Projection struct {
	passthrough
	Exprs []string
}

func NewProjection(child Node, exprs []string, schema []string) *Projection {
	return &Projection{passthrough: passthrough{child: child, schema: schema}, Exprs: exprs}
}
func (p *Projection) Kind() Kind { return ProjectionKind }
func (p *Projection) WithChildren(children []Node) Node {
	return &Projection{passthrough: passthrough{child: children[0], schema: p.schema}, Exprs: p.Exprs}
}

// HashAggregatePartial computes a partial aggregate per input partition;
// it does not require its input to be repartitioned (each partition is
// aggregated independently before the shuffle).
type HashAggregatePartial struct {
	passthrough
	GroupExprs []string
}

func NewHashAggregatePartial(child Node, groupExprs, schema []string) *HashAggregatePartial {
	return &HashAggregatePartial{passthrough: passthrough{child: child, schema: schema}, GroupExprs: groupExprs}
}
func (h *HashAggregatePartial) Kind() Kind { return HashAggregatePartialKind }
func (h *HashAggregatePartial) WithChildren(children []Node) Node {
	return &HashAggregatePartial{passthrough: passthrough{child: children[0], schema: h.schema}, GroupExprs: h.GroupExprs}
}

// HashAggregateFinal merges partial aggregates; it requires its input
// hash-partitioned on the group columns, which is the canonical shuffle
// boundary this planner must insert a shuffle writer/reader pair for.
type HashAggregateFinal struct {
	passthrough
	GroupExprs       []string
	desiredPartCount int
}

func NewHashAggregateFinal(child Node, groupExprs, schema []string, partitionCount int) *HashAggregateFinal {
	return &HashAggregateFinal{
		passthrough:      passthrough{child: child, schema: schema},
		GroupExprs:       groupExprs,
		desiredPartCount: partitionCount,
	}
}
func (h *HashAggregateFinal) Kind() Kind { return HashAggregateFinalKind }
func (h *HashAggregateFinal) RequiredChildDistributions() []Distribution {
	return []Distribution{{Required: Partitioning{
		Scheme:         HashPartitioning,
		PartitionCount: h.desiredPartCount,
		HashExprs:      h.GroupExprs,
	}}}
}
func (h *HashAggregateFinal) WithChildren(children []Node) Node {
	return &HashAggregateFinal{
		passthrough:      passthrough{child: children[0], schema: h.schema},
		GroupExprs:       h.GroupExprs,
		desiredPartCount: h.desiredPartCount,
	}
}

// Sort is a global (order-preserving across the whole relation) sort; it
// requires its input merged into a single partition.
type Sort struct {
	passthrough
	SortExprs []string
}

func NewSort(child Node, sortExprs, schema []string) *Sort {
	return &Sort{passthrough: passthrough{child: child, schema: schema}, SortExprs: sortExprs}
}
func (s *Sort) Kind() Kind { return SortKind }
func (s *Sort) RequiredChildDistributions() []Distribution {
	return []Distribution{{Required: Partitioning{Scheme: SinglePartitioning, PartitionCount: 1}}}
}
func (s *Sort) WithChildren(children []Node) Node {
	return &Sort{passthrough: passthrough{child: children[0], schema: s.schema}, SortExprs: s.SortExprs}
}

// HashJoin requires both inputs hash-partitioned on their respective join
// keys, which is the other canonical shuffle boundary.
type HashJoin struct {
	Left, Right      Node
	LeftKeys         []string
	RightKeys        []string
	schema           []string
	desiredPartCount int
}

func NewHashJoin(left, right Node, leftKeys, rightKeys, schema []string, partitionCount int) *HashJoin {
	return &HashJoin{
		Left: left, Right: right,
		LeftKeys: leftKeys, RightKeys: rightKeys,
		schema: schema, desiredPartCount: partitionCount,
	}
}
func (j *HashJoin) Kind() Kind       { return HashJoinKind }
func (j *HashJoin) Children() []Node { return []Node{j.Left, j.Right} }
func (j *HashJoin) RequiredChildDistributions() []Distribution {
	return []Distribution{
		{Required: Partitioning{Scheme: HashPartitioning, PartitionCount: j.desiredPartCount, HashExprs: j.LeftKeys}},
		{Required: Partitioning{Scheme: HashPartitioning, PartitionCount: j.desiredPartCount, HashExprs: j.RightKeys}},
	}
}
func (j *HashJoin) Schema() []string { return j.schema }
func (j *HashJoin) WithChildren(children []Node) Node {
	return &HashJoin{
		Left: children[0], Right: children[1],
		LeftKeys: j.LeftKeys, RightKeys: j.RightKeys,
		schema: j.schema, desiredPartCount: j.desiredPartCount,
	}
}

// ShuffleWriter is the root of one stage: it writes its child's output,
// partitioned per Output, to files the corresponding ShuffleReader(s) of
// downstream stages will read.
type ShuffleWriter struct {
	passthrough
	StageID int
	Output  Partitioning
}

func NewShuffleWriter(stageID int, child Node, output Partitioning) *ShuffleWriter {
	return &ShuffleWriter{passthrough: passthrough{child: child, schema: child.Schema()}, StageID: stageID, Output: output}
}
func (s *ShuffleWriter) Kind() Kind { return ShuffleWriterKind }
func (s *ShuffleWriter) WithChildren(children []Node) Node {
	return NewShuffleWriter(s.StageID, children[0], s.Output)
}

// ShuffleReader is a placeholder left in a downstream stage's tree where a
// child subtree was severed off into its own upstream stage.
type ShuffleReader struct {
	StageID        int // the upstream stage this reads from
	InputSchema    []string
	InputPartition Partitioning
}

func (r *ShuffleReader) Kind() Kind                                 { return ShuffleReaderKind }
func (r *ShuffleReader) Children() []Node                           { return nil }
func (r *ShuffleReader) RequiredChildDistributions() []Distribution { return nil }
func (r *ShuffleReader) Schema() []string                           { return r.InputSchema }
func (r *ShuffleReader) WithChildren(children []Node) Node          { return r }
