package plan

import (
	"encoding/json"
	"fmt"
)

// envelope is the tagged-union wire shape persisted for a plan subtree.
// Each operator's fields are folded flat into one struct and read back by
// KindTag, the discriminator the plan.Node interface itself can't carry
// through encoding/json.
type envelope struct {
	KindTag Kind      `json:"kind"`
	Child   *envelope `json:"child,omitempty"`
	Left    *envelope `json:"left,omitempty"`
	Right   *envelope `json:"right,omitempty"`
	Schema  []string  `json:"schema,omitempty"`

	Table        string `json:"table,omitempty"`
	NumPartition int    `json:"num_partition,omitempty"`

	Predicate string `json:"predicate,omitempty"`

	Exprs []string `json:"exprs,omitempty"`

	GroupExprs       []string `json:"group_exprs,omitempty"`
	DesiredPartCount int      `json:"desired_part_count,omitempty"`

	SortExprs []string `json:"sort_exprs,omitempty"`

	LeftKeys  []string `json:"left_keys,omitempty"`
	RightKeys []string `json:"right_keys,omitempty"`

	StageID int          `json:"stage_id,omitempty"`
	Output  Partitioning `json:"output,omitempty"`

	InputSchema    []string     `json:"input_schema,omitempty"`
	InputPartition Partitioning `json:"input_partition,omitempty"`
}

func toEnvelope(n Node) (*envelope, error) {
	if n == nil {
		return nil, nil
	}
	switch v := n.(type) {
	case *TableScan:
		return &envelope{
			KindTag:      TableScanKind,
			Table:        v.Table,
			Schema:       v.SchemaCols,
			NumPartition: v.NumPartition,
		}, nil

	case *Filter:
		child, err := toEnvelope(v.passthrough.child)
		if err != nil {
			return nil, err
		}
		return &envelope{KindTag: FilterKind, Child: child, Schema: v.schema, Predicate: v.Predicate}, nil

	case *Projection:
		child, err := toEnvelope(v.passthrough.child)
		if err != nil {
			return nil, err
		}
		return &envelope{KindTag: ProjectionKind, Child: child, Schema: v.schema, Exprs: v.Exprs}, nil

	case *HashAggregatePartial:
		child, err := toEnvelope(v.passthrough.child)
		if err != nil {
			return nil, err
		}
		return &envelope{KindTag: HashAggregatePartialKind, Child: child, Schema: v.schema, GroupExprs: v.GroupExprs}, nil

	case *HashAggregateFinal:
		child, err := toEnvelope(v.passthrough.child)
		if err != nil {
			return nil, err
		}
		return &envelope{
			KindTag:          HashAggregateFinalKind,
			Child:            child,
			Schema:           v.schema,
			GroupExprs:       v.GroupExprs,
			DesiredPartCount: v.desiredPartCount,
		}, nil

	case *Sort:
		child, err := toEnvelope(v.passthrough.child)
		if err != nil {
			return nil, err
		}
		return &envelope{KindTag: SortKind, Child: child, Schema: v.schema, SortExprs: v.SortExprs}, nil

	case *HashJoin:
		left, err := toEnvelope(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := toEnvelope(v.Right)
		if err != nil {
			return nil, err
		}
		return &envelope{
			KindTag:          HashJoinKind,
			Left:             left,
			Right:            right,
			Schema:           v.schema,
			LeftKeys:         v.LeftKeys,
			RightKeys:        v.RightKeys,
			DesiredPartCount: v.desiredPartCount,
		}, nil

	case *ShuffleWriter:
		child, err := toEnvelope(v.passthrough.child)
		if err != nil {
			return nil, err
		}
		return &envelope{KindTag: ShuffleWriterKind, Child: child, Schema: v.schema, StageID: v.StageID, Output: v.Output}, nil

	case *ShuffleReader:
		return &envelope{
			KindTag:        ShuffleReaderKind,
			StageID:        v.StageID,
			InputSchema:    v.InputSchema,
			InputPartition: v.InputPartition,
		}, nil

	default:
		return nil, fmt.Errorf("plan: unsupported node type %T", n)
	}
}

func fromEnvelope(e *envelope) (Node, error) {
	if e == nil {
		return nil, nil
	}
	switch e.KindTag {
	case TableScanKind:
		return &TableScan{Table: e.Table, SchemaCols: e.Schema, NumPartition: e.NumPartition}, nil

	case FilterKind:
		child, err := fromEnvelope(e.Child)
		if err != nil {
			return nil, err
		}
		return NewFilter(child, e.Predicate, e.Schema), nil

	case ProjectionKind:
		child, err := fromEnvelope(e.Child)
		if err != nil {
			return nil, err
		}
		return NewProjection(child, e.Exprs, e.Schema), nil

	case HashAggregatePartialKind:
		child, err := fromEnvelope(e.Child)
		if err != nil {
			return nil, err
		}
		return NewHashAggregatePartial(child, e.GroupExprs, e.Schema), nil

	case HashAggregateFinalKind:
		child, err := fromEnvelope(e.Child)
		if err != nil {
			return nil, err
		}
		return NewHashAggregateFinal(child, e.GroupExprs, e.Schema, e.DesiredPartCount), nil

	case SortKind:
		child, err := fromEnvelope(e.Child)
		if err != nil {
			return nil, err
		}
		return NewSort(child, e.SortExprs, e.Schema), nil

	case HashJoinKind:
		left, err := fromEnvelope(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := fromEnvelope(e.Right)
		if err != nil {
			return nil, err
		}
		return NewHashJoin(left, right, e.LeftKeys, e.RightKeys, e.Schema, e.DesiredPartCount), nil

	case ShuffleWriterKind:
		child, err := fromEnvelope(e.Child)
		if err != nil {
			return nil, err
		}
		return NewShuffleWriter(e.StageID, child, e.Output), nil

	case ShuffleReaderKind:
		return &ShuffleReader{StageID: e.StageID, InputSchema: e.InputSchema, InputPartition: e.InputPartition}, nil

	default:
		return nil, fmt.Errorf("plan: unknown kind tag %d", e.KindTag)
	}
}

// Encode serializes a plan subtree to JSON for storage in StagePlan.Encoded.
func Encode(n Node) ([]byte, error) {
	env, err := toEnvelope(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Decode is the inverse of Encode.
func Decode(data []byte) (Node, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return fromEnvelope(&env)
}

// FromSerialized decodes the already-serialized-plan branch of
// ExecuteQuery's query oneof — a client-supplied
// plan that bypasses SQL parsing entirely. Same wire shape as Encode/Decode.
func FromSerialized(data []byte) (Node, error) {
	return Decode(data)
}
