package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSampleTree() Node {
	scan := &TableScan{Table: "events", SchemaCols: []string{"user_id", "amount"}, NumPartition: 4}
	filter := NewFilter(scan, "amount > 0", scan.SchemaCols)
	partial := NewHashAggregatePartial(filter, []string{"user_id"}, []string{"user_id", "amount"})
	final := NewHashAggregateFinal(partial, []string{"user_id"}, []string{"user_id", "amount"}, 8)
	return NewSort(final, []string{"user_id"}, final.Schema())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		node Node
	}{
		{name: "table scan leaf", node: &TableScan{Table: "t", SchemaCols: []string{"a"}, NumPartition: 2}},
		{name: "filter over scan", node: NewFilter(&TableScan{Table: "t", SchemaCols: []string{"a"}, NumPartition: 1}, "a > 1", []string{"a"})},
		{name: "deep aggregate/sort chain", node: buildSampleTree()},
		{
			name: "hash join",
			node: NewHashJoin(
				&TableScan{Table: "left", SchemaCols: []string{"k"}, NumPartition: 2},
				&TableScan{Table: "right", SchemaCols: []string{"k"}, NumPartition: 2},
				[]string{"k"}, []string{"k"}, []string{"k"}, 4,
			),
		},
		{
			name: "shuffle writer over scan",
			node: NewShuffleWriter(1, &TableScan{Table: "t", SchemaCols: []string{"a"}, NumPartition: 2},
				Partitioning{Scheme: HashPartitioning, PartitionCount: 4, HashExprs: []string{"a"}}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.node)
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)

			assert.Equal(t, tt.node.Kind(), got.Kind())
			assert.Equal(t, tt.node.Schema(), got.Schema())
		})
	}
}

func TestFromSerializedMatchesDecode(t *testing.T) {
	node := buildSampleTree()
	data, err := Encode(node)
	require.NoError(t, err)

	viaDecode, err := Decode(data)
	require.NoError(t, err)

	viaFromSerialized, err := FromSerialized(data)
	require.NoError(t, err)

	assert.Equal(t, viaDecode.Kind(), viaFromSerialized.Kind())
	assert.Equal(t, viaDecode.Schema(), viaFromSerialized.Schema())
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.Error(t, err)
}

func TestShuffleReaderPreservesInputPartitioning(t *testing.T) {
	reader := &ShuffleReader{
		StageID:     3,
		InputSchema: []string{"a", "b"},
		InputPartition: Partitioning{
			Scheme:         HashPartitioning,
			PartitionCount: 6,
			HashExprs:      []string{"a"},
		},
	}

	data, err := Encode(reader)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	gotReader, ok := got.(*ShuffleReader)
	require.True(t, ok)
	assert.Equal(t, reader.InputPartition, gotReader.InputPartition)
	assert.Equal(t, reader.StageID, gotReader.StageID)
}
