package config

import (
	"testing"

	"github.com/cuemby/qscheduler/pkg/apierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultShufflePartitions, cfg.ShufflePartitions)
	assert.Equal(t, defaultBatchSize, cfg.BatchSize)
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse([]KeyValue{
		{Key: "default.shuffle.partitions", Value: "32"},
		{Key: "default.batch.size", Value: "4096"},
	})
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.ShufflePartitions)
	assert.Equal(t, 4096, cfg.BatchSize)
}

func TestParseRejectsUnknownKey(t *testing.T) {
	_, err := Parse([]KeyValue{{Key: "not.a.real.key", Value: "1"}})
	require.Error(t, err)
	assert.Equal(t, apierr.BadConfig, apierr.KindOf(err))
}

func TestParseRejectsUnparseableValue(t *testing.T) {
	tests := []struct {
		name string
		kv   KeyValue
	}{
		{name: "non-numeric shuffle partitions", kv: KeyValue{Key: "default.shuffle.partitions", Value: "many"}},
		{name: "zero batch size", kv: KeyValue{Key: "default.batch.size", Value: "0"}},
		{name: "negative shuffle partitions", kv: KeyValue{Key: "default.shuffle.partitions", Value: "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]KeyValue{tt.kv})
			require.Error(t, err)
			assert.Equal(t, apierr.BadConfig, apierr.KindOf(err))
		})
	}
}
