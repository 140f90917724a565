// Package config parses the per-query settings map carried on
// ExecuteQuery requests: a typed builder over a closed set of recognized
// keys, so a typo in a setting fails the request instead of silently
// falling back to a default.
package config

import (
	"strconv"

	"github.com/cuemby/qscheduler/pkg/apierr"
)

const (
	keyShufflePartitions = "default.shuffle.partitions"
	keyBatchSize         = "default.batch.size"

	defaultShufflePartitions = 16
	defaultBatchSize         = 8192
)

// Config holds the resolved settings for a single query.
type Config struct {
	ShufflePartitions int
	BatchSize         int
}

// KeyValue is one entry of the wire-level settings map.
type KeyValue struct {
	Key   string
	Value string
}

// Builder accumulates KeyValue overrides before producing a Config.
type Builder struct {
	shufflePartitions int
	batchSize         int
}

// NewBuilder returns a Builder seeded with defaults.
func NewBuilder() *Builder {
	return &Builder{
		shufflePartitions: defaultShufflePartitions,
		batchSize:         defaultBatchSize,
	}
}

// Set applies one key/value override, failing with BadConfig on an
// unrecognized key or an unparseable value.
func (b *Builder) Set(key, value string) error {
	switch key {
	case keyShufflePartitions:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return apierr.New(apierr.BadConfig, "invalid value for "+keyShufflePartitions+": "+value)
		}
		b.shufflePartitions = n

	case keyBatchSize:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return apierr.New(apierr.BadConfig, "invalid value for "+keyBatchSize+": "+value)
		}
		b.batchSize = n

	default:
		return apierr.New(apierr.BadConfig, "unknown config key: "+key)
	}
	return nil
}

// Build returns the accumulated Config.
func (b *Builder) Build() (Config, error) {
	return Config{
		ShufflePartitions: b.shufflePartitions,
		BatchSize:         b.batchSize,
	}, nil
}

// Parse is a convenience wrapper for the common case of applying every
// setting in order and building the result in one call.
func Parse(settings []KeyValue) (Config, error) {
	b := NewBuilder()
	for _, kv := range settings {
		if err := b.Set(kv.Key, kv.Value); err != nil {
			return Config{}, err
		}
	}
	return b.Build()
}
