package kv

import "errors"

// Sentinel errors a Backend implementation returns; pkg/store translates
// these into apierr.Kind values for the RPC layer.
var (
	ErrKeyNotFound = errors.New("kv: key not found")
	ErrUnavailable = errors.New("kv: backend unavailable")
)
