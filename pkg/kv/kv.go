// Package kv defines the abstract key/value backend the state store is
// built on: namespaced get/put/scan plus a coarse advisory
// lock. Two implementations exist — pkg/kv/embedded (bbolt, single
// process) and pkg/kv/raftkv (hashicorp/raft, replicated).
package kv

import "context"

// Entry is one (key, value) pair returned by Scan.
type Entry struct {
	Key   string
	Value []byte
}

// Lock is a held advisory lock handle. The holder must call Unlock exactly
// once when done; the backend is free to implement Lock as a local mutex,
// a lease, or a raft-replicated CAS loop.
type Lock interface {
	Unlock() error
}

// Backend is the minimal contract a state store needs from its storage
// layer. All operations are namespace-agnostic; namespacing is the state
// store's responsibility (it prefixes every key with "/{ns}/").
type Backend interface {
	// Get returns the value stored at key, or ErrKeyNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put upserts key with value.
	Put(ctx context.Context, key string, value []byte) error
	// Scan returns every entry whose key has the given prefix, in
	// lexicographic key order.
	Scan(ctx context.Context, prefix string) ([]Entry, error)
	// Lock acquires the named advisory lock, blocking until it is free or
	// ctx is done. The scheduler uses a single lock name for its
	// whole-process critical section.
	Lock(ctx context.Context, name string) (Lock, error)
	// Close releases any resources held by the backend.
	Close() error
}
