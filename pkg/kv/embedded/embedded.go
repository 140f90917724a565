// Package embedded implements kv.Backend on top of a single-process bbolt
// database. All entries live in one bucket: the kv contract is a flat
// namespaced keyspace, so a bucket-per-entity layout would buy nothing.
package embedded

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cuemby/qscheduler/pkg/kv"
	bolt "go.etcd.io/bbolt"
)

var bucketEntries = []byte("entries")

// Backend is a bbolt-backed kv.Backend suitable for a single scheduler
// process (the "embedded-disk" deployment mode, no cluster coordination).
type Backend struct {
	db *bolt.DB

	mu    sync.Mutex
	locks map[string]chan struct{}
}

// New opens (creating if necessary) a bbolt database under dataDir.
func New(dataDir string) (*Backend, error) {
	dbPath := filepath.Join(dataDir, "scheduler.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Backend{db: db, locks: make(map[string]chan struct{})}, nil
}

// Close closes the underlying database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Get implements kv.Backend.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEntries)
		data := bucket.Get([]byte(key))
		if data == nil {
			return kv.ErrKeyNotFound
		}
		value = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put implements kv.Backend.
func (b *Backend) Put(ctx context.Context, key string, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEntries)
		return bucket.Put([]byte(key), value)
	})
}

// Scan implements kv.Backend.
func (b *Backend) Scan(ctx context.Context, prefix string) ([]kv.Entry, error) {
	var entries []kv.Entry
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEntries)
		cursor := bucket.Cursor()
		prefixBytes := []byte(prefix)
		for k, v := cursor.Seek(prefixBytes); k != nil && bytes.HasPrefix(k, prefixBytes); k, v = cursor.Next() {
			entries = append(entries, kv.Entry{Key: string(k), Value: append([]byte(nil), v...)})
		}
		return nil
	})
	return entries, err
}

// boltLock is the kv.Lock handle returned by Backend.Lock: a named, local
// in-process mutex, valid for the single-process embedded deployment mode.
type boltLock struct {
	backend *Backend
	name    string
}

// Lock implements kv.Backend. There is no distributed coordination to do
// here — the embedded backend only ever runs inside one scheduler process
// — so the "advisory lock" is a local channel-based mutex per lock name.
func (b *Backend) Lock(ctx context.Context, name string) (kv.Lock, error) {
	b.mu.Lock()
	ch, ok := b.locks[name]
	if !ok {
		ch = make(chan struct{}, 1)
		b.locks[name] = ch
	}
	b.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return &boltLock{backend: b, name: name}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *boltLock) Unlock() error {
	l.backend.mu.Lock()
	ch := l.backend.locks[l.name]
	l.backend.mu.Unlock()
	<-ch
	return nil
}
