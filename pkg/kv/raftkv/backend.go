package raftkv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cuemby/qscheduler/pkg/kv"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// Config configures a single-node (or statically-bootstrapped) raft group
// backing a kv.Backend. Multi-scheduler-replica membership changes and
// leader-aware client redirection are out of scope.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string

	// LockRetryInterval is how long Lock waits between CAS attempts while
	// contending with another holder.
	LockRetryInterval time.Duration
}

// Backend is a raft-replicated kv.Backend (the "remote" deployment mode,
// replicating state across scheduler replicas).
type Backend struct {
	raft      *raft.Raft
	fsm       *fsm
	transport *raft.NetworkTransport
	logStore  *raftboltdb.BoltStore
	snapStore raft.SnapshotStore

	lockRetryInterval time.Duration
}

// New creates and bootstraps a single-node raft group rooted at
// cfg.DataDir, tuned with fast LAN-oriented timeouts rather than
// hashicorp/raft's WAN-conservative defaults.
func New(cfg Config) (*Backend, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("raftkv: failed to create data directory: %w", err)
	}

	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(cfg.NodeID)
	raftConfig.HeartbeatTimeout = 500 * time.Millisecond
	raftConfig.ElectionTimeout = 500 * time.Millisecond
	raftConfig.CommitTimeout = 50 * time.Millisecond
	raftConfig.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := resolveTCPAddr(cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("raftkv: failed to resolve bind addr: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raftkv: failed to create transport: %w", err)
	}

	snapshots, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raftkv: failed to create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("raftkv: failed to create log store: %w", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("raftkv: failed to create stable store: %w", err)
	}

	f := newFSM()
	r, err := raft.NewRaft(raftConfig, f, logStore, stableStore, snapshots, transport)
	if err != nil {
		return nil, fmt.Errorf("raftkv: failed to create raft node: %w", err)
	}

	bootstrapConfig := raft.Configuration{
		Servers: []raft.Server{
			{ID: raftConfig.LocalID, Address: transport.LocalAddr()},
		},
	}
	if err := r.BootstrapCluster(bootstrapConfig).Error(); err != nil && err != raft.ErrCantBootstrap {
		return nil, fmt.Errorf("raftkv: failed to bootstrap cluster: %w", err)
	}

	retry := cfg.LockRetryInterval
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}

	return &Backend{
		raft:              r,
		fsm:               f,
		transport:         transport,
		logStore:          logStore,
		snapStore:         snapshots,
		lockRetryInterval: retry,
	}, nil
}

// Close shuts down the raft node and closes its log stores.
func (b *Backend) Close() error {
	if err := b.raft.Shutdown().Error(); err != nil {
		return err
	}
	return b.logStore.Close()
}

// IsLeader reports whether this node currently holds the raft leadership.
func (b *Backend) IsLeader() bool {
	return b.raft.State() == raft.Leader
}

// RaftStats returns a snapshot of raft internals for metrics collection.
func (b *Backend) RaftStats() map[string]interface{} {
	stats := make(map[string]interface{})
	stats["state"] = b.raft.State().String()
	stats["last_log_index"] = b.raft.LastIndex()
	stats["applied_index"] = b.raft.AppliedIndex()
	stats["leader"] = string(b.raft.Leader())

	if future := b.raft.GetConfiguration(); future.Error() == nil {
		stats["peers"] = uint64(len(future.Configuration().Servers))
	}
	return stats
}

func (b *Backend) applyTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			return d
		}
	}
	return 5 * time.Second
}

// Get implements kv.Backend by reading the local FSM directly. Reads are
// not linearized through the raft log; the scheduler tolerates slightly
// stale reads and does not promise consistency beyond what the backend
// provides.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	b.fsm.mu.RLock()
	defer b.fsm.mu.RUnlock()
	v, ok := b.fsm.entries[key]
	if !ok {
		return nil, kv.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put implements kv.Backend by replicating a put command through raft.
func (b *Backend) Put(ctx context.Context, key string, value []byte) error {
	payload, err := json.Marshal(putPayload{Key: key, Value: value})
	if err != nil {
		return err
	}
	cmd, err := json.Marshal(command{Op: opPut, Data: payload})
	if err != nil {
		return err
	}
	future := b.raft.Apply(cmd, b.applyTimeout(ctx))
	if err := future.Error(); err != nil {
		return fmt.Errorf("%w: %v", kv.ErrUnavailable, err)
	}
	if err, ok := future.Response().(error); ok && err != nil {
		return err
	}
	return nil
}

// Scan implements kv.Backend, returning matching entries in key order.
func (b *Backend) Scan(ctx context.Context, prefix string) ([]kv.Entry, error) {
	b.fsm.mu.RLock()
	defer b.fsm.mu.RUnlock()

	var entries []kv.Entry
	for k, v := range b.fsm.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			entries = append(entries, kv.Entry{Key: k, Value: append([]byte(nil), v...)})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// raftLock is the kv.Lock handle for a raft-replicated CAS lock.
type raftLock struct {
	backend *Backend
	name    string
	owner   string
}

// Lock acquires a raft-replicated compare-and-swap lock, retrying with a
// fixed backoff until it succeeds or ctx is done. The lock has no lease
// or TTL: a holder that dies without calling Unlock leaves the name held
// until the FSM is restored from a snapshot that predates the acquire.
func (b *Backend) Lock(ctx context.Context, name string) (kv.Lock, error) {
	owner := fmt.Sprintf("%d", time.Now().UnixNano())
	payload, err := json.Marshal(lockCASPayload{Name: name, Owner: owner})
	if err != nil {
		return nil, err
	}
	cmd, err := json.Marshal(command{Op: opLockCAS, Data: payload})
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(b.lockRetryInterval)
	defer ticker.Stop()

	for {
		future := b.raft.Apply(cmd, b.applyTimeout(ctx))
		if err := future.Error(); err != nil {
			return nil, fmt.Errorf("%w: %v", kv.ErrUnavailable, err)
		}
		if acquired, _ := future.Response().(bool); acquired {
			return &raftLock{backend: b, name: name, owner: owner}, nil
		}

		select {
		case <-ticker.C:
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *raftLock) Unlock() error {
	payload, err := json.Marshal(lockCASPayload{Name: l.name, Owner: l.owner})
	if err != nil {
		return err
	}
	cmd, err := json.Marshal(command{Op: opUnlock, Data: payload})
	if err != nil {
		return err
	}
	future := l.backend.raft.Apply(cmd, 5*time.Second)
	return future.Error()
}
