// Package raftkv implements kv.Backend over a hashicorp/raft replicated
// log. Every write travels as a Command{Op,Data} envelope through
// raft.Apply and lands in an in-memory FSM; the op set is deliberately
// small — put, a lock compare-and-swap, and its release.
package raftkv

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"
)

// command is the envelope applied through the raft log.
type command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

const (
	opPut     = "put"
	opLockCAS = "lock_cas"
	opUnlock  = "unlock"
)

type putPayload struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

type lockCASPayload struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
}

// fsm is the raft.FSM backing the Backend's in-memory state. Entries and
// lock ownership both live in plain Go maps guarded by mu; raft.Apply is
// the only writer, so reads take the lock defensively against concurrent
// FSM snapshot/restore.
type fsm struct {
	mu      sync.RWMutex
	entries map[string][]byte
	locks   map[string]string // lock name -> owner token, absent/"" == free
}

func newFSM() *fsm {
	return &fsm{
		entries: make(map[string][]byte),
		locks:   make(map[string]string),
	}
}

// Apply applies one committed raft log entry. Returns an error for an
// unmarshal failure, or for lock_cas a bool reporting whether the CAS
// succeeded — callers inspect the apply future's Response().
func (f *fsm) Apply(log *raft.Log) interface{} {
	var cmd command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("raftkv: failed to unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case opPut:
		var p putPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		f.entries[p.Key] = p.Value
		return nil

	case opLockCAS:
		var p lockCASPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		if owner, held := f.locks[p.Name]; held && owner != p.Owner {
			return false
		}
		f.locks[p.Name] = p.Owner
		return true

	case opUnlock:
		var p lockCASPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		if owner, held := f.locks[p.Name]; held && owner == p.Owner {
			delete(f.locks, p.Name)
		}
		return nil

	default:
		return fmt.Errorf("raftkv: unknown command op %q", cmd.Op)
	}
}

// fsmSnapshot is a point-in-time copy of the FSM state for raft snapshotting.
type fsmSnapshot struct {
	Entries map[string][]byte `json:"entries"`
	Locks   map[string]string `json:"locks"`
}

func (f *fsm) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries := make(map[string][]byte, len(f.entries))
	for k, v := range f.entries {
		entries[k] = append([]byte(nil), v...)
	}
	locks := make(map[string]string, len(f.locks))
	for k, v := range f.locks {
		locks[k] = v
	}
	return &fsmSnapshot{Entries: entries, Locks: locks}, nil
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	data, err := json.Marshal(s)
	if err != nil {
		sink.Cancel()
		return err
	}
	if _, err := sink.Write(data); err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}

func (f *fsm) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	var snap fsmSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = snap.Entries
	if f.entries == nil {
		f.entries = make(map[string][]byte)
	}
	f.locks = snap.Locks
	if f.locks == nil {
		f.locks = make(map[string]string)
	}
	return nil
}
