package clusterlock

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/hashicorp/raft"

	"github.com/cocaineapp/balancer/internal/storage"
)

// maxGroupKey is the cluster-global counter get_next_group_number reserves
// contiguous ranges from.
const maxGroupKey = "MASTERMIND_MAX_GROUP_KEY"

// reserveCmd is the one Raft log entry this FSM understands: "advance the
// max-group counter by N and tell me what it was before", the command
// ReserveGroupIDs applies through the leader.
type reserveCmd struct {
	N int `json:"n"`
}

// reserveResult is Command.Apply's return value for a reserveCmd, surfaced
// to the caller through raft.ApplyFuture.Response().
type reserveResult struct {
	Start int
	Err   error
}

// FSM applies reservations against a storage.Store. The max-group counter
// is the balancer's single piece of raft-replicated state.
type FSM struct {
	mu    sync.Mutex
	store storage.Store
}

// NewFSM builds an FSM backed by store.
func NewFSM(store storage.Store) *FSM {
	return &FSM{store: store}
}

// Apply decodes and applies one committed log entry (raft.FSM).
func (f *FSM) Apply(log *raft.Log) interface{} {
	var cmd reserveCmd
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return reserveResult{Err: fmt.Errorf("clusterlock: decode command: %w", err)}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.readCounter()
	if err != nil {
		return reserveResult{Err: err}
	}
	if err := f.writeCounter(current + cmd.N); err != nil {
		return reserveResult{Err: err}
	}
	return reserveResult{Start: current}
}

func (f *FSM) readCounter() (int, error) {
	v, err := f.store.Get(maxGroupKey)
	if err == storage.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(string(v))
	if err != nil {
		return 0, fmt.Errorf("clusterlock: corrupt max-group counter %q: %w", v, err)
	}
	return n, nil
}

func (f *FSM) writeCounter(n int) error {
	return f.store.Put(maxGroupKey, []byte(strconv.Itoa(n)))
}

// Snapshot captures the current counter value (raft.FSM).
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.readCounter()
	if err != nil {
		return nil, err
	}
	return &fsmSnapshot{maxGroup: n}, nil
}

// Restore replaces the FSM's state from a previously persisted snapshot
// (raft.FSM).
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	var snap fsmSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("clusterlock: decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeCounter(snap.maxGroup)
}

type fsmSnapshot struct {
	maxGroup int
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		return json.NewEncoder(sink).Encode(snapshotWire{MaxGroup: s.maxGroup})
	}()
	if err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}

type snapshotWire struct {
	MaxGroup int `json:"max_group"`
}

func (s *fsmSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotWire{MaxGroup: s.maxGroup})
}

func (s *fsmSnapshot) UnmarshalJSON(data []byte) error {
	var w snapshotWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.maxGroup = w.MaxGroup
	return nil
}
