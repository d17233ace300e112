package clusterlock

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/cocaineapp/balancer/internal/storage"
)

// Config configures one balancer replica's raft participation. DataDir
// holds the raft log/stable/snapshot stores and, if Store is nil, a
// storage.BoltStore for the FSM; pass an explicit Store (e.g.
// storage.NewMemoryStore()) for single-process tests.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
	Store    storage.Store
}

// Cluster wraps a raft.Raft instance and the FSM it drives, giving Lock and
// the get_next_group_number reservation path a single leader to apply
// commands through.
type Cluster struct {
	raft  *raft.Raft
	fsm   *FSM
	store storage.Store
}

// Bootstrap starts a single-node raft cluster rooted at cfg. There is no
// TLS/CA/DNS machinery here; a control plane's internal lock only needs
// the raft quorum itself.
func Bootstrap(cfg Config) (*Cluster, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("clusterlock: create data dir: %w", err)
	}

	store := cfg.Store
	if store == nil {
		var err error
		store, err = storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("clusterlock: open store: %w", err)
		}
	}
	fsm := NewFSM(store)

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("clusterlock: resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("clusterlock: create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("clusterlock: create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("clusterlock: create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("clusterlock: create stable store: %w", err)
	}

	r, err := raft.NewRaft(raftCfg, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("clusterlock: create raft: %w", err)
	}

	future := r.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{{ID: raftCfg.LocalID, Address: transport.LocalAddr()}},
	})
	if err := future.Error(); err != nil && err != raft.ErrCantBootstrap {
		return nil, fmt.Errorf("clusterlock: bootstrap cluster: %w", err)
	}

	return &Cluster{raft: r, fsm: fsm, store: store}, nil
}

// AddVoter adds another balancer replica to the raft configuration; only
// the current leader may call this. Structural mutations, including
// cluster membership, are serialized through the leader.
func (c *Cluster) AddVoter(nodeID, addr string) error {
	if c.raft.State() != raft.Leader {
		return fmt.Errorf("clusterlock: not the leader, current leader is %s", c.raft.Leader())
	}
	return c.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, 10*time.Second).Error()
}

// IsLeader reports whether this replica currently holds raft leadership.
func (c *Cluster) IsLeader() bool { return c.raft.State() == raft.Leader }

// LeaderAddr returns the current leader's bind address, or "" if unknown.
func (c *Cluster) LeaderAddr() string { return string(c.raft.Leader()) }

// Shutdown stops raft and closes the underlying store.
func (c *Cluster) Shutdown() error {
	if err := c.raft.Shutdown().Error(); err != nil {
		return fmt.Errorf("clusterlock: raft shutdown: %w", err)
	}
	return c.store.Close()
}
