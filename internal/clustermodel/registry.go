package clustermodel

import (
	"sort"
	"sync"

	"github.com/cocaineapp/balancer/internal/errs"
)

// ClusterState is the process-wide registry of nodes, groups, and couples.
// Mutation happens from the refresh loop or from lifecycle operations
// holding the cluster-change lock; reads are lock-free and snapshot-based —
// callers never see a torn aggregate, only a NodeState/Group/Couple as it
// stood at the moment Snapshot was taken.
type ClusterState struct {
	mu sync.RWMutex

	nodes   map[string]*NodeState
	groups  map[int]*Group
	couples map[string]*Couple
}

// NewClusterState returns an empty registry.
func NewClusterState() *ClusterState {
	return &ClusterState{
		nodes:   make(map[string]*NodeState),
		groups:  make(map[int]*Group),
		couples: make(map[string]*Couple),
	}
}

// Node returns the NodeState for addr, creating it if this is the first time
// addr has been seen.
func (cs *ClusterState) Node(addr string) *NodeState {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if ns, ok := cs.nodes[addr]; ok {
		return ns
	}
	ns := NewNodeState(addr)
	cs.nodes[addr] = ns
	return ns
}

// LookupNode resolves addr without creating a NodeState, for use as the
// lookup callback passed to Group.Snapshot.
func (cs *ClusterState) LookupNode(addr string) (*NodeState, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	ns, ok := cs.nodes[addr]
	return ns, ok
}

// Nodes returns every known node address, sorted.
func (cs *ClusterState) Nodes() []string {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make([]string, 0, len(cs.nodes))
	for addr := range cs.nodes {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// PutGroup inserts or replaces a group.
func (cs *ClusterState) PutGroup(g *Group) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.groups[g.ID] = g
}

// Group returns the group with the given id.
func (cs *ClusterState) Group(id int) (*Group, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	g, ok := cs.groups[id]
	if !ok {
		return nil, errs.Wrap(errs.NotFound, "clustermodel: group %d not found", id)
	}
	return g, nil
}

// Groups returns every group, sorted by id.
func (cs *ClusterState) Groups() []*Group {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make([]*Group, 0, len(cs.groups))
	for _, g := range cs.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DeleteGroup removes a group from the registry.
func (cs *ClusterState) DeleteGroup(id int) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.groups, id)
}

// PutCouple inserts or replaces a couple, keyed by its canonical id.
func (cs *ClusterState) PutCouple(c *Couple) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.couples[c.Key()] = c
}

// Couple returns the couple with the given canonical key.
func (cs *ClusterState) Couple(key string) (*Couple, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	c, ok := cs.couples[key]
	if !ok {
		return nil, errs.Wrap(errs.NotFound, "clustermodel: couple %q not found", key)
	}
	return c, nil
}

// Couples returns every couple, sorted by key.
func (cs *ClusterState) Couples() []*Couple {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make([]*Couple, 0, len(cs.couples))
	for _, c := range cs.couples {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// DeleteCouple removes a couple from the registry (used by break_couple).
func (cs *ClusterState) DeleteCouple(key string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.couples, key)
}

// CoupleSnapshot resolves the member groups of the couple at key and
// aggregates them, giving callers a self-consistent, non-mutating view.
func (cs *ClusterState) CoupleSnapshot(key string) (CoupleSnapshot, error) {
	cs.mu.RLock()
	c, ok := cs.couples[key]
	cs.mu.RUnlock()
	if !ok {
		return CoupleSnapshot{}, errs.Wrap(errs.NotFound, "clustermodel: couple %q not found", key)
	}

	groupSnaps := make([]GroupSnapshot, 0, len(c.Groups))
	for _, id := range c.Groups {
		cs.mu.RLock()
		g, ok := cs.groups[id]
		cs.mu.RUnlock()
		if !ok {
			continue
		}
		groupSnaps = append(groupSnaps, g.Snapshot(cs.LookupNode))
	}
	return c.Snapshot(groupSnaps), nil
}

// CoupleSnapshots aggregates every registered couple. Namespace filtering and
// status filtering are left to callers (internal/balancer's facade layer),
// since what counts as "relevant" varies per RPC.
func (cs *ClusterState) CoupleSnapshots() []CoupleSnapshot {
	keys := func() []string {
		cs.mu.RLock()
		defer cs.mu.RUnlock()
		out := make([]string, 0, len(cs.couples))
		for k := range cs.couples {
			out = append(out, k)
		}
		return out
	}()
	sort.Strings(keys)

	out := make([]CoupleSnapshot, 0, len(keys))
	for _, k := range keys {
		snap, err := cs.CoupleSnapshot(k)
		if err != nil {
			continue
		}
		out = append(out, snap)
	}
	return out
}
