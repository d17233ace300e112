package clustermodel

import "math"

// GroupStatus is one of the group lifecycle states.
type GroupStatus string

const (
	GroupInit   GroupStatus = "INIT"
	GroupOK     GroupStatus = "OK"
	GroupBad    GroupStatus = "BAD"
	GroupBroken GroupStatus = "BROKEN"
	GroupRO     GroupStatus = "RO"
)

// Backend is one node-backend living under a group: the (node, filesystem)
// pair a group's data actually sits on. HostFullPath/Fsid feed the topology
// tree's hdd-leaf synthesis (leaves are keyed host full path + "|" + fsid).
type Backend struct {
	NodeAddr     string
	HostFullPath string
	Fsid         string
	OK           bool
}

// Group is a data shard: an ordered set of backends that must agree on
// contents. A group belongs to at most one couple.
type Group struct {
	ID       int
	Status   GroupStatus
	Backends []Backend
	// CoupleKey is the canonical couple id this group belongs to, or "" if
	// the group is uncoupled.
	CoupleKey string
}

// GroupSnapshot is a read-only, point-in-time view of a group's aggregated
// rates and space, computed from its backends' current NodeStates.
type GroupSnapshot struct {
	ID       int
	Status   GroupStatus
	Rates    Rates
	Space    Space
	Backends []Backend
}

// Snapshot rolls up g's backend NodeStates into a GroupSnapshot. lookup
// resolves a backend's node address to its NodeState; backends whose node
// has never been observed are skipped (treated as contributing zero).
//
// Rates are summed across nodes; free_kb is summed; free_rel is the
// minimum (the fullest disk bounds the group).
func (g *Group) Snapshot(lookup func(addr string) (*NodeState, bool)) GroupSnapshot {
	snap := GroupSnapshot{
		ID:       g.ID,
		Status:   g.Status,
		Backends: g.Backends,
	}

	freeRel := math.Inf(1)
	sawNode := false

	for _, b := range g.Backends {
		ns, ok := lookup(b.NodeAddr)
		if !ok {
			continue
		}
		sawNode = true

		r := ns.Rates()
		snap.Rates.RealPut += r.RealPut
		snap.Rates.RealGet += r.RealGet
		snap.Rates.MaxPut += r.MaxPut
		snap.Rates.MaxGet += r.MaxGet

		sp := ns.Space()
		snap.Space.FreeKB += sp.FreeKB
		if sp.FreeRel < freeRel {
			freeRel = sp.FreeRel
		}
	}

	if sawNode {
		snap.Space.FreeRel = freeRel
	}
	return snap
}
