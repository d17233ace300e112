// Package clustermodel holds the balancer's view of the fleet: storage
// nodes, the groups they back, and the couples (replica sets) those groups
// form: the node load model, the group and couple aggregates, and the
// ClusterState registry that is the process-wide, discipline-guarded home
// for this state.
//
// # Architecture
//
//	┌───────────────────────────────────────────┐
//	│               ClusterState                 │
//	├───────────────────────────────────────────┤
//	│  nodes:   addr   -> *NodeState              │
//	│  groups:  id      -> *Group                 │
//	│  couples: key     -> *Couple                │
//	├───────────────────────────────────────────┤
//	│  mutation: refresh loop or lifecycle ops    │
//	│            holding the cluster-change lock  │
//	│  reads:    lock-free, snapshot-based         │
//	└───────────────────────────────────────────┘
//
// Aggregation is one-directional and snapshot based: a NodeState derives
// rates from consecutive counter samples; a Group rolls up the
// NodeStates of its backends; a Couple rolls up the Groups that are
// its members. Snapshot() on Group and Couple is the only place rates ever
// flow upward, so a caller holding a GroupSnapshot or CoupleSnapshot has a
// value that cannot change underneath it, even while the registry it was
// computed from keeps mutating.
package clustermodel
