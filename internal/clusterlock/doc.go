// Package clusterlock implements the cluster-change lock: a named,
// non-reentrant, non-blocking distributed mutex named "cluster" that every
// structural mutation (build, break, namespace delete) must hold.
//
// The lock is "held" by whichever balancer replica is the current raft
// leader (github.com/hashicorp/raft with bolt-backed log and stable
// stores), and TryLock adds a local non-reentrant flag on top so a second
// caller on the leader itself also gets LockBusy rather than
// double-entering. There is no lock queue and no retry: acquisition
// failure surfaces immediately. Ordering (lock before refresh, refresh
// before planning) is the caller's responsibility, not this package's.
package clusterlock
