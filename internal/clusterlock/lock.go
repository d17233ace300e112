package clusterlock

import (
	"sync/atomic"

	"github.com/cocaineapp/balancer/internal/errs"
)

// Lock is the named "cluster" mutex: non-reentrant (a second
// TryLock on the same replica fails even though it's still the leader) and
// non-blocking (no retry, no queue — acquisition either succeeds
// immediately or returns LockBusy). It is "distributed" in the sense that
// only the raft leader can ever acquire it; every follower's TryLock fails
// immediately, giving exactly one winner cluster-wide without a second
// coordination round-trip.
type Lock struct {
	cluster *Cluster
	held    atomic.Bool
}

// NewLock builds a Lock gated on cluster's raft leadership.
func NewLock(cluster *Cluster) *Lock {
	return &Lock{cluster: cluster}
}

// TryLock attempts to acquire the lock. It fails immediately with
// errs.LockBusy if this replica isn't the raft leader, or if the lock is
// already held locally (non-reentrant) — never blocks, never retries.
func (l *Lock) TryLock() error {
	if !l.cluster.IsLeader() {
		return errs.Wrap(errs.LockBusy, "clusterlock: not the raft leader, current leader is %s", l.cluster.LeaderAddr())
	}
	if !l.held.CompareAndSwap(false, true) {
		return errs.Wrap(errs.LockBusy, "clusterlock: lock %q already held on this replica", Name)
	}
	return nil
}

// Unlock releases the lock. Safe to call even if TryLock never succeeded
// (a no-op in that case), so callers can unconditionally defer it on every
// exit path: success, error, or cancellation.
func (l *Lock) Unlock() {
	l.held.Store(false)
}

// Name is the lock's fixed identity.
const Name = "cluster"
