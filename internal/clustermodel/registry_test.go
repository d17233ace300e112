package clustermodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocaineapp/balancer/internal/errs"
)

func TestClusterState_NodeCreatesOnFirstAccess(t *testing.T) {
	cs := NewClusterState()

	ns1 := cs.Node("node-1:1025")
	ns2 := cs.Node("node-1:1025")
	assert.Same(t, ns1, ns2, "second Node call should return the same instance")
}

func TestClusterState_GroupNotFound(t *testing.T) {
	cs := NewClusterState()
	_, err := cs.Group(99)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestClusterState_CoupleSnapshotAggregatesMembers(t *testing.T) {
	cs := NewClusterState()

	t0 := time.Now()
	for _, addr := range []string{"node-1:1025", "node-2:1025"} {
		ns := cs.Node(addr)
		require.NoError(t, ns.Observe(t0, Sample{LA1: 100, Bavail: 500, Blocks: 1000, Bsize: 1}))
		require.NoError(t, ns.Observe(t0.Add(time.Second), Sample{StorageWrites: 10, LA1: 100, Bavail: 500, Blocks: 1000, Bsize: 1}))
	}

	cs.PutGroup(&Group{ID: 1, Status: GroupOK, Backends: []Backend{{NodeAddr: "node-1:1025", OK: true}}, CoupleKey: "1:2"})
	cs.PutGroup(&Group{ID: 2, Status: GroupOK, Backends: []Backend{{NodeAddr: "node-2:1025", OK: true}}, CoupleKey: "1:2"})
	cs.PutCouple(&Couple{Groups: []int{1, 2}, Status: CoupleOK, Namespace: "images"})

	snap, err := cs.CoupleSnapshot("1:2")
	require.NoError(t, err)
	assert.Equal(t, "1:2", snap.Key)
	assert.Equal(t, "images", snap.Namespace)
	assert.InDelta(t, 10.0, snap.Rates.RealPut, 0.001)
}

func TestClusterState_CoupleSnapshotsAreSortedByKey(t *testing.T) {
	cs := NewClusterState()
	cs.PutCouple(&Couple{Groups: []int{3, 4}, Status: CoupleOK})
	cs.PutCouple(&Couple{Groups: []int{1, 2}, Status: CoupleOK})

	snaps := cs.CoupleSnapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "1:2", snaps[0].Key)
	assert.Equal(t, "3:4", snaps[1].Key)
}

func TestClusterState_DeleteCouple(t *testing.T) {
	cs := NewClusterState()
	cs.PutCouple(&Couple{Groups: []int{1, 2}, Status: CoupleOK})
	cs.DeleteCouple("1:2")

	_, err := cs.Couple("1:2")
	assert.True(t, errs.Is(err, errs.NotFound))
}
