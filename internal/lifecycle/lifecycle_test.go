package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocaineapp/balancer/internal/audit"
	"github.com/cocaineapp/balancer/internal/clustermodel"
	"github.com/cocaineapp/balancer/internal/errs"
)

// fakeMetaClient is an in-memory GroupMetaClient with per-group failure
// injection, used to exercise the quorum-with-rollback path deterministically.
type fakeMetaClient struct {
	mu         sync.Mutex
	blobs      map[int][]byte
	failWrite  map[int]bool
	failDelete map[int]bool
}

func newFakeMetaClient() *fakeMetaClient {
	return &fakeMetaClient{
		blobs:      map[int][]byte{},
		failWrite:  map[int]bool{},
		failDelete: map[int]bool{},
	}
}

func (f *fakeMetaClient) Write(ctx context.Context, groupID int, blob []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite[groupID] {
		return fmt.Errorf("injected write failure for group %d", groupID)
	}
	f.blobs[groupID] = blob
	return nil
}

func (f *fakeMetaClient) Read(ctx context.Context, groupID int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blobs[groupID]
	if !ok {
		return nil, fmt.Errorf("no blob for group %d", groupID)
	}
	return b, nil
}

func (f *fakeMetaClient) Delete(ctx context.Context, groupID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete[groupID] {
		return fmt.Errorf("injected delete failure for group %d", groupID)
	}
	delete(f.blobs, groupID)
	return nil
}

func newTestLifecycle(client GroupMetaClient) (*Lifecycle, *clustermodel.ClusterState) {
	state := clustermodel.NewClusterState()
	writer := NewWriter(client, zerolog.Nop(), 1)
	lc := New(state, writer, audit.New(zerolog.Nop()), zerolog.Nop())
	return lc, state
}

func seedUncoupledGroups(state *clustermodel.ClusterState, ids ...int) {
	for _, id := range ids {
		state.PutGroup(&clustermodel.Group{
			ID:     id,
			Status: clustermodel.GroupInit,
			Backends: []clustermodel.Backend{
				{NodeAddr: fmt.Sprintf("node-%d:1025", id), OK: true},
			},
		})
	}
}

func TestLifecycle_BuildSucceeds(t *testing.T) {
	client := newFakeMetaClient()
	lc, state := newTestLifecycle(client)
	seedUncoupledGroups(state, 1, 2)

	couple, err := lc.Build(context.Background(), []int{1, 2}, "images", Coupled)
	require.NoError(t, err)
	assert.Equal(t, clustermodel.CoupleOK, couple.Status)
	assert.Equal(t, "1:2", couple.Key())

	g1, _ := state.Group(1)
	assert.Equal(t, "1:2", g1.CoupleKey)
	assert.Equal(t, clustermodel.GroupOK, g1.Status)
}

func TestLifecycle_BuildWithFrozenInitState(t *testing.T) {
	client := newFakeMetaClient()
	lc, state := newTestLifecycle(client)
	seedUncoupledGroups(state, 1, 2)

	couple, err := lc.Build(context.Background(), []int{1, 2}, "images", Frozen)
	require.NoError(t, err)
	assert.Equal(t, clustermodel.CoupleFrozen, couple.Status)
	assert.True(t, couple.Frozen)
}

func TestLifecycle_BuildRejectsBadInitState(t *testing.T) {
	client := newFakeMetaClient()
	lc, state := newTestLifecycle(client)
	seedUncoupledGroups(state, 1, 2)

	_, err := lc.Build(context.Background(), []int{1, 2}, "images", InitState("BOGUS"))
	assert.True(t, errs.Is(err, errs.BadRequest))
}

func TestLifecycle_BuildRollsBackOnPartialWriteFailure(t *testing.T) {
	client := newFakeMetaClient()
	client.failWrite[2] = true
	lc, state := newTestLifecycle(client)
	seedUncoupledGroups(state, 1, 2)

	_, err := lc.Build(context.Background(), []int{1, 2}, "images", Coupled)
	require.Error(t, err)
	assert.False(t, errs.Is(err, errs.InconsistentMeta), "clean rollback should not surface InconsistentMeta")

	_, readErr := client.Read(context.Background(), 1)
	assert.Error(t, readErr, "group 1's blob should have been rolled back")
}

func TestLifecycle_BuildLeavesCoupleBADWhenRollbackAlsoFails(t *testing.T) {
	client := newFakeMetaClient()
	client.failWrite[2] = true
	client.failDelete[1] = true
	lc, state := newTestLifecycle(client)
	seedUncoupledGroups(state, 1, 2)

	_, err := lc.Build(context.Background(), []int{1, 2}, "images", Coupled)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InconsistentMeta))

	g1, _ := state.Group(1)
	assert.Equal(t, clustermodel.GroupBad, g1.Status)

	c, err := state.Couple("1:2")
	require.NoError(t, err)
	assert.Equal(t, clustermodel.CoupleBad, c.Status)
}

func TestLifecycle_FreezeThenDoubleFreezeFails(t *testing.T) {
	client := newFakeMetaClient()
	lc, state := newTestLifecycle(client)
	seedUncoupledGroups(state, 1, 2)
	couple, err := lc.Build(context.Background(), []int{1, 2}, "images", Coupled)
	require.NoError(t, err)

	require.NoError(t, lc.Freeze(context.Background(), couple.Key()))
	assert.Equal(t, clustermodel.CoupleFrozen, couple.Status)

	err = lc.Freeze(context.Background(), couple.Key())
	assert.True(t, errs.Is(err, errs.AlreadyInState))
}

func TestLifecycle_Unfreeze(t *testing.T) {
	client := newFakeMetaClient()
	lc, state := newTestLifecycle(client)
	seedUncoupledGroups(state, 1, 2)
	couple, err := lc.Build(context.Background(), []int{1, 2}, "images", Frozen)
	require.NoError(t, err)

	require.NoError(t, lc.Unfreeze(context.Background(), couple.Key()))
	assert.Equal(t, clustermodel.CoupleOK, couple.Status)
	assert.False(t, couple.Frozen)
}

func TestLifecycle_BreakRequiresExactConfirmation(t *testing.T) {
	client := newFakeMetaClient()
	lc, state := newTestLifecycle(client)
	seedUncoupledGroups(state, 1, 2)
	couple, err := lc.Build(context.Background(), []int{1, 2}, "images", Coupled)
	require.NoError(t, err)

	err = lc.Break(context.Background(), couple.Groups, "nope")
	assert.True(t, errs.Is(err, errs.BadRequest))

	require.NoError(t, lc.Break(context.Background(), couple.Groups, "Yes, I want to break good couple 1:2"))

	_, err = state.Couple("1:2")
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestLifecycle_BreakAcceptsBracketedForm(t *testing.T) {
	client := newFakeMetaClient()
	lc, state := newTestLifecycle(client)
	seedUncoupledGroups(state, 1, 2)
	couple, err := lc.Build(context.Background(), []int{1, 2}, "images", Coupled)
	require.NoError(t, err)

	require.NoError(t, lc.Break(context.Background(), couple.Groups, "Yes, I want to break good couple [1:2]"))
}

func TestLifecycle_DetachNodeLeavesHealthyGroupOK(t *testing.T) {
	client := newFakeMetaClient()
	lc, state := newTestLifecycle(client)
	state.PutGroup(&clustermodel.Group{
		ID:     1,
		Status: clustermodel.GroupOK,
		Backends: []clustermodel.Backend{
			{NodeAddr: "node-1:1025", OK: true},
			{NodeAddr: "node-2:1025", OK: true},
		},
	})

	require.NoError(t, lc.DetachNode(1, "node-1:1025"))

	g, err := state.Group(1)
	require.NoError(t, err)
	assert.Len(t, g.Backends, 1)
	assert.Equal(t, clustermodel.GroupOK, g.Status)
}

func TestDeriveStatus(t *testing.T) {
	ok := []clustermodel.GroupStatus{clustermodel.GroupOK, clustermodel.GroupOK}
	assert.Equal(t, clustermodel.CoupleOK, DeriveStatus(ok, true, false, false, false))
	assert.Equal(t, clustermodel.CoupleFrozen, DeriveStatus(ok, true, false, false, true))
	assert.Equal(t, clustermodel.CoupleFull, DeriveStatus(ok, true, false, true, false))
	assert.Equal(t, clustermodel.CoupleBroken, DeriveStatus(ok, true, true, false, false))

	bad := []clustermodel.GroupStatus{clustermodel.GroupOK, clustermodel.GroupBad}
	assert.Equal(t, clustermodel.CoupleBad, DeriveStatus(bad, true, false, false, false))
	assert.Equal(t, clustermodel.CoupleBad, DeriveStatus(ok, false, false, false, false))
}
