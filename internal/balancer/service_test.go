package balancer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocaineapp/balancer/internal/audit"
	"github.com/cocaineapp/balancer/internal/clustermodel"
	"github.com/cocaineapp/balancer/internal/errs"
	"github.com/cocaineapp/balancer/internal/lifecycle"
	"github.com/cocaineapp/balancer/internal/namespace"
	"github.com/cocaineapp/balancer/internal/storage"
	"github.com/cocaineapp/balancer/internal/weight"
)

// fakeLock implements Locker without raft: it can be forced busy to model
// the lock being held by another control-plane replica.
type fakeLock struct {
	mu   sync.Mutex
	busy bool
	held bool
}

func (f *fakeLock) TryLock() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy || f.held {
		return errs.Wrap(errs.LockBusy, "test: cluster lock held elsewhere")
	}
	f.held = true
	return nil
}

func (f *fakeLock) Unlock() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = false
}

// fakeReserver implements GroupIDReserver with a plain in-memory counter.
type fakeReserver struct {
	mu   sync.Mutex
	next int
}

func (f *fakeReserver) ReserveGroupIDs(n int) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int, n)
	for i := range ids {
		f.next++
		ids[i] = f.next
	}
	return ids, nil
}

// fakeMetaClient is an in-memory lifecycle.GroupMetaClient.
type fakeMetaClient struct {
	mu    sync.Mutex
	blobs map[int][]byte
}

func newFakeMetaClient() *fakeMetaClient {
	return &fakeMetaClient{blobs: map[int][]byte{}}
}

func (f *fakeMetaClient) Write(_ context.Context, groupID int, blob []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[groupID] = blob
	return nil
}

func (f *fakeMetaClient) Read(_ context.Context, groupID int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blobs[groupID]
	if !ok {
		return nil, fmt.Errorf("no blob for group %d", groupID)
	}
	return b, nil
}

func (f *fakeMetaClient) Delete(_ context.Context, groupID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, groupID)
	return nil
}

func (f *fakeMetaClient) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.blobs)
}

func newTestService(t *testing.T) (*Service, *clustermodel.ClusterState, *fakeMetaClient, *fakeLock) {
	t.Helper()
	state := clustermodel.NewClusterState()
	client := newFakeMetaClient()
	writer := lifecycle.NewWriter(client, zerolog.Nop(), 1)
	auditLog := audit.New(zerolog.Nop())
	life := lifecycle.New(state, writer, auditLog, zerolog.Nop())
	nsStore := NewNamespaceStore(storage.NewMemoryStore())
	lock := &fakeLock{}

	svc := NewService(
		state, life, nsStore, lock, &fakeReserver{}, auditLog, nil,
		[]string{"dc"}, weight.DefaultConfig(), true, 0.05, 1, zerolog.Nop(),
	)
	return svc, state, client, lock
}

// sixGroupInventory is three DCs with two hosts each, one INIT group per
// host.
func sixGroupInventory() Inventory {
	inv := Inventory{}
	for i := 1; i <= 6; i++ {
		dc := fmt.Sprintf("dc%d", (i+1)/2)
		host := fmt.Sprintf("%s/host%d", dc, i)
		inv.Hosts = append(inv.Hosts, InventoryHost{
			FullPath: host,
			Levels:   map[string]string{"dc": dc},
			Fsids:    []string{"fs0"},
		})
		inv.Groups = append(inv.Groups, InventoryGroup{
			ID: i,
			Backends: []InventoryBackend{
				{Node: fmt.Sprintf("http://node-%d:9001", i), Host: host, Fsid: "fs0"},
			},
		})
	}
	return inv
}

func TestApplyInventory_SeedsGroupsAndNodes(t *testing.T) {
	svc, state, _, _ := newTestService(t)
	require.NoError(t, svc.ApplyInventory(sixGroupInventory()))

	assert.Len(t, state.Groups(), 6)
	assert.Len(t, state.Nodes(), 6)

	g, err := state.Group(1)
	require.NoError(t, err)
	assert.Equal(t, clustermodel.GroupInit, g.Status)
	assert.Empty(t, g.CoupleKey)
}

func TestApplyInventory_RejectsUnknownHost(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	inv := Inventory{
		Groups: []InventoryGroup{{ID: 1, Backends: []InventoryBackend{{Node: "http://n:9001", Host: "nowhere", Fsid: "fs0"}}}},
	}
	err := svc.ApplyInventory(inv)
	assert.True(t, errs.Is(err, errs.BadRequest))
}

func TestBuildCouples_TwoCouplesSpanAllDCs(t *testing.T) {
	svc, state, client, _ := newTestService(t)
	require.NoError(t, svc.ApplyInventory(sixGroupInventory()))

	built, err := svc.BuildCouples(context.Background(), 3, 2, BuildOptions{
		Namespace: "default",
		InitState: lifecycle.Coupled,
	})
	require.NoError(t, err)
	require.Len(t, built, 2)

	for _, groupIDs := range built {
		dcs := map[string]bool{}
		for _, id := range groupIDs {
			g, err := state.Group(id)
			require.NoError(t, err)
			dcs[g.Backends[0].HostFullPath[:3]] = true
		}
		assert.Len(t, dcs, 3, "couple %v should span all three DCs", groupIDs)
	}
	assert.Equal(t, 6, client.count(), "every member group should carry a meta blob")
	assert.Len(t, svc.GetSymmetricGroups(), 2)
}

func TestBuildCouples_MandatoryCoupledGroupFailsBadRequest(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	require.NoError(t, svc.ApplyInventory(sixGroupInventory()))

	_, err := svc.BuildCouples(context.Background(), 3, 1, BuildOptions{
		Namespace: "default",
		InitState: lifecycle.Coupled,
	})
	require.NoError(t, err)

	// Whatever was just built, group 1 or its replacement is now coupled and
	// no longer a candidate; naming a coupled group as mandatory must fail.
	empty := svc.GetEmptyGroups()
	require.NotEmpty(t, empty)
	var coupled int
	for id := 1; id <= 6; id++ {
		isEmpty := false
		for _, e := range empty {
			if e == id {
				isEmpty = true
			}
		}
		if !isEmpty {
			coupled = id
			break
		}
	}

	_, err = svc.BuildCouples(context.Background(), 3, 1, BuildOptions{
		Namespace:       "default",
		InitState:       lifecycle.Coupled,
		MandatoryGroups: [][]int{{coupled}},
	})
	assert.True(t, errs.Is(err, errs.BadRequest))
}

func TestBuildCouples_DryRunMatchesRealRunAndMutatesNothing(t *testing.T) {
	svc, state, client, _ := newTestService(t)
	require.NoError(t, svc.ApplyInventory(sixGroupInventory()))

	opts := BuildOptions{Namespace: "default", InitState: lifecycle.Coupled}

	dryOpts := opts
	dryOpts.DryRun = true
	planned, err := svc.BuildCouples(context.Background(), 3, 2, dryOpts)
	require.NoError(t, err)
	require.Len(t, planned, 2)

	assert.Zero(t, client.count(), "dry run must write no metadata")
	assert.Empty(t, state.Couples(), "dry run must leave the registry unchanged")
	for id := 1; id <= 6; id++ {
		g, err := state.Group(id)
		require.NoError(t, err)
		assert.Equal(t, clustermodel.GroupInit, g.Status)
	}

	built, err := svc.BuildCouples(context.Background(), 3, 2, opts)
	require.NoError(t, err)
	assert.Equal(t, planned, built, "dry run and real run must select identically given identical state")
}

func TestBuildCouples_LockBusy(t *testing.T) {
	svc, _, _, lock := newTestService(t)
	require.NoError(t, svc.ApplyInventory(sixGroupInventory()))

	lock.busy = true
	_, err := svc.BuildCouples(context.Background(), 3, 1, BuildOptions{Namespace: "default", InitState: lifecycle.Coupled})
	assert.True(t, errs.Is(err, errs.LockBusy))
}

func TestBreakCouple_RejectedConfirmationMutatesNothing(t *testing.T) {
	svc, state, client, _ := newTestService(t)
	require.NoError(t, svc.ApplyInventory(sixGroupInventory()))

	built, err := svc.BuildCouples(context.Background(), 3, 1, BuildOptions{Namespace: "default", InitState: lifecycle.Coupled})
	require.NoError(t, err)
	groupIDs := built[0]
	key := clustermodel.Key(groupIDs)

	err = svc.BreakCouple(context.Background(), groupIDs, "no")
	assert.True(t, errs.Is(err, errs.BadRequest))
	assert.Equal(t, 3, client.count(), "rejected confirmation must not touch metadata")
	_, err = state.Couple(key)
	assert.NoError(t, err)

	confirm := fmt.Sprintf("Yes, I want to break good couple %s", key)
	require.NoError(t, svc.BreakCouple(context.Background(), groupIDs, confirm))
	assert.Zero(t, client.count())
	_, err = state.Couple(key)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestGetCoupleInfo_ByGroupIDAndByKey(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	require.NoError(t, svc.ApplyInventory(sixGroupInventory()))

	built, err := svc.BuildCouples(context.Background(), 3, 1, BuildOptions{Namespace: "default", InitState: lifecycle.Coupled})
	require.NoError(t, err)
	key := clustermodel.Key(built[0])

	byKey, err := svc.GetCoupleInfo(key)
	require.NoError(t, err)
	assert.Equal(t, key, byKey.Key)
	assert.Equal(t, "default", byKey.Namespace)

	byGroup, err := svc.GetCoupleInfo(fmt.Sprintf("%d", built[0][0]))
	require.NoError(t, err)
	assert.Equal(t, key, byGroup.Key)

	bracketed, err := svc.GetCoupleInfo("[" + key + "]")
	require.NoError(t, err)
	assert.Equal(t, key, bracketed.Key)
}

func TestNamespaceSetup_InvalidPatchLeavesSettingsIntact(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	err := svc.NamespaceSetup(context.Background(), "foo", false, namespace.Settings{
		"groups-count": 3,
		"min-units":    2,
	}, false)
	require.NoError(t, err)

	err = svc.NamespaceSetup(context.Background(), "foo", false, namespace.Settings{
		"min-units": 0,
	}, false)
	assert.True(t, errs.Is(err, errs.BadRequest))

	settings, err := svc.GetNamespaceSettings("foo")
	require.NoError(t, err)
	minUnits, ok := namespace.AsInt(settings["min-units"])
	require.True(t, ok)
	assert.Equal(t, 2, minUnits, "failed setup must leave prior settings intact")
}

func TestNamespaceSetup_RejectsInvalidName(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	err := svc.NamespaceSetup(context.Background(), "-bad-", false, namespace.Settings{"groups-count": 1, "min-units": 1}, false)
	assert.True(t, errs.Is(err, errs.BadRequest))
}

func TestGetGroupWeights_FailingNamespaceIsExcluded(t *testing.T) {
	svc, state, _, _ := newTestService(t)
	require.NoError(t, svc.ApplyInventory(sixGroupInventory()))

	// One OK couple in each of two namespaces, with observed free space.
	for i, ns := range []string{"plenty", "starved"} {
		ids := []int{i*2 + 1, i*2 + 2}
		for _, id := range ids {
			g, err := state.Group(id)
			require.NoError(t, err)
			node := state.Node(g.Backends[0].NodeAddr)
			require.NoError(t, node.Observe(testTime(), clustermodel.Sample{
				Bavail: 1_000_000, Bsize: 1024, Blocks: 2_000_000, LA1: 100,
			}))
			g.Status = clustermodel.GroupOK
			g.CoupleKey = clustermodel.Key(ids)
		}
		state.PutCouple(&clustermodel.Couple{
			Groups:    ids,
			Status:    clustermodel.CoupleOK,
			Namespace: ns,
		})
	}

	// "starved" demands more writable couples than it has; "plenty" is fine
	// with the default min-units of 1.
	require.NoError(t, svc.NamespaceSetup(context.Background(), "starved", false, namespace.Settings{
		"groups-count": 2,
		"min-units":    5,
	}, false))

	weights, err := svc.GetGroupWeights("")
	require.NoError(t, err)

	require.Contains(t, weights, "plenty")
	assert.NotContains(t, weights, "starved", "a namespace failing min-units degrades to exclusion, not a global error")

	entries := weights["plenty"][2]
	require.Len(t, entries, 1)
	assert.GreaterOrEqual(t, entries[0].Weight, svcMinWeight())
}

func TestRefreshCoupleStatuses_FullWhenBelowReservedSpace(t *testing.T) {
	svc, state, _, _ := newTestService(t)
	require.NoError(t, svc.ApplyInventory(sixGroupInventory()))

	built, err := svc.BuildCouples(context.Background(), 3, 1, BuildOptions{Namespace: "default", InitState: lifecycle.Coupled})
	require.NoError(t, err)
	key := clustermodel.Key(built[0])

	require.NoError(t, svc.NamespaceSetup(context.Background(), "default", false, namespace.Settings{
		"groups-count":              3,
		"min-units":                 1,
		"reserved-space-percentage": 0.2,
	}, false))

	// Free fraction 0.1 on every member, below the 0.2 reserve.
	for _, id := range built[0] {
		g, err := state.Group(id)
		require.NoError(t, err)
		node := state.Node(g.Backends[0].NodeAddr)
		require.NoError(t, node.Observe(testTime(), clustermodel.Sample{
			Bavail: 100_000, Bsize: 1024, Blocks: 1_000_000, LA1: 100,
		}))
	}

	svc.RefreshCoupleStatuses()
	c, err := state.Couple(key)
	require.NoError(t, err)
	assert.Equal(t, clustermodel.CoupleFull, c.Status)

	// Space frees up again: the couple recovers to OK on the next pass.
	for _, id := range built[0] {
		g, err := state.Group(id)
		require.NoError(t, err)
		node := state.Node(g.Backends[0].NodeAddr)
		require.NoError(t, node.Observe(testTime().Add(time.Second), clustermodel.Sample{
			Bavail: 500_000, Bsize: 1024, Blocks: 1_000_000, LA1: 100,
		}))
	}
	svc.RefreshCoupleStatuses()
	assert.Equal(t, clustermodel.CoupleOK, c.Status)
}

func svcMinWeight() float64 { return weight.DefaultConfig().MinWeight }

func testTime() time.Time { return time.Unix(1700000000, 0) }
