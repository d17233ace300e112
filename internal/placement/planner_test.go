package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocaineapp/balancer/internal/errs"
	"github.com/cocaineapp/balancer/internal/topology"
)

func threeDCHosts() []topology.HostInfo {
	return []topology.HostInfo{
		{FullPath: "dc1/host1", Levels: map[string]string{"dc": "dc1"}, Fsids: []string{"f0"}},
		{FullPath: "dc1/host2", Levels: map[string]string{"dc": "dc1"}, Fsids: []string{"f0"}},
		{FullPath: "dc2/host3", Levels: map[string]string{"dc": "dc2"}, Fsids: []string{"f0"}},
		{FullPath: "dc2/host4", Levels: map[string]string{"dc": "dc2"}, Fsids: []string{"f0"}},
		{FullPath: "dc3/host5", Levels: map[string]string{"dc": "dc3"}, Fsids: []string{"f0"}},
		{FullPath: "dc3/host6", Levels: map[string]string{"dc": "dc3"}, Fsids: []string{"f0"}},
	}
}

func sixCandidates() []CandidateGroup {
	hostFor := map[int]string{1: "dc1/host1", 2: "dc1/host2", 3: "dc2/host3", 4: "dc2/host4", 5: "dc3/host5", 6: "dc3/host6"}
	var out []CandidateGroup
	for id, host := range hostFor {
		out = append(out, CandidateGroup{ID: id, Backends: []topology.Backend{{HostFullPath: host, Fsid: "f0"}}})
	}
	return out
}

func TestPlanCouple_SpansAllDCsWithForbiddenSharing(t *testing.T) {
	tree := topology.Build([]string{"dc"}, threeDCHosts())
	planner := &Planner{Tree: tree, ForbidDCSharing: true}

	candidates := sixCandidates()
	byID := map[int]CandidateGroup{}
	for _, c := range candidates {
		byID[c.ID] = c
	}

	first, err := planner.PlanCouple(candidates, 3, nil)
	require.NoError(t, err)
	assert.Len(t, first, 3)
	assertDistinctDCs(t, tree, byID, first)

	for _, id := range first {
		tree.PlaceGroup(id, byID[id].Backends)
	}

	var remaining []CandidateGroup
	chosenSet := map[int]bool{}
	for _, id := range first {
		chosenSet[id] = true
	}
	for _, c := range candidates {
		if !chosenSet[c.ID] {
			remaining = append(remaining, c)
		}
	}

	second, err := planner.PlanCouple(remaining, 3, nil)
	require.NoError(t, err)
	assert.Len(t, second, 3)
	assertDistinctDCs(t, tree, byID, second)
}

func assertDistinctDCs(t *testing.T, tree *topology.Tree, byID map[int]CandidateGroup, ids []int) {
	t.Helper()
	seen := map[string]bool{}
	for _, id := range ids {
		dc, ok := tree.DCOf(byID[id].Backends[0].HostFullPath)
		require.True(t, ok)
		assert.False(t, seen[dc], "dc %s reused across couple members", dc)
		seen[dc] = true
	}
}

func TestPlanCouple_MandatoryGroupsIncluded(t *testing.T) {
	tree := topology.Build([]string{"dc"}, threeDCHosts())
	planner := &Planner{Tree: tree, ForbidDCSharing: true}

	candidates := sixCandidates()
	chosen, err := planner.PlanCouple(candidates, 3, []int{1, 3})
	require.NoError(t, err)
	assert.Contains(t, chosen, 1)
	assert.Contains(t, chosen, 3)
	assert.Len(t, chosen, 3)
}

func TestPlanCouple_MandatoryGroupNotCandidateFailsBadRequest(t *testing.T) {
	tree := topology.Build([]string{"dc"}, threeDCHosts())
	planner := &Planner{Tree: tree}

	candidates := sixCandidates()
	_, err := planner.PlanCouple(candidates, 3, []int{99})
	assert.True(t, errs.Is(err, errs.BadRequest))
}

func TestPlanCouple_MandatoryLongerThanSizeFailsBadRequest(t *testing.T) {
	tree := topology.Build([]string{"dc"}, threeDCHosts())
	planner := &Planner{Tree: tree}

	candidates := sixCandidates()
	_, err := planner.PlanCouple(candidates, 2, []int{1, 2, 3})
	assert.True(t, errs.Is(err, errs.BadRequest))
}

func TestPlanCouple_InsufficientCapacity(t *testing.T) {
	tree := topology.Build([]string{"dc"}, threeDCHosts()[:2]) // only dc1 hosts
	planner := &Planner{Tree: tree, ForbidDCSharing: true}

	candidates := []CandidateGroup{
		{ID: 1, Backends: []topology.Backend{{HostFullPath: "dc1/host1", Fsid: "f0"}}},
		{ID: 2, Backends: []topology.Backend{{HostFullPath: "dc1/host2", Fsid: "f0"}}},
	}

	_, err := planner.PlanCouple(candidates, 3, nil)
	assert.True(t, errs.Is(err, errs.InsufficientCapacity))
}

func TestBucketBySpace_SingleBucketWhenNotMatching(t *testing.T) {
	candidates := []CandidateGroup{{ID: 1, TotalSpaceKB: 100}, {ID: 2, TotalSpaceKB: 900}}
	buckets := BucketBySpace(candidates, false, 0.05)
	require.Len(t, buckets, 1)
	assert.Len(t, buckets[0].Members, 2)
}

func TestBucketBySpace_OpensNewBucketPastTolerance(t *testing.T) {
	candidates := []CandidateGroup{
		{ID: 1, TotalSpaceKB: 1000},
		{ID: 2, TotalSpaceKB: 980},
		{ID: 3, TotalSpaceKB: 100},
	}
	buckets := BucketBySpace(candidates, true, 0.05)
	require.Len(t, buckets, 2)
	assert.Len(t, buckets[0].Members, 2)
	assert.Len(t, buckets[1].Members, 1)
}
