package placement

import (
	"sort"

	"github.com/cocaineapp/balancer/internal/clustermodel"
	"github.com/cocaineapp/balancer/internal/topology"
)

// CandidateGroup is an uncoupled group eligible for placement: INIT status,
// at least one backend, and every backend OK.
type CandidateGroup struct {
	ID           int
	Backends     []topology.Backend
	TotalSpaceKB float64
}

// Candidates filters groups into the placement candidate set.
func Candidates(groups []*clustermodel.Group, totalSpaceKB func(groupID int) float64) []CandidateGroup {
	var out []CandidateGroup
	for _, g := range groups {
		if g.Status != clustermodel.GroupInit {
			continue
		}
		if len(g.Backends) == 0 {
			continue
		}
		allOK := true
		backends := make([]topology.Backend, 0, len(g.Backends))
		for _, b := range g.Backends {
			if !b.OK {
				allOK = false
				break
			}
			backends = append(backends, topology.Backend{HostFullPath: b.HostFullPath, Fsid: b.Fsid})
		}
		if !allOK {
			continue
		}
		out = append(out, CandidateGroup{ID: g.ID, Backends: backends, TotalSpaceKB: totalSpaceKB(g.ID)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Bucket is one total-space bucket: its opening key and the candidates that
// landed in it, in descending-space order. The single bucket BucketBySpace
// returns when match is false has a zero Key and keeps the input order.
type Bucket struct {
	Key     float64
	Members []CandidateGroup
}

// BucketBySpace partitions candidates by approximate total space. If
// match is false, every candidate lands in a single "any"
// bucket regardless of size. Otherwise candidates are sorted
// descending by space; a new bucket opens whenever the gap to the current
// bucket's key exceeds tolerance·key.
func BucketBySpace(candidates []CandidateGroup, match bool, tolerance float64) []Bucket {
	if !match {
		return []Bucket{{Members: append([]CandidateGroup(nil), candidates...)}}
	}

	sorted := append([]CandidateGroup(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].TotalSpaceKB != sorted[j].TotalSpaceKB {
			return sorted[i].TotalSpaceKB > sorted[j].TotalSpaceKB
		}
		return sorted[i].ID < sorted[j].ID
	})

	var buckets []Bucket
	for _, c := range sorted {
		if len(buckets) == 0 || buckets[len(buckets)-1].Key-c.TotalSpaceKB > tolerance*buckets[len(buckets)-1].Key {
			buckets = append(buckets, Bucket{Key: c.TotalSpaceKB})
		}
		last := &buckets[len(buckets)-1]
		last.Members = append(last.Members, c)
	}
	return buckets
}

// ContainsAll reports whether every id in ids is present among b's members.
func (b Bucket) ContainsAll(ids []int) bool {
	have := make(map[int]bool, len(b.Members))
	for _, m := range b.Members {
		have[m.ID] = true
	}
	for _, id := range ids {
		if !have[id] {
			return false
		}
	}
	return true
}
