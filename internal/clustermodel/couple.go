package clustermodel

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CoupleStatus is one of the couple lifecycle states.
type CoupleStatus string

const (
	CoupleInit   CoupleStatus = "INIT"
	CoupleOK     CoupleStatus = "OK"
	CoupleFull   CoupleStatus = "FULL"
	CoupleFrozen CoupleStatus = "FROZEN"
	CoupleBad    CoupleStatus = "BAD"
	CoupleBroken CoupleStatus = "BROKEN"
)

// Couple is a replica set: an ordered tuple of group ids that all carry the
// same data, plus the namespace/frozen metadata replicated across them.
type Couple struct {
	// Groups is the ordered tuple of member group ids as originally built.
	// Key() sorts these for the canonical id; Groups preserves build order
	// for diagnostics.
	Groups    []int
	Status    CoupleStatus
	Namespace string
	Frozen    bool
}

// Key returns the canonical couple id: member group ids sorted ascending,
// joined by ":".
func Key(groupIDs []int) string {
	sorted := append([]int(nil), groupIDs...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ":")
}

// ParseKey accepts both the canonical "a:b:c" form and the bracketed
// "[a:b:c]" form and returns the member group ids in the order given.
func ParseKey(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		return nil, fmt.Errorf("clustermodel: empty couple id")
	}
	parts := strings.Split(s, ":")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("clustermodel: invalid group id %q in couple id %q: %w", p, s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Key returns the couple's canonical id.
func (c *Couple) Key() string { return Key(c.Groups) }

// Size returns the couple's replication degree N.
func (c *Couple) Size() int { return len(c.Groups) }

// DataType returns the "symm{N}" tag downstream consumers use to segregate
// weights by replication degree.
func (c *Couple) DataType() string { return fmt.Sprintf("symm%d", len(c.Groups)) }

// InService reports whether the couple is considered live for routing
// purposes: OK or FROZEN (frozen couples still serve reads but take no new
// writes; see WriteEnable).
func (c *Couple) InService() bool {
	return c.Status == CoupleOK || c.Status == CoupleFrozen
}

// WriteEnable reports whether the couple may receive new writes. Only OK
// couples participate in the weight engine.
func (c *Couple) WriteEnable() bool { return c.Status == CoupleOK }

// IsBad reports whether the couple is in a state that should be excluded
// from normal operation (BAD or BROKEN).
func (c *Couple) IsBad() bool { return c.Status == CoupleBad || c.Status == CoupleBroken }

// CoupleSnapshot is a read-only, point-in-time rollup of a couple's member
// groups.
type CoupleSnapshot struct {
	Key       string
	Groups    []int
	Status    CoupleStatus
	Namespace string
	Frozen    bool
	Rates     Rates
	Space     Space
}

func (s CoupleSnapshot) InService() bool   { return s.Status == CoupleOK || s.Status == CoupleFrozen }
func (s CoupleSnapshot) WriteEnable() bool { return s.Status == CoupleOK }
func (s CoupleSnapshot) IsBad() bool       { return s.Status == CoupleBad || s.Status == CoupleBroken }
func (s CoupleSnapshot) DataType() string  { return fmt.Sprintf("symm%d", len(s.Groups)) }

// Snapshot aggregates member GroupSnapshots into a CoupleSnapshot.
//
// Aggregation:
//   - real_put_rate: max over groups (a write hits all replicas; the
//     slowest dominates, and this value is the observed floor).
//   - max_put_rate: min over groups (capacity is bounded by the weakest
//     replica). A group with max_put_rate == +Inf (one of its nodes
//     reported la == 0, see node.go) never wins this min while another
//     member has a finite reading, so an idle reading is excluded until a
//     finite one arrives; if every member reads +Inf the result is +Inf.
//   - real_get_rate, max_get_rate: sum (reads spread across replicas).
//   - free_kb, free_rel: min (bounded by the fullest replica).
func (c *Couple) Snapshot(groups []GroupSnapshot) CoupleSnapshot {
	snap := CoupleSnapshot{
		Key:       c.Key(),
		Groups:    append([]int(nil), c.Groups...),
		Status:    c.Status,
		Namespace: c.Namespace,
		Frozen:    c.Frozen,
	}
	if len(groups) == 0 {
		return snap
	}

	realPut, maxPut := math.Inf(-1), math.Inf(1)
	freeKB, freeRel := math.Inf(1), math.Inf(1)
	var realGet, maxGet float64

	for _, g := range groups {
		if g.Rates.RealPut > realPut {
			realPut = g.Rates.RealPut
		}
		if g.Rates.MaxPut < maxPut {
			maxPut = g.Rates.MaxPut
		}
		realGet += g.Rates.RealGet
		maxGet += g.Rates.MaxGet
		if g.Space.FreeKB < freeKB {
			freeKB = g.Space.FreeKB
		}
		if g.Space.FreeRel < freeRel {
			freeRel = g.Space.FreeRel
		}
	}

	snap.Rates = Rates{RealPut: realPut, RealGet: realGet, MaxPut: maxPut, MaxGet: maxGet}
	snap.Space = Space{FreeKB: freeKB, FreeRel: freeRel}
	return snap
}
