package placement

import (
	"sort"

	"github.com/cocaineapp/balancer/internal/errs"
	"github.com/cocaineapp/balancer/internal/topology"
)

// Planner runs the hierarchical selection procedure against one Tree.
// ForbidDCSharing mirrors the operator's forbidden_dc_sharing_among_groups
// config flag.
type Planner struct {
	Tree            *topology.Tree
	ForbidDCSharing bool
}

// PlanCouple selects `needed` candidate groups for one couple from a single
// bucket's members, honoring mandatory (must all be included, all distinct
// DCs if ForbidDCSharing). The caller is responsible for calling
// p.Tree.PlaceGroup on the result afterward so the next couple in the batch
// sees updated occupancy.
func (p *Planner) PlanCouple(bucket []CandidateGroup, needed int, mandatory []int) ([]int, error) {
	if len(mandatory) > needed {
		return nil, errs.Wrap(errs.BadRequest, "placement: mandatory group list longer than couple size %d", needed)
	}

	byID := make(map[int]CandidateGroup, len(bucket))
	for _, c := range bucket {
		byID[c.ID] = c
	}
	for _, id := range mandatory {
		if _, ok := byID[id]; !ok {
			return nil, errs.Wrap(errs.BadRequest, "placement: mandatory group %d is not a candidate", id)
		}
	}

	exclude := map[string]map[string]bool{}
	chosen := make([]int, 0, needed)
	for _, id := range mandatory {
		chosen = append(chosen, id)
		if p.ForbidDCSharing {
			for _, coord := range p.Tree.GroupCoordinates("dc", byID[id].Backends) {
				if exclude["dc"][coord] {
					return nil, errs.Wrap(errs.InsufficientCapacity, "placement: mandatory groups share dc %s", coord)
				}
				markExcluded(exclude, "dc", coord)
			}
		}
	}

	remaining := needed - len(mandatory)
	if remaining > 0 {
		rest := make([]CandidateGroup, 0, len(bucket)-len(mandatory))
		for _, c := range bucket {
			if !containsInt(mandatory, c.ID) {
				rest = append(rest, c)
			}
		}

		picked, err := p.selectAtLevel(0, rest, remaining, exclude)
		if err != nil {
			return nil, err
		}
		for _, c := range picked {
			chosen = append(chosen, c.ID)
		}
	}

	sort.Ints(chosen)
	return chosen, nil
}

func (p *Planner) selectAtLevel(levelIdx int, candidates []CandidateGroup, needed int, exclude map[string]map[string]bool) ([]CandidateGroup, error) {
	if needed == 0 {
		return nil, nil
	}

	levels := p.Tree.Levels()
	if levelIdx >= len(levels) {
		sorted := append([]CandidateGroup(nil), candidates...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
		if len(sorted) < needed {
			return nil, errs.Wrap(errs.InsufficientCapacity, "placement: not enough candidates to fill couple")
		}
		return sorted[:needed], nil
	}

	level := levels[levelIdx]
	parts := buildPartition(level, p.Tree, candidates, exclude[level])

	total := 0
	for _, part := range parts {
		total += len(part.groups)
	}
	if total < needed {
		return nil, errs.Wrap(errs.InsufficientCapacity, "placement: insufficient candidates at level %s", level)
	}

	maxPerCoord := needed
	if level == "dc" && p.ForbidDCSharing {
		maxPerCoord = 1
	}

	assignment := p.bestCombo(parts, needed, maxPerCoord, level)
	if assignment == nil {
		return nil, errs.Wrap(errs.InsufficientCapacity, "placement: no viable combination at level %s", level)
	}

	var chosen []CandidateGroup
	for _, part := range parts {
		k := assignment[part.coord]
		if k == 0 {
			continue
		}
		sub, err := p.selectAtLevel(levelIdx+1, part.groups, k, exclude)
		if err != nil {
			return nil, err
		}
		chosen = append(chosen, sub...)
	}
	return chosen, nil
}

type coordPartition struct {
	coord  string
	groups []CandidateGroup
}

func buildPartition(level string, tree *topology.Tree, candidates []CandidateGroup, excluded map[string]bool) []coordPartition {
	byCoord := map[string][]CandidateGroup{}
	for _, c := range candidates {
		coords := tree.GroupCoordinates(level, c.Backends)
		if len(coords) == 0 {
			continue
		}
		coord := coords[0]
		if excluded[coord] {
			continue
		}
		byCoord[coord] = append(byCoord[coord], c)
	}

	parts := make([]coordPartition, 0, len(byCoord))
	for coord, groups := range byCoord {
		sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
		parts = append(parts, coordPartition{coord: coord, groups: groups})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].coord < parts[j].coord })
	return parts
}

// bestCombo finds the multiplicity-per-coordinate assignment summing to
// needed that minimizes the squared-deviation-from-mean score, breaking
// ties by coordinate order (parts is already sorted). Returns nil
// if no assignment can reach `needed`.
func (p *Planner) bestCombo(parts []coordPartition, needed, maxPerCoord int, level string) map[string]int {
	var best map[string]int
	bestScore := 0.0
	haveBest := false

	assignment := make(map[string]int, len(parts))
	var dfs func(idx, remaining int)
	dfs = func(idx, remaining int) {
		if remaining == 0 {
			score := p.scoreAssignment(level, assignment)
			if !haveBest || score < bestScore {
				haveBest = true
				bestScore = score
				best = map[string]int{}
				for k, v := range assignment {
					if v > 0 {
						best[k] = v
					}
				}
			}
			return
		}
		if idx >= len(parts) {
			return
		}

		maxHere := len(parts[idx].groups)
		if maxPerCoord < maxHere {
			maxHere = maxPerCoord
		}
		if remaining < maxHere {
			maxHere = remaining
		}

		for k := maxHere; k >= 0; k-- {
			if k > 0 {
				assignment[parts[idx].coord] = k
			}
			dfs(idx+1, remaining-k)
			delete(assignment, parts[idx].coord)
		}
	}
	dfs(0, needed)

	return best
}

func (p *Planner) scoreAssignment(level string, assignment map[string]int) float64 {
	mean := p.Tree.Mean(level)
	score := 0.0
	for _, coord := range p.Tree.LevelPaths(level) {
		after := float64(p.Tree.GroupCount(level, coord) + assignment[coord])
		d := after - mean
		score += d * d
	}
	return score
}

func markExcluded(exclude map[string]map[string]bool, level, coord string) {
	if exclude[level] == nil {
		exclude[level] = map[string]bool{}
	}
	exclude[level][coord] = true
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
