package topology

import (
	"sort"
	"strings"
)

// HostInfo is one host record from the external inventory feed: its unique
// full path (the last element of the host-level coordinate, and used
// verbatim as the prefix for hdd leaf keys), the accountable-level coordinate values above it,
// and the filesystem ids physically present on it.
type HostInfo struct {
	FullPath string
	// Levels maps an accountable level name (e.g. "dc") to this host's
	// coordinate value at that level. Levels the operator hasn't configured
	// as accountable are simply absent — their interior nodes are elided by
	// construction, since Tree never materializes a level it wasn't told
	// about.
	Levels map[string]string
	Fsids  []string
}

// Tree is the fault-domain hierarchy built from one inventory snapshot.
// Levels run, outermost first, through the operator-configured accountable
// levels, then "host", then "hdd". "root" is implicit and never appears as
// a coordinate level, so the planner's partition walk never sees it.
type Tree struct {
	levels []string // e.g. {"dc", "host", "hdd"}

	// hostCoord[level][hostFullPath] is that host's coordinate path at
	// level: the "/"-joined chain of ancestor values up to and including level,
	// which keeps two identically-named nodes in different branches
	// distinct.
	hostCoord map[string]map[string]string

	// levelPaths[level] is the sorted set of every coordinate path known to
	// exist at that level, the denominator for the planner's mean. It must
	// include coordinates with zero groups, not just ones currently
	// occupied.
	levelPaths map[string][]string

	// placed[level][coordinate] is the set of group ids the planner has
	// registered as currently living under that coordinate for the
	// namespace being planned.
	placed map[string]map[string]map[int]bool
}

// Levels returns the tree's accountable levels, outermost first, ending in
// "hdd".
func (t *Tree) Levels() []string { return append([]string(nil), t.levels...) }

// Build constructs a Tree from one inventory snapshot. levels is the
// operator-configured list of accountable interior levels (e.g. {"dc"});
// "host" and "hdd" are appended automatically.
func Build(levels []string, hosts []HostInfo) *Tree {
	allLevels := append(append([]string(nil), levels...), "host", "hdd")

	t := &Tree{
		levels:     allLevels,
		hostCoord:  make(map[string]map[string]string),
		levelPaths: make(map[string][]string),
		placed:     make(map[string]map[string]map[int]bool),
	}
	for _, l := range allLevels {
		t.hostCoord[l] = make(map[string]string)
		t.placed[l] = make(map[string]map[int]bool)
	}

	pathSeen := make(map[string]map[string]bool, len(allLevels))
	for _, l := range allLevels {
		pathSeen[l] = make(map[string]bool)
	}

	for _, h := range hosts {
		var chain []string
		for _, l := range levels {
			v, ok := h.Levels[l]
			if !ok {
				// Host doesn't carry this accountable level (sparse
				// inventory); fall back to its own full path so it still
				// gets a distinct coordinate rather than colliding with
				// every other host missing the same level.
				v = h.FullPath
			}
			chain = append(chain, v)
			coord := strings.Join(chain, "/")
			t.hostCoord[l][h.FullPath] = coord
			if !pathSeen[l][coord] {
				pathSeen[l][coord] = true
				t.levelPaths[l] = append(t.levelPaths[l], coord)
			}
		}

		hostCoord := strings.Join(append(append([]string(nil), chain...), h.FullPath), "/")
		t.hostCoord["host"][h.FullPath] = hostCoord
		if !pathSeen["host"][hostCoord] {
			pathSeen["host"][hostCoord] = true
			t.levelPaths["host"] = append(t.levelPaths["host"], hostCoord)
		}

		for _, fsid := range h.Fsids {
			hddCoord := h.FullPath + "|" + fsid
			// hdd coordinates are 1:1 with (host, fsid); no ambiguity, so
			// no host itself is needed in hostCoord for hdd lookups — see
			// BackendCoordinate.
			if !pathSeen["hdd"][hddCoord] {
				pathSeen["hdd"][hddCoord] = true
				t.levelPaths["hdd"] = append(t.levelPaths["hdd"], hddCoord)
			}
		}
	}

	for _, l := range allLevels {
		sort.Strings(t.levelPaths[l])
	}

	return t
}

// Clone returns a deep copy of t. The planner works against a clone so that
// per-namespace occupancy (recomputed each planning pass) and dry-run
// placements never leak into the shared tree.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		levels:     append([]string(nil), t.levels...),
		hostCoord:  make(map[string]map[string]string, len(t.hostCoord)),
		levelPaths: make(map[string][]string, len(t.levelPaths)),
		placed:     make(map[string]map[string]map[int]bool, len(t.placed)),
	}
	for l, m := range t.hostCoord {
		cm := make(map[string]string, len(m))
		for k, v := range m {
			cm[k] = v
		}
		c.hostCoord[l] = cm
	}
	for l, paths := range t.levelPaths {
		c.levelPaths[l] = append([]string(nil), paths...)
	}
	for l, byCoord := range t.placed {
		cl := make(map[string]map[int]bool, len(byCoord))
		for coord, groups := range byCoord {
			cg := make(map[int]bool, len(groups))
			for id := range groups {
				cg[id] = true
			}
			cl[coord] = cg
		}
		c.placed[l] = cl
	}
	return c
}

// LevelPaths returns every known coordinate at level, including ones with
// no groups currently placed under them. This is the full-inventory
// denominator the planner's mean is computed against.
func (t *Tree) LevelPaths(level string) []string {
	return append([]string(nil), t.levelPaths[level]...)
}

// BackendCoordinate returns the coordinate of hostFullPath/fsid at level.
// For "hdd" this is the synthesized host full path + "|" + fsid leaf key;
// for other levels it's the host's precomputed ancestor chain.
func (t *Tree) BackendCoordinate(level, hostFullPath, fsid string) (string, bool) {
	if level == "hdd" {
		return hostFullPath + "|" + fsid, true
	}
	coord, ok := t.hostCoord[level][hostFullPath]
	return coord, ok
}

// GroupCoordinates returns the set of distinct coordinates a group inhabits
// at level, one per backend, deduplicated. A group with several backends
// under the same DC occupies that DC coordinate once.
func (t *Tree) GroupCoordinates(level string, backends []Backend) []string {
	seen := make(map[string]bool)
	var out []string
	for _, b := range backends {
		coord, ok := t.BackendCoordinate(level, b.HostFullPath, b.Fsid)
		if !ok {
			continue
		}
		if !seen[coord] {
			seen[coord] = true
			out = append(out, coord)
		}
	}
	sort.Strings(out)
	return out
}

// Backend is the minimal per-backend shape Tree needs: enough to resolve a
// coordinate at any level. clustermodel.Backend satisfies this shape; it is
// restated here to keep topology free of a clustermodel import.
type Backend struct {
	HostFullPath string
	Fsid         string
}

// PlaceGroup registers groupID as currently occupying the coordinates its
// backends resolve to at every level, seeding the occupancy snapshot the
// planner scores new placements against.
func (t *Tree) PlaceGroup(groupID int, backends []Backend) {
	for _, level := range t.levels {
		for _, coord := range t.GroupCoordinates(level, backends) {
			if t.placed[level][coord] == nil {
				t.placed[level][coord] = make(map[int]bool)
			}
			t.placed[level][coord][groupID] = true
		}
	}
}

// GroupCount returns the number of groups currently placed under coordinate
// at level.
func (t *Tree) GroupCount(level, coordinate string) int {
	return len(t.placed[level][coordinate])
}

// Mean returns the mean per-coordinate group count at level, over every
// known coordinate at that level, including unoccupied ones.
func (t *Tree) Mean(level string) float64 {
	paths := t.levelPaths[level]
	if len(paths) == 0 {
		return 0
	}
	total := 0
	for _, p := range paths {
		total += len(t.placed[level][p])
	}
	return float64(total) / float64(len(paths))
}

// DCOf reports the DC-level coordinate for hostFullPath, used by the
// forbidden_dc_sharing_among_groups constraint. It returns ok=false if
// "dc" is not one of the tree's accountable levels.
func (t *Tree) DCOf(hostFullPath string) (string, bool) {
	coord, ok := t.hostCoord["dc"][hostFullPath]
	return coord, ok
}
