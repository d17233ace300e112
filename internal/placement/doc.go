// Package placement implements the couple-formation planner: given a
// pool of uncoupled candidate groups and a target couple size, it selects a
// combination that minimizes fault-domain collision against the couples
// already placed in a namespace, honoring mandatory members and an optional
// total-space bucketing policy.
//
// Selection is a recursive top-down walk over the topology tree's
// accountable levels (dc, host, hdd, ...): at each level the remaining
// candidates are partitioned by their coordinate at that level, a
// combination of coordinates is chosen to minimize the squared-deviation
// from the per-level mean occupancy, and the walk recurses into the next
// level restricted to the groups consistent with the chosen coordinates.
// Simplification: a candidate group's coordinate at a level is the
// lexicographically first of the coordinates its backends resolve to, rather
// than the full set its backends may span — in
// this store's topology a candidate (INIT, uncoupled) group normally has
// exactly one backend, so this matches the common case exactly and only
// narrows the rare multi-backend candidate.
package placement
