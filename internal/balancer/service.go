package balancer

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cocaineapp/balancer/internal/audit"
	"github.com/cocaineapp/balancer/internal/clustermodel"
	"github.com/cocaineapp/balancer/internal/errs"
	"github.com/cocaineapp/balancer/internal/lifecycle"
	"github.com/cocaineapp/balancer/internal/namespace"
	"github.com/cocaineapp/balancer/internal/placement"
	"github.com/cocaineapp/balancer/internal/topology"
	"github.com/cocaineapp/balancer/internal/weight"
)

// notBadCoupleStatuses are the couple states get_bad_groups excludes: a
// couple is "bad" iff it's in none of these.
var notBadCoupleStatuses = map[clustermodel.CoupleStatus]bool{
	clustermodel.CoupleOK:     true,
	clustermodel.CoupleFrozen: true,
	clustermodel.CoupleFull:   true,
}

// couplesListStates maps the get_couples_list `state` filter values to the
// couple statuses they match.
var couplesListStates = map[string][]clustermodel.CoupleStatus{
	"good":   {clustermodel.CoupleOK},
	"full":   {clustermodel.CoupleFull},
	"frozen": {clustermodel.CoupleFrozen},
	"bad":    {clustermodel.CoupleInit, clustermodel.CoupleBad},
	"broken": {clustermodel.CoupleBroken},
}

// Locker is the slice of clusterlock.Lock the facade needs: non-blocking
// acquire, unconditional release. Tests substitute an in-memory lock.
type Locker interface {
	TryLock() error
	Unlock()
}

// GroupIDReserver is the slice of clusterlock.Cluster backing
// get_next_group_number.
type GroupIDReserver interface {
	ReserveGroupIDs(n int) ([]int, error)
}

// Service is the operator request facade: every operator RPC is a method
// on Service, and each structural mutation acquires the cluster lock here
// before calling down; lifecycle.Lifecycle records the individual
// build/break/freeze/repair steps in the audit log. Service is what ties that
// package, placement, weight, topology, and namespace together into one
// cluster-wide view.
type Service struct {
	mu   sync.RWMutex
	tree *topology.Tree

	state    *clustermodel.ClusterState
	life     *lifecycle.Lifecycle
	nsStore  *NamespaceStore
	lock     Locker
	reserver GroupIDReserver
	audit    *audit.Log
	metrics  *Metrics
	log      zerolog.Logger

	topoLevels   []string
	weightCfg    weight.Config
	forbidDC     bool
	spaceTol     float64
	defaultUnits int
}

// NewService wires a Service from its already-constructed dependencies.
// The topology tree is nil until ApplyInventory or RebuildTopology installs
// one from the external inventory feed.
func NewService(
	state *clustermodel.ClusterState,
	life *lifecycle.Lifecycle,
	nsStore *NamespaceStore,
	lock Locker,
	reserver GroupIDReserver,
	auditLog *audit.Log,
	metrics *Metrics,
	topologyLevels []string,
	weightCfg weight.Config,
	forbidDCSharing bool,
	spaceDiffTolerance float64,
	defaultMinUnits int,
	logger zerolog.Logger,
) *Service {
	return &Service{
		state:        state,
		life:         life,
		nsStore:      nsStore,
		lock:         lock,
		reserver:     reserver,
		audit:        auditLog,
		metrics:      metrics,
		topoLevels:   topologyLevels,
		weightCfg:    weightCfg,
		forbidDC:     forbidDCSharing,
		spaceTol:     spaceDiffTolerance,
		defaultUnits: defaultMinUnits,
		log:          logger.With().Str("component", "balancer").Logger(),
	}
}

// RebuildTopology installs a freshly built fault-domain tree, e.g.
// after the inventory feed has been polled. Concurrent planning that
// started under the old tree finishes against it; only calls made after
// this returns see the new one.
func (s *Service) RebuildTopology(tree *topology.Tree) {
	s.mu.Lock()
	s.tree = tree
	s.mu.Unlock()
}

func (s *Service) currentTree() *topology.Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree
}

// tryLock acquires the cluster lock and records the outcome, the single
// choke point every structural mutation below goes through.
func (s *Service) tryLock() error {
	err := s.lock.TryLock()
	if s.metrics == nil {
		return err
	}
	if err != nil {
		s.metrics.observeLock("busy")
	} else {
		s.metrics.observeLock("acquired")
	}
	return err
}

// --- read-only couple/group listings ---

func coupleTuples(couples []*clustermodel.Couple) [][]int {
	out := make([][]int, 0, len(couples))
	for _, c := range couples {
		out = append(out, append([]int(nil), c.Groups...))
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) < len(out[j])
		}
		for k := range out[i] {
			if out[i][k] != out[j][k] {
				return out[i][k] < out[j][k]
			}
		}
		return false
	})
	return out
}

// GetSymmetricGroups returns every OK couple as a group-id tuple.
func (s *Service) GetSymmetricGroups() [][]int {
	var matched []*clustermodel.Couple
	for _, c := range s.state.Couples() {
		if c.Status == clustermodel.CoupleOK {
			matched = append(matched, c)
		}
	}
	return coupleTuples(matched)
}

// GetBadGroups returns every couple not in a "not bad" status.
func (s *Service) GetBadGroups() [][]int {
	var matched []*clustermodel.Couple
	for _, c := range s.state.Couples() {
		if !notBadCoupleStatuses[c.Status] {
			matched = append(matched, c)
		}
	}
	return coupleTuples(matched)
}

// GetFrozenGroups returns every FROZEN couple.
func (s *Service) GetFrozenGroups() [][]int {
	var matched []*clustermodel.Couple
	for _, c := range s.state.Couples() {
		if c.Status == clustermodel.CoupleFrozen {
			matched = append(matched, c)
		}
	}
	return coupleTuples(matched)
}

// GetClosedGroups returns every FULL couple (out of space beyond the
// reserved percentage).
func (s *Service) GetClosedGroups() [][]int {
	var matched []*clustermodel.Couple
	for _, c := range s.state.Couples() {
		if c.Status == clustermodel.CoupleFull {
			matched = append(matched, c)
		}
	}
	return coupleTuples(matched)
}

// GetEmptyGroups returns the ids of every group with no couple.
func (s *Service) GetEmptyGroups() []int {
	var ids []int
	for _, g := range s.state.Groups() {
		if g.CoupleKey == "" {
			ids = append(ids, g.ID)
		}
	}
	sort.Ints(ids)
	return ids
}

// CoupleInfo is the facade's operator-facing view of one couple
// (get_couple_info / get_couples_list).
type CoupleInfo struct {
	Key       string
	Groups    []int
	Status    clustermodel.CoupleStatus
	Namespace string
	Frozen    bool
	Rates     clustermodel.Rates
	Space     clustermodel.Space
}

func (s *Service) coupleInfo(c *clustermodel.Couple) (CoupleInfo, error) {
	snap, err := s.state.CoupleSnapshot(c.Key())
	if err != nil {
		return CoupleInfo{}, err
	}
	return CoupleInfo{
		Key:       snap.Key,
		Groups:    snap.Groups,
		Status:    snap.Status,
		Namespace: snap.Namespace,
		Frozen:    snap.Frozen,
		Rates:     snap.Rates,
		Space:     snap.Space,
	}, nil
}

// CouplesListFilter is get_couples_list's options bag.
type CouplesListFilter struct {
	Namespace string // "" matches every namespace
	State     string // "" matches every state; otherwise one of good/full/frozen/bad/broken
}

// GetCouplesList lists couples matching an optional namespace and state
// filter.
func (s *Service) GetCouplesList(filter CouplesListFilter) ([]CoupleInfo, error) {
	var allowed map[clustermodel.CoupleStatus]bool
	if filter.State != "" {
		statuses, ok := couplesListStates[filter.State]
		if !ok {
			return nil, errs.Wrap(errs.BadRequest, "balancer: unknown couple state filter %q", filter.State)
		}
		allowed = make(map[clustermodel.CoupleStatus]bool, len(statuses))
		for _, st := range statuses {
			allowed[st] = true
		}
	}

	var out []CoupleInfo
	for _, c := range s.state.Couples() {
		if filter.Namespace != "" && c.Namespace != filter.Namespace {
			continue
		}
		if allowed != nil && !allowed[c.Status] {
			continue
		}
		info, err := s.coupleInfo(c)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// GroupInfo is the facade's operator-facing view of one group.
type GroupInfo struct {
	ID        int
	Status    clustermodel.GroupStatus
	CoupleKey string
	Backends  []clustermodel.Backend
}

// GetGroupInfo returns a single group's current state.
func (s *Service) GetGroupInfo(groupID int) (GroupInfo, error) {
	g, err := s.state.Group(groupID)
	if err != nil {
		return GroupInfo{}, err
	}
	return GroupInfo{ID: g.ID, Status: g.Status, CoupleKey: g.CoupleKey, Backends: append([]clustermodel.Backend(nil), g.Backends...)}, nil
}

// GetCoupleInfo resolves ref as either a bare/bracketed couple id or a
// single group id belonging to a couple, then returns that couple's info.
func (s *Service) GetCoupleInfo(ref string) (CoupleInfo, error) {
	if groupID, ok := parseSingleGroupID(ref); ok {
		g, err := s.state.Group(groupID)
		if err != nil {
			return CoupleInfo{}, err
		}
		if g.CoupleKey == "" {
			return CoupleInfo{}, errs.Wrap(errs.NotFound, "balancer: group %d is not in a couple", groupID)
		}
		c, err := s.state.Couple(g.CoupleKey)
		if err != nil {
			return CoupleInfo{}, err
		}
		return s.coupleInfo(c)
	}

	ids, err := clustermodel.ParseKey(ref)
	if err != nil {
		return CoupleInfo{}, errs.Wrap(errs.BadRequest, "balancer: %v", err)
	}
	c, err := s.state.Couple(clustermodel.Key(ids))
	if err != nil {
		return CoupleInfo{}, err
	}
	return s.coupleInfo(c)
}

// --- weight engine facade (get_group_weights) ---

// WeightEntry is one couple's entry in the get_group_weights result.
type WeightEntry struct {
	Groups     []int
	Weight     float64
	Diagnostic string
	FreeKB     float64
}

// GetGroupWeights computes weights for every namespace (or just
// namespaceFilter, if non-empty), grouped by couple size: couples of
// different sizes never compete for the same weight pool.
func (s *Service) GetGroupWeights(namespaceFilter string) (map[string]map[int][]WeightEntry, error) {
	bySizeByNamespace := make(map[string]map[int][]clustermodel.CoupleSnapshot)
	for _, c := range s.state.Couples() {
		if c.Status != clustermodel.CoupleOK {
			continue
		}
		if namespaceFilter != "" && c.Namespace != namespaceFilter {
			continue
		}
		snap, err := s.state.CoupleSnapshot(c.Key())
		if err != nil {
			continue
		}
		if bySizeByNamespace[c.Namespace] == nil {
			bySizeByNamespace[c.Namespace] = make(map[int][]clustermodel.CoupleSnapshot)
		}
		size := len(c.Groups)
		bySizeByNamespace[c.Namespace][size] = append(bySizeByNamespace[c.Namespace][size], snap)
	}

	// Per-namespace errors in weight computation degrade to excluding that
	// namespace from the result: one namespace's failure (or one data-type
	// pool's, within it) must not abort every other namespace's weights.
	out := make(map[string]map[int][]WeightEntry, len(bySizeByNamespace))
	for ns, bySize := range bySizeByNamespace {
		minUnits, err := s.namespaceMinUnits(ns)
		if err != nil {
			if s.metrics != nil {
				s.metrics.observeWeightFailure(ns)
			}
			continue
		}
		bucket := make(map[int][]WeightEntry, len(bySize))
		for size, couples := range bySize {
			results, err := weight.Compute(s.weightCfg, minUnits, couples)
			if err != nil {
				if s.metrics != nil {
					s.metrics.observeWeightFailure(ns)
				}
				continue
			}
			entries := make([]WeightEntry, 0, len(results))
			for _, c := range couples {
				r := results[c.Key]
				entries = append(entries, WeightEntry{Groups: c.Groups, Weight: r.Weight, Diagnostic: r.Diagnostic, FreeKB: r.FreeKB})
			}
			sort.Slice(entries, func(i, j int) bool { return entries[i].Groups[0] < entries[j].Groups[0] })
			bucket[size] = entries
		}
		if len(bucket) > 0 {
			out[ns] = bucket
		}
	}
	return out, nil
}

func (s *Service) namespaceMinUnits(name string) (int, error) {
	settings, exists, err := s.nsStore.Get(name)
	if err != nil {
		return 0, err
	}
	if !exists {
		return s.defaultUnits, nil
	}
	if v, ok := settings["min-units"]; ok {
		if n, ok := namespace.AsInt(v); ok {
			return n, nil
		}
	}
	return s.defaultUnits, nil
}

// RefreshCoupleStatuses recomputes every couple's status from its members'
// current statuses and space readings, and republishes the couple-count
// gauges. A couple goes FULL when its free fraction falls to or below the
// namespace's reserved-space-percentage; it recovers to OK the same way.
// BAD and BROKEN couples are skipped — leaving those states takes an
// explicit repair or break, not a refresh tick.
func (s *Service) RefreshCoupleStatuses() {
	for _, c := range s.state.Couples() {
		if c.IsBad() {
			continue
		}
		snap, err := s.state.CoupleSnapshot(c.Key())
		if err != nil {
			continue
		}
		reserved := s.namespaceReservedSpace(c.Namespace)
		anyFull := reserved > 0 && snap.Space.FreeRel <= reserved

		statuses := make([]clustermodel.GroupStatus, 0, len(c.Groups))
		for _, id := range c.Groups {
			if g, err := s.state.Group(id); err == nil {
				statuses = append(statuses, g.Status)
			}
		}
		c.Status = lifecycle.DeriveStatus(statuses, true, false, anyFull, c.Frozen)
	}
	if s.metrics != nil {
		s.metrics.ObserveCoupleCounts(s.state.Couples())
	}
}

func (s *Service) namespaceReservedSpace(name string) float64 {
	settings, exists, err := s.nsStore.Get(name)
	if err != nil || !exists {
		return 0
	}
	if v, ok := settings["reserved-space-percentage"]; ok {
		if f, ok := namespace.AsFloat(v); ok {
			return f
		}
	}
	return 0
}

// --- structural mutations: build/break/freeze/unfreeze/repair/detach ---

// BuildOptions is build_couples's options bag.
type BuildOptions struct {
	Namespace       string
	MatchGroupSpace bool
	InitState       lifecycle.InitState
	DryRun          bool
	MandatoryGroups [][]int
}

// BuildCouples plans and commits count couples of size groups each,
// acquiring the cluster lock for the whole batch: the lock comes first,
// then planning against the current cluster view, so no second structural
// mutation can interleave.
func (s *Service) BuildCouples(ctx context.Context, size, count int, opts BuildOptions) ([][]int, error) {
	if size <= 0 || count <= 0 {
		return nil, errs.Wrap(errs.BadRequest, "balancer: size and count must be positive")
	}
	if len(opts.MandatoryGroups) > count {
		return nil, errs.Wrap(errs.BadRequest, "balancer: more mandatory-group lists than couples requested")
	}

	base := s.currentTree()
	if base == nil {
		return nil, errs.Wrap(errs.Internal, "balancer: topology not yet built")
	}

	if err := s.tryLock(); err != nil {
		return nil, err
	}
	defer s.lock.Unlock()

	opID := s.audit.Begin("build_couples", map[string]any{"size": size, "count": count, "namespace": opts.Namespace, "dry_run": opts.DryRun})

	// Occupancy is per namespace and recomputed per planning pass: the pass
	// works against a clone of the shared tree seeded with the target
	// namespace's existing couples, so dry runs and other namespaces never
	// leak into it. Dry and real runs share all bookkeeping below; only the
	// meta write and registry commit differ.
	tree := base.Clone()
	for _, g := range s.state.Groups() {
		if g.CoupleKey == "" {
			continue
		}
		c, err := s.state.Couple(g.CoupleKey)
		if err != nil || c.Namespace != opts.Namespace {
			continue
		}
		tree.PlaceGroup(g.ID, topoBackends(g))
	}

	totalSpace := func(groupID int) float64 {
		g, err := s.state.Group(groupID)
		if err != nil {
			return 0
		}
		return s.groupTotalSpaceKB(g)
	}
	candidates := placement.Candidates(s.state.Groups(), totalSpace)

	// A mandatory group missing from the candidate set (coupled, broken, or
	// unknown) is the caller's mistake, not a capacity shortfall.
	candidateIDs := make(map[int]bool, len(candidates))
	for _, c := range candidates {
		candidateIDs[c.ID] = true
	}
	for _, list := range opts.MandatoryGroups {
		for _, id := range list {
			if !candidateIDs[id] {
				err := errs.Wrap(errs.BadRequest, "balancer: mandatory group %d is not an uncoupled candidate", id)
				s.audit.End(opID, "build_couples", err)
				return nil, err
			}
		}
	}

	buckets := placement.BucketBySpace(candidates, opts.MatchGroupSpace, s.spaceTol)

	planner := &placement.Planner{Tree: tree, ForbidDCSharing: s.forbidDC}

	var built [][]int
	for i := 0; i < count; i++ {
		var mandatory []int
		if i < len(opts.MandatoryGroups) {
			mandatory = opts.MandatoryGroups[i]
		}

		bucket, err := selectBucket(buckets, mandatory)
		if err != nil {
			s.audit.End(opID, "build_couples", err)
			return built, err
		}

		groupIDs, err := planner.PlanCouple(bucket, size, mandatory)
		if err != nil {
			if s.metrics != nil {
				s.metrics.observePlacement("failed")
			}
			s.audit.End(opID, "build_couples", err)
			return built, err
		}
		if s.metrics != nil {
			s.metrics.observePlacement("succeeded")
		}

		if !opts.DryRun {
			if _, err := s.life.Build(ctx, groupIDs, opts.Namespace, opts.InitState); err != nil {
				s.audit.End(opID, "build_couples", err)
				return built, err
			}
		}

		for _, id := range groupIDs {
			g, err := s.state.Group(id)
			if err != nil {
				continue
			}
			tree.PlaceGroup(id, topoBackends(g))
		}
		buckets = placement.BucketBySpace(removeGroups(flattenBuckets(buckets), groupIDs), opts.MatchGroupSpace, s.spaceTol)
		built = append(built, groupIDs)
	}

	s.audit.End(opID, "build_couples", nil)
	return built, nil
}

func topoBackends(g *clustermodel.Group) []topology.Backend {
	out := make([]topology.Backend, 0, len(g.Backends))
	for _, b := range g.Backends {
		out = append(out, topology.Backend{HostFullPath: b.HostFullPath, Fsid: b.Fsid})
	}
	return out
}

// parseSingleGroupID reports whether ref is a bare integer group id, as
// opposed to a couple-id tuple (get_couple_info accepts either).
func parseSingleGroupID(ref string) (int, bool) {
	id, err := strconv.Atoi(ref)
	if err != nil {
		return 0, false
	}
	return id, true
}

func flattenBuckets(buckets []placement.Bucket) []placement.CandidateGroup {
	var all []placement.CandidateGroup
	for _, b := range buckets {
		all = append(all, b.Members...)
	}
	return all
}

func removeGroups(candidates []placement.CandidateGroup, used []int) []placement.CandidateGroup {
	usedSet := make(map[int]bool, len(used))
	for _, id := range used {
		usedSet[id] = true
	}
	out := make([]placement.CandidateGroup, 0, len(candidates))
	for _, c := range candidates {
		if !usedSet[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

func selectBucket(buckets []placement.Bucket, mandatory []int) ([]placement.CandidateGroup, error) {
	for _, b := range buckets {
		if len(mandatory) == 0 || b.ContainsAll(mandatory) {
			return b.Members, nil
		}
	}
	return nil, errs.Wrap(errs.InsufficientCapacity, "balancer: no candidate bucket contains every mandatory group")
}

func (s *Service) groupTotalSpaceKB(g *clustermodel.Group) float64 {
	snap := g.Snapshot(s.state.LookupNode)
	if snap.Space.FreeRel <= 0 {
		return snap.Space.FreeKB
	}
	return snap.Space.FreeKB / snap.Space.FreeRel
}

// BreakCouple destroys a couple after validating confirm.
func (s *Service) BreakCouple(ctx context.Context, groupIDs []int, confirm string) error {
	if err := s.tryLock(); err != nil {
		return err
	}
	defer s.lock.Unlock()
	return s.life.Break(ctx, groupIDs, confirm)
}

// FreezeCouple marks a couple frozen.
func (s *Service) FreezeCouple(ctx context.Context, coupleKey string) error {
	if err := s.tryLock(); err != nil {
		return err
	}
	defer s.lock.Unlock()
	return s.life.Freeze(ctx, coupleKey)
}

// UnfreezeCouple clears a couple's frozen flag.
func (s *Service) UnfreezeCouple(ctx context.Context, coupleKey string) error {
	if err := s.tryLock(); err != nil {
		return err
	}
	defer s.lock.Unlock()
	return s.life.Unfreeze(ctx, coupleKey)
}

// RepairGroups repairs a single BAD group.
func (s *Service) RepairGroups(ctx context.Context, groupID int, namespaceOverride string) error {
	if err := s.tryLock(); err != nil {
		return err
	}
	defer s.lock.Unlock()
	_, err := s.life.Repair(ctx, groupID, namespaceOverride)
	return err
}

// GroupDetachNode removes one backend from a group without touching couple
// meta.
func (s *Service) GroupDetachNode(groupID int, nodeAddr string) error {
	if err := s.tryLock(); err != nil {
		return err
	}
	defer s.lock.Unlock()
	return s.life.DetachNode(groupID, nodeAddr)
}

// ReserveGroupIDs implements get_next_group_number.
func (s *Service) ReserveGroupIDs(n int) ([]int, error) {
	return s.reserver.ReserveGroupIDs(n)
}

// --- namespace settings ---

// NamespaceSetup writes name's configuration, validating unless
// skipValidation is set. For an existing namespace, settings are deep-merged
// into the current ones unless overwrite is set, in which case they replace
// them outright. A new or soft-deleted namespace starts from settings alone.
func (s *Service) NamespaceSetup(ctx context.Context, name string, overwrite bool, settings namespace.Settings, skipValidation bool) error {
	if !namespace.ValidName(name) {
		return errs.Wrap(errs.BadRequest, "balancer: invalid namespace name %q", name)
	}

	if err := s.tryLock(); err != nil {
		return err
	}
	defer s.lock.Unlock()

	opID := s.audit.Begin("namespace_setup", map[string]any{"namespace": name, "overwrite": overwrite})

	current, exists, err := s.nsStore.Get(name)
	if err != nil {
		s.audit.End(opID, "namespace_setup", err)
		return err
	}

	merged := settings
	if exists && !overwrite {
		merged = namespace.DeepMerge(current, settings)
	}
	merged = namespace.StripUnknown(merged)

	if !skipValidation {
		lookup := namespace.CoupleLookup(func(key string) (*clustermodel.Couple, bool) {
			c, err := s.state.Couple(key)
			if err != nil {
				return nil, false
			}
			return c, true
		})
		if err := namespace.Validate(name, merged, lookup); err != nil {
			s.audit.End(opID, "namespace_setup", err)
			return err
		}
	}

	if err := s.nsStore.Put(name, merged); err != nil {
		s.audit.End(opID, "namespace_setup", err)
		return err
	}
	s.audit.End(opID, "namespace_setup", nil)
	return nil
}

// NamespaceDelete soft-deletes a namespace.
func (s *Service) NamespaceDelete(ctx context.Context, name string) error {
	if err := s.tryLock(); err != nil {
		return err
	}
	defer s.lock.Unlock()

	opID := s.audit.Begin("namespace_delete", map[string]any{"namespace": name})
	err := s.nsStore.Delete(name)
	s.audit.End(opID, "namespace_delete", err)
	return err
}

// GetNamespaceSettings returns name's current settings.
func (s *Service) GetNamespaceSettings(name string) (namespace.Settings, error) {
	settings, exists, err := s.nsStore.Get(name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errs.Wrap(errs.NotFound, "balancer: namespace %q not found", name)
	}
	return settings, nil
}

// NamespaceState is one namespace's combined view for get_namespaces_states:
// settings, per-size weights, and couple counts by status, the shape
// operator dashboards consume.
type NamespaceState struct {
	Name         string
	Settings     namespace.Settings
	Weights      map[int][]WeightEntry
	CoupleCounts map[clustermodel.CoupleStatus]int
}

// GetNamespacesStates returns the combined view for every live namespace.
func (s *Service) GetNamespacesStates() ([]NamespaceState, error) {
	names, err := s.nsStore.List()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]map[clustermodel.CoupleStatus]int, len(names))
	for _, c := range s.state.Couples() {
		if counts[c.Namespace] == nil {
			counts[c.Namespace] = make(map[clustermodel.CoupleStatus]int)
		}
		counts[c.Namespace][c.Status]++
	}

	out := make([]NamespaceState, 0, len(names))
	for _, name := range names {
		settings, _, err := s.nsStore.Get(name)
		if err != nil {
			return nil, err
		}
		weights, err := s.GetGroupWeights(name)
		if err != nil {
			return nil, err
		}
		out = append(out, NamespaceState{
			Name:         name,
			Settings:     settings,
			Weights:      weights[name],
			CoupleCounts: counts[name],
		})
	}
	return out, nil
}
