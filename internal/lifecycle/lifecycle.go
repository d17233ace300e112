package lifecycle

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cocaineapp/balancer/internal/audit"
	"github.com/cocaineapp/balancer/internal/clustermodel"
	"github.com/cocaineapp/balancer/internal/errs"
)

// InitState is the caller-specified starting state for build_couples:
// either the couple goes live immediately (Coupled) or it's built
// pre-frozen (Frozen).
type InitState string

const (
	Coupled InitState = "COUPLED"
	Frozen  InitState = "FROZEN"
)

// Lifecycle implements build/freeze/unfreeze/repair/break against a
// ClusterState, funneling every metadata mutation through a Writer and
// recording each one in the audit log.
type Lifecycle struct {
	state  *clustermodel.ClusterState
	writer *Writer
	audit  *audit.Log
	log    zerolog.Logger
}

// New builds a Lifecycle.
func New(state *clustermodel.ClusterState, writer *Writer, auditLog *audit.Log, logger zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		state:  state,
		writer: writer,
		audit:  auditLog,
		log:    logger.With().Str("component", "lifecycle").Logger(),
	}
}

// Build forms a new couple from groupIDs, writes its metadata, and
// registers it. initState must be Coupled or Frozen.
func (l *Lifecycle) Build(ctx context.Context, groupIDs []int, namespace string, initState InitState) (*clustermodel.Couple, error) {
	if initState != Coupled && initState != Frozen {
		return nil, errs.Wrap(errs.BadRequest, "lifecycle: init_state must be COUPLED or FROZEN, got %q", initState)
	}
	frozen := initState == Frozen

	opID := l.audit.Begin("build_couple", map[string]any{"groups": groupIDs, "namespace": namespace, "init_state": initState})

	groups := make([]*clustermodel.Group, 0, len(groupIDs))
	for _, id := range groupIDs {
		g, err := l.state.Group(id)
		if err != nil {
			l.audit.End(opID, "build_couple", err)
			return nil, err
		}
		if g.Status != clustermodel.GroupInit || g.CoupleKey != "" {
			err := errs.Wrap(errs.BadRequest, "lifecycle: group %d is not an uncoupled INIT group", id)
			l.audit.End(opID, "build_couple", err)
			return nil, err
		}
		groups = append(groups, g)
	}

	meta := NewMeta(namespace, frozen, groupIDs)
	if err := l.writer.WriteQuorum(ctx, groupIDs, meta); err != nil {
		if errs.Is(err, errs.InconsistentMeta) {
			key := clustermodel.Key(groupIDs)
			for _, g := range groups {
				g.Status = clustermodel.GroupBad
				g.CoupleKey = key
			}
			l.state.PutCouple(&clustermodel.Couple{
				Groups:    append([]int(nil), groupIDs...),
				Namespace: namespace,
				Frozen:    frozen,
				Status:    clustermodel.CoupleBad,
			})
		}
		l.audit.End(opID, "build_couple", err)
		return nil, err
	}

	key := clustermodel.Key(groupIDs)
	statuses := make([]clustermodel.GroupStatus, len(groups))
	for i, g := range groups {
		g.CoupleKey = key
		g.Status = clustermodel.GroupOK
		statuses[i] = g.Status
	}

	couple := &clustermodel.Couple{
		Groups:    append([]int(nil), groupIDs...),
		Namespace: namespace,
		Frozen:    frozen,
		Status:    DeriveStatus(statuses, true, false, false, frozen),
	}
	l.state.PutCouple(couple)

	l.audit.End(opID, "build_couple", nil)
	return couple, nil
}

// Freeze and Unfreeze flip a couple's frozen flag and rewrite its metadata
// under the same quorum discipline as build.
func (l *Lifecycle) Freeze(ctx context.Context, coupleKey string) error {
	return l.setFrozen(ctx, coupleKey, true)
}

func (l *Lifecycle) Unfreeze(ctx context.Context, coupleKey string) error {
	return l.setFrozen(ctx, coupleKey, false)
}

func (l *Lifecycle) setFrozen(ctx context.Context, coupleKey string, frozen bool) error {
	op := "freeze_couple"
	if !frozen {
		op = "unfreeze_couple"
	}
	opID := l.audit.Begin(op, map[string]any{"couple": coupleKey})

	couple, err := l.state.Couple(coupleKey)
	if err != nil {
		l.audit.End(opID, op, err)
		return err
	}
	if couple.Frozen == frozen {
		err := errs.Wrap(errs.AlreadyInState, "lifecycle: couple %s is already %s", coupleKey, frozenWord(frozen))
		l.audit.End(opID, op, err)
		return err
	}

	meta := NewMeta(couple.Namespace, frozen, couple.Groups)
	if err := l.writer.WriteQuorum(ctx, couple.Groups, meta); err != nil {
		if errs.Is(err, errs.InconsistentMeta) {
			couple.Status = clustermodel.CoupleBad
		}
		l.audit.End(opID, op, err)
		return err
	}

	couple.Frozen = frozen
	if couple.Status == clustermodel.CoupleOK || couple.Status == clustermodel.CoupleFrozen {
		if frozen {
			couple.Status = clustermodel.CoupleFrozen
		} else {
			couple.Status = clustermodel.CoupleOK
		}
	}

	l.audit.End(opID, op, nil)
	return nil
}

// Repair rewrites metadata for a couple whose member group is BAD,
// admitting an operator-supplied namespace only when no peer carries one.
// This model keeps a single agreed Namespace/Frozen value
// per couple rather than raw per-group blobs, so "peer agreement" is
// already represented by the couple record itself.
func (l *Lifecycle) Repair(ctx context.Context, groupID int, namespaceOverride string) (*clustermodel.Couple, error) {
	opID := l.audit.Begin("repair_groups", map[string]any{"group": groupID, "namespace_override": namespaceOverride})

	g, err := l.state.Group(groupID)
	if err != nil {
		l.audit.End(opID, "repair_groups", err)
		return nil, err
	}
	if g.Status != clustermodel.GroupBad {
		err := errs.Wrap(errs.BadRequest, "lifecycle: group %d is not BAD", groupID)
		l.audit.End(opID, "repair_groups", err)
		return nil, err
	}
	if g.CoupleKey == "" {
		err := errs.Wrap(errs.BadRequest, "lifecycle: group %d is not a member of any couple", groupID)
		l.audit.End(opID, "repair_groups", err)
		return nil, err
	}

	couple, err := l.state.Couple(g.CoupleKey)
	if err != nil {
		l.audit.End(opID, "repair_groups", err)
		return nil, err
	}

	namespace := couple.Namespace
	if namespace == "" {
		if namespaceOverride == "" {
			err := errs.Wrap(errs.BadRequest, "lifecycle: no peer carries namespace meta; an override is required")
			l.audit.End(opID, "repair_groups", err)
			return nil, err
		}
		namespace = namespaceOverride
	}

	meta := NewMeta(namespace, couple.Frozen, couple.Groups)
	if err := l.writer.WriteQuorum(ctx, couple.Groups, meta); err != nil {
		l.audit.End(opID, "repair_groups", err)
		return nil, err
	}

	g.Status = clustermodel.GroupOK
	couple.Namespace = namespace
	statuses := make([]clustermodel.GroupStatus, 0, len(couple.Groups))
	for _, id := range couple.Groups {
		member, err := l.state.Group(id)
		if err != nil {
			continue
		}
		statuses = append(statuses, member.Status)
	}
	couple.Status = DeriveStatus(statuses, true, false, false, couple.Frozen)

	l.audit.End(opID, "repair_groups", nil)
	return couple, nil
}

// Break destroys a couple after validating the operator's confirmation
// string against the exact expected form (bracketed couple-id form also
// accepted). No metadata is mutated if the confirmation doesn't match.
func (l *Lifecycle) Break(ctx context.Context, groupIDs []int, confirm string) error {
	key := clustermodel.Key(groupIDs)
	opID := l.audit.Begin("break_couple", map[string]any{"couple": key})

	couple, err := l.state.Couple(key)
	if err != nil {
		l.audit.End(opID, "break_couple", err)
		return err
	}

	goodOrBad := "good"
	if couple.IsBad() {
		goodOrBad = "bad"
	}
	expectedBare := fmt.Sprintf("Yes, I want to break %s couple %s", goodOrBad, key)
	expectedBracketed := fmt.Sprintf("Yes, I want to break %s couple [%s]", goodOrBad, key)
	if confirm != expectedBare && confirm != expectedBracketed {
		err := errs.Wrap(errs.BadRequest, "lifecycle: confirmation string does not match couple %s", key)
		l.audit.End(opID, "break_couple", err)
		return err
	}

	if err := l.writer.Remove(ctx, couple.Groups); err != nil {
		l.audit.End(opID, "break_couple", err)
		return err
	}

	for _, id := range couple.Groups {
		if g, err := l.state.Group(id); err == nil {
			g.CoupleKey = ""
			g.Status = clustermodel.GroupInit
		}
	}
	l.state.DeleteCouple(key)

	l.audit.End(opID, "break_couple", nil)
	return nil
}

// DetachNode removes a single backend from a group without touching the
// couple's metadata: detaching a backend is not a
// meta-affecting operation, so an OK couple stays OK so long as the group's
// remaining backends are healthy.
func (l *Lifecycle) DetachNode(groupID int, nodeAddr string) error {
	opID := l.audit.Begin("group_detach_node", map[string]any{"group": groupID, "node": nodeAddr})

	g, err := l.state.Group(groupID)
	if err != nil {
		l.audit.End(opID, "group_detach_node", err)
		return err
	}

	idx := -1
	for i, b := range g.Backends {
		if b.NodeAddr == nodeAddr {
			idx = i
			break
		}
	}
	if idx == -1 {
		err := errs.Wrap(errs.NotFound, "lifecycle: group %d has no backend on %s", groupID, nodeAddr)
		l.audit.End(opID, "group_detach_node", err)
		return err
	}

	g.Backends = append(g.Backends[:idx], g.Backends[idx+1:]...)

	allOK := len(g.Backends) > 0
	for _, b := range g.Backends {
		if !b.OK {
			allOK = false
		}
	}
	if !allOK {
		g.Status = clustermodel.GroupBad
	} else if g.Status == clustermodel.GroupBad {
		g.Status = clustermodel.GroupOK
	}

	l.audit.End(opID, "group_detach_node", nil)
	return nil
}

func frozenWord(frozen bool) string {
	if frozen {
		return "frozen"
	}
	return "unfrozen"
}
