package lifecycle

import "github.com/cocaineapp/balancer/internal/clustermodel"

// DeriveStatus computes a couple's status, which follows entirely from its
// member groups' statuses, whether their stored
// metadata agrees, the frozen flag, and whether any member reports
// out-of-space beyond its reserved percentage.
//
//   - metaBroken (missing or unparseable on any member): BROKEN
//   - not all members OK, or the metas disagree: BAD
//   - any member over its reserved-space threshold: FULL
//   - frozen: FROZEN
//   - otherwise: OK
func DeriveStatus(groupStatuses []clustermodel.GroupStatus, metaAgree bool, metaBroken bool, anyFull bool, frozen bool) clustermodel.CoupleStatus {
	if metaBroken {
		return clustermodel.CoupleBroken
	}

	allOK := true
	for _, s := range groupStatuses {
		if s != clustermodel.GroupOK {
			allOK = false
			break
		}
	}
	if !allOK || !metaAgree {
		return clustermodel.CoupleBad
	}
	if anyFull {
		return clustermodel.CoupleFull
	}
	if frozen {
		return clustermodel.CoupleFrozen
	}
	return clustermodel.CoupleOK
}
