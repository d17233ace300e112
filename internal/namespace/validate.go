package namespace

import (
	"github.com/cocaineapp/balancer/internal/clustermodel"
	"github.com/cocaineapp/balancer/internal/errs"
)

// CoupleLookup resolves a couple id to its current record, letting Validate
// check the static-couple constraint without importing the full cluster
// registry surface.
type CoupleLookup func(key string) (*clustermodel.Couple, bool)

// Validate enforces the per-field constraints against already-merged
// settings for namespace name. lookup is used only when static-couple is
// set.
func Validate(name string, s Settings, lookup CoupleLookup) error {
	staticCouple, hasStatic := s["static-couple"].(string)

	groupsCount, hasGroupsCount := asInt(s["groups-count"])
	if !hasStatic || staticCouple == "" {
		if !hasGroupsCount || groupsCount <= 0 {
			return errs.Wrap(errs.BadRequest, "namespace %s: groups-count must be > 0 unless static-couple is set", name)
		}
	}

	minUnits, hasMinUnits := asInt(s["min-units"])
	if !hasMinUnits || minUnits <= 0 {
		return errs.Wrap(errs.BadRequest, "namespace %s: min-units must be a positive integer", name)
	}

	if redirect, ok := s["redirect"].(map[string]any); ok {
		if v, ok := asInt(redirect["content-length-threshold"]); ok && v < -1 {
			return errs.Wrap(errs.BadRequest, "namespace %s: redirect.content-length-threshold must be >= -1", name)
		}
		if v, ok := asInt(redirect["expire-time"]); ok && v <= 0 {
			return errs.Wrap(errs.BadRequest, "namespace %s: redirect.expire-time must be > 0", name)
		}
	}

	if v, ok := asFloat(s["reserved-space-percentage"]); ok && (v < 0.0 || v > 1.0) {
		return errs.Wrap(errs.BadRequest, "namespace %s: reserved-space-percentage must be in [0.0, 1.0]", name)
	}

	if v, ok := s["success-copies-num"].(string); ok {
		if v != "any" && v != "quorum" && v != "all" {
			return errs.Wrap(errs.BadRequest, "namespace %s: success-copies-num must be one of any/quorum/all", name)
		}
	}

	if err := validateSignatureAllOrNothing(name, s); err != nil {
		return err
	}

	if hasStatic && staticCouple != "" {
		if err := validateStaticCouple(name, staticCouple, groupsCount, hasGroupsCount, lookup); err != nil {
			return err
		}
	}

	return nil
}

func validateSignatureAllOrNothing(name string, s Settings) error {
	_, hasToken := signatureField(s, "token")
	_, hasPathPrefix := signatureField(s, "path_prefix")
	_, hasExpireTime := redirectField(s, "expire-time")

	count := boolToInt(hasToken) + boolToInt(hasPathPrefix) + boolToInt(hasExpireTime)
	if count != 0 && count != 3 {
		return errs.Wrap(errs.BadRequest, "namespace %s: token, path_prefix, and redirect.expire-time must be all-set or all-unset", name)
	}
	return nil
}

func validateStaticCouple(name, coupleKey string, groupsCount int, hasGroupsCount bool, lookup CoupleLookup) error {
	if lookup == nil {
		return errs.Wrap(errs.Internal, "namespace %s: static-couple validation requires a couple lookup", name)
	}
	ids, err := clustermodel.ParseKey(coupleKey)
	if err != nil {
		return errs.Wrap(errs.BadRequest, "namespace %s: static-couple %q is not a valid couple id: %v", name, coupleKey, err)
	}
	canonical := clustermodel.Key(ids)

	couple, ok := lookup(canonical)
	if !ok {
		return errs.Wrap(errs.BadRequest, "namespace %s: static-couple %s does not exist", name, coupleKey)
	}
	if couple.Namespace != name {
		return errs.Wrap(errs.BadRequest, "namespace %s: static-couple %s belongs to namespace %s", name, coupleKey, couple.Namespace)
	}
	if len(couple.Groups) != len(ids) {
		return errs.Wrap(errs.BadRequest, "namespace %s: static-couple %s does not contain exactly the listed groups", name, coupleKey)
	}
	if hasGroupsCount && groupsCount != len(couple.Groups) {
		return errs.Wrap(errs.BadRequest, "namespace %s: static-couple %s size does not match groups-count", name, coupleKey)
	}
	return nil
}

func signatureField(s Settings, key string) (any, bool) {
	m, ok := s["signature"].(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

func redirectField(s Settings, key string) (any, bool) {
	m, ok := s["redirect"].(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// AsInt coerces a decoded settings value (int, int64, or the float64 that
// encoding/json produces for any bare number) to an int, for callers
// outside the package that need the same coercion Validate uses.
func AsInt(v any) (int, bool) {
	return asInt(v)
}

// AsFloat is the float counterpart of AsInt.
func AsFloat(v any) (float64, bool) {
	return asFloat(v)
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
