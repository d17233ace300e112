package namespace

import "regexp"

// Settings is a namespace's configuration blob. It is modeled as a nested
// map rather than a fixed struct because setup requests are deep merges
// over an arbitrary partial document, the way the external settings store
// actually holds it; Validate is what gives the merged result a typed
// shape to check.
type Settings map[string]any

var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*[A-Za-z0-9]$`)

// ValidName reports whether name is a legal namespace identifier.
func ValidName(name string) bool {
	return nameRe.MatchString(name)
}

var topLevelAllowed = map[string]bool{
	"success-copies-num":        true,
	"groups-count":              true,
	"static-couple":             true,
	"auth-keys":                 true,
	"signature":                 true,
	"redirect":                  true,
	"min-units":                 true,
	"features":                  true,
	"reserved-space-percentage": true,
}

var signatureAllowed = map[string]bool{"token": true, "path_prefix": true}
var authKeysAllowed = map[string]bool{"read": true, "write": true}
var redirectAllowed = map[string]bool{"content-length-threshold": true, "expire-time": true}

// StripUnknown removes keys outside the allow-lists, recursing into the
// three known sub-blocks.
func StripUnknown(s Settings) Settings {
	out := Settings{}
	for k, v := range s {
		if !topLevelAllowed[k] {
			continue
		}
		switch k {
		case "signature":
			out[k] = stripSubBlock(v, signatureAllowed)
		case "auth-keys":
			out[k] = stripSubBlock(v, authKeysAllowed)
		case "redirect":
			out[k] = stripSubBlock(v, redirectAllowed)
		default:
			out[k] = v
		}
	}
	return out
}

func stripSubBlock(v any, allowed map[string]bool) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := map[string]any{}
	for k, vv := range m {
		if allowed[k] {
			out[k] = vv
		}
	}
	return out
}

// DeepMerge merges patch into base: scalars and lists from patch overwrite
// base's value at that key; maps merge recursively. Neither input is
// mutated.
func DeepMerge(base, patch Settings) Settings {
	out := Settings{}
	for k, v := range base {
		out[k] = v
	}
	for k, pv := range patch {
		bv, exists := out[k]
		if !exists {
			out[k] = pv
			continue
		}
		bm, bOK := bv.(map[string]any)
		pm, pOK := pv.(map[string]any)
		if bOK && pOK {
			out[k] = mergeMap(bm, pm)
		} else {
			out[k] = pv
		}
	}
	return out
}

func mergeMap(base, patch map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range base {
		out[k] = v
	}
	for k, pv := range patch {
		bv, exists := out[k]
		if !exists {
			out[k] = pv
			continue
		}
		bm, bOK := bv.(map[string]any)
		pm, pOK := pv.(map[string]any)
		if bOK && pOK {
			out[k] = mergeMap(bm, pm)
		} else {
			out[k] = pv
		}
	}
	return out
}
