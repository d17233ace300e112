package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocaineapp/balancer/internal/clustermodel"
	"github.com/cocaineapp/balancer/internal/errs"
)

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("foo"))
	assert.True(t, ValidName("foo-bar_2"))
	assert.False(t, ValidName(""))
	assert.False(t, ValidName("-foo"))
	assert.False(t, ValidName("foo-"))
}

func TestStripUnknown_RemovesUnknownTopLevelAndSubBlockKeys(t *testing.T) {
	s := Settings{
		"groups-count": 3,
		"evil-key":     "drop me",
		"redirect": map[string]any{
			"expire-time": 10,
			"evil":        "drop me too",
		},
	}
	out := StripUnknown(s)
	assert.Equal(t, 3, out["groups-count"])
	_, hasEvil := out["evil-key"]
	assert.False(t, hasEvil)

	redirect := out["redirect"].(map[string]any)
	_, hasEvilSub := redirect["evil"]
	assert.False(t, hasEvilSub)
	assert.Equal(t, 10, redirect["expire-time"])
}

func TestDeepMerge_ScalarsOverwriteMapsMerge(t *testing.T) {
	base := Settings{
		"groups-count": 3,
		"redirect": map[string]any{
			"expire-time":              10,
			"content-length-threshold": 100,
		},
	}
	patch := Settings{
		"groups-count": 5,
		"redirect": map[string]any{
			"expire-time": 20,
		},
	}

	merged := DeepMerge(base, patch)
	assert.Equal(t, 5, merged["groups-count"])
	redirect := merged["redirect"].(map[string]any)
	assert.Equal(t, 20, redirect["expire-time"])
	assert.Equal(t, 100, redirect["content-length-threshold"])
}

func TestValidate_RejectsZeroMinUnitsAfterMerge(t *testing.T) {
	fresh := Settings{"groups-count": 3, "min-units": 2}
	require.NoError(t, Validate("foo", fresh, nil))

	patched := DeepMerge(fresh, Settings{"min-units": 0})
	err := Validate("foo", patched, nil)
	assert.True(t, errs.Is(err, errs.BadRequest))
}

func TestValidate_GroupsCountRequiredUnlessStaticCouple(t *testing.T) {
	err := Validate("foo", Settings{"min-units": 1}, nil)
	assert.True(t, errs.Is(err, errs.BadRequest))

	lookup := func(key string) (*clustermodel.Couple, bool) {
		return &clustermodel.Couple{Groups: []int{1, 2}, Namespace: "foo"}, true
	}
	err = Validate("foo", Settings{"min-units": 1, "static-couple": "1:2"}, lookup)
	assert.NoError(t, err)
}

func TestValidate_SuccessCopiesNum(t *testing.T) {
	base := Settings{"groups-count": 1, "min-units": 1, "success-copies-num": "bogus"}
	err := Validate("foo", base, nil)
	assert.True(t, errs.Is(err, errs.BadRequest))

	base["success-copies-num"] = "quorum"
	assert.NoError(t, Validate("foo", base, nil))
}

func TestValidate_SignatureAllOrNothing(t *testing.T) {
	base := Settings{
		"groups-count": 1,
		"min-units":    1,
		"signature":    map[string]any{"token": "abc"},
	}
	err := Validate("foo", base, nil)
	assert.True(t, errs.Is(err, errs.BadRequest))

	base["signature"] = map[string]any{"token": "abc", "path_prefix": "/p"}
	base["redirect"] = map[string]any{"expire-time": 10}
	assert.NoError(t, Validate("foo", base, nil))
}

func TestValidate_StaticCoupleMustMatchNamespaceAndSize(t *testing.T) {
	lookup := func(key string) (*clustermodel.Couple, bool) {
		if key == "1:2" {
			return &clustermodel.Couple{Groups: []int{1, 2}, Namespace: "other"}, true
		}
		return nil, false
	}

	err := Validate("foo", Settings{"min-units": 1, "static-couple": "1:2"}, lookup)
	assert.True(t, errs.Is(err, errs.BadRequest))

	err = Validate("foo", Settings{"min-units": 1, "static-couple": "9:9"}, lookup)
	assert.True(t, errs.Is(err, errs.BadRequest))
}
