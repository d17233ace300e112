package weight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocaineapp/balancer/internal/clustermodel"
	"github.com/cocaineapp/balancer/internal/errs"
)

func snap(key string, freeKB, freeRel, maxPut, realPut float64) clustermodel.CoupleSnapshot {
	return clustermodel.CoupleSnapshot{
		Key:   key,
		Space: clustermodel.Space{FreeKB: freeKB, FreeRel: freeRel},
		Rates: clustermodel.Rates{MaxPut: maxPut, RealPut: realPut},
	}
}

func TestCompute_ParticipationFilter(t *testing.T) {
	cfg := DefaultConfig()
	couples := []clustermodel.CoupleSnapshot{
		snap("1:2", 200*1024, 0.20, 100, 10), // below min_free_space_kb (256*1024)
		snap("3:4", 300*1024, 0.20, 100, 10), // eligible
	}

	res, err := Compute(cfg, 0, couples)
	require.NoError(t, err)

	assert.Zero(t, res["1:2"].Weight)
	assert.Greater(t, res["3:4"].Weight, 0.0)
}

func TestCompute_MinWeightFloor(t *testing.T) {
	cfg := DefaultConfig()
	// A couple with a tiny raw score still floors to MinWeight once admitted.
	// The default additional_rps_number alone would lift the raw score to
	// 20 * 600000, so it is zeroed here: raw = 0.0001 * 600000 = 60.
	cfg.AdditionalRPSNumber = 0
	couples := []clustermodel.CoupleSnapshot{
		snap("1:2", 300*1024, 0.20, 0.0001, 0),
	}

	res, err := Compute(cfg, 0, couples)
	require.NoError(t, err)
	assert.Equal(t, cfg.MinWeight, res["1:2"].Weight)
}

func TestCompute_NoCoupleBelowMinWeight(t *testing.T) {
	cfg := DefaultConfig()
	couples := []clustermodel.CoupleSnapshot{
		snap("1:2", 300*1024, 0.20, 1, 1),
		snap("3:4", 1024*1024, 0.90, 50, 5),
	}

	res, err := Compute(cfg, 0, couples)
	require.NoError(t, err)
	for key, r := range res {
		if r.Weight > 0 {
			assert.GreaterOrEqual(t, r.Weight, cfg.MinWeight, "couple %s", key)
		}
	}
}

func TestCompute_HeadAndTailSplit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TailHeightPercentage = 0.95

	couples := []clustermodel.CoupleSnapshot{
		snap("1:2", 1024*1024, 0.9, 10, 5),
		snap("3:4", 1024*1024, 0.5, 10, 5),
	}

	res, err := Compute(cfg, 0, couples)
	require.NoError(t, err)

	head := res["1:2"]
	tail := res["3:4"]

	assert.True(t, head.InHead)
	assert.False(t, tail.InHead)
	assert.GreaterOrEqual(t, head.Weight, cfg.MinWeight)
	assert.GreaterOrEqual(t, tail.Weight, cfg.MinWeight)
	// Head multiplier is larger, and both couples have identical rates, so
	// the head couple's weight must exceed the tail couple's.
	assert.Greater(t, head.Weight, tail.Weight)
}

func TestCompute_InsufficientAvailability(t *testing.T) {
	cfg := DefaultConfig()
	couples := []clustermodel.CoupleSnapshot{
		snap("1:2", 100, 0.01, 10, 5), // not participating
	}

	_, err := Compute(cfg, 1, couples)
	assert.True(t, errs.Is(err, errs.InsufficientAvailability))
}
