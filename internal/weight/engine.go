package weight

import (
	"math"
	"sort"

	"github.com/cocaineapp/balancer/internal/clustermodel"
	"github.com/cocaineapp/balancer/internal/errs"
)

// Result is one couple's entry in a weight map: its computed weight, a short
// diagnostic describing how it was classified, and the free_kb reading the
// weight was computed from.
type Result struct {
	Weight     float64
	Diagnostic string
	FreeKB     float64
	InHead     bool
}

// Compute runs the weight algorithm over couples, all of which must share
// a size and namespace (callers partition by data_type/namespace before
// calling). minUnits is the namespace's configured minimum number of
// writable couples; falling short of it fails the whole pass with
// errs.InsufficientAvailability.
func Compute(cfg Config, minUnits int, couples []clustermodel.CoupleSnapshot) (map[string]Result, error) {
	results := make(map[string]Result, len(couples))
	for _, c := range couples {
		results[c.Key] = Result{Diagnostic: "not participating"}
	}

	// 1. Participation filter.
	var participating []clustermodel.CoupleSnapshot
	for _, c := range couples {
		if c.Space.FreeKB >= cfg.MinFreeSpaceKB && c.Space.FreeRel >= cfg.MinFreeSpaceRelative {
			participating = append(participating, c)
		}
	}

	if len(participating) == 0 {
		if minUnits > 0 {
			return nil, errs.Wrap(errs.InsufficientAvailability,
				"weight: no participating couples, need at least %d writable", minUnits)
		}
		return results, nil
	}

	// 2. Head/tail partition.
	fStar := 0.0
	for _, c := range participating {
		if c.Space.FreeRel > fStar {
			fStar = c.Space.FreeRel
		}
	}
	inHead := make(map[string]bool, len(participating))
	for _, c := range participating {
		inHead[c.Key] = c.Space.FreeRel >= cfg.TailHeightPercentage*fStar && c.Space.FreeKB >= cfg.TailHeightSpaceKB
	}

	// 3. Target admission count.
	desired := cfg.MinUnitsWithPositiveWeight
	fromPct := int(math.Ceil(float64(len(participating))*cfg.AdditionalUnitsPercentage)) + cfg.AdditionalUnitsNumber
	if fromPct > desired {
		desired = fromPct
	}

	// 4. Raw score, computed for every participating couple so admission can
	// rank by it.
	type scored struct {
		couple clustermodel.CoupleSnapshot
		raw    float64
	}
	scoredCouples := make([]scored, 0, len(participating))
	for _, c := range participating {
		base := c.Rates.MaxPut + cfg.AdditionalRPSNumber + cfg.AdditionalRPSPercentage*c.Rates.RealPut
		mult := cfg.WeightMultiplierTail
		if inHead[c.Key] {
			mult = cfg.WeightMultiplierHead
		}
		scoredCouples = append(scoredCouples, scored{couple: c, raw: base * mult})
	}
	sort.Slice(scoredCouples, func(i, j int) bool {
		if scoredCouples[i].raw != scoredCouples[j].raw {
			return scoredCouples[i].raw > scoredCouples[j].raw
		}
		return scoredCouples[i].couple.Key < scoredCouples[j].couple.Key
	})

	admit := len(scoredCouples)
	if desired < admit {
		admit = desired
	}

	positiveCount := 0
	for i, sc := range scoredCouples {
		c := sc.couple
		if i >= admit {
			results[c.Key] = Result{
				Diagnostic: "participating, not admitted",
				FreeKB:     c.Space.FreeKB,
				InHead:     inHead[c.Key],
			}
			continue
		}

		// 5. Floor.
		w := sc.raw
		if w > 0 && w < cfg.MinWeight {
			w = cfg.MinWeight
		}
		if w > 0 {
			positiveCount++
		}

		diag := "tail"
		if inHead[c.Key] {
			diag = "head"
		}
		results[c.Key] = Result{
			Weight:     w,
			Diagnostic: diag,
			FreeKB:     c.Space.FreeKB,
			InHead:     inHead[c.Key],
		}
	}

	// 6. Output / failure.
	if positiveCount < minUnits {
		return nil, errs.Wrap(errs.InsufficientAvailability,
			"weight: only %d couples have positive weight, need %d", positiveCount, minUnits)
	}

	return results, nil
}
