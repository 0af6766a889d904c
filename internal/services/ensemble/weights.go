package ensemble

import (
	"math"

	"FinCast/internal/domain/models"
)

// Weight bounds: no expert is ever silenced entirely, none dominates alone.
const (
	WeightFloor = 0.05
	WeightCeil  = 0.60
)

// BaseWeights returns the documented default weight vector.
func BaseWeights() map[string]float64 {
	return map[string]float64{
		models.ExpertStatistical: 0.25,
		models.ExpertBoosting:    0.35,
		models.ExpertSequence:    0.25,
		models.ExpertTechnical:   0.15,
	}
}

// regimeMultipliers biases experts that historically fit each regime.
var regimeMultipliers = map[models.MarketRegime]map[string]float64{
	models.RegimeTrending: {
		models.ExpertStatistical: 0.8,
		models.ExpertBoosting:    1.2,
		models.ExpertSequence:    1.2,
		models.ExpertTechnical:   0.9,
	},
	models.RegimeRanging: {
		models.ExpertStatistical: 1.3,
		models.ExpertBoosting:    0.8,
		models.ExpertSequence:    0.9,
		models.ExpertTechnical:   1.1,
	},
	models.RegimeVolatile: {
		models.ExpertStatistical: 1.1,
		models.ExpertBoosting:    0.9,
		models.ExpertSequence:    0.8,
		models.ExpertTechnical:   1.2,
	},
	models.RegimeQuiet: {
		models.ExpertStatistical: 1.0,
		models.ExpertBoosting:    1.0,
		models.ExpertSequence:    1.0,
		models.ExpertTechnical:   1.0,
	},
}

// applyRegime multiplies weights by the regime bias table in place.
func applyRegime(w map[string]float64, regime models.MarketRegime) {
	mults, ok := regimeMultipliers[regime]
	if !ok {
		return
	}
	for id := range w {
		if m, ok := mults[id]; ok {
			w[id] *= m
		}
	}
}

// clampNormalize projects the weight vector onto the feasible set: every
// weight in [WeightFloor, WeightCeil] and the sum exactly 1. Renormalizing
// can push a weight back over a bound, so residual mass is redistributed
// among unsaturated entries until the projection is stable.
func clampNormalize(w map[string]float64) {
	if len(w) == 0 {
		return
	}
	for id, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			w[id] = WeightFloor
		}
	}

	for iter := 0; iter < 16; iter++ {
		for id, v := range w {
			if v < WeightFloor {
				w[id] = WeightFloor
			} else if v > WeightCeil {
				w[id] = WeightCeil
			}
		}
		var sum float64
		for _, v := range w {
			sum += v
		}
		residual := 1 - sum
		if math.Abs(residual) < 1e-9 {
			return
		}
		// Entries pinned at the bound in the residual's direction cannot
		// absorb any more; spread the residual over the rest.
		free := make([]string, 0, len(w))
		var freeMass float64
		for id, v := range w {
			if (residual > 0 && v < WeightCeil-1e-12) || (residual < 0 && v > WeightFloor+1e-12) {
				free = append(free, id)
				freeMass += v
			}
		}
		if len(free) == 0 || freeMass == 0 {
			// Degenerate request (bounds infeasible for this cardinality);
			// fall back to an even split.
			even := 1.0 / float64(len(w))
			for id := range w {
				w[id] = even
			}
			return
		}
		for _, id := range free {
			w[id] += residual * (w[id] / freeMass)
		}
	}
}
