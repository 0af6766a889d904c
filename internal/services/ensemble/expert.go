package ensemble

import (
	"math"

	"FinCast/internal/domain/models"
)

// Expert is one independent prediction strategy contributing to the
// ensemble. Predict returns a percentage price change and must be a
// deterministic pure function of the feature vector, so trained models can
// later replace the shipped heuristics without touching the weighting logic.
type Expert interface {
	Name() string
	Predict(f models.FeatureVector) float64
}

// expert prediction bounds, percent
const maxExpertMove = 10.0

func clampMove(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v > maxExpertMove {
		return maxExpertMove
	}
	if v < -maxExpertMove {
		return -maxExpertMove
	}
	return v
}

// StatisticalExpert is a mean-reversion strategy: it leans against band
// position and RSI extremes, scaled by current range size.
type StatisticalExpert struct{}

func (StatisticalExpert) Name() string { return models.ExpertStatistical }

func (StatisticalExpert) Predict(f models.FeatureVector) float64 {
	bandPos := f.Get(models.FeatBollingerPos, 0.5)
	rsiVal := f.Get(models.FeatRSI14, 50)
	atr := f.Get(models.FeatATRPct, 0)
	if atr <= 0 {
		atr = 0.5
	}

	// Distance from the band midpoint and from neutral RSI, both in [-1, 1],
	// pull the forecast back toward the mean.
	bandPull := -(bandPos - 0.5) * 2
	rsiPull := -(rsiVal - 50) / 50

	return clampMove((bandPull*0.6 + rsiPull*0.4) * atr * 1.5)
}

// BoostingExpert approximates a gradient-boosted model with a sum of rule
// stumps over momentum, MACD and volume confirmation.
type BoostingExpert struct{}

func (BoostingExpert) Name() string { return models.ExpertBoosting }

func (BoostingExpert) Predict(f models.FeatureVector) float64 {
	m5 := f.Get(models.FeatMomentum5, 0)
	m10 := f.Get(models.FeatMomentum10, 0)
	macd := f.Get(models.FeatMACDDelta, 0)
	volR := f.Get(models.FeatVolumeRatio, 1)
	rsiVal := f.Get(models.FeatRSI14, 50)

	score := 0.0
	switch {
	case m5 > 1.0:
		score += 0.6
	case m5 > 0.3:
		score += 0.3
	case m5 < -1.0:
		score -= 0.6
	case m5 < -0.3:
		score -= 0.3
	}
	switch {
	case m10 > 2.0:
		score += 0.4
	case m10 < -2.0:
		score -= 0.4
	}
	if macd > 0 {
		score += 0.3
	} else if macd < 0 {
		score -= 0.3
	}
	// Volume confirms the move; thin volume discounts it.
	if volR > 1.5 {
		score *= 1.3
	} else if volR < 0.5 {
		score *= 0.7
	}
	// Dampen chasing into exhausted RSI territory.
	if (score > 0 && rsiVal > 75) || (score < 0 && rsiVal < 25) {
		score *= 0.5
	}
	return clampMove(score)
}

// SequenceExpert projects recent trend persistence forward, discounted by
// how choppy the series has been.
type SequenceExpert struct{}

func (SequenceExpert) Name() string { return models.ExpertSequence }

func (SequenceExpert) Predict(f models.FeatureVector) float64 {
	m10 := f.Get(models.FeatMomentum10, 0)
	m20 := f.Get(models.FeatMomentum20, 0)
	trend := f.Get(models.FeatTrendStrength, 0)
	cyc := f.Get(models.FeatCyclicality, 0)

	// Persistent trends continue at a fraction of their recent pace; choppy
	// series carry almost nothing forward.
	carry := trend * (1 - 0.7*cyc)
	proj := (m10*0.6 + m20*0.2) * carry
	return clampMove(proj)
}

// TechnicalExpert is the pure rule-based strategy over classic signals.
type TechnicalExpert struct{}

func (TechnicalExpert) Name() string { return models.ExpertTechnical }

func (TechnicalExpert) Predict(f models.FeatureVector) float64 {
	rsiVal := f.Get(models.FeatRSI14, 50)
	macd := f.Get(models.FeatMACDDelta, 0)
	bandPos := f.Get(models.FeatBollingerPos, 0.5)

	score := 0.0
	switch {
	case rsiVal < 30:
		score += 1.0 // oversold
	case rsiVal > 70:
		score -= 1.0 // overbought
	}
	if macd > 0.02 {
		score += 0.5
	} else if macd < -0.02 {
		score -= 0.5
	}
	// Band breakouts trade with the break.
	if bandPos >= 0.98 {
		score += 0.4
	} else if bandPos <= 0.02 {
		score -= 0.4
	}
	return clampMove(score)
}

// DefaultExperts returns the four shipped strategies in canonical order.
func DefaultExperts() []Expert {
	return []Expert{
		StatisticalExpert{},
		BoostingExpert{},
		SequenceExpert{},
		TechnicalExpert{},
	}
}
