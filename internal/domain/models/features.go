package models

import "math"

// Feature keys. Extraction always emits every key, so the vector has a fixed
// cardinality regardless of how much sub-window history was available.
const (
	FeatMomentum5      = "momentum_5"
	FeatMomentum10     = "momentum_10"
	FeatMomentum20     = "momentum_20"
	FeatRSI14          = "rsi_14"
	FeatMACDDelta      = "macd_delta"
	FeatBollingerPos   = "bollinger_pos"
	FeatATRPct         = "atr_pct"
	FeatVolumeRatio    = "volume_ratio"
	FeatVolShort       = "volatility_short"
	FeatVolLong        = "volatility_long"
	FeatTrendStrength  = "trend_strength"
	FeatCyclicality    = "cyclicality"
	FeatMacroScore     = "macro_score"
	FeatSentimentScore = "sentiment_score"
)

// FeatureKeys is the canonical key order used for normalization and export.
var FeatureKeys = []string{
	FeatMomentum5, FeatMomentum10, FeatMomentum20,
	FeatRSI14, FeatMACDDelta, FeatBollingerPos,
	FeatATRPct, FeatVolumeRatio,
	FeatVolShort, FeatVolLong,
	FeatTrendStrength, FeatCyclicality,
	FeatMacroScore, FeatSentimentScore,
}

// FeatureVector maps feature keys to finite values. Producers must sanitize
// before handing a vector to downstream consumers.
type FeatureVector map[string]float64

// Get returns the value for key, or def when the key is absent.
func (f FeatureVector) Get(key string, def float64) float64 {
	if v, ok := f[key]; ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return v
	}
	return def
}

// Clone returns a deep copy.
func (f FeatureVector) Clone() FeatureVector {
	out := make(FeatureVector, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Sanitize replaces any non-finite value with the given fallback.
func (f FeatureVector) Sanitize(fallback float64) {
	for k, v := range f {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			f[k] = fallback
		}
	}
}

// MacroFeatures is the optional macro-economic bundle supplied by an external
// collaborator. Score is a composite in [-1, 1].
type MacroFeatures struct {
	Score          float64 `json:"score"`
	RatesTrend     float64 `json:"rates_trend,omitempty"`
	InflationGap   float64 `json:"inflation_gap,omitempty"`
	GrowthMomentum float64 `json:"growth_momentum,omitempty"`
}

// SentimentFeatures is the optional sentiment bundle. Score is in [-1, 1].
type SentimentFeatures struct {
	Score    float64 `json:"score"`
	Articles int     `json:"articles,omitempty"`
}
