package ensemble

import "FinCast/internal/domain/models"

// RegimeThresholds tunes the market-regime classifier.
type RegimeThresholds struct {
	TrendStrength float64 `yaml:"trend_strength" default:"0.55"`
	VolatileATR   float64 `yaml:"volatile_atr" default:"2.5"`
	QuietATR      float64 `yaml:"quiet_atr" default:"0.8"`
	RangingCyc    float64 `yaml:"ranging_cyc" default:"0.45"`
}

// ClassifyRegime derives the current market regime from the feature vector.
// Pure and stateless: identical inputs always yield the same regime.
func ClassifyRegime(f models.FeatureVector, th RegimeThresholds) models.MarketRegime {
	trend := f.Get(models.FeatTrendStrength, 0)
	atr := f.Get(models.FeatATRPct, 0)
	cyc := f.Get(models.FeatCyclicality, 0)

	switch {
	case trend >= th.TrendStrength && atr > th.QuietATR:
		return models.RegimeTrending
	case atr >= th.VolatileATR:
		return models.RegimeVolatile
	case cyc >= th.RangingCyc && atr > th.QuietATR:
		return models.RegimeRanging
	default:
		return models.RegimeQuiet
	}
}
