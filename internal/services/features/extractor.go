package features

import (
	"fmt"
	"math"

	"FinCast/internal/domain/models"
)

// Service extracts fixed-shape feature vectors from OHLCV history.
// It is a pure computation: no side effects, no shared mutable state, safe
// for concurrent use.
type Service struct {
	tf string // timeframe used to annualize volatility features
}

// NewService creates a feature engineering service for the given timeframe.
func NewService(tf string) *Service {
	if tf == "" {
		tf = "1m"
	}
	return &Service{tf: tf}
}

// Extract produces one feature vector per bar once at least lookback prior
// bars exist. A history of exactly lookback+1 bars yields exactly one vector.
func (s *Service) Extract(candles []models.Candle, lookback int) ([]models.FeatureVector, error) {
	if lookback < 2 {
		return nil, fmt.Errorf("lookback must be >= 2, got %d", lookback)
	}
	if len(candles) <= lookback {
		return nil, fmt.Errorf("%w: have %d bars, need > %d", ErrInsufficientData, len(candles), lookback)
	}
	if err := models.ValidateSeries(candles); err != nil {
		return nil, fmt.Errorf("malformed price history: %w", err)
	}

	bpY := BarsPerYearForTF(s.tf)
	rets := ComputeLogReturns(candles)

	out := make([]models.FeatureVector, 0, len(candles)-lookback)
	for i := lookback; i < len(candles); i++ {
		// rets[j] is the return ending at candle j+1; slice returns up to bar i.
		retUpTo := rets[:i]

		fv := models.FeatureVector{
			models.FeatMomentum5:      momentum(candles, i, 5),
			models.FeatMomentum10:     momentum(candles, i, 10),
			models.FeatMomentum20:     momentum(candles, i, 20),
			models.FeatRSI14:          rsi(candles, i, 14),
			models.FeatMACDDelta:      macdDelta(candles, i),
			models.FeatBollingerPos:   bollingerPos(candles, i, 20),
			models.FeatATRPct:         atrPct(candles, i, 14),
			models.FeatVolumeRatio:    volumeRatio(candles, i, 20),
			models.FeatVolShort:       RealizedVolatility(retUpTo, minInt(10, len(retUpTo)), bpY),
			models.FeatVolLong:        RealizedVolatility(retUpTo, minInt(30, len(retUpTo)), bpY),
			models.FeatTrendStrength:  trendStrength(candles, i, 14),
			models.FeatCyclicality:    cyclicality(candles, i, 14),
			models.FeatMacroScore:     0,
			models.FeatSentimentScore: 0,
		}
		fv.Sanitize(0)
		out = append(out, fv)
	}
	return out, nil
}

// ExtractLatest is a convenience wrapper returning only the most recent
// feature vector.
func (s *Service) ExtractLatest(candles []models.Candle, lookback int) (models.FeatureVector, error) {
	vs, err := s.Extract(candles, lookback)
	if err != nil {
		return nil, err
	}
	return vs[len(vs)-1], nil
}

// Normalize rescales every feature to zero mean and unit variance using
// batch statistics across the extracted set. Any non-finite result maps to 0.
// Input vectors are not mutated.
func (s *Service) Normalize(vectors []models.FeatureVector) []models.FeatureVector {
	if len(vectors) == 0 {
		return nil
	}
	n := float64(len(vectors))

	mean := make(map[string]float64, len(models.FeatureKeys))
	for _, key := range models.FeatureKeys {
		var sum float64
		for _, v := range vectors {
			sum += v.Get(key, 0)
		}
		mean[key] = sum / n
	}
	std := make(map[string]float64, len(models.FeatureKeys))
	for _, key := range models.FeatureKeys {
		var sum2 float64
		for _, v := range vectors {
			d := v.Get(key, 0) - mean[key]
			sum2 += d * d
		}
		std[key] = math.Sqrt(sum2 / n)
	}

	out := make([]models.FeatureVector, len(vectors))
	for i, v := range vectors {
		nv := make(models.FeatureVector, len(models.FeatureKeys))
		for _, key := range models.FeatureKeys {
			if std[key] == 0 {
				nv[key] = 0
				continue
			}
			z := (v.Get(key, 0) - mean[key]) / std[key]
			if math.IsNaN(z) || math.IsInf(z, 0) {
				z = 0
			}
			nv[key] = z
		}
		out[i] = nv
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
