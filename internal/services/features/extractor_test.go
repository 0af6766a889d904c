package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"FinCast/internal/domain/models"
)

func flatSeries(n int, price float64) []models.Candle {
	start := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Candle{
			Bucket: start.Add(time.Duration(i) * time.Minute),
			Symbol: "BINANCE:BTCUSDT",
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: 0,
		})
	}
	return out
}

func TestExtractInsufficientData(t *testing.T) {
	svc := NewService("1m")
	_, err := svc.Extract(flatSeries(10, 100), 60)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestExtractLookbackTooSmall(t *testing.T) {
	svc := NewService("1m")
	if _, err := svc.Extract(flatSeries(10, 100), 1); err == nil {
		t.Fatalf("expected error for lookback 1")
	}
}

func TestExtractMalformedSeries(t *testing.T) {
	svc := NewService("1m")
	candles := flatSeries(70, 100)
	candles[5].Bucket = candles[4].Bucket // non-increasing
	if _, err := svc.Extract(candles, 60); err == nil {
		t.Fatalf("expected error for non-increasing series")
	}
}

func TestExtractExactWindow(t *testing.T) {
	svc := NewService("1m")
	vs, err := svc.Extract(flatSeries(61, 100), 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vs) != 1 {
		t.Fatalf("expected exactly 1 vector for lookback+1 bars, got %d", len(vs))
	}
}

func TestExtractFlatSeriesDegradesToNeutral(t *testing.T) {
	svc := NewService("1m")
	vs, err := svc.Extract(flatSeries(250, 100), 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fv := vs[len(vs)-1]
	for _, key := range models.FeatureKeys {
		v, ok := fv[key]
		if !ok {
			t.Fatalf("missing feature %s", key)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite feature %s = %v", key, v)
		}
	}
	if got := fv[models.FeatRSI14]; got != 50 {
		t.Fatalf("flat series RSI = %v, want 50", got)
	}
	if got := fv[models.FeatBollingerPos]; got != 0.5 {
		t.Fatalf("flat series bollinger pos = %v, want 0.5", got)
	}
	if got := fv[models.FeatVolumeRatio]; got != 1 {
		t.Fatalf("flat series volume ratio = %v, want 1", got)
	}
	if got := fv[models.FeatATRPct]; got != 0 {
		t.Fatalf("flat series ATR%% = %v, want 0", got)
	}
	if got := fv[models.FeatMomentum5]; got != 0 {
		t.Fatalf("flat series momentum = %v, want 0", got)
	}
}

func TestExtractEmitsFixedCardinality(t *testing.T) {
	svc := NewService("1m")
	vs, err := svc.Extract(flatSeries(100, 42), 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, fv := range vs {
		if len(fv) != len(models.FeatureKeys) {
			t.Fatalf("vector cardinality %d, want %d", len(fv), len(models.FeatureKeys))
		}
	}
}

func TestNormalize(t *testing.T) {
	svc := NewService("1m")
	in := []models.FeatureVector{
		{models.FeatMomentum5: 1, models.FeatRSI14: 30},
		{models.FeatMomentum5: 2, models.FeatRSI14: 50},
		{models.FeatMomentum5: 3, models.FeatRSI14: 70},
	}
	out := svc.Normalize(in)
	if len(out) != len(in) {
		t.Fatalf("expected %d vectors, got %d", len(in), len(out))
	}

	for _, key := range []string{models.FeatMomentum5, models.FeatRSI14} {
		var mean float64
		for _, v := range out {
			mean += v[key]
		}
		mean /= float64(len(out))
		if math.Abs(mean) > 1e-9 {
			t.Fatalf("normalized mean for %s = %v, want 0", key, mean)
		}
		var variance float64
		for _, v := range out {
			d := v[key] - mean
			variance += d * d
		}
		variance /= float64(len(out))
		if math.Abs(variance-1) > 1e-9 {
			t.Fatalf("normalized variance for %s = %v, want 1", key, variance)
		}
	}

	// Constant features map to 0 instead of dividing by a zero std.
	for _, v := range out {
		if v[models.FeatATRPct] != 0 {
			t.Fatalf("constant feature normalized to %v, want 0", v[models.FeatATRPct])
		}
	}

	if in[0][models.FeatMomentum5] != 1 {
		t.Fatalf("input vector mutated: %v", in[0][models.FeatMomentum5])
	}
}

func TestRealizedVolatilityFlatReturns(t *testing.T) {
	rets := make([]float64, 40)
	if got := RealizedVolatility(rets, 10, BarsPerYearForTF("1m")); got != 0 {
		t.Fatalf("flat volatility = %v, want 0", got)
	}
}
