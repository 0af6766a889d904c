package ensemble

import (
	"errors"
	"math"
	"testing"
	"time"

	"FinCast/internal/domain/models"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(Config{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func oneCandle() []models.Candle {
	return []models.Candle{{
		Bucket: time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC),
		Symbol: "BINANCE:BTCUSDT",
		Open:   100, High: 100, Low: 100, Close: 100,
	}}
}

// flatFeatures is a fully neutral vector: every expert predicts 0 on it.
func flatFeatures() models.FeatureVector {
	return models.FeatureVector{
		models.FeatMomentum5:     0,
		models.FeatMomentum10:    0,
		models.FeatMomentum20:    0,
		models.FeatRSI14:         50,
		models.FeatMACDDelta:     0,
		models.FeatBollingerPos:  0.5,
		models.FeatATRPct:        0,
		models.FeatVolumeRatio:   1,
		models.FeatVolShort:      0,
		models.FeatVolLong:       0,
		models.FeatTrendStrength: 0,
		models.FeatCyclicality:   0,
	}
}

func TestPredictEmptyHistory(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Predict("BINANCE:BTCUSDT", nil, flatFeatures(), nil, nil)
	if !errors.Is(err, ErrEmptyHistory) {
		t.Fatalf("expected ErrEmptyHistory, got %v", err)
	}
}

func TestPredictNilFeatures(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.Predict("BINANCE:BTCUSDT", oneCandle(), nil, nil, nil); err == nil {
		t.Fatalf("expected error for nil feature vector")
	}
}

func TestPredictFlatFeatures(t *testing.T) {
	e := newTestEngine(t)
	pred, err := e.Predict("BINANCE:BTCUSDT", oneCandle(), flatFeatures(), nil, nil)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if pred.Predicted != 0 {
		t.Fatalf("flat features predicted %v, want 0", pred.Predicted)
	}
	if got := pred.Direction(); got != "HOLD" {
		t.Fatalf("flat features direction %q, want HOLD", got)
	}
	// Full inter-expert agreement and neutral accuracy: 50 + 30*1 + 20*0.
	if pred.Confidence != 80 {
		t.Fatalf("flat features confidence %v, want 80", pred.Confidence)
	}
	if pred.Regime != models.RegimeQuiet {
		t.Fatalf("flat features regime %s, want QUIET", pred.Regime)
	}
	if math.IsNaN(pred.Uncertainty) || pred.Uncertainty < 0 {
		t.Fatalf("bad uncertainty %v", pred.Uncertainty)
	}
	if len(pred.Experts) != len(DefaultExperts()) {
		t.Fatalf("expected %d expert predictions, got %d", len(DefaultExperts()), len(pred.Experts))
	}
	assertFeasible(t, pred.Weights)
}

func TestPredictDeterministic(t *testing.T) {
	a := newTestEngine(t)
	b := newTestEngine(t)
	f := flatFeatures()
	f[models.FeatMomentum5] = 0.8
	f[models.FeatRSI14] = 62

	// Engines advance their seeded generators in lockstep, so every call in
	// the sequence must match, not just the first.
	for i := 0; i < 3; i++ {
		pa, err := a.Predict("BINANCE:BTCUSDT", oneCandle(), f, nil, nil)
		if err != nil {
			t.Fatalf("Predict: %v", err)
		}
		pb, err := b.Predict("BINANCE:BTCUSDT", oneCandle(), f, nil, nil)
		if err != nil {
			t.Fatalf("Predict: %v", err)
		}
		if pa.Predicted != pb.Predicted {
			t.Fatalf("call %d: predicted diverged: %v vs %v", i, pa.Predicted, pb.Predicted)
		}
		if pa.Confidence != pb.Confidence {
			t.Fatalf("call %d: confidence diverged: %v vs %v", i, pa.Confidence, pb.Confidence)
		}
		if pa.Uncertainty != pb.Uncertainty {
			t.Fatalf("call %d: uncertainty diverged: %v vs %v", i, pa.Uncertainty, pb.Uncertainty)
		}
	}
}

func TestExternalAdjustmentClamp(t *testing.T) {
	e := newTestEngine(t)
	macro := &models.MacroFeatures{Score: 10}
	sentiment := &models.SentimentFeatures{Score: 10}

	pred, err := e.Predict("BINANCE:BTCUSDT", oneCandle(), flatFeatures(), macro, sentiment)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if pred.Predicted != 0.75 {
		t.Fatalf("adjustment = %v, want cap 0.75", pred.Predicted)
	}

	macro.Score, sentiment.Score = -10, -10
	pred, err = e.Predict("BINANCE:BTCUSDT", oneCandle(), flatFeatures(), macro, sentiment)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if pred.Predicted != -0.75 {
		t.Fatalf("adjustment = %v, want cap -0.75", pred.Predicted)
	}
}

func TestExternalAdjustmentNilBundles(t *testing.T) {
	e := newTestEngine(t)
	pred, err := e.Predict("BINANCE:BTCUSDT", oneCandle(), flatFeatures(), nil, nil)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if pred.Predicted != 0 {
		t.Fatalf("nil bundles shifted prediction to %v", pred.Predicted)
	}
}

func TestRecordPerformanceUnknownExpert(t *testing.T) {
	e := newTestEngine(t)
	if err := e.RecordPerformance("lstm", 1, 1); err == nil {
		t.Fatalf("expected error for unknown expert")
	}
}

func TestWeightsShiftWithPerformance(t *testing.T) {
	e := newTestEngine(t)
	before := e.Weights()[models.ExpertBoosting]

	// Boosting hits every time, the rest miss every time.
	for i := 0; i < 10; i++ {
		if err := e.RecordPerformance(models.ExpertBoosting, 1, 1); err != nil {
			t.Fatalf("RecordPerformance: %v", err)
		}
		for _, id := range []string{models.ExpertStatistical, models.ExpertSequence, models.ExpertTechnical} {
			if err := e.RecordPerformance(id, 1, -1); err != nil {
				t.Fatalf("RecordPerformance: %v", err)
			}
		}
	}

	w := e.Weights()
	assertFeasible(t, w)
	if w[models.ExpertBoosting] <= before {
		t.Fatalf("boosting weight %v did not rise above base %v", w[models.ExpertBoosting], before)
	}
}

func TestResetWeights(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < 10; i++ {
		if err := e.RecordPerformance(models.ExpertBoosting, 1, 1); err != nil {
			t.Fatalf("RecordPerformance: %v", err)
		}
	}
	e.ResetWeights()
	w := e.Weights()
	for id, v := range BaseWeights() {
		if w[id] != v {
			t.Fatalf("weight %s = %v after reset, want base %v", id, w[id], v)
		}
	}
}

func TestExportImportPerformance(t *testing.T) {
	a := newTestEngine(t)
	for i := 0; i < 8; i++ {
		if err := a.RecordPerformance(models.ExpertTechnical, 1, 1); err != nil {
			t.Fatalf("RecordPerformance: %v", err)
		}
	}

	b := newTestEngine(t)
	b.ImportPerformance(a.ExportPerformance())

	wa, wb := a.Weights(), b.Weights()
	for id, v := range wa {
		if wb[id] != v {
			t.Fatalf("weight %s = %v after import, want %v", id, wb[id], v)
		}
	}
}

func TestClassifyRegime(t *testing.T) {
	th := RegimeThresholds{TrendStrength: 0.55, VolatileATR: 2.5, QuietATR: 0.8, RangingCyc: 0.45}

	cases := []struct {
		name   string
		trend  float64
		atr    float64
		cyc    float64
		regime models.MarketRegime
	}{
		{"trending", 0.9, 1.5, 0.1, models.RegimeTrending},
		{"volatile", 0.1, 3.0, 0.1, models.RegimeVolatile},
		{"ranging", 0.1, 1.0, 0.6, models.RegimeRanging},
		{"quiet", 0.1, 0.2, 0.1, models.RegimeQuiet},
	}
	for _, tc := range cases {
		f := models.FeatureVector{
			models.FeatTrendStrength: tc.trend,
			models.FeatATRPct:        tc.atr,
			models.FeatCyclicality:   tc.cyc,
		}
		if got := ClassifyRegime(f, th); got != tc.regime {
			t.Fatalf("%s: regime %s, want %s", tc.name, got, tc.regime)
		}
	}
}

func TestExpertsClampExtremeInputs(t *testing.T) {
	f := models.FeatureVector{
		models.FeatMomentum5:     1e9,
		models.FeatMomentum10:    1e9,
		models.FeatMomentum20:    1e9,
		models.FeatRSI14:         0,
		models.FeatMACDDelta:     1e9,
		models.FeatBollingerPos:  -50,
		models.FeatATRPct:        1e9,
		models.FeatVolumeRatio:   1e9,
		models.FeatTrendStrength: 1,
		models.FeatCyclicality:   0,
	}
	for _, ex := range DefaultExperts() {
		v := ex.Predict(f)
		if math.Abs(v) > maxExpertMove {
			t.Fatalf("%s predicted %v beyond clamp", ex.Name(), v)
		}
	}
}
