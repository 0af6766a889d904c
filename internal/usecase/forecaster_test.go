package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/services/drift"
	"FinCast/internal/services/ensemble"
	"FinCast/internal/services/features"
)

type testRig struct {
	forecaster *Forecaster
	engine     *ensemble.Engine
	detector   *drift.Detector
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	engine, err := ensemble.NewEngine(ensemble.Config{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	detector, err := drift.NewDetector(drift.Config{})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	f := NewForecaster(
		ForecasterConfig{Lookback: 60, HistoryBars: 300},
		features.NewService("1m"),
		engine, detector, nil,
	)
	return &testRig{forecaster: f, engine: engine, detector: detector}
}

func flatCandles(n int, price float64) []models.Candle {
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
		})
	}
	return out
}

func flatBar(minute int, price float64) models.Candle {
	return models.Candle{
		Bucket: time.Date(2024, 10, 11, 0, minute, 0, 0, time.UTC),
		Symbol: "BINANCE:BTCUSDT",
		Open:   price,
		High:   price,
		Low:    price,
		Close:  price,
	}
}

func TestPredictShortHistoryIsFeatureStageError(t *testing.T) {
	rig := newTestRig(t)
	_, err := rig.forecaster.Predict(context.Background(), "BINANCE:BTCUSDT", flatCandles(10, 100), nil, nil)
	if err == nil {
		t.Fatalf("expected error for short history")
	}
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StageError, got %T: %v", err, err)
	}
	if se.Stage != StageFeatures {
		t.Fatalf("stage %s, want %s", se.Stage, StageFeatures)
	}
	if !errors.Is(err, features.ErrInsufficientData) {
		t.Fatalf("expected wrapped ErrInsufficientData, got %v", err)
	}
}

func TestPredictFlatHistory(t *testing.T) {
	rig := newTestRig(t)
	res, err := rig.forecaster.Predict(context.Background(), "BINANCE:BTCUSDT", flatCandles(250, 100), nil, nil)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got := res.Prediction.Direction(); got != "HOLD" {
		t.Fatalf("flat history direction %q, want HOLD", got)
	}
	if res.Prediction.Confidence != 80 {
		t.Fatalf("flat history confidence %v, want 80", res.Prediction.Confidence)
	}
	if res.Features == nil {
		t.Fatalf("missing feature vector")
	}
	if res.Drift.Severity != models.SeverityNone {
		t.Fatalf("fresh detector reported severity %s", res.Drift.Severity)
	}
}

func TestPredictSymbolWithoutStore(t *testing.T) {
	rig := newTestRig(t)
	_, err := rig.forecaster.PredictSymbol(context.Background(), "BINANCE:BTCUSDT", 250, 60, "1m")
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageData {
		t.Fatalf("expected data-stage error, got %v", err)
	}
}

type fixedCandleStore struct {
	candles []models.Candle
}

func (s *fixedCandleStore) GetCandles(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Candle, error) {
	return s.candles, nil
}

func (s *fixedCandleStore) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	if n > len(s.candles) {
		n = len(s.candles)
	}
	return s.candles[len(s.candles)-n:], nil
}

func TestPredictSymbolHonorsLookback(t *testing.T) {
	rig := newTestRig(t)
	rig.forecaster.WithCandleStore(&fixedCandleStore{candles: flatCandles(100, 100)})

	// Default lookback (60) fits inside the 100 bars on hand.
	if _, err := rig.forecaster.PredictSymbol(context.Background(), "BINANCE:BTCUSDT", 100, 0, "1m"); err != nil {
		t.Fatalf("default lookback: %v", err)
	}

	// A wider window than the available history must surface as a
	// feature-stage failure instead of silently using the default.
	_, err := rig.forecaster.PredictSymbol(context.Background(), "BINANCE:BTCUSDT", 100, 200, "1m")
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageFeatures {
		t.Fatalf("expected feature-stage error for oversized lookback, got %v", err)
	}
	if !errors.Is(err, features.ErrInsufficientData) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
}

func TestHistoryWithoutStore(t *testing.T) {
	rig := newTestRig(t)
	_, err := rig.forecaster.History(context.Background(), "BINANCE:BTCUSDT", time.Now().Add(-time.Hour), time.Now(), "1m")
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageData {
		t.Fatalf("expected data-stage error, got %v", err)
	}
}

func TestOnBarClosesGroundTruthLoop(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.forecaster.OnBar(ctx, flatBar(0, 100))
	if _, err := rig.forecaster.Predict(ctx, "BINANCE:BTCUSDT", flatCandles(250, 100), nil, nil); err != nil {
		t.Fatalf("Predict: %v", err)
	}
	rig.forecaster.OnBar(ctx, flatBar(1, 101))

	if got := rig.detector.SampleCount(models.EnsembleID); got != 1 {
		t.Fatalf("ensemble sample count %d, want 1", got)
	}
	for _, ex := range ensemble.DefaultExperts() {
		if got := rig.detector.SampleCount(ex.Name()); got != 1 {
			t.Fatalf("expert %s sample count %d, want 1", ex.Name(), got)
		}
	}
}

func TestOnBarIgnoresInvalidBars(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.forecaster.OnBar(ctx, flatBar(0, 100))
	if _, err := rig.forecaster.Predict(ctx, "BINANCE:BTCUSDT", flatCandles(250, 100), nil, nil); err != nil {
		t.Fatalf("Predict: %v", err)
	}

	bad := flatBar(1, -5)
	rig.forecaster.OnBar(ctx, bad)
	if got := rig.detector.SampleCount(models.EnsembleID); got != 0 {
		t.Fatalf("invalid bar graded a prediction, sample count %d", got)
	}

	// The pending prediction survives and is graded by the next valid bar.
	rig.forecaster.OnBar(ctx, flatBar(2, 101))
	if got := rig.detector.SampleCount(models.EnsembleID); got != 1 {
		t.Fatalf("ensemble sample count %d, want 1", got)
	}
}

func TestRecordExpertResultUnknownExpert(t *testing.T) {
	rig := newTestRig(t)
	if err := rig.forecaster.RecordExpertResult("lstm", 1, 1, 70, models.RegimeQuiet); err == nil {
		t.Fatalf("expected error for unknown expert")
	}
}

func TestEvaluateRetraining(t *testing.T) {
	rig := newTestRig(t)

	rec := rig.forecaster.EvaluateRetraining()
	if rec.ShouldRetrain {
		t.Fatalf("fresh forecaster recommended retraining: %+v", rec)
	}

	for i := 0; i < 70; i++ {
		rig.forecaster.RecordResult(0.5, 0.5, 70, models.RegimeQuiet)
	}
	for i := 0; i < 30; i++ {
		rig.forecaster.RecordResult(2.0, -3.0, 70, models.RegimeQuiet)
	}

	rec = rig.forecaster.EvaluateRetraining()
	if !rec.ShouldRetrain {
		t.Fatalf("expected retraining recommendation, got %+v", rec)
	}
	if rec.Urgency != "CRITICAL" {
		t.Fatalf("urgency %q, want CRITICAL", rec.Urgency)
	}
	found := false
	for _, id := range rec.Affected {
		if id == models.EnsembleID {
			found = true
		}
	}
	if !found {
		t.Fatalf("affected %v does not include ensemble", rec.Affected)
	}
}

func TestHealthCheckTooFewSamples(t *testing.T) {
	rig := newTestRig(t)
	report := rig.forecaster.HealthCheck()
	if report.Healthy {
		t.Fatalf("expected unhealthy report with zero samples")
	}
	if len(report.Issues) == 0 {
		t.Fatalf("expected at least one issue")
	}
}

func TestHealthCheckHealthy(t *testing.T) {
	rig := newTestRig(t)
	for i := 0; i < 30; i++ {
		rig.forecaster.RecordResult(0.5, 0.5, 60, models.RegimeQuiet)
	}
	report := rig.forecaster.HealthCheck()
	if !report.Healthy {
		t.Fatalf("expected healthy report, issues: %v", report.Issues)
	}
}

func TestHealthCheckFlagsCalibrationGap(t *testing.T) {
	rig := newTestRig(t)
	// Coin-flip accuracy stated at 90 confidence.
	for i := 0; i < 30; i++ {
		actual := 0.5
		if i%2 == 1 {
			actual = -0.5
		}
		rig.forecaster.RecordResult(0.5, actual, 90, models.RegimeQuiet)
	}
	report := rig.forecaster.HealthCheck()
	if report.Healthy {
		t.Fatalf("expected calibration issue, got healthy report")
	}
	found := false
	for _, issue := range report.Issues {
		if strings.Contains(issue, "overstates") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no calibration issue in %v", report.Issues)
	}
}

func TestResetClearsState(t *testing.T) {
	rig := newTestRig(t)
	for i := 0; i < 10; i++ {
		rig.forecaster.RecordResult(0.5, 0.5, 70, models.RegimeQuiet)
		if err := rig.forecaster.RecordExpertResult(models.ExpertBoosting, 1, 1, 70, models.RegimeQuiet); err != nil {
			t.Fatalf("RecordExpertResult: %v", err)
		}
	}
	rig.forecaster.Reset()

	if got := rig.detector.SampleCount(models.EnsembleID); got != 0 {
		t.Fatalf("sample count %d after reset, want 0", got)
	}
	w := rig.engine.Weights()
	for id, v := range ensemble.BaseWeights() {
		if w[id] != v {
			t.Fatalf("weight %s = %v after reset, want base %v", id, w[id], v)
		}
	}
}

func TestExportImportStatistics(t *testing.T) {
	a := newTestRig(t)
	for i := 0; i < 40; i++ {
		a.forecaster.RecordResult(0.5, 0.5, 70, models.RegimeQuiet)
		if err := a.forecaster.RecordExpertResult(models.ExpertTechnical, 1, 1, 70, models.RegimeQuiet); err != nil {
			t.Fatalf("RecordExpertResult: %v", err)
		}
	}

	snap := a.forecaster.ExportStatistics()
	if snap == nil || len(snap.Records) == 0 {
		t.Fatalf("empty snapshot")
	}

	b := newTestRig(t)
	if err := b.forecaster.ImportHistory(snap); err != nil {
		t.Fatalf("ImportHistory: %v", err)
	}
	if got, want := b.detector.SampleCount(models.EnsembleID), a.detector.SampleCount(models.EnsembleID); got != want {
		t.Fatalf("ensemble sample count %d after import, want %d", got, want)
	}
	wa, wb := a.engine.Weights(), b.engine.Weights()
	for id, v := range wa {
		if wb[id] != v {
			t.Fatalf("weight %s = %v after import, want %v", id, wb[id], v)
		}
	}
}

func TestImportHistoryNilSnapshot(t *testing.T) {
	rig := newTestRig(t)
	if err := rig.forecaster.ImportHistory(nil); err == nil {
		t.Fatalf("expected error for nil snapshot")
	}
}

func TestStatistics(t *testing.T) {
	rig := newTestRig(t)
	for i := 0; i < 25; i++ {
		rig.forecaster.RecordResult(0.5, 0.5, 70, models.RegimeQuiet)
	}
	metrics, weights := rig.forecaster.Statistics()
	m, ok := metrics[models.EnsembleID]
	if !ok {
		t.Fatalf("missing ensemble metrics")
	}
	if m.Accuracy != 100 {
		t.Fatalf("accuracy %v, want 100", m.Accuracy)
	}
	if len(weights) != len(ensemble.BaseWeights()) {
		t.Fatalf("weights %v", weights)
	}
}
