package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	icache "FinCast/internal/service/cache"
	"FinCast/internal/services/drift"
	"FinCast/internal/services/ensemble"
	"FinCast/internal/services/features"
	"FinCast/internal/services/macrofeed"
	applogger "FinCast/pkg/logger"
)

// Stage identifies which pipeline stage an orchestration error came from.
type Stage string

const (
	StageData     Stage = "data"
	StageFeatures Stage = "features"
	StageEnsemble Stage = "ensemble"
)

// StageError wraps a failure with the stage it occurred in. It is the single
// typed error shape at the orchestration boundary.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// ForecastResult is the combined output of one end-to-end prediction call.
type ForecastResult struct {
	Prediction *models.EnsemblePrediction `json:"prediction"`
	Features   models.FeatureVector       `json:"features"`
	Drift      models.DriftResult         `json:"drift"`
	Timestamp  time.Time                  `json:"timestamp"`
}

// ForecasterConfig tunes the orchestration layer.
type ForecasterConfig struct {
	Lookback      int
	HistoryBars   int
	MinSamples    int     // below this HealthCheck flags metrics as untrusted
	AccuracyFloor float64 // sustained accuracy below this is an issue, percent
	CacheTTL      time.Duration
}

// Forecaster is the orchestration service tying features, ensemble and drift
// monitoring together. Collaborators other than the three core services are
// optional; a nil store, publisher, feed or cache disables that path.
type Forecaster struct {
	cfg      ForecasterConfig
	feats    *features.Service
	engine   *ensemble.Engine
	detector *drift.Detector

	store     domrepo.CandleStore
	publisher domrepo.Publisher
	snapshots domrepo.SnapshotStore
	feed      *macrofeed.Client
	metrics   domrepo.Metrics
	cache     icache.BytesCache
	l         *applogger.Logger

	mu      sync.Mutex
	history map[string][]models.Candle
	pending map[string]*models.EnsemblePrediction
}

// NewForecaster creates a forecaster with the three core services. Optional
// collaborators are attached via With* setters.
func NewForecaster(cfg ForecasterConfig, feats *features.Service, engine *ensemble.Engine, detector *drift.Detector, metrics domrepo.Metrics) *Forecaster {
	if cfg.Lookback < 2 {
		cfg.Lookback = 60
	}
	if cfg.HistoryBars <= cfg.Lookback {
		cfg.HistoryBars = cfg.Lookback * 5
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 30
	}
	if cfg.AccuracyFloor <= 0 {
		cfg.AccuracyFloor = 45
	}
	return &Forecaster{
		cfg:      cfg,
		feats:    feats,
		engine:   engine,
		detector: detector,
		metrics:  metrics,
		history:  make(map[string][]models.Candle),
		pending:  make(map[string]*models.EnsemblePrediction),
	}
}

func (f *Forecaster) WithCandleStore(s domrepo.CandleStore) *Forecaster { f.store = s; return f }
func (f *Forecaster) WithPublisher(p domrepo.Publisher) *Forecaster { f.publisher = p; return f }
func (f *Forecaster) WithSnapshots(s domrepo.SnapshotStore) *Forecaster { f.snapshots = s; return f }
func (f *Forecaster) WithMacrofeed(c *macrofeed.Client) *Forecaster { f.feed = c; return f }
func (f *Forecaster) WithCache(c icache.BytesCache) *Forecaster { f.cache = c; return f }
func (f *Forecaster) SetLogger(l *applogger.Logger) { f.l = l }

// Predict runs the end-to-end pipeline on caller-supplied history: features,
// ensemble prediction, and a fresh drift evaluation for the ensemble
// identifier. An insufficient-data failure propagates up unchanged inside a
// feature-stage error.
func (f *Forecaster) Predict(ctx context.Context, symbol string, candles []models.Candle, macro *models.MacroFeatures, sentiment *models.SentimentFeatures) (*ForecastResult, error) {
	return f.predict(ctx, symbol, candles, macro, sentiment, f.cfg.Lookback)
}

func (f *Forecaster) predict(ctx context.Context, symbol string, candles []models.Candle, macro *models.MacroFeatures, sentiment *models.SentimentFeatures, lookback int) (*ForecastResult, error) {
	start := time.Now()

	fv, err := f.feats.ExtractLatest(candles, lookback)
	if err != nil {
		if f.metrics != nil {
			f.metrics.RecordError("features")
		}
		return nil, &StageError{Stage: StageFeatures, Err: err}
	}

	pred, err := f.engine.Predict(symbol, candles, fv, macro, sentiment)
	if err != nil {
		if f.metrics != nil {
			f.metrics.RecordError("ensemble")
		}
		return nil, &StageError{Stage: StageEnsemble, Err: err}
	}

	driftRes := f.detector.DetectDrift(models.EnsembleID)

	if f.metrics != nil {
		f.metrics.RecordPrediction(symbol, string(pred.Regime))
		f.metrics.RecordConfidence(symbol, pred.Confidence)
		if driftRes.Detected {
			f.metrics.RecordDrift(driftRes.ID, string(driftRes.Severity))
		}
		f.metrics.RecordLatency("predict", time.Since(start).Seconds())
	}

	f.mu.Lock()
	f.pending[symbol] = pred
	f.mu.Unlock()

	return &ForecastResult{
		Prediction: pred,
		Features:   fv,
		Drift:      driftRes,
		Timestamp:  time.Now().UTC(),
	}, nil
}

// PredictSymbol loads history from the candle store, attaches optional
// macro/sentiment bundles from the feed, predicts, and publishes the result.
// A lookback below 2 falls back to the configured default. Recent identical
// requests are served from cache when one is attached.
func (f *Forecaster) PredictSymbol(ctx context.Context, symbol string, n, lookback int, tf domrepo.Timeframe) (*ForecastResult, error) {
	if f.store == nil {
		return nil, &StageError{Stage: StageData, Err: fmt.Errorf("no candle store configured")}
	}
	if lookback < 2 {
		lookback = f.cfg.Lookback
	}

	cacheKey := fmt.Sprintf("fincast:predict:%s:%s:%d:%d", symbol, tf, n, lookback)
	if f.cache != nil {
		if b, ok, _ := f.cache.GetBytes(cacheKey); ok {
			var cached ForecastResult
			if err := json.Unmarshal(b, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	candles, err := f.store.GetLatestNCandles(ctx, symbol, n, tf)
	if err != nil {
		if f.metrics != nil {
			f.metrics.RecordError("candle_store")
		}
		return nil, &StageError{Stage: StageData, Err: err}
	}
	f.mu.Lock()
	if live := f.history[symbol]; len(live) > len(candles) {
		candles = append([]models.Candle(nil), live...)
	}
	f.mu.Unlock()

	var macro *models.MacroFeatures
	var sentiment *models.SentimentFeatures
	if f.feed != nil {
		// Feed outages degrade to prediction without external bundles.
		if m, err := f.feed.Macro(ctx, symbol); err == nil {
			macro = m
		} else if f.l != nil {
			f.l.Warn("macro feed unavailable", applogger.String("symbol", symbol), applogger.Error(err))
		}
		if s, err := f.feed.Sentiment(ctx, symbol); err == nil {
			sentiment = s
		} else if f.l != nil {
			f.l.Warn("sentiment feed unavailable", applogger.String("symbol", symbol), applogger.Error(err))
		}
	}

	res, err := f.predict(ctx, symbol, candles, macro, sentiment, lookback)
	if err != nil {
		return nil, err
	}

	if f.publisher != nil {
		if err := f.publisher.PublishPrediction(ctx, res.Prediction); err != nil {
			if f.metrics != nil {
				f.metrics.RecordError("publish")
			}
			if f.l != nil {
				f.l.Warn("prediction publish failed", applogger.String("symbol", symbol), applogger.Error(err))
			}
		}
	}
	if f.cache != nil {
		if b, err := json.Marshal(res); err == nil {
			_ = f.cache.SetBytes(cacheKey, b, f.cfg.CacheTTL)
		}
	}
	return res, nil
}

// RecordResult forwards a realized ensemble outcome to the drift detector.
func (f *Forecaster) RecordResult(predicted, actual, confidence float64, regime models.MarketRegime) {
	f.detector.RecordPrediction(models.EnsembleID, predicted, actual, confidence, regime)
}

// RecordExpertResult records a realized outcome for one expert in both the
// ensemble's weight history and the drift detector.
func (f *Forecaster) RecordExpertResult(expert string, predicted, actual, confidence float64, regime models.MarketRegime) error {
	if err := f.engine.RecordPerformance(expert, predicted, actual); err != nil {
		return err
	}
	f.detector.RecordPrediction(expert, predicted, actual, confidence, regime)
	return nil
}

// OnBar folds one completed live bar into the symbol's in-memory history and
// closes the ground-truth loop: the previously pending prediction for the
// symbol is graded against the realized percent change.
func (f *Forecaster) OnBar(ctx context.Context, c models.Candle) {
	if err := c.Validate(); err != nil {
		if f.metrics != nil {
			f.metrics.RecordError("bar_invalid")
		}
		return
	}

	f.mu.Lock()
	hist := f.history[c.Symbol]
	var prevClose float64
	if len(hist) > 0 {
		prevClose = hist[len(hist)-1].Close
	}
	hist = append(hist, c)
	if len(hist) > f.cfg.HistoryBars {
		hist = hist[len(hist)-f.cfg.HistoryBars:]
	}
	f.history[c.Symbol] = hist
	pend := f.pending[c.Symbol]
	delete(f.pending, c.Symbol)
	f.mu.Unlock()

	if pend == nil || prevClose <= 0 {
		return
	}
	actual := (c.Close - prevClose) / prevClose * 100
	f.RecordResult(pend.Predicted, actual, pend.Confidence, pend.Regime)
	for _, ep := range pend.Experts {
		if err := f.RecordExpertResult(ep.Expert, ep.Predicted, actual, pend.Confidence, pend.Regime); err != nil && f.l != nil {
			f.l.Warn("expert result record failed", applogger.String("expert", ep.Expert), applogger.Error(err))
		}
	}
}

// EvaluateRetraining runs drift detection across all identifiers and grades
// the aggregate retraining need.
func (f *Forecaster) EvaluateRetraining() models.RetrainingRecommendation {
	results := f.detector.DetectEach()

	worst := models.SeverityNone
	affected := make([]string, 0)
	for _, id := range f.detector.Identifiers() {
		res := results[id]
		if res.Detected {
			affected = append(affected, id)
		}
		worst = models.MaxSeverity(worst, res.Severity)
	}

	rec := models.RetrainingRecommendation{
		Urgency:  urgencyFor(worst),
		Affected: affected,
	}
	switch worst {
	case models.SeverityNone, models.SeverityLow:
		rec.Reason = "prediction quality within baseline"
	default:
		rec.ShouldRetrain = true
		rec.Reason = fmt.Sprintf("%s drift on %d identifier(s)", worst, len(affected))
	}
	return rec
}

// urgencyFor relabels drift severity as retraining urgency.
func urgencyFor(s models.DriftSeverity) string {
	switch s {
	case models.SeverityMedium:
		return "MEDIUM"
	case models.SeverityHigh:
		return "HIGH"
	case models.SeverityCritical:
		return "CRITICAL"
	default:
		return "LOW"
	}
}

// HealthCheck reports aggregate model health: detected drift, too few
// samples to trust metrics, and sustained sub-threshold accuracy.
func (f *Forecaster) HealthCheck() models.HealthReport {
	report := models.HealthReport{
		Issues:          []string{},
		Recommendations: []string{},
	}

	worst := f.detector.DetectAll()
	if worst.Detected {
		report.Issues = append(report.Issues,
			fmt.Sprintf("%s drift detected on %s (%s)", worst.Severity, worst.ID, worst.Type))
		report.Recommendations = append(report.Recommendations, string(worst.Recommendation))
	}

	samples := f.detector.SampleCount(models.EnsembleID)
	if samples < f.cfg.MinSamples {
		report.Issues = append(report.Issues,
			fmt.Sprintf("only %d/%d samples recorded, metrics not yet trustworthy", samples, f.cfg.MinSamples))
		report.Recommendations = append(report.Recommendations, "CONTINUE")
	} else {
		m := f.detector.Metrics(models.EnsembleID)
		if m.Accuracy < f.cfg.AccuracyFloor {
			report.Issues = append(report.Issues,
				fmt.Sprintf("sustained accuracy %.1f%% below floor %.1f%%", m.Accuracy, f.cfg.AccuracyFloor))
			report.Recommendations = append(report.Recommendations, "retrain or widen ensemble history")
		}
		// Calibration: stated confidence should track empirical accuracy.
		if gap := m.AvgConfidence - m.Accuracy; gap > 20 {
			report.Issues = append(report.Issues,
				fmt.Sprintf("confidence %.1f overstates accuracy %.1f%% by %.1f pts", m.AvgConfidence, m.Accuracy, gap))
			report.Recommendations = append(report.Recommendations, "review confidence calibration")
		}
	}

	report.Healthy = len(report.Issues) == 0
	return report
}

// Reset clears all drift history, ensemble weights and live state. Used to
// start monitoring a fresh instrument or backtest.
func (f *Forecaster) Reset() {
	f.detector.Reset()
	f.engine.ResetWeights()
	f.mu.Lock()
	f.history = make(map[string][]models.Candle)
	f.pending = make(map[string]*models.EnsemblePrediction)
	f.mu.Unlock()
}

// ExportStatistics snapshots the full monitoring state.
func (f *Forecaster) ExportStatistics() *models.Snapshot {
	return &models.Snapshot{
		CreatedAt:   time.Now().UTC(),
		Records:     f.detector.Export(),
		Performance: f.engine.ExportPerformance(),
		Weights:     f.engine.Weights(),
	}
}

// ImportHistory restores monitoring state from a snapshot.
func (f *Forecaster) ImportHistory(snap *models.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}
	f.detector.Import(snap.Records)
	f.engine.ImportPerformance(snap.Performance)
	return nil
}

// SaveSnapshot persists the current state under a symbol key.
func (f *Forecaster) SaveSnapshot(ctx context.Context, symbol string) error {
	if f.snapshots == nil {
		return fmt.Errorf("no snapshot store configured")
	}
	return f.snapshots.Save(ctx, symbol, f.ExportStatistics())
}

// RestoreSnapshot loads and imports persisted state for a symbol.
func (f *Forecaster) RestoreSnapshot(ctx context.Context, symbol string) error {
	if f.snapshots == nil {
		return fmt.Errorf("no snapshot store configured")
	}
	snap, err := f.snapshots.Load(ctx, symbol)
	if err != nil {
		return err
	}
	return f.ImportHistory(snap)
}

// History returns stored candles for a time range, for calibration review
// and backtest tooling.
func (f *Forecaster) History(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Candle, error) {
	if f.store == nil {
		return nil, &StageError{Stage: StageData, Err: fmt.Errorf("no candle store configured")}
	}
	candles, err := f.store.GetCandles(ctx, symbol, from, to, tf)
	if err != nil {
		return nil, &StageError{Stage: StageData, Err: err}
	}
	return candles, nil
}

// Statistics returns current-window metrics per tracked identifier plus the
// active weight vector.
func (f *Forecaster) Statistics() (map[string]models.ModelMetrics, map[string]float64) {
	out := make(map[string]models.ModelMetrics)
	for _, id := range f.detector.Identifiers() {
		out[id] = f.detector.Metrics(id)
	}
	return out, f.engine.Weights()
}
