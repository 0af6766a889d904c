package ensemble

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"FinCast/internal/domain/models"
	applogger "FinCast/pkg/logger"

	"github.com/creasty/defaults"
)

// ErrEmptyHistory is returned by Predict when no price history is supplied.
var ErrEmptyHistory = errors.New("empty price history")

// Config tunes the ensemble engine. Zero values are filled from defaults.
type Config struct {
	PerformanceWindow int   `yaml:"performance_window" default:"50"`
	MinPerfSamples    int   `yaml:"min_perf_samples" default:"5"`
	MCSamples         int   `yaml:"mc_samples" default:"30"`
	MCSeed            int64 `yaml:"mc_seed" default:"42"`

	MacroWeight     float64 `yaml:"macro_weight" default:"0.3"`
	SentimentWeight float64 `yaml:"sentiment_weight" default:"0.4"`
	AdjustmentCap   float64 `yaml:"adjustment_cap" default:"0.75"`

	Regime RegimeThresholds `yaml:"regime"`
}

// Engine blends independent expert forecasts with regime- and
// performance-aware weights. Histories are bounded; concurrent Predict calls
// share a read lock while mutations take the write lock.
type Engine struct {
	mu      sync.RWMutex
	cfg     Config
	experts []Expert
	perf    map[string]*perfRing
	mcCalls int64
	l       *applogger.Logger
}

// NewEngine creates an engine with the given experts (DefaultExperts when
// nil) and config defaults applied.
func NewEngine(cfg Config, experts ...Expert) (*Engine, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("ensemble config defaults: %w", err)
	}
	if err := defaults.Set(&cfg.Regime); err != nil {
		return nil, fmt.Errorf("regime thresholds defaults: %w", err)
	}
	if len(experts) == 0 {
		experts = DefaultExperts()
	}
	e := &Engine{
		cfg:     cfg,
		experts: experts,
		perf:    make(map[string]*perfRing, len(experts)),
	}
	for _, ex := range experts {
		e.perf[ex.Name()] = newPerfRing(cfg.PerformanceWindow)
	}
	return e, nil
}

// SetLogger injects a structured logger.
func (e *Engine) SetLogger(l *applogger.Logger) { e.l = l }

// Predict produces the blended forecast for the given feature vector.
func (e *Engine) Predict(symbol string, candles []models.Candle, f models.FeatureVector, macro *models.MacroFeatures, sentiment *models.SentimentFeatures) (*models.EnsemblePrediction, error) {
	if len(candles) == 0 {
		return nil, ErrEmptyHistory
	}
	if f == nil {
		return nil, errors.New("nil feature vector")
	}

	regime := ClassifyRegime(f, e.cfg.Regime)

	preds := make([]models.ExpertPrediction, 0, len(e.experts))
	for _, ex := range e.experts {
		preds = append(preds, models.ExpertPrediction{
			Expert:    ex.Name(),
			Predicted: ex.Predict(f),
		})
	}

	e.mu.RLock()
	weights := e.deriveWeightsLocked(regime)
	accBonus := e.recentAccuracyLocked()
	e.mu.RUnlock()

	var blended float64
	for _, p := range preds {
		blended += p.Predicted * weights[p.Expert]
	}

	confidence := e.confidence(preds, accBonus)
	uncertainty := e.uncertainty(f, weights)

	if adj := e.externalAdjustment(macro, sentiment); adj != 0 {
		blended += adj
	}

	out := &models.EnsemblePrediction{
		Symbol:      symbol,
		Predicted:   blended,
		Confidence:  confidence,
		Uncertainty: uncertainty,
		Weights:     weights,
		Experts:     preds,
		Regime:      regime,
		Reasoning:   buildReasoning(preds, weights, regime, f),
		Timestamp:   time.Now().UTC(),
	}
	if e.l != nil {
		e.l.Debug("ensemble prediction",
			applogger.String("symbol", symbol),
			applogger.String("regime", string(regime)),
			applogger.Any("predicted", blended),
		)
	}
	return out, nil
}

// RecordPerformance appends one realized outcome to an expert's rolling
// history; weights re-derive on the next Predict.
func (e *Engine) RecordPerformance(expert string, predicted, actual float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ring, ok := e.perf[expert]
	if !ok {
		return fmt.Errorf("unknown expert %q", expert)
	}
	ring.push(models.PerformancePoint{Predicted: predicted, Actual: actual})
	return nil
}

// ResetWeights restores the documented base weights and clears all
// performance history. Used between independent backtest runs or when
// switching instruments.
func (e *Engine) ResetWeights() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id := range e.perf {
		e.perf[id] = newPerfRing(e.cfg.PerformanceWindow)
	}
}

// Weights returns the current performance-adjusted weight vector without any
// regime bias, mainly for snapshots and inspection.
func (e *Engine) Weights() map[string]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.deriveWeightsLocked(models.RegimeQuiet)
}

// ExportPerformance copies each expert's rolling history for snapshotting.
func (e *Engine) ExportPerformance() map[string][]models.PerformancePoint {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string][]models.PerformancePoint, len(e.perf))
	for id, ring := range e.perf {
		out[id] = ring.items()
	}
	return out
}

// ImportPerformance replaces all rolling histories from a snapshot.
func (e *Engine) ImportPerformance(perf map[string][]models.PerformancePoint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id := range e.perf {
		ring := newPerfRing(e.cfg.PerformanceWindow)
		for _, p := range perf[id] {
			ring.push(p)
		}
		e.perf[id] = ring
	}
}

// deriveWeightsLocked computes base → regime → performance → projection.
// Callers hold at least the read lock.
func (e *Engine) deriveWeightsLocked(regime models.MarketRegime) map[string]float64 {
	w := BaseWeights()
	applyRegime(w, regime)
	for id, ring := range e.perf {
		if ring.len() < e.cfg.MinPerfSamples {
			continue
		}
		// Hit rate 0.5 is neutral; the multiplier spans [0.7, 1.3].
		w[id] *= 0.7 + 0.6*ring.hitRate()
	}
	clampNormalize(w)
	return w
}

// recentAccuracyLocked averages expert hit rates, 0.5 when nothing recorded.
func (e *Engine) recentAccuracyLocked() float64 {
	var sum float64
	var n int
	for _, ring := range e.perf {
		if ring.len() < e.cfg.MinPerfSamples {
			continue
		}
		sum += ring.hitRate()
		n++
	}
	if n == 0 {
		return 0.5
	}
	return sum / float64(n)
}

// confidence derives a [50, 95] score from expert agreement and recent
// realized accuracy.
func (e *Engine) confidence(preds []models.ExpertPrediction, recentAccuracy float64) float64 {
	var mean float64
	for _, p := range preds {
		mean += p.Predicted
	}
	mean /= float64(len(preds))
	var variance float64
	for _, p := range preds {
		d := p.Predicted - mean
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(len(preds)))

	agreement := 1 - sd/2
	if agreement < 0 {
		agreement = 0
	}
	conf := 50 + 30*agreement + 20*(recentAccuracy-0.5)
	if conf < 50 {
		conf = 50
	}
	if conf > 95 {
		conf = 95
	}
	return conf
}

// uncertainty estimates forecast spread by re-running the blend over
// perturbed copies of the feature vector. The generator is seeded from
// config so tests are reproducible; true stochastic dropout is out of scope.
func (e *Engine) uncertainty(f models.FeatureVector, weights map[string]float64) float64 {
	e.mu.Lock()
	e.mcCalls++
	rng := rand.New(rand.NewSource(e.cfg.MCSeed + e.mcCalls))
	e.mu.Unlock()

	n := e.cfg.MCSamples
	if n <= 1 {
		return 0
	}
	samples := make([]float64, 0, n)
	for s := 0; s < n; s++ {
		pf := f.Clone()
		// Canonical key order: map iteration would consume the seeded draws
		// in a different order every run.
		for _, k := range models.FeatureKeys {
			v := pf[k]
			noise := rng.NormFloat64() * (math.Abs(v)*0.05 + 0.01)
			pf[k] = v + noise
		}
		var blended float64
		for _, ex := range e.experts {
			blended += ex.Predict(pf) * weights[ex.Name()]
		}
		samples = append(samples, blended)
	}
	var mean float64
	for _, v := range samples {
		mean += v
	}
	mean /= float64(n)
	var variance float64
	for _, v := range samples {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(n-1))
}

// externalAdjustment applies the bounded macro/sentiment tilt. Absent
// bundles contribute nothing, so behavior matches the no-adjustment case.
func (e *Engine) externalAdjustment(macro *models.MacroFeatures, sentiment *models.SentimentFeatures) float64 {
	var adj float64
	if macro != nil {
		adj += macro.Score * e.cfg.MacroWeight
	}
	if sentiment != nil {
		adj += sentiment.Score * e.cfg.SentimentWeight
	}
	if adj > e.cfg.AdjustmentCap {
		adj = e.cfg.AdjustmentCap
	}
	if adj < -e.cfg.AdjustmentCap {
		adj = -e.cfg.AdjustmentCap
	}
	return adj
}

// buildReasoning creates the informational explanation string.
func buildReasoning(preds []models.ExpertPrediction, weights map[string]float64, regime models.MarketRegime, f models.FeatureVector) string {
	sorted := make([]models.ExpertPrediction, len(preds))
	copy(sorted, preds)
	sort.Slice(sorted, func(i, j int) bool {
		return weights[sorted[i].Expert] > weights[sorted[j].Expert]
	})
	dominant := sorted[0]

	rsiVal := f.Get(models.FeatRSI14, 50)
	m5 := f.Get(models.FeatMomentum5, 0)

	rsiNote := "RSI neutral"
	switch {
	case rsiVal < 30:
		rsiNote = "RSI oversold"
	case rsiVal > 70:
		rsiNote = "RSI overbought"
	}
	momNote := "momentum flat"
	switch {
	case m5 > 0.3:
		momNote = "momentum up"
	case m5 < -0.3:
		momNote = "momentum down"
	}
	return fmt.Sprintf("%s regime; %s leads at %.0f%% weight (%.2f%%); %s, %s",
		regime, dominant.Expert, weights[dominant.Expert]*100, dominant.Predicted, rsiNote, momNote)
}

// perfRing is a fixed-capacity rolling window of realized outcomes.
type perfRing struct {
	buf   []models.PerformancePoint
	head  int
	count int
}

func newPerfRing(capacity int) *perfRing {
	if capacity <= 0 {
		capacity = 50
	}
	return &perfRing{buf: make([]models.PerformancePoint, capacity)}
}

func (r *perfRing) push(p models.PerformancePoint) {
	r.buf[r.head] = p
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *perfRing) len() int { return r.count }

// items returns the window oldest-first.
func (r *perfRing) items() []models.PerformancePoint {
	out := make([]models.PerformancePoint, 0, r.count)
	start := r.head - r.count
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[((start+i)%len(r.buf)+len(r.buf))%len(r.buf)])
	}
	return out
}

// hitRate is the fraction of records where the predicted direction matched.
func (r *perfRing) hitRate() float64 {
	if r.count == 0 {
		return 0.5
	}
	hits := 0
	for _, p := range r.items() {
		if (p.Predicted >= 0) == (p.Actual >= 0) {
			hits++
		}
	}
	return float64(hits) / float64(r.count)
}
