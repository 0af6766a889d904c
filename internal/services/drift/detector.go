package drift

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"FinCast/internal/domain/models"
	applogger "FinCast/pkg/logger"

	"github.com/creasty/defaults"
)

// Config controls window sizes for drift evaluation. Zero values are filled
// from defaults.
type Config struct {
	Capacity        int `yaml:"capacity" default:"500"`
	DetectionWindow int `yaml:"detection_window" default:"20"`
	BaselineWindow  int `yaml:"baseline_window" default:"60"`
	MinBaseline     int `yaml:"min_baseline" default:"30"`
}

// Detector tracks prediction outcomes per identifier (each expert plus the
// ensemble) and grades degradation against a rolling baseline. Each
// identifier moves from accumulating to baseline-established once MinBaseline
// older samples exist; below that every evaluation is NONE/CONTINUE.
type Detector struct {
	mu    sync.RWMutex
	cfg   Config
	rings map[string]*recordRing
	l     *applogger.Logger
}

func NewDetector(cfg Config) (*Detector, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("drift config defaults: %w", err)
	}
	return &Detector{
		cfg:   cfg,
		rings: make(map[string]*recordRing),
	}, nil
}

// SetLogger injects a structured logger.
func (d *Detector) SetLogger(l *applogger.Logger) { d.l = l }

// RecordPrediction appends one realized outcome for an identifier. The ring
// is created lazily on first use.
func (d *Detector) RecordPrediction(id string, predicted, actual, confidence float64, regime models.MarketRegime) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ring, ok := d.rings[id]
	if !ok {
		ring = newRecordRing(d.cfg.Capacity)
		d.rings[id] = ring
	}
	ring.push(models.PredictionRecord{
		Timestamp:  time.Now().UTC(),
		ID:         id,
		Predicted:  predicted,
		Actual:     actual,
		Confidence: confidence,
		Regime:     regime,
	})
}

// Metrics returns current-window metrics for an identifier.
func (d *Detector) Metrics(id string) models.ModelMetrics {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ring, ok := d.rings[id]
	if !ok {
		return models.ModelMetrics{}
	}
	return computeMetrics(ring.tail(d.cfg.DetectionWindow))
}

// SampleCount returns the total number of records held for an identifier.
func (d *Detector) SampleCount(id string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ring, ok := d.rings[id]
	if !ok {
		return 0
	}
	return ring.len()
}

// Identifiers lists tracked ids in sorted order.
func (d *Detector) Identifiers() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.rings))
	for id := range d.rings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DetectDrift evaluates one identifier against its baseline.
func (d *Detector) DetectDrift(id string) models.DriftResult {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.evaluateLocked(id)
}

// DetectAll evaluates every identifier and returns the single most severe
// result. Ties go to the higher severity score, then lexicographic id so the
// outcome is deterministic.
func (d *Detector) DetectAll() models.DriftResult {
	d.mu.RLock()
	defer d.mu.RUnlock()
	worst := models.DriftResult{
		Severity:       models.SeverityNone,
		Type:           models.DriftNone,
		Recommendation: models.RecommendContinue,
		DetectedAt:     time.Now().UTC(),
	}
	for _, id := range d.idsLocked() {
		res := d.evaluateLocked(id)
		if res.Severity.Score() > worst.Severity.Score() {
			worst = res
		}
	}
	return worst
}

// DetectEach evaluates every identifier individually.
func (d *Detector) DetectEach() map[string]models.DriftResult {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]models.DriftResult, len(d.rings))
	for _, id := range d.idsLocked() {
		out[id] = d.evaluateLocked(id)
	}
	return out
}

// Export copies the full per-identifier history so a collaborator can persist
// it; re-importing into a fresh detector reproduces the same drift results.
func (d *Detector) Export() map[string][]models.PredictionRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string][]models.PredictionRecord, len(d.rings))
	for id, ring := range d.rings {
		out[id] = ring.items()
	}
	return out
}

// Import replaces all history from a snapshot.
func (d *Detector) Import(records map[string][]models.PredictionRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rings = make(map[string]*recordRing, len(records))
	for id, recs := range records {
		ring := newRecordRing(d.cfg.Capacity)
		for _, r := range recs {
			ring.push(r)
		}
		d.rings[id] = ring
	}
}

// Reset drops all tracked history.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rings = make(map[string]*recordRing)
}

func (d *Detector) idsLocked() []string {
	ids := make([]string, 0, len(d.rings))
	for id := range d.rings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// evaluateLocked runs the full grading for one identifier. Callers hold at
// least the read lock.
func (d *Detector) evaluateLocked(id string) models.DriftResult {
	res := models.DriftResult{
		ID:             id,
		Severity:       models.SeverityNone,
		Type:           models.DriftNone,
		Recommendation: models.RecommendContinue,
		DetectedAt:     time.Now().UTC(),
	}
	ring, ok := d.rings[id]
	if !ok {
		res.Reason = "no history"
		return res
	}

	current := ring.tail(d.cfg.DetectionWindow)
	baseline := ring.before(d.cfg.DetectionWindow, d.cfg.BaselineWindow)
	if len(baseline) < d.cfg.MinBaseline {
		res.Accuracy = directionalAccuracy(current)
		res.Reason = fmt.Sprintf("baseline not established (%d/%d samples)", len(baseline), d.cfg.MinBaseline)
		return res
	}

	cur := computeMetrics(current)
	base := computeMetrics(baseline)

	res.Accuracy = cur.Accuracy
	res.AccuracyDrop = base.Accuracy - cur.Accuracy
	res.ErrorIncrease = cur.AvgError - base.AvgError
	sharpeDrop := base.Sharpe - cur.Sharpe

	sev := severityByThresholds(res.AccuracyDrop, 5, 10, 15, 20)
	sev = models.MaxSeverity(sev, severityByThresholds(res.ErrorIncrease, 0.5, 1.0, 1.5, 2.0))
	sev = models.MaxSeverity(sev, severityByThresholds(sharpeDrop, 0.5, 1.0, 1.5, 2.0))
	res.Severity = sev
	res.Detected = sev != models.SeverityNone
	res.Type = classifyType(current)
	res.Recommendation = recommend(sev, res.Type)
	res.Reason = fmt.Sprintf("accuracy %.1f%% vs baseline %.1f%% (drop %.1f pts), error %.3f vs %.3f",
		cur.Accuracy, base.Accuracy, res.AccuracyDrop, cur.AvgError, base.AvgError)

	if d.l != nil && res.Detected {
		d.l.Warn("drift detected",
			applogger.String("id", id),
			applogger.String("severity", string(sev)),
			applogger.String("type", string(res.Type)),
		)
	}
	return res
}

// severityByThresholds maps a degradation measure to a grade using four
// ascending cut points.
func severityByThresholds(v, low, medium, high, critical float64) models.DriftSeverity {
	switch {
	case v >= critical:
		return models.SeverityCritical
	case v >= high:
		return models.SeverityHigh
	case v >= medium:
		return models.SeverityMedium
	case v >= low:
		return models.SeverityLow
	default:
		return models.SeverityNone
	}
}

// classifyType compares the first and second half of the detection window.
func classifyType(window []models.PredictionRecord) models.DriftType {
	if len(window) < 4 {
		return models.DriftNone
	}
	half := len(window) / 2
	drop := directionalAccuracy(window[:half]) - directionalAccuracy(window[half:])
	switch {
	case drop > 15:
		return models.DriftSudden
	case drop > 5:
		return models.DriftGradual
	case drop > 0:
		return models.DriftIncremental
	default:
		return models.DriftNone
	}
}

func recommend(sev models.DriftSeverity, typ models.DriftType) models.Recommendation {
	switch {
	case sev == models.SeverityCritical,
		sev == models.SeverityHigh && typ == models.DriftSudden:
		return models.RecommendEmergencyRetrain
	case sev == models.SeverityHigh,
		sev == models.SeverityMedium && typ == models.DriftGradual:
		return models.RecommendRetrain
	case sev == models.SeverityMedium, sev == models.SeverityLow:
		return models.RecommendMonitor
	default:
		return models.RecommendContinue
	}
}
