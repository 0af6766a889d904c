package models

import "time"

// DriftSeverity grades degradation of prediction quality against baseline.
type DriftSeverity string

const (
	SeverityNone     DriftSeverity = "NONE"
	SeverityLow      DriftSeverity = "LOW"
	SeverityMedium   DriftSeverity = "MEDIUM"
	SeverityHigh     DriftSeverity = "HIGH"
	SeverityCritical DriftSeverity = "CRITICAL"
)

// Score maps severity to an ordinal for comparisons (NONE=0 … CRITICAL=4).
func (s DriftSeverity) Score() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// MaxSeverity returns the more severe of two grades.
func MaxSeverity(a, b DriftSeverity) DriftSeverity {
	if b.Score() > a.Score() {
		return b
	}
	return a
}

// DriftType describes the temporal shape of the degradation inside the
// detection window.
type DriftType string

const (
	DriftNone        DriftType = "NONE"
	DriftSudden      DriftType = "SUDDEN"
	DriftGradual     DriftType = "GRADUAL"
	DriftIncremental DriftType = "INCREMENTAL"
)

// Recommendation is the retraining action derived from severity and type.
type Recommendation string

const (
	RecommendContinue         Recommendation = "CONTINUE"
	RecommendMonitor          Recommendation = "MONITOR"
	RecommendRetrain          Recommendation = "RETRAIN"
	RecommendEmergencyRetrain Recommendation = "EMERGENCY_RETRAIN"
)

// PredictionRecord tracks one prediction and, once known, its outcome.
// Actual is filled in exactly once; records are never deleted individually,
// the containing ring prunes the oldest as capacity is reached.
type PredictionRecord struct {
	Timestamp  time.Time    `json:"timestamp"`
	ID         string       `json:"id"` // expert or ensemble identifier
	Predicted  float64      `json:"predicted"`
	Actual     float64      `json:"actual"`
	Confidence float64      `json:"confidence"`
	Regime     MarketRegime `json:"regime"`
}

// ModelMetrics summarizes prediction quality over a sample window.
type ModelMetrics struct {
	Count         int     `json:"count"`
	Accuracy      float64 `json:"accuracy"` // directional hit rate, percent
	AvgError      float64 `json:"avg_error"`
	AvgConfidence float64 `json:"avg_confidence"`
	Sharpe        float64 `json:"sharpe"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	WinRate       float64 `json:"win_rate"`
}

// DriftResult is the outcome of one drift evaluation.
type DriftResult struct {
	ID             string         `json:"id"`
	Detected       bool           `json:"detected"`
	Severity       DriftSeverity  `json:"severity"`
	Type           DriftType      `json:"type"`
	Accuracy       float64        `json:"accuracy"`
	AccuracyDrop   float64        `json:"accuracy_drop"`
	ErrorIncrease  float64        `json:"error_increase"`
	Recommendation Recommendation `json:"recommendation"`
	Reason         string         `json:"reason"`
	DetectedAt     time.Time      `json:"detected_at"`
}

// RetrainingRecommendation aggregates drift across all tracked identifiers.
type RetrainingRecommendation struct {
	ShouldRetrain bool     `json:"should_retrain"`
	Urgency       string   `json:"urgency"` // LOW, MEDIUM, HIGH, CRITICAL
	Reason        string   `json:"reason"`
	Affected      []string `json:"affected"`
}

// HealthReport is the aggregate health-check shape.
type HealthReport struct {
	Healthy         bool     `json:"healthy"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// Snapshot captures the full mutable state of a monitoring session so a
// collaborator can persist and restore it across process restarts.
type Snapshot struct {
	CreatedAt   time.Time                      `json:"created_at"`
	Records     map[string][]PredictionRecord  `json:"records"`
	Performance map[string][]PerformancePoint  `json:"performance"`
	Weights     map[string]float64             `json:"weights"`
}

// PerformancePoint is one entry of an expert's rolling performance history.
type PerformancePoint struct {
	Predicted float64 `json:"predicted"`
	Actual    float64 `json:"actual"`
}
