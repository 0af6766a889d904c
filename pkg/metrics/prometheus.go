package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	predictions *prometheus.CounterVec
	confidence  *prometheus.GaugeVec
	drift       *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		predictions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_predictions_total",
				Help: "Total number of ensemble predictions produced",
			},
			[]string{"symbol", "regime"},
		),
		confidence: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fincast_last_confidence",
				Help: "Confidence score of the most recent prediction",
			},
			[]string{"symbol"},
		),
		drift: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_drift_detections_total",
				Help: "Total drift detections by identifier and severity",
			},
			[]string{"id", "severity"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fincast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPrediction counts one produced prediction.
func (r *Recorder) RecordPrediction(symbol, regime string) {
	r.predictions.WithLabelValues(symbol, regime).Inc()
}

// RecordConfidence records the latest confidence for a symbol.
func (r *Recorder) RecordConfidence(symbol string, confidence float64) {
	r.confidence.WithLabelValues(symbol).Set(confidence)
}

// RecordDrift counts a drift detection by severity.
func (r *Recorder) RecordDrift(id, severity string) {
	r.drift.WithLabelValues(id, severity).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
