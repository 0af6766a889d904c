package drift

import (
	"strings"
	"testing"

	"FinCast/internal/domain/models"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := NewDetector(Config{})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d
}

// feed pushes n identical outcomes for an identifier.
func feed(d *Detector, id string, n int, predicted, actual float64) {
	for i := 0; i < n; i++ {
		d.RecordPrediction(id, predicted, actual, 70, models.RegimeQuiet)
	}
}

func TestDetectDriftNoHistory(t *testing.T) {
	d := newTestDetector(t)
	res := d.DetectDrift("ensemble")
	if res.Detected {
		t.Fatalf("detected drift with no history")
	}
	if res.Severity != models.SeverityNone || res.Recommendation != models.RecommendContinue {
		t.Fatalf("empty detector: severity %s, recommendation %s", res.Severity, res.Recommendation)
	}
}

func TestDetectDriftBaselineNotEstablished(t *testing.T) {
	d := newTestDetector(t)
	// 49 records leave only 29 baseline samples behind the 20-bar detection
	// window, one short of MinBaseline.
	feed(d, "ensemble", 49, 2.0, -3.0)

	res := d.DetectDrift("ensemble")
	if res.Detected {
		t.Fatalf("detected drift before baseline was established")
	}
	if res.Severity != models.SeverityNone {
		t.Fatalf("severity %s, want NONE", res.Severity)
	}
	if res.Recommendation != models.RecommendContinue {
		t.Fatalf("recommendation %s, want CONTINUE", res.Recommendation)
	}
	if !strings.Contains(res.Reason, "baseline not established") {
		t.Fatalf("unexpected reason %q", res.Reason)
	}
}

func TestMetricsPerfectPredictions(t *testing.T) {
	d := newTestDetector(t)
	feed(d, "ensemble", 40, 0.5, 0.5)

	m := d.Metrics("ensemble")
	if m.Count != 20 {
		t.Fatalf("window count %d, want detection window 20", m.Count)
	}
	if m.Accuracy != 100 {
		t.Fatalf("accuracy %v, want 100", m.Accuracy)
	}
	if m.AvgError != 0 {
		t.Fatalf("avg error %v, want 0", m.AvgError)
	}
	if m.AvgConfidence != 70 {
		t.Fatalf("avg confidence %v, want 70", m.AvgConfidence)
	}
	// Identical outcomes have zero spread, so the ratio degrades to 0.
	if m.Sharpe != 0 {
		t.Fatalf("sharpe %v, want 0 for flat pnl", m.Sharpe)
	}
	if m.WinRate != 100 {
		t.Fatalf("win rate %v, want 100", m.WinRate)
	}
}

func TestSeverityByThresholds(t *testing.T) {
	cases := []struct {
		v    float64
		want models.DriftSeverity
	}{
		{4.9, models.SeverityNone},
		{5, models.SeverityLow},
		{10, models.SeverityMedium},
		{15, models.SeverityHigh},
		{20, models.SeverityCritical},
		{100, models.SeverityCritical},
	}
	for _, tc := range cases {
		if got := severityByThresholds(tc.v, 5, 10, 15, 20); got != tc.want {
			t.Fatalf("severity(%v) = %s, want %s", tc.v, got, tc.want)
		}
	}
}

func TestSeverityMonotoneInAccuracyDrop(t *testing.T) {
	prev := models.SeverityNone
	for v := 0.0; v <= 25; v += 2.5 {
		got := severityByThresholds(v, 5, 10, 15, 20)
		if got.Score() < prev.Score() {
			t.Fatalf("severity not monotone: %s after %s at %v", got, prev, v)
		}
		prev = got
	}
}

func TestDetectDriftDegradation(t *testing.T) {
	d := newTestDetector(t)
	// A long healthy stretch followed by consistently wrong-direction,
	// high-error predictions.
	feed(d, "ensemble", 70, 0.5, 0.5)
	feed(d, "ensemble", 30, 2.0, -3.0)

	res := d.DetectDrift("ensemble")
	if !res.Detected {
		t.Fatalf("expected drift detection, got %+v", res)
	}
	if res.Severity != models.SeverityCritical {
		t.Fatalf("severity %s, want CRITICAL", res.Severity)
	}
	if res.Recommendation != models.RecommendEmergencyRetrain {
		t.Fatalf("recommendation %s, want EMERGENCY_RETRAIN", res.Recommendation)
	}
	if res.Accuracy != 0 {
		t.Fatalf("current accuracy %v, want 0", res.Accuracy)
	}
	if res.AccuracyDrop <= 20 {
		t.Fatalf("accuracy drop %v, want > 20 pts", res.AccuracyDrop)
	}
}

func TestClassifyTypeSuddenBreak(t *testing.T) {
	window := make([]models.PredictionRecord, 0, 20)
	for i := 0; i < 10; i++ {
		window = append(window, models.PredictionRecord{Predicted: 1, Actual: 1})
	}
	for i := 0; i < 10; i++ {
		window = append(window, models.PredictionRecord{Predicted: 1, Actual: -1})
	}
	if got := classifyType(window); got != models.DriftSudden {
		t.Fatalf("type %s, want SUDDEN", got)
	}
}

func TestRecommendMatrix(t *testing.T) {
	cases := []struct {
		sev  models.DriftSeverity
		typ  models.DriftType
		want models.Recommendation
	}{
		{models.SeverityCritical, models.DriftNone, models.RecommendEmergencyRetrain},
		{models.SeverityHigh, models.DriftSudden, models.RecommendEmergencyRetrain},
		{models.SeverityHigh, models.DriftGradual, models.RecommendRetrain},
		{models.SeverityMedium, models.DriftGradual, models.RecommendRetrain},
		{models.SeverityMedium, models.DriftIncremental, models.RecommendMonitor},
		{models.SeverityLow, models.DriftNone, models.RecommendMonitor},
		{models.SeverityNone, models.DriftNone, models.RecommendContinue},
	}
	for _, tc := range cases {
		if got := recommend(tc.sev, tc.typ); got != tc.want {
			t.Fatalf("recommend(%s, %s) = %s, want %s", tc.sev, tc.typ, got, tc.want)
		}
	}
}

func TestDetectAllReturnsWorst(t *testing.T) {
	d := newTestDetector(t)
	feed(d, "technical", 100, 0.5, 0.5) // healthy
	feed(d, "ensemble", 70, 0.5, 0.5)
	feed(d, "ensemble", 30, 2.0, -3.0) // degraded

	worst := d.DetectAll()
	if worst.ID != "ensemble" {
		t.Fatalf("worst id %q, want ensemble", worst.ID)
	}
	if worst.Severity != models.SeverityCritical {
		t.Fatalf("worst severity %s, want CRITICAL", worst.Severity)
	}
}

func TestDetectEachCoversAllIdentifiers(t *testing.T) {
	d := newTestDetector(t)
	feed(d, "ensemble", 10, 0.5, 0.5)
	feed(d, "boosting", 10, 0.5, 0.5)

	results := d.DetectEach()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, id := range []string{"ensemble", "boosting"} {
		if _, ok := results[id]; !ok {
			t.Fatalf("missing result for %s", id)
		}
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	a := newTestDetector(t)
	feed(a, "ensemble", 70, 0.5, 0.5)
	feed(a, "ensemble", 30, 2.0, -3.0)

	b := newTestDetector(t)
	b.Import(a.Export())

	if got, want := b.SampleCount("ensemble"), a.SampleCount("ensemble"); got != want {
		t.Fatalf("sample count %d after import, want %d", got, want)
	}
	ra, rb := a.DetectDrift("ensemble"), b.DetectDrift("ensemble")
	if rb.Severity != ra.Severity || rb.Recommendation != ra.Recommendation {
		t.Fatalf("import changed evaluation: %s/%s vs %s/%s",
			rb.Severity, rb.Recommendation, ra.Severity, ra.Recommendation)
	}
	if rb.Accuracy != ra.Accuracy || rb.AccuracyDrop != ra.AccuracyDrop {
		t.Fatalf("import changed metrics: %+v vs %+v", rb, ra)
	}
}

func TestRingCapacityBoundsHistory(t *testing.T) {
	d, err := NewDetector(Config{Capacity: 50})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	feed(d, "ensemble", 500, 0.5, 0.5)
	if got := d.SampleCount("ensemble"); got != 50 {
		t.Fatalf("sample count %d, want capacity 50", got)
	}
}

func TestReset(t *testing.T) {
	d := newTestDetector(t)
	feed(d, "ensemble", 10, 0.5, 0.5)
	d.Reset()
	if got := d.SampleCount("ensemble"); got != 0 {
		t.Fatalf("sample count %d after reset, want 0", got)
	}
	if ids := d.Identifiers(); len(ids) != 0 {
		t.Fatalf("identifiers %v after reset, want none", ids)
	}
}
