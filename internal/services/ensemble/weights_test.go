package ensemble

import (
	"math"
	"testing"

	"FinCast/internal/domain/models"
)

func assertFeasible(t *testing.T, w map[string]float64) {
	t.Helper()
	var sum float64
	for id, v := range w {
		if v < WeightFloor-1e-9 || v > WeightCeil+1e-9 {
			t.Fatalf("weight %s = %v outside [%v, %v]", id, v, WeightFloor, WeightCeil)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Fatalf("weights sum to %v, want 1", sum)
	}
}

func TestBaseWeights(t *testing.T) {
	w := BaseWeights()
	want := map[string]float64{
		models.ExpertStatistical: 0.25,
		models.ExpertBoosting:    0.35,
		models.ExpertSequence:    0.25,
		models.ExpertTechnical:   0.15,
	}
	for id, v := range want {
		if w[id] != v {
			t.Fatalf("base weight %s = %v, want %v", id, w[id], v)
		}
	}
	assertFeasible(t, w)
}

func TestClampNormalizeExtremeInputs(t *testing.T) {
	w := map[string]float64{
		models.ExpertStatistical: 100,
		models.ExpertBoosting:    1e-6,
		models.ExpertSequence:    -5,
		models.ExpertTechnical:   math.NaN(),
	}
	clampNormalize(w)
	assertFeasible(t, w)
}

func TestClampNormalizePerRegime(t *testing.T) {
	regimes := []models.MarketRegime{
		models.RegimeTrending, models.RegimeRanging,
		models.RegimeVolatile, models.RegimeQuiet,
	}
	for _, regime := range regimes {
		w := BaseWeights()
		applyRegime(w, regime)
		clampNormalize(w)
		assertFeasible(t, w)
	}
}

func TestClampNormalizeSingleEntryFallsBackToEvenSplit(t *testing.T) {
	w := map[string]float64{"only": 0.3}
	clampNormalize(w)
	if w["only"] != 1 {
		t.Fatalf("single entry = %v, want 1", w["only"])
	}
}

func TestApplyRegimeQuietIsIdentity(t *testing.T) {
	w := BaseWeights()
	applyRegime(w, models.RegimeQuiet)
	for id, v := range BaseWeights() {
		if w[id] != v {
			t.Fatalf("quiet regime changed weight %s: %v", id, w[id])
		}
	}
}
