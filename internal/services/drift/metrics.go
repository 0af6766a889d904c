package drift

import (
	"math"

	"FinCast/internal/domain/models"
)

// computeMetrics summarizes a sample window. Directional accuracy and win
// rate are percentages; the Sharpe-like ratio is mean over std of the signed
// per-record outcome, 0 when the window is flat.
func computeMetrics(records []models.PredictionRecord) models.ModelMetrics {
	m := models.ModelMetrics{Count: len(records)}
	if len(records) == 0 {
		return m
	}

	var hits int
	var errSum, confSum float64
	pnl := make([]float64, 0, len(records))
	for _, r := range records {
		if (r.Predicted >= 0) == (r.Actual >= 0) {
			hits++
		}
		errSum += math.Abs(r.Predicted - r.Actual)
		confSum += r.Confidence
		// Outcome of following the predicted direction.
		if r.Predicted >= 0 {
			pnl = append(pnl, r.Actual)
		} else {
			pnl = append(pnl, -r.Actual)
		}
	}
	n := float64(len(records))
	m.Accuracy = float64(hits) / n * 100
	m.AvgError = errSum / n
	m.AvgConfidence = confSum / n

	var wins int
	var mean float64
	for _, v := range pnl {
		mean += v
		if v > 0 {
			wins++
		}
	}
	mean /= n
	m.WinRate = float64(wins) / n * 100

	var variance float64
	for _, v := range pnl {
		d := v - mean
		variance += d * d
	}
	sd := math.Sqrt(variance / n)
	if sd > 0 {
		m.Sharpe = mean / sd
	}

	// Max drawdown over the cumulative outcome path.
	var cum, peak, maxDD float64
	for _, v := range pnl {
		cum += v
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > maxDD {
			maxDD = dd
		}
	}
	m.MaxDrawdown = maxDD
	return m
}

// directionalAccuracy is the hit-rate percentage over a window, 0 when empty.
func directionalAccuracy(records []models.PredictionRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	hits := 0
	for _, r := range records {
		if (r.Predicted >= 0) == (r.Actual >= 0) {
			hits++
		}
	}
	return float64(hits) / float64(len(records)) * 100
}
