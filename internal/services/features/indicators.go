package features

import (
	"math"

	"FinCast/internal/domain/models"
)

// Indicator helpers operate on the candles up to and including index i and
// degrade to a safe default when the sub-window does not fit, so one thin
// spot in the history never fails a whole extraction.

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(candles)-1, or nil if insufficient data.
func ComputeLogReturns(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		cur := candles[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized realized volatility over the most
// recent window of log returns using the provided bars-per-year scale.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// BarsPerYearForTF returns the approximate number of bars per year for a timeframe.
func BarsPerYearForTF(tf string) float64 {
	switch tf {
	case "1s":
		return 365 * 24 * 60 * 60
	case "1m":
		return 365 * 24 * 60
	case "5m":
		return 365 * 24 * 12
	case "1h":
		return 365 * 24
	case "1d":
		return 365
	default:
		return 365 * 24 * 60
	}
}

// momentum returns the percentage close-to-close change over period bars
// ending at index i. Defaults to 0 when the window does not fit.
func momentum(candles []models.Candle, i, period int) float64 {
	j := i - period
	if j < 0 {
		return 0
	}
	base := candles[j].Close
	if base <= 0 {
		return 0
	}
	return (candles[i].Close - base) / base * 100
}

// rsi computes the Wilder RSI over period bars ending at index i.
// Defaults to the neutral 50 when the window does not fit or prices are flat.
func rsi(candles []models.Candle, i, period int) float64 {
	if i-period < 0 {
		return 50
	}
	var gains, losses float64
	for j := i - period + 1; j <= i; j++ {
		d := candles[j].Close - candles[j-1].Close
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	if gains+losses == 0 {
		return 50
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ema computes an exponential moving average of closes over period bars
// ending at index i, seeded with the first close of the window.
func ema(candles []models.Candle, i, period int) float64 {
	start := i - period + 1
	if start < 0 {
		start = 0
	}
	if start > i {
		return candles[i].Close
	}
	k := 2.0 / (float64(period) + 1)
	v := candles[start].Close
	for j := start + 1; j <= i; j++ {
		v = candles[j].Close*k + v*(1-k)
	}
	return v
}

// macdDelta returns MACD line minus signal-line approximation, expressed as
// a percentage of price so symbols of different magnitude are comparable.
func macdDelta(candles []models.Candle, i int) float64 {
	if i < 26 {
		return 0
	}
	price := candles[i].Close
	if price <= 0 {
		return 0
	}
	macdNow := ema(candles, i, 12) - ema(candles, i, 26)
	// Signal approximated by the MACD value 9 bars back; cheap but stable.
	macdPrev := ema(candles, i-9, 12) - ema(candles, i-9, 26)
	return (macdNow - macdPrev) / price * 100
}

// bollingerPos locates the close inside the 20-bar Bollinger band: 0 at the
// lower band, 1 at the upper. Defaults to the midpoint 0.5.
func bollingerPos(candles []models.Candle, i, period int) float64 {
	if i-period+1 < 0 {
		return 0.5
	}
	var sum, sum2 float64
	for j := i - period + 1; j <= i; j++ {
		c := candles[j].Close
		sum += c
		sum2 += c * c
	}
	n := float64(period)
	mean := sum / n
	variance := sum2/n - mean*mean
	if variance <= 0 {
		return 0.5
	}
	sd := math.Sqrt(variance)
	lower := mean - 2*sd
	upper := mean + 2*sd
	if upper == lower {
		return 0.5
	}
	pos := (candles[i].Close - lower) / (upper - lower)
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return pos
}

// atrPct computes the average true range over period bars ending at index i
// as a percentage of the latest close. Defaults to 0.
func atrPct(candles []models.Candle, i, period int) float64 {
	if i-period < 0 {
		return 0
	}
	var sum float64
	for j := i - period + 1; j <= i; j++ {
		hl := candles[j].High - candles[j].Low
		hc := math.Abs(candles[j].High - candles[j-1].Close)
		lc := math.Abs(candles[j].Low - candles[j-1].Close)
		sum += math.Max(hl, math.Max(hc, lc))
	}
	price := candles[i].Close
	if price <= 0 {
		return 0
	}
	return sum / float64(period) / price * 100
}

// volumeRatio compares the bar volume to its trailing period average.
// Defaults to the neutral 1.
func volumeRatio(candles []models.Candle, i, period int) float64 {
	if i-period < 0 {
		return 1
	}
	var sum float64
	for j := i - period; j < i; j++ {
		sum += candles[j].Volume
	}
	avg := sum / float64(period)
	if avg <= 0 {
		return 1
	}
	return candles[i].Volume / avg
}

// trendStrength measures directional persistence over period bars ending at
// index i: the net move divided by the summed absolute moves, in [0, 1].
func trendStrength(candles []models.Candle, i, period int) float64 {
	if i-period < 0 {
		return 0
	}
	var net, gross float64
	for j := i - period + 1; j <= i; j++ {
		d := candles[j].Close - candles[j-1].Close
		net += d
		gross += math.Abs(d)
	}
	if gross == 0 {
		return 0
	}
	return math.Abs(net) / gross
}

// cyclicality measures how often the bar-to-bar direction flips over period
// bars ending at index i, in [0, 1]. High values suggest a ranging market.
func cyclicality(candles []models.Candle, i, period int) float64 {
	if i-period < 0 || period < 2 {
		return 0
	}
	flips := 0
	moves := 0
	prevSign := 0
	for j := i - period + 1; j <= i; j++ {
		d := candles[j].Close - candles[j-1].Close
		sign := 0
		if d > 0 {
			sign = 1
		} else if d < 0 {
			sign = -1
		}
		if sign == 0 {
			continue
		}
		if prevSign != 0 && sign != prevSign {
			flips++
		}
		if prevSign != 0 {
			moves++
		}
		prevSign = sign
	}
	if moves == 0 {
		return 0
	}
	return float64(flips) / float64(moves)
}
