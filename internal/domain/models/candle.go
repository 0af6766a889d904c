package models

import (
	"fmt"
	"time"
)

// Candle represents an OHLCV bar, the base time-series unit.
type Candle struct {
	Bucket time.Time `json:"bucket"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Validate checks the input contract for a single bar: positive prices,
// non-negative volume, high/low enclosing the body.
func (c *Candle) Validate() error {
	if c.Bucket.IsZero() {
		return fmt.Errorf("candle %s: zero bucket time", c.Symbol)
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("candle %s @ %s: non-positive price", c.Symbol, c.Bucket.Format(time.RFC3339))
	}
	if c.Volume < 0 {
		return fmt.Errorf("candle %s @ %s: negative volume", c.Symbol, c.Bucket.Format(time.RFC3339))
	}
	if c.High < c.Open || c.High < c.Close {
		return fmt.Errorf("candle %s @ %s: high below body", c.Symbol, c.Bucket.Format(time.RFC3339))
	}
	if c.Low > c.Open || c.Low > c.Close {
		return fmt.Errorf("candle %s @ %s: low above body", c.Symbol, c.Bucket.Format(time.RFC3339))
	}
	return nil
}

// ValidateSeries checks that candles are well-formed and strictly increasing in time.
func ValidateSeries(candles []Candle) error {
	for i := range candles {
		if err := candles[i].Validate(); err != nil {
			return err
		}
		if i > 0 && !candles[i].Bucket.After(candles[i-1].Bucket) {
			return fmt.Errorf("candle series: non-increasing bucket at index %d", i)
		}
	}
	return nil
}
