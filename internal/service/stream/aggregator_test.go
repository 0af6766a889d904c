package stream

import (
	"testing"
	"time"

	"FinCast/internal/domain/models"
)

func tick(symbol string, ts time.Time, price, volume float64) *models.Tick {
	return &models.Tick{Symbol: symbol, Timestamp: ts.Unix(), Price: price, Volume: volume}
}

func TestAggregatorFoldsTicksIntoBar(t *testing.T) {
	var bars []models.Candle
	agg := NewBarAggregator(time.Minute, func(c models.Candle) { bars = append(bars, c) })

	base := time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)
	agg.Add(tick("BINANCE:BTCUSDT", base.Add(1*time.Second), 100, 1))
	agg.Add(tick("BINANCE:BTCUSDT", base.Add(20*time.Second), 105, 2))
	agg.Add(tick("BINANCE:BTCUSDT", base.Add(40*time.Second), 98, 1))
	agg.Add(tick("BINANCE:BTCUSDT", base.Add(59*time.Second), 101, 1))

	if len(bars) != 0 {
		t.Fatalf("bar emitted before interval rolled over")
	}
	// First tick of the next minute closes the previous bar.
	agg.Add(tick("BINANCE:BTCUSDT", base.Add(61*time.Second), 102, 1))

	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	bar := bars[0]
	if !bar.Bucket.Equal(base) {
		t.Fatalf("bucket %v, want %v", bar.Bucket, base)
	}
	if bar.Open != 100 || bar.High != 105 || bar.Low != 98 || bar.Close != 101 {
		t.Fatalf("unexpected OHLC %+v", bar)
	}
	if bar.Volume != 5 {
		t.Fatalf("volume %v, want 5", bar.Volume)
	}
	if err := bar.Validate(); err != nil {
		t.Fatalf("emitted bar invalid: %v", err)
	}
}

func TestAggregatorTracksSymbolsIndependently(t *testing.T) {
	var bars []models.Candle
	agg := NewBarAggregator(time.Minute, func(c models.Candle) { bars = append(bars, c) })

	base := time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)
	agg.Add(tick("BINANCE:BTCUSDT", base, 100, 1))
	agg.Add(tick("BINANCE:ETHUSDT", base, 10, 1))
	agg.Add(tick("BINANCE:BTCUSDT", base.Add(time.Minute), 101, 1))

	if len(bars) != 1 {
		t.Fatalf("expected only the BTC bar, got %d", len(bars))
	}
	if bars[0].Symbol != "BINANCE:BTCUSDT" {
		t.Fatalf("emitted %s, want BINANCE:BTCUSDT", bars[0].Symbol)
	}
}

func TestAggregatorIgnoresBadTicks(t *testing.T) {
	emitted := 0
	agg := NewBarAggregator(time.Minute, func(models.Candle) { emitted++ })

	agg.Add(nil)
	agg.Add(&models.Tick{Symbol: "", Timestamp: time.Now().Unix(), Price: 100})
	agg.Add(&models.Tick{Symbol: "BINANCE:BTCUSDT", Timestamp: time.Now().Unix(), Price: -1})
	agg.Flush()

	if emitted != 0 {
		t.Fatalf("bad ticks produced %d bars", emitted)
	}
}

func TestAggregatorFlush(t *testing.T) {
	var bars []models.Candle
	agg := NewBarAggregator(time.Minute, func(c models.Candle) { bars = append(bars, c) })

	base := time.Date(2024, 10, 10, 10, 0, 30, 0, time.UTC)
	agg.Add(tick("BINANCE:BTCUSDT", base, 100, 1))
	agg.Flush()

	if len(bars) != 1 {
		t.Fatalf("expected in-progress bar on flush, got %d", len(bars))
	}
	// Flush clears state; a second flush emits nothing.
	agg.Flush()
	if len(bars) != 1 {
		t.Fatalf("second flush re-emitted bars: %d", len(bars))
	}
}
