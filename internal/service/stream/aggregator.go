package stream

import (
	"sync"
	"time"

	"FinCast/internal/domain/models"
)

// BarAggregator folds a live tick stream into fixed-interval OHLCV bars.
// A bar is emitted once the first tick of the next interval arrives, so bars
// always cover a closed interval. Flush emits whatever is in progress, used
// on shutdown.
type BarAggregator struct {
	mu       sync.Mutex
	interval time.Duration
	open     map[string]*models.Candle
	emit     func(models.Candle)
}

// NewBarAggregator creates an aggregator emitting completed bars through the
// emit callback. Interval defaults to one minute.
func NewBarAggregator(interval time.Duration, emit func(models.Candle)) *BarAggregator {
	if interval <= 0 {
		interval = time.Minute
	}
	return &BarAggregator{
		interval: interval,
		open:     make(map[string]*models.Candle),
		emit:     emit,
	}
}

// Add folds one tick into its symbol's in-progress bar.
func (a *BarAggregator) Add(t *models.Tick) {
	if t == nil || t.Symbol == "" || t.Price <= 0 {
		return
	}
	bucket := time.Unix(t.Timestamp, 0).UTC().Truncate(a.interval)

	a.mu.Lock()
	cur, ok := a.open[t.Symbol]
	if ok && bucket.After(cur.Bucket) {
		done := *cur
		delete(a.open, t.Symbol)
		a.mu.Unlock()
		a.emit(done)
		a.mu.Lock()
		ok = false
	}
	if !ok {
		a.open[t.Symbol] = &models.Candle{
			Bucket: bucket,
			Symbol: t.Symbol,
			Open:   t.Price,
			High:   t.Price,
			Low:    t.Price,
			Close:  t.Price,
			Volume: t.Volume,
		}
		a.mu.Unlock()
		return
	}
	if t.Price > cur.High {
		cur.High = t.Price
	}
	if t.Price < cur.Low {
		cur.Low = t.Price
	}
	cur.Close = t.Price
	cur.Volume += t.Volume
	a.mu.Unlock()
}

// Flush emits all in-progress bars and clears state.
func (a *BarAggregator) Flush() {
	a.mu.Lock()
	pending := make([]models.Candle, 0, len(a.open))
	for _, c := range a.open {
		pending = append(pending, *c)
	}
	a.open = make(map[string]*models.Candle)
	a.mu.Unlock()

	for _, c := range pending {
		a.emit(c)
	}
}
