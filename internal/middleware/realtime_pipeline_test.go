package middleware

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"FinCast/internal/domain/models"
)

type nopMetrics struct{}

func (nopMetrics) RecordPrediction(string, string)  {}
func (nopMetrics) RecordConfidence(string, float64) {}
func (nopMetrics) RecordDrift(string, string)       {}
func (nopMetrics) RecordError(string)               {}
func (nopMetrics) RecordLatency(string, float64)    {}

type recordingSink struct {
	mu    sync.Mutex
	ticks []*models.Tick
	err   error
}

func (s *recordingSink) Process(_ context.Context, t *models.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.ticks = append(s.ticks, t)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks)
}

func (s *recordingSink) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func validPipelineTick() *models.Tick {
	return &models.Tick{
		Symbol:    "BINANCE:BTCUSDT",
		Timestamp: time.Now().Unix(),
		Price:     100,
		Volume:    1,
	}
}

func TestProcessForwardsValidTick(t *testing.T) {
	sink := &recordingSink{}
	p := NewRealtimePipeline(sink, nopMetrics{})

	if err := p.Process(context.Background(), validPipelineTick()); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(sink.ticks) != 1 {
		t.Fatalf("sink got %d ticks, want 1", len(sink.ticks))
	}
}

func TestProcessRejectsMalformedTicks(t *testing.T) {
	sink := &recordingSink{}
	p := NewRealtimePipeline(sink, nopMetrics{})
	ctx := context.Background()

	bad := []*models.Tick{
		nil,
		{Symbol: "", Timestamp: time.Now().Unix(), Price: 100},
		{Symbol: "BINANCE:BTCUSDT", Timestamp: 0, Price: 100},
		{Symbol: "BINANCE:BTCUSDT", Timestamp: time.Now().Unix(), Price: 0},
		{Symbol: "BINANCE:BTCUSDT", Timestamp: time.Now().Unix(), Price: 100, Volume: -1},
	}
	for i, tick := range bad {
		if err := p.Process(ctx, tick); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
	if len(sink.ticks) != 0 {
		t.Fatalf("malformed ticks reached the sink: %d", len(sink.ticks))
	}
}

func TestProcessThrottlesPerSymbol(t *testing.T) {
	sink := &recordingSink{}
	p := NewRealtimePipeline(sink, nopMetrics{}, WithMaxRPS(5))
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		if err := p.Process(ctx, validPipelineTick()); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	// Burst capacity equals maxRPS; the rest is dropped without error.
	if len(sink.ticks) > 10 {
		t.Fatalf("throttle let %d of 50 ticks through", len(sink.ticks))
	}
	if len(sink.ticks) == 0 {
		t.Fatalf("throttle blocked everything")
	}
}

func TestProcessBuffersOnDownstreamFailure(t *testing.T) {
	sink := &recordingSink{err: fmt.Errorf("downstream closed")}
	p := NewRealtimePipeline(sink, nopMetrics{}, WithBufferSize(4))
	ctx := context.Background()

	if err := p.Process(ctx, validPipelineTick()); err == nil {
		t.Fatalf("expected downstream error")
	}

	// Recover downstream, then start the flusher: the buffered tick drains.
	sink.setErr(nil)
	p.Start(ctx)
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sink.count() == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("buffered tick never flushed, sink has %d", sink.count())
}
