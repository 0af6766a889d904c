package usecase

import (
	"context"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	mid "FinCast/internal/middleware"
	"FinCast/internal/service/stream"
)

// TickCollector drives the live path: WebSocket ticks through the validating
// pipeline into the bar aggregator, and each completed bar into the
// forecaster's history and ground-truth loop.
type TickCollector struct {
	stream     domrepo.TickStream
	forecaster *Forecaster
	metrics    domrepo.Metrics
	pipe       *mid.RealtimePipeline
	agg        *stream.BarAggregator
}

// barSink adapts the aggregator to the pipeline's downstream interface.
type barSink struct {
	agg *stream.BarAggregator
}

func (s *barSink) Process(ctx context.Context, t *models.Tick) error {
	s.agg.Add(t)
	return nil
}

// NewTickCollector creates a collector aggregating ticks into bars of the
// given interval.
func NewTickCollector(ts domrepo.TickStream, forecaster *Forecaster, metrics domrepo.Metrics, barInterval time.Duration, opts ...mid.PipelineOption) *TickCollector {
	c := &TickCollector{
		stream:     ts,
		forecaster: forecaster,
		metrics:    metrics,
	}
	c.agg = stream.NewBarAggregator(barInterval, func(bar models.Candle) {
		c.forecaster.OnBar(context.Background(), bar)
	})
	c.pipe = mid.NewRealtimePipeline(&barSink{agg: c.agg}, metrics, opts...)
	return c
}

// IsConnected returns true if the market stream is connected.
func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.pipe.Start(ctx)
	tickCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, tickCh, errCh)
	return nil
}

func (c *TickCollector) consume(ctx context.Context, tickCh <-chan *models.Tick, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case t := <-tickCh:
			if t == nil {
				continue
			}
			_ = c.pipe.Process(ctx, t)
		}
	}
}

// Shutdown stops the pipeline, flushes in-progress bars and closes the stream.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	c.pipe.Stop()
	c.agg.Flush()
	return c.stream.Close()
}
