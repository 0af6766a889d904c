package repository

import (
	"context"

	"FinCast/internal/domain/models"
)

// TickStream is a live market-data feed producing raw ticks that the ingest
// layer aggregates into candles.
type TickStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher delivers ensemble predictions to downstream consumers.
type Publisher interface {
	PublishPrediction(ctx context.Context, p *models.EnsemblePrediction) error
	Close() error
}

// SnapshotStore persists monitoring-session snapshots so history survives
// process restarts. The core keeps no durable state of its own.
type SnapshotStore interface {
	Save(ctx context.Context, symbol string, snap *models.Snapshot) error
	Load(ctx context.Context, symbol string) (*models.Snapshot, error)
	Close() error
}

// Metrics is the domain-facing metrics recorder.
type Metrics interface {
	RecordPrediction(symbol, regime string)
	RecordConfidence(symbol string, confidence float64)
	RecordDrift(id, severity string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
