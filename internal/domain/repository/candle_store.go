package repository

import (
	"context"
	"time"

	"FinCast/internal/domain/models"
)

// CandleStore provides read-only access to OHLCV history. It is the
// market-data collaborator; the forecasting core never touches storage
// directly.
type CandleStore interface {
	GetCandles(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Candle, error)
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
}
