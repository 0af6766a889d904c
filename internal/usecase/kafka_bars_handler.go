package usecase

import (
	"context"
	"encoding/json"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	pkgkafka "FinCast/pkg/kafka"
)

// KafkaBarsHandler consumes completed OHLCV bars from Kafka and feeds them
// into the forecaster's live history and ground-truth loop.
type KafkaBarsHandler struct {
	topic      string
	forecaster *Forecaster
	metrics    domrepo.Metrics
}

func NewKafkaBarsHandler(topic string, forecaster *Forecaster, metrics domrepo.Metrics) *KafkaBarsHandler {
	return &KafkaBarsHandler{topic: topic, forecaster: forecaster, metrics: metrics}
}

func (h *KafkaBarsHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, bucket, o, h, l, c, v}
func (h *KafkaBarsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		Bucket int64   `json:"bucket"`
		O      float64 `json:"o"`
		H      float64 `json:"h"`
		L      float64 `json:"l"`
		C      float64 `json:"c"`
		V      float64 `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.Bucket > 1e11 { // ms
		m.Bucket = m.Bucket / 1000
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(m.Bucket, 0)).Seconds())

	h.forecaster.OnBar(ctx, models.Candle{
		Bucket: time.Unix(m.Bucket, 0).UTC(),
		Symbol: m.Symbol,
		Open:   m.O,
		High:   m.H,
		Low:    m.L,
		Close:  m.C,
		Volume: m.V,
	})
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaBarsHandler)(nil)
