package repository

import (
	"context"

	"FinCast/internal/domain/models"
	"FinCast/internal/domain/repository"
	pkgkafka "FinCast/pkg/kafka"
)

// KafkaPredictionPublisher implements Publisher for Kafka. Messages are
// keyed by symbol so per-symbol ordering is preserved across partitions.
type KafkaPredictionPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPredictionPublisher creates a Kafka-backed prediction publisher.
func NewKafkaPredictionPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaPredictionPublisher{producer: producer, topic: topic}
}

func (p *KafkaPredictionPublisher) PublishPrediction(ctx context.Context, pred *models.EnsemblePrediction) error {
	return p.producer.Publish(ctx, p.topic, []byte(pred.Symbol), map[string]interface{}{
		"symbol":      pred.Symbol,
		"predicted":   pred.Predicted,
		"confidence":  pred.Confidence,
		"uncertainty": pred.Uncertainty,
		"regime":      string(pred.Regime),
		"direction":   pred.Direction(),
		"ts":          pred.Timestamp.Unix(),
	})
}

func (p *KafkaPredictionPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
