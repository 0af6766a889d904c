package usecase

import (
	"context"
	"time"

	domrepo "FinCast/internal/domain/repository"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/queue"
)

const retrainMsgType = "retrain"

// RetrainRequest is the payload enqueued when drift warrants retraining.
type RetrainRequest struct {
	Urgency   string   `json:"urgency"`
	Reason    string   `json:"reason"`
	Affected  []string `json:"affected"`
	Requested int64    `json:"requested"` // unix seconds
}

// RetrainingScheduler periodically evaluates drift and enqueues retraining
// jobs for an external training worker. Evaluations are cheap; the interval
// mainly bounds queue churn.
type RetrainingScheduler struct {
	forecaster *Forecaster
	q          queue.QueueService
	metrics    domrepo.Metrics
	interval   time.Duration
	l          *applogger.Logger
	stopCh     chan struct{}
}

func NewRetrainingScheduler(forecaster *Forecaster, q queue.QueueService, metrics domrepo.Metrics, interval time.Duration) *RetrainingScheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &RetrainingScheduler{
		forecaster: forecaster,
		q:          q,
		metrics:    metrics,
		interval:   interval,
		stopCh:     make(chan struct{}),
	}
}

// SetLogger injects a structured logger.
func (s *RetrainingScheduler) SetLogger(l *applogger.Logger) { s.l = l }

// Start runs the evaluation loop until Stop or context cancellation.
func (s *RetrainingScheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.evaluate(ctx)
			}
		}
	}()
}

func (s *RetrainingScheduler) Stop() { close(s.stopCh) }

func (s *RetrainingScheduler) evaluate(ctx context.Context) {
	rec := s.forecaster.EvaluateRetraining()
	if !rec.ShouldRetrain {
		return
	}
	if s.l != nil {
		s.l.Warn("retraining warranted",
			applogger.String("urgency", rec.Urgency),
			applogger.String("reason", rec.Reason),
			applogger.Strings("affected", rec.Affected),
		)
	}
	req := RetrainRequest{
		Urgency:   rec.Urgency,
		Reason:    rec.Reason,
		Affected:  rec.Affected,
		Requested: time.Now().Unix(),
	}
	if err := s.q.PublishMessage(ctx, retrainMsgType, req); err != nil {
		s.metrics.RecordError("retrain_enqueue")
		if s.l != nil {
			s.l.Error("retrain enqueue failed", applogger.Error(err))
		}
		return
	}
	s.metrics.RecordDrift("scheduler", rec.Urgency)
}

// SnapshotJob handles retrain messages on the worker side of the queue by
// persisting a state snapshot per affected identifier, giving the external
// trainer a consistent view of recent history.
type SnapshotJob struct {
	forecaster *Forecaster
	symbols    []string
	l          *applogger.Logger
}

func NewSnapshotJob(forecaster *Forecaster, symbols []string, l *applogger.Logger) *SnapshotJob {
	return &SnapshotJob{forecaster: forecaster, symbols: symbols, l: l}
}

func (j *SnapshotJob) Name() string { return "retrain-snapshot" }
func (j *SnapshotJob) Type() string { return retrainMsgType }

func (j *SnapshotJob) Handle(ctx context.Context, payload interface{}) error {
	req, err := queue.ParsePayload[RetrainRequest](payload)
	if err != nil {
		return err
	}
	if j.l != nil {
		j.l.Info("snapshotting state for retraining",
			applogger.String("urgency", req.Urgency),
			applogger.Strings("affected", req.Affected),
		)
	}
	for _, sym := range j.symbols {
		if err := j.forecaster.SaveSnapshot(ctx, sym); err != nil {
			return err
		}
	}
	return nil
}

var _ queue.Job = (*SnapshotJob)(nil)
