package usecase

import (
	"context"
	"fmt"
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

func TestKafkaBarsHandlerTopic(t *testing.T) {
	rig := newTestRig(t)
	h := NewKafkaBarsHandler("fincast.bars.1m", rig.forecaster, nopMetrics{})
	if h.Topic() != "fincast.bars.1m" {
		t.Fatalf("topic %q", h.Topic())
	}
}

func TestKafkaBarsHandlerFeedsGroundTruthLoop(t *testing.T) {
	rig := newTestRig(t)
	h := NewKafkaBarsHandler("fincast.bars.1m", rig.forecaster, nopMetrics{})
	ctx := context.Background()

	bucket := time.Date(2024, 10, 11, 0, 0, 0, 0, time.UTC).Unix()
	bar := func(ts int64, px float64) []byte {
		return []byte(fmt.Sprintf(`{"symbol":"BINANCE:BTCUSDT","bucket":%d,"o":%v,"h":%v,"l":%v,"c":%v,"v":10}`,
			ts, px, px, px, px))
	}

	if err := h.Handle(ctx, bar(bucket, 100)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if _, err := rig.forecaster.Predict(ctx, "BINANCE:BTCUSDT", flatCandles(250, 100), nil, nil); err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if err := h.Handle(ctx, bar(bucket+60, 101)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if got := rig.detector.SampleCount(models.EnsembleID); got != 1 {
		t.Fatalf("ensemble sample count %d, want 1", got)
	}
}

func TestKafkaBarsHandlerMillisecondBuckets(t *testing.T) {
	rig := newTestRig(t)
	h := NewKafkaBarsHandler("fincast.bars.1m", rig.forecaster, nopMetrics{})

	// Millisecond bucket timestamps are scaled down to seconds.
	ms := time.Date(2024, 10, 11, 0, 0, 0, 0, time.UTC).UnixMilli()
	msg := []byte(fmt.Sprintf(`{"symbol":"BINANCE:BTCUSDT","bucket":%d,"o":100,"h":100,"l":100,"c":100,"v":1}`, ms))
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
}

func TestKafkaBarsHandlerRejectsMalformedJSON(t *testing.T) {
	rig := newTestRig(t)
	h := NewKafkaBarsHandler("fincast.bars.1m", rig.forecaster, nopMetrics{})
	if err := h.Handle(context.Background(), []byte("{not json")); err == nil {
		t.Fatalf("expected unmarshal error")
	}
}
