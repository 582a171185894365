package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	redisClient "github.com/questmap/treasure-hunt/pkg/redis"
	"github.com/questmap/treasure-hunt/pkg/logger"
	"go.uber.org/zap"
)

// Outcome is the final state of a validated submission.
type Outcome string

const (
	OutcomeApproved     Outcome = "approved"
	OutcomeRejected     Outcome = "rejected"
	OutcomeManualReview Outcome = "manual_review"
)

// retentionWindow is the fixed retention of the rolling counters.
const retentionWindow = 24 * time.Hour

const keyPrefix = "validation:metrics:"

var (
	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "submission_validations_total",
		Help: "Total number of validated submissions by outcome",
	}, []string{"outcome"})

	fraudDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "submission_fraud_detected_total",
		Help: "Total number of submissions rejected by the fraud checks",
	})

	validationConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "submission_validation_confidence",
		Help:    "Confidence of validation decisions",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})
)

// WindowStats summarizes the trailing 24h window of validation outcomes.
type WindowStats struct {
	Total            int64
	Approved         int64
	Rejected         int64
	ManualReview     int64
	FraudDetected    int64
	AvgConfidence    float64
	ManualReviewRate float64
	FraudRate        float64
}

// Recorder receives validation outcomes for observability. It is a side
// effect of the pipeline, never part of the decision logic.
type Recorder interface {
	RecordValidation(ctx context.Context, outcome Outcome, confidence float64, fraudDetected bool)
	WindowStats(ctx context.Context) (*WindowStats, error)
}

// RedisRecorder keeps prometheus counters plus a redis-backed rolling 24h
// window used by the threshold tuner and admin dashboards.
type RedisRecorder struct {
	redis *redisClient.Client
}

var _ Recorder = (*RedisRecorder)(nil)

// NewRedisRecorder creates a recorder backed by the given redis client.
func NewRedisRecorder(redis *redisClient.Client) *RedisRecorder {
	return &RedisRecorder{redis: redis}
}

// RecordValidation records one validation outcome. Errors are logged and
// swallowed: metrics must never fail a validation call.
func (r *RedisRecorder) RecordValidation(ctx context.Context, outcome Outcome, confidence float64, fraudDetected bool) {
	validationsTotal.WithLabelValues(string(outcome)).Inc()
	validationConfidence.Observe(confidence)
	if fraudDetected {
		fraudDetectedTotal.Inc()
	}

	for _, key := range []string{keyPrefix + "total", keyPrefix + string(outcome)} {
		if _, err := r.redis.IncrementWithWindow(ctx, key, retentionWindow); err != nil {
			logger.Warn("failed to record validation metric", zap.String("key", key), zap.Error(err))
			return
		}
	}

	if fraudDetected {
		if _, err := r.redis.IncrementWithWindow(ctx, keyPrefix+"fraud_detected", retentionWindow); err != nil {
			logger.Warn("failed to record fraud metric", zap.Error(err))
		}
	}

	if err := r.redis.IncrByFloat(ctx, keyPrefix+"confidence_sum", confidence).Err(); err != nil {
		logger.Warn("failed to record confidence metric", zap.Error(err))
		return
	}
	// Keep the sum on the same retention clock as the counters.
	_ = r.redis.Expire(ctx, keyPrefix+"confidence_sum", retentionWindow).Err()
}

// WindowStats reads the trailing window counters.
func (r *RedisRecorder) WindowStats(ctx context.Context) (*WindowStats, error) {
	stats := &WindowStats{}

	var err error
	if stats.Total, err = r.redis.GetCounter(ctx, keyPrefix+"total"); err != nil {
		return nil, err
	}
	if stats.Approved, err = r.redis.GetCounter(ctx, keyPrefix+string(OutcomeApproved)); err != nil {
		return nil, err
	}
	if stats.Rejected, err = r.redis.GetCounter(ctx, keyPrefix+string(OutcomeRejected)); err != nil {
		return nil, err
	}
	if stats.ManualReview, err = r.redis.GetCounter(ctx, keyPrefix+string(OutcomeManualReview)); err != nil {
		return nil, err
	}
	if stats.FraudDetected, err = r.redis.GetCounter(ctx, keyPrefix+"fraud_detected"); err != nil {
		return nil, err
	}

	sum, err := r.redis.Get(ctx, keyPrefix+"confidence_sum").Float64()
	if err == nil && stats.Total > 0 {
		stats.AvgConfidence = sum / float64(stats.Total)
	}

	if stats.Total > 0 {
		stats.ManualReviewRate = float64(stats.ManualReview) / float64(stats.Total)
		stats.FraudRate = float64(stats.FraudDetected) / float64(stats.Total)
	}

	return stats, nil
}
