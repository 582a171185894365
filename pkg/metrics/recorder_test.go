package metrics

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisClient "github.com/questmap/treasure-hunt/pkg/redis"
)

func newMockRecorder(t *testing.T) (*RedisRecorder, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	return NewRedisRecorder(&redisClient.Client{Client: db}), mock
}

func TestRecordValidation_IncrementsWindowCounters(t *testing.T) {
	recorder, mock := newMockRecorder(t)

	mock.ExpectIncr(keyPrefix + "total").SetVal(1)
	mock.ExpectExpire(keyPrefix+"total", retentionWindow).SetVal(true)
	mock.ExpectIncr(keyPrefix + "approved").SetVal(1)
	mock.ExpectExpire(keyPrefix+"approved", retentionWindow).SetVal(true)
	mock.ExpectIncrByFloat(keyPrefix+"confidence_sum", 0.9).SetVal(0.9)
	mock.ExpectExpire(keyPrefix+"confidence_sum", retentionWindow).SetVal(true)

	recorder.RecordValidation(context.Background(), OutcomeApproved, 0.9, false)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordValidation_FraudDetectedBumpsFraudCounter(t *testing.T) {
	recorder, mock := newMockRecorder(t)

	mock.ExpectIncr(keyPrefix + "total").SetVal(7)
	mock.ExpectIncr(keyPrefix + "rejected").SetVal(3)
	mock.ExpectIncr(keyPrefix + "fraud_detected").SetVal(2)
	mock.ExpectIncrByFloat(keyPrefix+"confidence_sum", 0.95).SetVal(4.2)
	mock.ExpectExpire(keyPrefix+"confidence_sum", retentionWindow).SetVal(true)

	recorder.RecordValidation(context.Background(), OutcomeRejected, 0.95, true)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordValidation_RedisErrorsAreSwallowed(t *testing.T) {
	recorder, mock := newMockRecorder(t)

	mock.ExpectIncr(keyPrefix + "total").SetErr(assert.AnError)

	// Must not panic or propagate: metrics never fail a validation.
	recorder.RecordValidation(context.Background(), OutcomeApproved, 0.9, false)
}

func TestWindowStats_ComputesRates(t *testing.T) {
	recorder, mock := newMockRecorder(t)

	mock.ExpectGet(keyPrefix + "total").SetVal("200")
	mock.ExpectGet(keyPrefix + "approved").SetVal("120")
	mock.ExpectGet(keyPrefix + "rejected").SetVal("40")
	mock.ExpectGet(keyPrefix + "manual_review").SetVal("40")
	mock.ExpectGet(keyPrefix + "fraud_detected").SetVal("30")
	mock.ExpectGet(keyPrefix + "confidence_sum").SetVal("150")

	stats, err := recorder.WindowStats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(200), stats.Total)
	assert.InDelta(t, 0.2, stats.ManualReviewRate, 0.001)
	assert.InDelta(t, 0.15, stats.FraudRate, 0.001)
	assert.InDelta(t, 0.75, stats.AvgConfidence, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWindowStats_EmptyWindow(t *testing.T) {
	recorder, mock := newMockRecorder(t)

	mock.ExpectGet(keyPrefix + "total").RedisNil()
	mock.ExpectGet(keyPrefix + "approved").RedisNil()
	mock.ExpectGet(keyPrefix + "rejected").RedisNil()
	mock.ExpectGet(keyPrefix + "manual_review").RedisNil()
	mock.ExpectGet(keyPrefix + "fraud_detected").RedisNil()
	mock.ExpectGet(keyPrefix + "confidence_sum").RedisNil()

	stats, err := recorder.WindowStats(context.Background())

	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.ManualReviewRate)
	assert.Zero(t, stats.AvgConfidence)
}
