package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() Settings {
	return Settings{
		Name:             "test-breaker",
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 2,
		SuccessThreshold: 1,
	}
}

func TestBuildSettings_Defaults(t *testing.T) {
	s := BuildSettings("oracle", 0, 0, 0, 0)

	assert.Equal(t, "oracle", s.Name)
	assert.Equal(t, time.Minute, s.Interval)
	assert.Equal(t, 30*time.Second, s.Timeout)
	assert.Equal(t, uint32(5), s.FailureThreshold)
	assert.Equal(t, uint32(1), s.SuccessThreshold)
}

func TestExecute_Success(t *testing.T) {
	b := NewBreaker(testSettings(), nil)

	result, err := b.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestExecute_PropagatesOperationError(t *testing.T) {
	b := NewBreaker(testSettings(), nil)
	boom := errors.New("boom")

	_, err := b.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, boom
	})

	assert.ErrorIs(t, err, boom)
}

func TestExecute_OpensAfterConsecutiveFailures(t *testing.T) {
	settings := testSettings()
	settings.Name = "opens-after-failures"
	b := NewBreaker(settings, StaticFallback("fallback"))
	boom := errors.New("boom")

	fail := func(ctx context.Context) (interface{}, error) { return nil, boom }

	for i := 0; i < int(settings.FailureThreshold); i++ {
		_, err := b.Execute(context.Background(), fail)
		require.Error(t, err)
	}

	assert.Equal(t, gobreaker.StateOpen, b.State())

	// Open breaker routes to the fallback instead of running the operation.
	result, err := b.Execute(context.Background(), fail)
	require.NoError(t, err)
	assert.Equal(t, "fallback", result)
}

func TestExecute_NoopFallbackReturnsErrCircuitOpen(t *testing.T) {
	settings := testSettings()
	settings.Name = "noop-fallback"
	b := NewBreaker(settings, nil)
	boom := errors.New("boom")

	for i := 0; i < int(settings.FailureThreshold); i++ {
		_, _ = b.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
			return nil, boom
		})
	}

	_, err := b.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "should not run", nil
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
}
