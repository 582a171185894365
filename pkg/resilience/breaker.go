package resilience

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when the breaker rejects an execution.
var ErrCircuitOpen = errors.New("resilience: circuit breaker open")

// Operation is the unit of work protected by a breaker.
type Operation func(ctx context.Context) (interface{}, error)

// Breaker wraps a gobreaker circuit breaker with fallback handling and
// Prometheus instrumentation.
type Breaker struct {
	name     string
	cb       *gobreaker.CircuitBreaker
	fallback FallbackFunc
}

// NewBreaker constructs a breaker from the given settings. A nil fallback
// defaults to NoopFallback.
func NewBreaker(settings Settings, fallback FallbackFunc) *Breaker {
	name := nextBreakerName(settings.Name)
	if fallback == nil {
		fallback = NoopFallback
	}

	failures := settings.FailureThreshold

	b := &Breaker{
		name:     name,
		fallback: fallback,
	}

	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.SuccessThreshold,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			recordBreakerStateChange(name, from, to)
		},
	})

	recordBreakerState(name, b.cb.State())

	return b
}

// Execute runs the operation through the breaker, invoking the fallback when
// the breaker is open.
func (b *Breaker) Execute(ctx context.Context, op Operation) (interface{}, error) {
	recordBreakerRequest(b.name)

	result, err := b.cb.Execute(func() (interface{}, error) {
		return op(ctx)
	})

	if err == nil {
		return result, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		recordBreakerFallback(b.name)
		return b.fallback(ctx, ErrCircuitOpen)
	}

	recordBreakerFailure(b.name)
	return result, err
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
