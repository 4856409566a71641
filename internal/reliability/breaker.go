// Package reliability wraps upstream calls in a circuit breaker so a failing
// provider is not hammered by every request.
package reliability

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	Name         string
	MaxRequests  uint32        // requests allowed in half-open state
	Interval     time.Duration // cyclic period for clearing counters
	Timeout      time.Duration // time to wait before half-open
	FailureRatio float64
	MinRequests  uint32
	// IsSuccessful decides which errors count against the breaker. Nil counts
	// every non-nil error.
	IsSuccessful  func(err error) bool
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultCircuitConfig returns the defaults used for provider clients.
func DefaultCircuitConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  3,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// CircuitBreaker wraps gobreaker with a typed Do helper.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewCircuitBreaker creates a circuit breaker with the given config.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		IsSuccessful:  cfg.IsSuccessful,
		OnStateChange: cfg.OnStateChange,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
	}
	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// State returns the current state of the circuit breaker.
func (c *CircuitBreaker) State() gobreaker.State {
	return c.cb.State()
}

// Do runs fn through the breaker. A nil breaker calls fn directly.
func Do[T any](c *CircuitBreaker, fn func() (T, error)) (T, error) {
	if c == nil {
		return fn()
	}
	out, err := c.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			var zero T
			return zero, ErrCircuitOpen
		}
		if v, ok := out.(T); ok {
			return v, err
		}
		var zero T
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

// LogStateChanges returns an OnStateChange hook that logs every transition.
func LogStateChanges(logger zerolog.Logger) func(name string, from, to gobreaker.State) {
	return func(name string, from, to gobreaker.State) {
		evt := logger.Info()
		if to == gobreaker.StateOpen {
			evt = logger.Warn()
		}
		evt.Str("breaker", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state changed")
	}
}
