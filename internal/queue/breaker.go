package queue

import (
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig controls the circuit breaker guarding insertion (§4.2
// "Circuit breaker around insertion").
type BreakerConfig struct {
	FailMax      uint32        // consecutive insertion failures before opening (default 5)
	ResetTimeout time.Duration // how long the breaker stays open (default 30s)
}

// DefaultBreakerConfig returns the spec's defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailMax: 5, ResetTimeout: 30 * time.Second}
}

func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "queue-insert",
		MaxRequests: 1, // single probe on half-open, per §9
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailMax
		},
	})
}
