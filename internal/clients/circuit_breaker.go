// Package clients wraps the storage dependencies touched during bootstrap:
// the Postgres server holding the application database and the Redis
// instance backing the Celery broker. Each client routes every call through
// its own circuit breaker so repeated preflight probes against a dead
// dependency fail fast instead of piling up connection timeouts.
package clients

import (
	"time"

	"github.com/sony/gobreaker"
)

// NewCircuitBreaker returns a breaker that opens after 3 consecutive
// failures and stays open for 30 seconds before allowing a single retry.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}
