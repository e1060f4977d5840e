package stream

import (
	"time"

	gobreaker "github.com/sony/gobreaker"
)

// NewBreaker returns a circuit breaker guarding the reconnect dial
// for one named upstream (symbol or host), grounded on
// infra/breakers/breakers.go: trips after 3 consecutive failures, or
// above a 5% failure rate once at least 20 requests have been observed
// in the rolling interval.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	return gobreaker.NewCircuitBreaker(st)
}
