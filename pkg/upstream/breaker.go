package upstream

import (
	"time"

	"github.com/sony/gobreaker"
)

// NewBreaker builds a breaker that opens after fails consecutive failures
// and stays open for openFor before letting one probe through.
func NewBreaker(name string, fails int, openFor, interval time.Duration) *gobreaker.CircuitBreaker {
	if fails < 1 {
		fails = 1
	}
	if openFor <= 0 {
		openFor = 10 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: interval,
		Timeout:  openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
	})
}
