// Package throttle provides a weighted rate limiter for GitHub API budgets.
package throttle

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter adapts a token-bucket limiter to the watcher's weighted Wait call.
// A weight of N consumes N tokens, so callers pay proportionally to the
// request cost of each fetch group.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter sized for the given hourly request budget. GitHub's
// authenticated REST quota is 5000 requests per hour.
func New(requestsPerHour int, burst int) *Limiter {
	perSecond := rate.Limit(float64(requestsPerHour) / 3600.0)

	if burst < 1 {
		burst = 1
	}

	return &Limiter{limiter: rate.NewLimiter(perSecond, burst)}
}

// Wait blocks until the weight can be spent within the budget.
func (l *Limiter) Wait(weight int) error {
	if weight <= 0 {
		return nil
	}

	if weight > l.limiter.Burst() {
		return fmt.Errorf("throttle weight %d exceeds burst %d", weight, l.limiter.Burst())
	}

	return l.limiter.WaitN(context.Background(), weight)
}
