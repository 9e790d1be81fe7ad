package pixclient

import (
	"context"

	"golang.org/x/time/rate"
)

// QuotaLimiter paces outbound calls against the charge API's per-minute
// quota per API key. Waiting locally costs less than a 429, which would
// also count against the circuit breaker.
type QuotaLimiter struct{ l *rate.Limiter }

func NewQuotaLimiter(perMinute, burst int) *QuotaLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	return &QuotaLimiter{l: rate.NewLimiter(rate.Limit(perMinute)/60, burst)}
}

func (q *QuotaLimiter) Wait(ctx context.Context) error { return q.l.Wait(ctx) }
