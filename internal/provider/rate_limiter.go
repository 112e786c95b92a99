package provider

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimiter throttles outbound provider requests across all nodes.
type rateLimiter struct {
	limiter *rate.Limiter
}

// newRateLimiter allows perSecond requests with the given burst. A
// non-positive rate disables throttling.
func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	if perSecond <= 0 {
		return &rateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// wait blocks until a request may be made or ctx is done.
func (r *rateLimiter) wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
