// Package ratelimit bounds outbound request frequency, both globally per
// adapter (token bucket) and per destination host (HostGate).
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps a token bucket rate limiter for controlling request rates
// to one external API. It is safe for concurrent use because the underlying
// rate.Limiter is goroutine-safe for all operations.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a new token bucket limiter.
// ratePerSecond is the sustained rate of requests per second.
// burst is the maximum number of requests allowed at once.
//
// Example configurations:
//   - NCBI E-utilities without an API key: NewLimiter(3, 3)
//   - arXiv export API: NewLimiter(0.33, 1)
func NewLimiter(ratePerSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Wait blocks until a request is allowed or the context is canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow returns true if a request is allowed without waiting.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// SetRate updates the sustained rate while preserving the burst size.
func (l *Limiter) SetRate(ratePerSecond float64) {
	l.limiter.SetLimit(rate.Limit(ratePerSecond))
}
