package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostGate is a keyed wait-and-pulse gate. Each key (normally a host name)
// owns a limiter that releases one caller per interval. Callers for
// different keys never block each other; callers for the same key are
// released one at a time in arrival order.
type HostGate struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostGate creates an empty gate.
func NewHostGate() *HostGate {
	return &HostGate{
		limiters: make(map[string]*rate.Limiter),
	}
}

// WaitAndPulse blocks until at least interval has elapsed since the previous
// pulse for key, then records a new pulse. A non-positive interval returns
// immediately without recording anything.
func (g *HostGate) WaitAndPulse(ctx context.Context, key string, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	return g.limiterFor(key, interval).Wait(ctx)
}

// Len returns the number of keys the gate is tracking.
func (g *HostGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.limiters)
}

func (g *HostGate) limiterFor(key string, interval time.Duration) *rate.Limiter {
	key = strings.ToLower(key)
	limit := rate.Every(interval)

	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.limiters[key]
	if !ok {
		l = rate.NewLimiter(limit, 1)
		g.limiters[key] = l
		return l
	}
	if l.Limit() != limit {
		l.SetLimit(limit)
	}
	return l
}

// HostKey returns the gate key for a URL: its lower-cased host name, or the
// raw string when it does not parse as a URL with a host.
func HostKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(raw)
	}
	return strings.ToLower(u.Hostname())
}
