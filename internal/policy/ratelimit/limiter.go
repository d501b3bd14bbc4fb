// Package ratelimit implements the token bucket that bounds the crawl's
// outbound request rate.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/catalog-crawler/internal/metrics"
)

// Limiter is a single bucket shared by every fetch of a crawl session.
// Tokens refill continuously at the configured rate and the bucket holds one
// token, so callers are spaced 1/RPS apart with no burst.
type Limiter struct {
	limiter *rate.Limiter
}

// Config holds rate limiter configuration.
type Config struct {
	// RPS is the steady-state number of requests per second. Zero or
	// negative disables throttling.
	RPS float64
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	return &Limiter{limiter: rate.NewLimiter(r, 1)}
}

// Wait blocks until a token is available. It only fails when ctx is done
// before the token becomes available.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(waited)
	}
	return nil
}

// Limit reports the configured rate.
func (l *Limiter) Limit() rate.Limit {
	return l.limiter.Limit()
}
