// pkg/ratelimit/limiter.go
// Token bucket pacing for probe dispatch

package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter wraps golang.org/x/time/rate for probe pacing. A rate of 0 means
// unlimited.
type Limiter struct {
	limiter *rate.Limiter

	statsMu sync.Mutex
	stats   Stats
}

// Stats contains rate limiter counters
type Stats struct {
	TotalWaits  int64
	FailedWaits int64
}

// New creates a limiter allowing rps probe dispatches per second.
func New(rps int) *Limiter {
	r := rate.Limit(rps)
	if r <= 0 {
		r = rate.Inf
	}
	burst := rps
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(r, burst)}
}

// Wait blocks until a token is available or the context ends.
func (l *Limiter) Wait(ctx context.Context) error {
	err := l.limiter.Wait(ctx)

	l.statsMu.Lock()
	l.stats.TotalWaits++
	if err != nil {
		l.stats.FailedWaits++
	}
	l.statsMu.Unlock()

	return err
}

// SetRate updates the rate limit dynamically
func (l *Limiter) SetRate(rps int) {
	r := rate.Limit(rps)
	if r <= 0 {
		r = rate.Inf
	}
	l.limiter.SetLimit(r)
}

// GetStats returns current counters
func (l *Limiter) GetStats() Stats {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	return l.stats
}
