package fetch

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter tunes a host's request rate from response feedback.
// Successes nudge the rate up toward twice the initial value; 429s cut
// it in half, bottoming out at a quarter of the initial value.
type AdaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	rate    rate.Limit
	floor   rate.Limit
	ceil    rate.Limit
}

// NewAdaptiveLimiter creates an adaptive limiter starting at initialRate.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter: rate.NewLimiter(initialRate, burst),
		rate:    initialRate,
		floor:   initialRate / 4,
		ceil:    initialRate * 2,
	}
}

// Wait blocks until the limiter admits a request.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess raises the rate by 20%, capped at the ceiling.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rate = min(a.rate*1.2, a.ceil)
	a.limiter.SetLimit(a.rate)
}

// OnRateLimit halves the rate after a 429, down to the floor.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rate = max(a.rate/2, a.floor)
	a.limiter.SetLimit(a.rate)
	zap.L().Warn("halving request rate after 429",
		zap.Float64("rate", float64(a.rate)),
	)
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rate
}
