package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	next    Gateway
	limiter *rate.Limiter
}

// RateLimited paces calls to next. A nil limiter returns next unchanged.
func RateLimited(next Gateway, limiter *rate.Limiter) Gateway {
	if limiter == nil {
		return next
	}
	return &rateLimited{next: next, limiter: limiter}
}

// NewLimiter builds a limiter allowing perSecond requests with the given
// burst. A non-positive rate disables limiting.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func (r *rateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for embedding rate limit: %w", err)
	}
	return r.next.Embed(ctx, text)
}
