package source

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-geoscore/internal/domain"
	"github.com/ahrav/go-geoscore/internal/ports"
)

// rateLimitedSource paces FetchRuns with a token bucket.
type rateLimitedSource struct {
	next    ports.EvaluationSource
	limiter *rate.Limiter
}

// RateLimitMiddleware creates middleware that allows limit fetches per
// second with bursts of up to burst. A burst below one is treated as one.
// All sources wrapped by the returned middleware share one bucket.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)

	return func(next ports.EvaluationSource) ports.EvaluationSource {
		return &rateLimitedSource{next: next, limiter: limiter}
	}
}

// NewRateLimitedSource wraps inner with a rate limit of rps fetches per
// second.
func NewRateLimitedSource(inner ports.EvaluationSource, rps float64, burst int) ports.EvaluationSource {
	return RateLimitMiddleware(rate.Limit(rps), burst)(inner)
}

// FetchRuns blocks until a token is available or ctx is done.
func (r *rateLimitedSource) FetchRuns(ctx context.Context, promptID string) ([]domain.JudgeRun, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.FetchRuns(ctx, promptID)
}
