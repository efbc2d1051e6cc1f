package source

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-geoscore/internal/application"
	"github.com/ahrav/go-geoscore/internal/domain"
	"github.com/ahrav/go-geoscore/internal/ports"
)

// Middleware wraps an EvaluationSource to add cross-cutting behaviour such
// as rate limiting, retries or circuit breaking.
type Middleware func(ports.EvaluationSource) ports.EvaluationSource

// Func adapts a function to the EvaluationSource interface.
type Func func(ctx context.Context, promptID string) ([]domain.JudgeRun, error)

// FetchRuns calls f.
func (f Func) FetchRuns(ctx context.Context, promptID string) ([]domain.JudgeRun, error) {
	return f(ctx, promptID)
}

// Chain wraps src with middleware. The first middleware is the outermost.
func Chain(src ports.EvaluationSource, middleware ...Middleware) ports.EvaluationSource {
	for i := len(middleware) - 1; i >= 0; i-- {
		src = middleware[i](src)
	}
	return src
}

// Wrap applies the middleware enabled by cfg, outermost first: retry,
// circuit breaker, rate limit, timeout. Retries therefore see breaker
// rejections and every attempt waits for a rate limit token.
func Wrap(src ports.EvaluationSource, cfg application.ScoringConfig, metrics ports.MetricsCollector) ports.EvaluationSource {
	var mws []Middleware

	sc := cfg.Source
	if sc.MaxRetries > 0 {
		mws = append(mws, RetryMiddleware(sc.MaxRetries, sc.RetryBaseDelay, sc.RetryMaxDelay))
	}
	if sc.BreakerFailures > 0 {
		mws = append(mws, CircuitBreakerMiddleware(sc.BreakerFailures, sc.BreakerCooldown, metrics))
	}
	if cfg.Concurrency.SourceRPS > 0 {
		mws = append(mws, RateLimitMiddleware(rate.Limit(cfg.Concurrency.SourceRPS), cfg.Concurrency.SourceBurst))
	}
	if sc.Timeout > 0 {
		mws = append(mws, TimeoutMiddleware(sc.Timeout))
	}

	return Chain(src, mws...)
}
