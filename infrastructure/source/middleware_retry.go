package source

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ahrav/go-geoscore/internal/domain"
	"github.com/ahrav/go-geoscore/internal/ports"
)

// retrySource retries fetches that fail because the source is unavailable.
type retrySource struct {
	next       ports.EvaluationSource
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware retries FetchRuns up to maxRetries times with jittered
// exponential backoff. Only errors wrapping ports.ErrSourceUnavailable are
// retried; an open circuit breaker or a cancelled context stops at once.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next ports.EvaluationSource) ports.EvaluationSource {
		return &retrySource{
			next:       next,
			maxRetries: maxRetries,
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

func (r *retrySource) FetchRuns(ctx context.Context, promptID string) ([]domain.JudgeRun, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		runs, err := r.next.FetchRuns(ctx, promptID)
		if err == nil {
			return runs, nil
		}
		lastErr = err

		if !retryable(err) || ctx.Err() != nil || attempt == r.maxRetries {
			break
		}

		timer := time.NewTimer(r.calculateDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if !retryable(lastErr) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("fetch failed after %d attempts: %w", r.maxRetries+1, lastErr)
}

func retryable(err error) bool {
	return errors.Is(err, ports.ErrSourceUnavailable) && !errors.Is(err, ErrCircuitOpen)
}

func (r *retrySource) calculateDelay(attempt int) time.Duration {
	attempt = min(max(attempt, 0), 30)
	delay := r.baseDelay << attempt

	// Jitter of ±25%.
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay + jitter - delay/4

	if r.maxDelay > 0 && delay > r.maxDelay {
		delay = r.maxDelay
	}
	return delay
}
