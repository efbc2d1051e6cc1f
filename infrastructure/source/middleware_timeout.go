package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahrav/go-geoscore/internal/domain"
	"github.com/ahrav/go-geoscore/internal/ports"
)

type timeoutSource struct {
	next    ports.EvaluationSource
	timeout time.Duration
}

// TimeoutMiddleware bounds each FetchRuns call by timeout. A call cut off by
// this bound while the caller's context is still live reports
// ports.ErrSourceUnavailable, which the retry and breaker layers count.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next ports.EvaluationSource) ports.EvaluationSource {
		return &timeoutSource{next: next, timeout: timeout}
	}
}

func (t *timeoutSource) FetchRuns(ctx context.Context, promptID string) ([]domain.JudgeRun, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	runs, err := t.next.FetchRuns(callCtx, promptID)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return nil, ports.NewSourceError(promptID, "FetchRuns",
			fmt.Errorf("%w: timed out after %s: %w", ports.ErrSourceUnavailable, t.timeout, context.DeadlineExceeded))
	}
	return runs, err
}
