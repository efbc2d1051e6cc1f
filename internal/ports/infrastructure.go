package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-geoscore/internal/domain"
)

// EvaluationSource is the judge-evaluation collaborator. It supplies, for a
// prompt under test, every repeated judge pass together with the raw AI
// answer that pass judged. Implementations may perform I/O; the scoring core
// never does.
type EvaluationSource interface {
	// FetchRuns returns the judge runs recorded for promptID, in the order
	// they were produced. A prompt that exists but has no runs returns an
	// empty slice and a nil error. An unknown prompt returns an error
	// wrapping ErrPromptNotFound.
	FetchRuns(ctx context.Context, promptID string) ([]domain.JudgeRun, error)
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations integrate with observability platforms like Prometheus.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram, such as a per-prompt
	// mention rate.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// Metric names emitted while scoring scans.
const (
	// MetricPromptLatency is the latency operation for scoring one prompt.
	MetricPromptLatency = "prompt_scoring"
	// MetricScanLatency is the latency operation for scoring a whole scan.
	MetricScanLatency = "scan_scoring"
	// MetricPromptsScored counts prompts that entered the rollup.
	MetricPromptsScored = "prompts_scored_total"
	// MetricPromptsFailed counts prompts excluded for lack of usable runs.
	MetricPromptsFailed = "prompts_failed_total"
	// MetricPromptMentionRate observes each prompt's aggregated mention rate.
	MetricPromptMentionRate = "prompt_mention_rate"
	// MetricBrandShare is the brand's share of voice for the last scan.
	MetricBrandShare = "brand_share_percent"
)

// Metric names emitted by unit middleware.
const (
	// MetricUnitLatency is the latency operation for one unit execution.
	MetricUnitLatency = "unit_execution"
	// MetricUnitExecutions counts unit executions. The "status" label is
	// "success" or "error".
	MetricUnitExecutions = "unit_executions_total"
)
