// Package middleware provides cross-cutting concerns for the scoring engine.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-geoscore/internal/ports"
)

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// The scoring metric names from the ports package get dedicated series;
// anything else falls through to the generic operation and value vectors.
type PrometheusMetrics struct {
	executionLatency *prometheus.HistogramVec
	promptsTotal     *prometheus.CounterVec
	unitExecutions   *prometheus.CounterVec
	operationCounter *prometheus.CounterVec
	mentionRate      *prometheus.HistogramVec
	brandShare       *prometheus.GaugeVec
	systemGauges     *prometheus.GaugeVec
	valueHistograms  *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the scoring metrics and registers them with
// reg. A nil reg uses the default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		executionLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geoscore_operation_duration_seconds",
				Help:    "Duration of scan, prompt and unit scoring operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "unit"},
		),
		promptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geoscore_prompts_total",
				Help: "Prompts processed, by whether they entered the rollup.",
			},
			[]string{"status", "unit"},
		),
		unitExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geoscore_unit_executions_total",
				Help: "Unit executions by outcome.",
			},
			[]string{"status", "unit"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geoscore_operations_total",
				Help: "Other scoring counters.",
			},
			[]string{"operation", "unit"},
		),
		mentionRate: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geoscore_prompt_mention_rate",
				Help:    "Aggregated brand mention rate of each scored prompt.",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
			},
			[]string{"unit"},
		),
		brandShare: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "geoscore_brand_share_percent",
				Help: "Brand share of voice of the most recent scan.",
			},
			[]string{"unit"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "geoscore_system_state",
				Help: "Other scoring gauges.",
			},
			[]string{"metric", "unit"},
		),
		valueHistograms: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geoscore_values",
				Help:    "Other scoring observations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"metric", "unit"},
		),
	}
}

// unitLabel returns the "unit" label, or "unknown" when it is absent or empty.
func unitLabel(labels map[string]string) string {
	if unit := labels["unit"]; unit != "" {
		return unit
	}
	return "unknown"
}

// RecordLatency records duration in the operation latency histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.executionLatency.WithLabelValues(operation, unitLabel(labels)).Observe(duration.Seconds())
}

// RecordCounter increments the counter named by metric.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	unit := unitLabel(labels)

	switch metric {
	case ports.MetricPromptsScored:
		pm.promptsTotal.WithLabelValues("scored", unit).Add(value)
	case ports.MetricPromptsFailed:
		pm.promptsTotal.WithLabelValues("failed", unit).Add(value)
	case ports.MetricUnitExecutions:
		status := labels["status"]
		if status == "" {
			status = "success"
		}
		pm.unitExecutions.WithLabelValues(status, unit).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, unit).Add(value)
	}
}

// RecordGauge sets the gauge named by metric.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	unit := unitLabel(labels)

	switch metric {
	case ports.MetricBrandShare:
		pm.brandShare.WithLabelValues(unit).Set(value)
	default:
		pm.systemGauges.WithLabelValues(metric, unit).Set(value)
	}
}

// RecordHistogram observes value in the histogram named by metric.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	unit := unitLabel(labels)

	switch metric {
	case ports.MetricPromptMentionRate:
		pm.mentionRate.WithLabelValues(unit).Observe(value)
	default:
		pm.valueHistograms.WithLabelValues(metric, unit).Observe(value)
	}
}
