package middleware

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-geoscore/internal/ports"
)

func newTestMetrics(t *testing.T) (*PrometheusMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusMetrics(reg), reg
}

func TestNewPrometheusMetrics(t *testing.T) {
	pm, reg := newTestMetrics(t)
	require.NotNil(t, pm)

	// A second collector on the same registry is a duplicate registration.
	assert.Panics(t, func() { NewPrometheusMetrics(reg) })

	// Separate registries do not collide.
	assert.NotPanics(t, func() { NewPrometheusMetrics(prometheus.NewRegistry()) })
}

func TestPrometheusMetrics_RecordCounter(t *testing.T) {
	pm, _ := newTestMetrics(t)
	labels := map[string]string{"unit": "scan_scorer"}

	pm.RecordCounter(ports.MetricPromptsScored, 3, labels)
	pm.RecordCounter(ports.MetricPromptsScored, 2, labels)
	pm.RecordCounter(ports.MetricPromptsFailed, 1, labels)
	pm.RecordCounter(ports.MetricUnitExecutions, 1, map[string]string{"unit": "detect", "status": "error"})
	pm.RecordCounter(ports.MetricUnitExecutions, 1, map[string]string{"unit": "detect"})
	pm.RecordCounter("custom_total", 4, nil)

	assert.Equal(t, 5.0, testutil.ToFloat64(pm.promptsTotal.WithLabelValues("scored", "scan_scorer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.promptsTotal.WithLabelValues("failed", "scan_scorer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.unitExecutions.WithLabelValues("error", "detect")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.unitExecutions.WithLabelValues("success", "detect")))
	assert.Equal(t, 4.0, testutil.ToFloat64(pm.operationCounter.WithLabelValues("custom_total", "unknown")))
}

func TestPrometheusMetrics_RecordGauge(t *testing.T) {
	pm, _ := newTestMetrics(t)

	pm.RecordGauge(ports.MetricBrandShare, 60, map[string]string{"unit": "scan_scorer"})
	pm.RecordGauge(ports.MetricBrandShare, 42.5, map[string]string{"unit": "scan_scorer"})
	pm.RecordGauge("queue_depth", 7, map[string]string{"unit": ""})

	assert.Equal(t, 42.5, testutil.ToFloat64(pm.brandShare.WithLabelValues("scan_scorer")))
	assert.Equal(t, 7.0, testutil.ToFloat64(pm.systemGauges.WithLabelValues("queue_depth", "unknown")))
}

func TestPrometheusMetrics_Histograms(t *testing.T) {
	pm, reg := newTestMetrics(t)

	tests := []struct {
		name      string
		operation string
		duration  time.Duration
		labels    map[string]string
	}{
		{name: "with unit label", operation: ports.MetricScanLatency, duration: 100 * time.Millisecond, labels: map[string]string{"unit": "scan_scorer"}},
		{name: "without unit label", operation: ports.MetricPromptLatency, duration: 250 * time.Millisecond, labels: map[string]string{"other": "value"}},
		{name: "nil labels", operation: ports.MetricUnitLatency, duration: time.Millisecond, labels: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() { pm.RecordLatency(tt.operation, tt.duration, tt.labels) })
		})
	}

	pm.RecordHistogram(ports.MetricPromptMentionRate, 1, nil)
	pm.RecordHistogram(ports.MetricPromptMentionRate, 0.5, nil)
	pm.RecordHistogram("answer_length", 120, nil)

	assert.Equal(t, 3, testutil.CollectAndCount(pm.executionLatency))
	assert.Equal(t, 1, testutil.CollectAndCount(pm.mentionRate))
	assert.Equal(t, 1, testutil.CollectAndCount(pm.valueHistograms))

	count, err := testutil.GatherAndCount(reg, "geoscore_prompt_mention_rate")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUnitLabel(t *testing.T) {
	assert.Equal(t, "unknown", unitLabel(nil))
	assert.Equal(t, "unknown", unitLabel(map[string]string{"unit": ""}))
	assert.Equal(t, "detect", unitLabel(map[string]string{"unit": "detect"}))
	assert.Equal(t, "unknown", unitLabel(map[string]string{"other": "x"}))
}

func counterValue(t *testing.T, pm *PrometheusMetrics, status, unit string) float64 {
	t.Helper()
	return testutil.ToFloat64(pm.unitExecutions.WithLabelValues(status, unit))
}
