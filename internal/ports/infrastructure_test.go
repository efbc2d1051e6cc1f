package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-geoscore/internal/domain"
)

// mapSource implements EvaluationSource over an in-memory map.
type mapSource map[string][]domain.JudgeRun

func (m mapSource) FetchRuns(ctx context.Context, promptID string) ([]domain.JudgeRun, error) {
	runs, ok := m[promptID]
	if !ok {
		return nil, NewSourceError(promptID, "FetchRuns", ErrPromptNotFound)
	}
	return runs, nil
}

// recordingMetrics implements MetricsCollector and remembers what it saw.
type recordingMetrics struct {
	latencies map[string]time.Duration
	counters  map[string]float64
	gauges    map[string]float64
	histogram map[string][]float64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		latencies: make(map[string]time.Duration),
		counters:  make(map[string]float64),
		gauges:    make(map[string]float64),
		histogram: make(map[string][]float64),
	}
}

func (r *recordingMetrics) RecordLatency(op string, d time.Duration, _ map[string]string) {
	r.latencies[op] = d
}

func (r *recordingMetrics) RecordCounter(metric string, v float64, _ map[string]string) {
	r.counters[metric] += v
}

func (r *recordingMetrics) RecordGauge(metric string, v float64, _ map[string]string) {
	r.gauges[metric] = v
}

func (r *recordingMetrics) RecordHistogram(metric string, v float64, _ map[string]string) {
	r.histogram[metric] = append(r.histogram[metric], v)
}

func TestEvaluationSource_Interface(t *testing.T) {
	var source EvaluationSource = mapSource{
		"p1": {{Evaluation: domain.JudgeEvaluation{IsMentioned: true}, AnswerText: "Acme is great"}},
		"p2": {},
	}

	runs, err := source.FetchRuns(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "Acme is great", runs[0].AnswerText)

	runs, err = source.FetchRuns(context.Background(), "p2")
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = source.FetchRuns(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPromptNotFound)
}

func TestMetricsCollector_Interface(t *testing.T) {
	metrics := newRecordingMetrics()
	var collector MetricsCollector = metrics

	for i := 0; i < 3; i++ {
		collector.RecordCounter("prompts_scored_total", 1, nil)
		collector.RecordHistogram("prompt_mention_rate", float64(i)/2, map[string]string{"prompt": fmt.Sprint(i)})
	}
	collector.RecordGauge("brand_share", 60, nil)
	collector.RecordLatency("score_prompt", 15*time.Millisecond, nil)

	assert.Equal(t, 3.0, metrics.counters["prompts_scored_total"])
	assert.Equal(t, []float64{0, 0.5, 1}, metrics.histogram["prompt_mention_rate"])
	assert.Equal(t, 60.0, metrics.gauges["brand_share"])
	assert.Equal(t, 15*time.Millisecond, metrics.latencies["score_prompt"])
}
