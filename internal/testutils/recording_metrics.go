package testutils

import (
	"sync"
	"time"

	"github.com/ahrav/go-geoscore/internal/ports"
)

var _ ports.MetricsCollector = (*RecordingMetrics)(nil)

// RecordingMetrics is a MetricsCollector that keeps every observation in
// memory so tests can assert on them.
type RecordingMetrics struct {
	mu         sync.Mutex
	latencies  map[string][]time.Duration
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string][]float64
}

// NewRecordingMetrics creates an empty recorder.
func NewRecordingMetrics() *RecordingMetrics {
	return &RecordingMetrics{
		latencies:  make(map[string][]time.Duration),
		counters:   make(map[string]float64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (r *RecordingMetrics) RecordLatency(operation string, d time.Duration, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latencies[operation] = append(r.latencies[operation], d)
}

func (r *RecordingMetrics) RecordCounter(metric string, value float64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[metric] += value
}

func (r *RecordingMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[metric] = value
}

func (r *RecordingMetrics) RecordHistogram(metric string, value float64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms[metric] = append(r.histograms[metric], value)
}

// Counter returns the accumulated value of a counter.
func (r *RecordingMetrics) Counter(metric string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[metric]
}

// Gauge returns the last value set for a gauge and whether it was set.
func (r *RecordingMetrics) Gauge(metric string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.gauges[metric]
	return v, ok
}

// Observations returns a copy of the values recorded for a histogram.
func (r *RecordingMetrics) Observations(metric string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.histograms[metric]...)
}

// LatencyCount returns how many latencies were recorded for operation.
func (r *RecordingMetrics) LatencyCount(operation string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.latencies[operation])
}
