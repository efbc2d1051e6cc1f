package middleware

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-geoscore/internal/domain"
	"github.com/ahrav/go-geoscore/internal/ports"
)

var _ ports.Unit = (*InstrumentedUnit)(nil)

// InstrumentedUnit wraps a Unit with a tracing span and execution metrics.
// It is stateless and adds nothing to the State.
type InstrumentedUnit struct {
	// next holds the wrapped unit.
	next ports.Unit

	// metrics receives latency and outcome counters. May be nil.
	metrics ports.MetricsCollector

	// now is the clock used for latency.
	now func() time.Time
}

// NewInstrumentedUnit wraps next. A nil metrics collector records spans only.
func NewInstrumentedUnit(next ports.Unit, metrics ports.MetricsCollector) *InstrumentedUnit {
	if next == nil {
		panic("instrumented unit: next unit is required")
	}
	return &InstrumentedUnit{
		next:    next,
		metrics: metrics,
		now:     time.Now,
	}
}

// Name returns the wrapped unit's name so that the wrapper is transparent
// to the pipeline.
func (iu *InstrumentedUnit) Name() string { return iu.next.Name() }

// Unwrap returns the wrapped unit.
func (iu *InstrumentedUnit) Unwrap() ports.Unit { return iu.next }

// Execute runs the wrapped unit inside a span and records its latency and
// outcome.
func (iu *InstrumentedUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	tracer := otel.Tracer("unit-middleware")
	ctx, span := tracer.Start(ctx, "Unit.Execute", trace.WithAttributes(
		attribute.String("unit.name", iu.next.Name()),
	))
	defer span.End()

	start := iu.now()
	newState, err := iu.next.Execute(ctx, state)
	elapsed := iu.now().Sub(start)

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.Int64("unit.duration_us", elapsed.Microseconds()))

	if iu.metrics != nil {
		labels := map[string]string{"unit": iu.next.Name()}
		iu.metrics.RecordLatency(ports.MetricUnitLatency, elapsed, labels)
		iu.metrics.RecordCounter(ports.MetricUnitExecutions, 1, map[string]string{
			"unit":   iu.next.Name(),
			"status": status,
		})
	}

	return newState, err
}

// Validate checks the wrapper and the wrapped unit.
func (iu *InstrumentedUnit) Validate() error {
	if iu.next == nil {
		return fmt.Errorf("instrumented unit: next unit is required")
	}
	return iu.next.Validate()
}
