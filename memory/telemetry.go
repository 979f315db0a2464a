package memory

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/gloom-ai/gloom-go/memory"

// Telemetry counts evictions and searches per tier.
// A nil *Telemetry is valid and records nothing.
type Telemetry struct {
	evictions metric.Int64Counter
	searches  metric.Int64Counter
	results   metric.Int64Histogram
}

// NewTelemetry creates the counters on meter. A nil meter uses the global
// meter provider.
func NewTelemetry(meter metric.Meter) (*Telemetry, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	evictions, err := meter.Int64Counter("gloom.memory.evictions",
		metric.WithDescription("Records removed by capacity eviction"),
		metric.WithUnit("{record}"))
	if err != nil {
		return nil, fmt.Errorf("create evictions counter: %w", err)
	}

	searches, err := meter.Int64Counter("gloom.memory.searches",
		metric.WithDescription("Search operations served"))
	if err != nil {
		return nil, fmt.Errorf("create searches counter: %w", err)
	}

	results, err := meter.Int64Histogram("gloom.memory.search.results",
		metric.WithDescription("Records returned per search"),
		metric.WithUnit("{record}"))
	if err != nil {
		return nil, fmt.Errorf("create results histogram: %w", err)
	}

	return &Telemetry{evictions: evictions, searches: searches, results: results}, nil
}

func (t *Telemetry) recordEviction(tier string, n int) {
	if t == nil || n == 0 {
		return
	}
	t.evictions.Add(context.Background(), int64(n),
		metric.WithAttributes(attribute.String("gloom.memory.tier", tier)))
}

func (t *Telemetry) recordSearch(tier string, results int) {
	if t == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("gloom.memory.tier", tier))
	t.searches.Add(context.Background(), 1, attrs)
	t.results.Record(context.Background(), int64(results), attrs)
}
