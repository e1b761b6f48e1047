package calculator

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metric instruments. They are no-ops until InitMetrics runs.
var (
	evalCounter      metric.Int64Counter     = noop.Int64Counter{}
	evalHistogram    metric.Float64Histogram = noop.Float64Histogram{}
	errorCounter     metric.Int64Counter     = noop.Int64Counter{}
	templatesCreated metric.Int64Counter     = noop.Int64Counter{}
	recordsSaved     metric.Int64Counter     = noop.Int64Counter{}
)

// InitMetrics registers custom OTel metric instruments for the calculator domain.
// Call this once at startup (after observability.InitMetrics).
func InitMetrics() error {
	meter := otel.Meter("calculator")

	var err error

	evalCounter, err = meter.Int64Counter("calculator.evaluations.total",
		metric.WithDescription("Formulas evaluated, by scope and outcome"),
		metric.WithUnit("{formula}"),
	)
	if err != nil {
		return fmt.Errorf("creating evaluation counter: %w", err)
	}

	evalHistogram, err = meter.Float64Histogram("calculator.evaluation.duration",
		metric.WithDescription("Duration of expression and template evaluations in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 10),
	)
	if err != nil {
		return fmt.Errorf("creating evaluation histogram: %w", err)
	}

	errorCounter, err = meter.Int64Counter("calculator.errors.total",
		metric.WithDescription("Failed calculator operations, by operation and kind"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return fmt.Errorf("creating error counter: %w", err)
	}

	templatesCreated, err = meter.Int64Counter("calculator.templates.created",
		metric.WithDescription("Calculator templates created"),
		metric.WithUnit("{template}"),
	)
	if err != nil {
		return fmt.Errorf("creating template counter: %w", err)
	}

	recordsSaved, err = meter.Int64Counter("calculator.records.saved",
		metric.WithDescription("Calculation records appended to history"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return fmt.Errorf("creating record counter: %w", err)
	}

	return nil
}
