package observability

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"construct-calc/internal/handlers"
)

// ErrorReport describes one failed HTTP operation.
type ErrorReport struct {
	Op     string // operation name, used as the metric attribute
	Kind   string // machine-readable error kind, optional
	Msg    string // client-facing message
	Err    error
	Status int
}

// RecordError centralises error handling across all domains: records the error
// on the span, increments counter, logs with trace context, and writes the
// JSON error response. 5xx errors log at error level, the rest at warn.
func RecordError(ctx context.Context, span trace.Span, logger *zap.Logger, counter metric.Int64Counter, rep ErrorReport, w http.ResponseWriter) {
	span.RecordError(rep.Err)
	span.SetStatus(codes.Error, rep.Msg)

	attrs := []attribute.KeyValue{attribute.String("operation", rep.Op)}
	if rep.Kind != "" {
		attrs = append(attrs, attribute.String("kind", rep.Kind))
	}
	if counter != nil {
		counter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}

	fields := []zap.Field{
		zap.String("operation", rep.Op),
		zap.String("kind", rep.Kind),
		zap.Int("status", rep.Status),
		zap.Error(rep.Err),
		zap.String("request_id", RequestIDFromContext(ctx)),
	}
	if rep.Status >= http.StatusInternalServerError {
		logger.Error(rep.Msg, fields...)
	} else {
		logger.Warn(rep.Msg, fields...)
	}

	handlers.WriteErrorKind(w, rep.Status, rep.Msg, rep.Kind)
}
