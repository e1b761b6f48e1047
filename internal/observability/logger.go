package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide base logger. It is a no-op until InitLogger runs
// so packages and tests can log unconditionally.
var Logger = zap.NewNop()

// InitLogger builds the JSON production logger at the given level
// (debug, info, warn, error) with ISO8601 timestamps.
func InitLogger(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return err
	}

	Logger = logger
	zap.ReplaceGlobals(logger)
	return nil
}

func SyncLogger() {
	_ = Logger.Sync()
}

// Named returns a child of Logger tagged with a component name.
func Named(component string) *zap.Logger {
	return Logger.Named(component)
}

// LoggerWithTrace returns a child logger carrying trace_id and span_id from
// the active span in ctx, or Logger itself when there is none.
//
// ctx is also attached as a "context" field: the otelzap core recognises it
// and emits the OTLP record with that context, so the exported record gets
// native TraceID/SpanID and log-to-trace correlation works downstream. The
// string fields keep stdout JSON greppable.
func LoggerWithTrace(ctx context.Context) *zap.Logger {
	span := trace.SpanContextFromContext(ctx)

	if !span.IsValid() {
		return Logger
	}

	return Logger.With(
		zap.Any("context", ctx),
		zap.String("trace_id", span.TraceID().String()),
		zap.String("span_id", span.SpanID().String()),
	)
}
