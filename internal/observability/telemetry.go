package observability

import (
	"context"
	"errors"
	"fmt"
)

// ShutdownFunc flushes and stops one telemetry provider.
type ShutdownFunc func(context.Context) error

// SetupTelemetry starts tracing, metrics and OTLP log export in that order.
// The returned function shuts them down in reverse order and joins their
// errors. If a step fails, the providers already started are shut down.
func SetupTelemetry(ctx context.Context, serviceName string) (ShutdownFunc, error) {
	steps := []struct {
		name string
		init func(context.Context, string) (func(context.Context) error, error)
	}{
		{"tracing", InitTracing},
		{"metrics", InitMetrics},
		{"logging", InitLogging},
	}

	var shutdowns []ShutdownFunc
	shutdownAll := func(ctx context.Context) error {
		var errs []error
		for i := len(shutdowns) - 1; i >= 0; i-- {
			if err := shutdowns[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	for _, step := range steps {
		shutdown, err := step.init(ctx, serviceName)
		if err != nil {
			_ = shutdownAll(ctx)
			return nil, fmt.Errorf("init %s: %w", step.name, err)
		}
		shutdowns = append(shutdowns, shutdown)
	}

	return shutdownAll, nil
}
