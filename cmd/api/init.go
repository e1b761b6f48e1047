package main

import (
	"context"

	"construct-calc/internal/calculator"
	"construct-calc/internal/config"
	"construct-calc/internal/observability"
)

// initTelemetry starts the OTLP providers when telemetry is enabled and
// registers the domain metric instruments. Add new domain InitMetrics calls
// here as the project grows.
func initTelemetry(ctx context.Context, cfg config.TelemetryConfig) (observability.ShutdownFunc, error) {
	shutdown := observability.ShutdownFunc(func(context.Context) error { return nil })

	if cfg.Enabled {
		var err error
		shutdown, err = observability.SetupTelemetry(ctx, cfg.ServiceName)
		if err != nil {
			return nil, err
		}
	}

	if err := calculator.InitMetrics(); err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	return shutdown, nil
}

// loadConfig reads the environment and applies command-line overrides.
func loadConfig(g *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(g.envFile)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
