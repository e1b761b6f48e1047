package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"construct-calc/internal/calculator"
	"construct-calc/internal/observability"
	"construct-calc/internal/server"
	"construct-calc/internal/store"
)

func serveCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the calculator HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *g)
		},
	}
}

func serve(parent context.Context, g globalFlags) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(&g)
	if err != nil {
		return err
	}

	// Logger
	if err := observability.InitLogger(cfg.Log.Level); err != nil {
		return err
	}
	defer observability.SyncLogger()

	// Tracing, metrics, OTLP logs
	telemetryShutdown, err := initTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			observability.Logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	logger := observability.Named("calculator")

	// Storage
	st, err := store.Open(ctx, cfg.Store, observability.Named("store"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			observability.Logger.Warn("store close", zap.Error(err))
		}
	}()

	templates := store.NewCachedTemplates(st, cfg.Store.TemplateCacheTTL)
	svc := calculator.NewService(templates, st, logger)

	// Router
	router := server.NewRouter(calculator.NewHandler(svc))

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		observability.Logger.Info("server started",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.Store.Driver),
			zap.Bool("telemetry", cfg.Telemetry.Enabled),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return waitForShutdown(ctx, srv, errCh, cfg.Server.ShutdownTimeout)
}

func waitForShutdown(ctx context.Context, srv *http.Server, errCh <-chan error, timeout time.Duration) error {
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	observability.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
