package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/nws-alert-ingest/internal/adapter/http"
	"github.com/couchcryptid/nws-alert-ingest/internal/app"
	"github.com/couchcryptid/nws-alert-ingest/internal/config"
	"github.com/couchcryptid/nws-alert-ingest/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, closeLog, err := observability.OpenLogger(cfg.LogLevel, cfg.LogFormat, cfg.PollLogFile)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer closeLog()

	metrics := observability.NewMetrics()

	a, err := app.New(cfg, clockwork.NewRealClock(), logger, metrics)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, a.Pipeline, a, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start poll scheduler.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.Pipeline.Run(ctx, cfg.ScheduleTick); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("scheduler did not stop before shutdown timeout")
	}
	if err := a.Close(); err != nil {
		logger.Error("close resources error", "error", err)
	}

	logger.Info("shutdown complete")
}
