// Command hazard runs the tropical-cyclone wind hazard pipeline: it loads a
// climatology, synthesizes storm tracks over many simulation units, folds
// their windfields into the analysis grid, fits the extreme value model per
// cell, and persists and publishes the result. Configuration comes from the
// environment; /healthz, /readyz, /statusz, and /metrics are served while the
// run is in flight. The process exits when the run finishes or on SIGINT or
// SIGTERM, whichever comes first.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/cyclone-hazard/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/cyclone-hazard/internal/adapter/kafka"
	"github.com/couchcryptid/cyclone-hazard/internal/climate"
	"github.com/couchcryptid/cyclone-hazard/internal/config"
	"github.com/couchcryptid/cyclone-hazard/internal/observability"
	"github.com/couchcryptid/cyclone-hazard/internal/persistence"
	"github.com/couchcryptid/cyclone-hazard/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	clim, err := climate.Load(cfg.ClimatologyPath)
	if err != nil {
		logger.Error("failed to load climatology", "path", cfg.ClimatologyPath, "error", err)
		os.Exit(1)
	}
	logger.Info("climatology loaded",
		"path", cfg.ClimatologyPath,
		"mean_frequency", clim.MeanFrequency,
		"cells", clim.Domain.CellCount(),
	)

	// Persistence is feature-flagged via RESULTS_PATH.
	var store pipeline.ResultStore
	var db *persistence.DB
	if cfg.ResultsPath != "" {
		db, err = persistence.Open(cfg.ResultsPath)
		if err != nil {
			logger.Error("failed to open results store", "path", cfg.ResultsPath, "error", err)
			os.Exit(1)
		}
		store = db
		logger.Info("results store enabled", "path", cfg.ResultsPath)
	} else {
		logger.Info("results store disabled")
	}

	// Event publishing is feature-flagged via EVENTS_ENABLED.
	var sink pipeline.EventSink
	var writer *kafkaadapter.Writer
	if cfg.EventsEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sink = writer
		logger.Info("run events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("run events disabled")
	}

	p := pipeline.New(clim, cfg, logger, metrics, store, sink)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		runErr = <-errCh
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("results store close error", "error", err)
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("hazard run failed", "error", runErr)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
