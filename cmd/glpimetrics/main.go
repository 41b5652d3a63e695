// GLPI metrics service: a read-only aggregation layer between a GLPI
// instance and the support dashboard: ticket metrics by support level,
// technician ranking, recent tickets, and a liveness probe.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/centralti/glpi-metrics/pkg/aggregate"
	"github.com/centralti/glpi-metrics/pkg/api"
	"github.com/centralti/glpi-metrics/pkg/cache"
	"github.com/centralti/glpi-metrics/pkg/config"
	"github.com/centralti/glpi-metrics/pkg/dashboard"
	"github.com/centralti/glpi-metrics/pkg/fields"
	"github.com/centralti/glpi-metrics/pkg/glpi"
	"github.com/centralti/glpi-metrics/pkg/metrics"
	"github.com/centralti/glpi-metrics/pkg/ranking"
	"github.com/centralti/glpi-metrics/pkg/tickets"
	"github.com/centralti/glpi-metrics/pkg/version"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting GLPI metrics service",
		"version", version.Full(),
		"http_port", cfg.HTTPPort,
		"glpi_url", cfg.GLPIURL)

	ctx := context.Background()

	store := cache.NewStore()
	observer := metrics.NewObserver()

	session := glpi.NewSessionManager(glpi.SessionConfig{
		BaseURL:     cfg.GLPIURL,
		AppToken:    cfg.AppToken,
		UserToken:   cfg.UserToken,
		TTL:         cfg.SessionTTL,
		RenewBuffer: cfg.RenewBuffer,
		MaxRetries:  cfg.MaxRetries,
		BackoffUnit: cfg.BackoffUnit,
		HTTPTimeout: cfg.FastTimeout,
	}, logger)

	client := glpi.NewClient(glpi.ClientConfig{
		BaseURL:        cfg.GLPIURL,
		FastTimeout:    cfg.FastTimeout,
		DefaultTimeout: cfg.DefaultTimeout,
		SlowTimeout:    cfg.SlowTimeout,
		MaxRetries:     cfg.MaxRetries,
		BackoffUnit:    cfg.BackoffUnit,
	}, session, observer, logger)

	registry := glpi.NewRegistry(client, store, cfg.TTL.FieldIDs, observer, logger)
	resolver := fields.NewResolver(client, store, cfg.TTL.Names, observer, logger)

	aggEngine := aggregate.NewEngine(client, registry, aggregate.Config{
		PageSize:    cfg.PageSize,
		MaxRecords:  cfg.MaxRecords,
		BackoffUnit: cfg.BackoffUnit,
		DateField:   cfg.DateFieldLevels,
	}, observer, logger)

	assembler := dashboard.NewAssembler(client, registry, aggEngine, store, dashboard.Config{
		CacheTTL:         cfg.TTL.Dashboard,
		DateFieldGeneral: cfg.DateFieldGeneral,
		Levels:           cfg.Levels,
	}, observer, logger)

	rankEngine := ranking.NewEngine(client, registry, store, ranking.Config{
		NameWorkers:    cfg.NameWorkers,
		MetricWorkers:  cfg.MetricWorkers,
		WorkerTimeout:  cfg.WorkerTimeout,
		CandidateCap:   cfg.CandidateCap,
		BatchSize:      cfg.BatchSize,
		PageSize:       cfg.PageSize,
		MaxRecords:     cfg.MaxRecords,
		CacheTTL:       cfg.TTL.Ranking,
		TechMetricsTTL: cfg.TTL.TechnicianMetrics,
		Levels:         cfg.Levels,
	}, observer, logger)

	ticketSvc := tickets.NewService(client, registry, resolver, logger)
	prober := glpi.NewProbe(cfg.GLPIURL, cfg.AppToken, session, logger)

	server := api.NewServer(assembler, rankEngine, ticketSvc, prober, store, observer, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		logger.Error("Server error triggered shutdown", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Best-effort killSession so GLPI does not accumulate orphan sessions.
	session.Close(shutdownCtx)

	logger.Info("Shutdown complete")
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
