package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/RouteRisk/internal/api"
	"github.com/MikeSquared-Agency/RouteRisk/internal/collector"
	"github.com/MikeSquared-Agency/RouteRisk/internal/config"
	"github.com/MikeSquared-Agency/RouteRisk/internal/hermes"
	"github.com/MikeSquared-Agency/RouteRisk/internal/recalc"
	"github.com/MikeSquared-Agency/RouteRisk/internal/risk"
	"github.com/MikeSquared-Agency/RouteRisk/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var db store.Store
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := pg.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		db = pg
		logger.Info("connected to database")
	} else {
		db = store.NewMemoryStore()
		logger.Warn("no database configured, using in-memory store")
	}
	defer db.Close()

	// Factor data comes from the collector when one is configured.
	var supplier risk.Supplier = db
	if cfg.Collector.URL != "" {
		supplier = collector.NewHTTPClient(cfg.Collector.URL, cfg.Collector.Token, cfg.CollectorTimeout())
		logger.Info("reading factor data from collector", "url", cfg.Collector.URL)
	}

	// Engine
	engine, err := buildEngine(cfg, supplier, logger)
	if err != nil {
		var cfgErr *risk.ConfigurationError
		if errors.As(err, &cfgErr) {
			logger.Error("invalid scoring configuration", "reason", cfgErr.Reason)
		} else {
			logger.Error("failed to build engine", "error", err)
		}
		os.Exit(1)
	}
	logger.Info("risk engine ready", "weights", engine.Policy().Weights(), "max_batch_size", engine.MaxBatchSize())

	// Hermes (optional)
	var hermesClient hermes.Client
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}

	// Recalculator
	recalcOpts := recalc.Options{
		StaleAfter: cfg.RecalcStaleAfter(),
		BatchLimit: cfg.Recalc.BatchLimit,
	}
	if cfg.Recalc.Enabled {
		recalcOpts.Interval = cfg.RecalcInterval()
	}
	rc := recalc.New(engine, db, hermesClient, recalcOpts, logger)
	rc.Start(ctx)
	defer rc.Stop()
	rc.SetupSubscriptions(ctx)
	logger.Info("recalculator started", "enabled", cfg.Recalc.Enabled, "interval", recalcOpts.Interval)

	// API server
	router := api.NewRouter(rc, db, engine.Policy(), engine.Grades(), api.RouterConfig{
		AdminToken:         cfg.Server.AdminToken,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
	}, logger)
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: api.NewMetricsRouter(),
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func buildEngine(cfg *config.Config, supplier risk.Supplier, logger *slog.Logger) (*risk.Engine, error) {
	w := cfg.Scoring.Weights
	policy, err := risk.NewWeightPolicy(risk.WeightSet{
		RoadConditions:    w.RoadConditions,
		AccidentProne:     w.AccidentProne,
		SharpTurns:        w.SharpTurns,
		BlindSpots:        w.BlindSpots,
		TwoWayTraffic:     w.TwoWayTraffic,
		TrafficDensity:    w.TrafficDensity,
		WeatherConditions: w.WeatherConditions,
		EmergencyServices: w.EmergencyServices,
		NetworkCoverage:   w.NetworkCoverage,
		Amenities:         w.Amenities,
		SecurityIssues:    w.SecurityIssues,
	})
	if err != nil {
		return nil, err
	}

	return risk.NewEngine(policy, risk.DefaultGradeTable(), risk.DefaultCalculators(), supplier, risk.Options{
		FactorTimeout:      cfg.FactorTimeout(),
		StalenessThreshold: cfg.StalenessThreshold(),
		HighSampleDensity:  cfg.Scoring.HighSampleDensity,
		MaxBatchSize:       cfg.Scoring.MaxBatchSize,
		BatchConcurrency:   cfg.Scoring.BatchConcurrency,
	}, logger)
}
