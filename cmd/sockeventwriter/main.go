package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/jittakal/sockeventwriter/internal/config"
	"github.com/jittakal/sockeventwriter/internal/config/dto"
	"github.com/jittakal/sockeventwriter/internal/coordinator"
	"github.com/jittakal/sockeventwriter/internal/encoder"
	"github.com/jittakal/sockeventwriter/internal/endpoint"
	"github.com/jittakal/sockeventwriter/internal/flush"
	"github.com/jittakal/sockeventwriter/internal/generator"
	"github.com/jittakal/sockeventwriter/internal/observability"
	"github.com/jittakal/sockeventwriter/internal/pool"
	"github.com/jittakal/sockeventwriter/internal/report"
	"github.com/jittakal/sockeventwriter/internal/server"
)

var (
	// Version information (set during build)
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"

	// Command-line flags
	configFile  = flag.String("config", getEnv("CONFIG_FILE", "config/application.yaml"), "Path to configuration file")
	logLevel    = flag.String("log-level", getEnv("LOG_LEVEL", ""), "Log level override (debug, info, warn, error)")
	metricsPort = flag.String("metrics-port", getEnv("METRICS_PORT", ""), "Prometheus metrics port override")
)

func main() {
	flag.Parse()

	cfg, err := config.NewLoader().Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := applyOverrides(cfg, *logLevel, *metricsPort); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid flag: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cfg.Observability.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Starting sockeventwriter",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("buildTime", buildTime),
		zap.String("configFile", *configFile),
	)

	code := run(cfg, logger)
	_ = logger.Sync()
	os.Exit(code)
}

func run(cfg *dto.ApplicationConfig, logger *zap.Logger) int {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	formats, err := encoder.ParseFormats(cfg.Writer.Encodings)
	if err != nil {
		logger.Error("Invalid encodings", zap.Error(err))
		return 1
	}

	suppliers, err := generator.NewFactory(cfg.Generator, logger)
	if err != nil {
		logger.Error("Failed to create record generator", zap.Error(err))
		return 1
	}

	manager, err := endpoint.NewManager(endpoint.Config{
		Dir:         cfg.Sockets.Directory,
		Prefix:      cfg.Sockets.Prefix,
		BufferSize:  cfg.Writer.BufferSizeKB * 1024,
		Compression: cfg.Writer.Compression,
		RateLimit:   cfg.Writer.RateLimitBytesPerSec,
	}, logger)
	if err != nil {
		logger.Error("Failed to create endpoint manager", zap.Error(err))
		return 1
	}

	coord, err := coordinator.New(coordinator.Options{
		Manager:   manager,
		Pool:      pool.New(cfg.Sockets.PoolSize),
		Factory:   encoder.NewFactory(flush.NewPolicy(cfg.Writer.FlushThreshold), cfg.Writer.ParquetCompression),
		Formats:   formats,
		Suppliers: suppliers,
		Logger:    logger,
		Metrics:   metrics,
	})
	if err != nil {
		logger.Error("Failed to create coordinator", zap.Error(err))
		return 1
	}

	srv := server.NewServer(serverConfig(cfg.Observability), server.NewCoordinatorChecker(coord), registry, logger)
	srv.Start()

	grace := time.Duration(cfg.Shutdown.GracePeriodSeconds) * time.Second
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown failed", zap.Error(err))
		}
		logger.Info("Shutdown complete")
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	identities := cfg.Sockets.ResolveIdentities()
	startedAt := time.Now()
	results, runErr := coord.RunAll(ctx, identities)
	finishedAt := time.Now()

	if runErr != nil {
		logger.Error("Run finished with failures", zap.Error(runErr))
	}

	if cfg.Report.Enabled && results != nil {
		publishReport(cfg, report.Build(cfg.Application.Name, cfg.Application.Version, startedAt, finishedAt, results), grace, logger, metrics)
	}

	if runErr != nil {
		return 1
	}
	return 0
}

// publishReport never affects the exit code.
func publishReport(cfg *dto.ApplicationConfig, runReport *report.RunReport, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	publisher, err := report.NewPublisher(ctx, cfg.Report, logger)
	if err != nil {
		logger.Error("Failed to create report publisher", zap.String("backend", cfg.Report.Backend), zap.Error(err))
		return
	}

	reporter := report.NewReporter(publisher, cfg.Report.Backend, "/"+cfg.Application.Name, timeout, logger, metrics)
	defer reporter.Close()

	_ = reporter.Publish(ctx, runReport)
}

func serverConfig(cfg dto.ObservabilityConfig) server.Config {
	var sc server.Config
	if cfg.Health.Enabled {
		sc.HealthPort = cfg.Health.Port
		sc.LivenessPath = cfg.Health.LivenessPath
		sc.ReadinessPath = cfg.Health.ReadinessPath
	}
	if cfg.Metrics.Enabled {
		sc.MetricsPort = cfg.Metrics.Port
		sc.MetricsPath = cfg.Metrics.Path
	}
	return sc
}

func applyOverrides(cfg *dto.ApplicationConfig, level, port string) error {
	if level != "" {
		cfg.Observability.Logging.Level = level
	}
	if port != "" {
		p, err := strconv.Atoi(port)
		if err != nil || p < 1 || p > 65535 {
			return fmt.Errorf("invalid metrics port: %s", port)
		}
		cfg.Observability.Metrics.Port = p
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
