package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/blastradius/pkg/config"
	"github.com/platinummonkey/blastradius/pkg/dependencies"
	"github.com/platinummonkey/blastradius/pkg/httputil"
	"github.com/platinummonkey/blastradius/pkg/observability"
	"github.com/platinummonkey/blastradius/pkg/sfapi"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout)
	if err != nil {
		return err
	}

	ctx := context.Background()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Environment:    cfg.Observability.OTelEnvironment,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	src, err := sfapi.Open(ctx, cfg.Source, logger)
	if err != nil {
		return fmt.Errorf("failed to open %s source: %w", cfg.Source.Type, err)
	}
	logger.WithField("source", cfg.Source.Type).Info("Collaborator source opened")

	handler, err := newHandler(cfg, src, logger)
	if err != nil {
		src.Close()
		return err
	}

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      otelhttp.NewHandler(handler, "blastradius"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return src.Close()
	})

	return serve(server, shutdown, logger)
}

// serve runs the server until a signal arrives or listening fails
func serve(server *http.Server, shutdown *observability.ShutdownManager, logger logrus.FieldLogger) error {
	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", server.Addr).Info("Starting blastradius server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	return shutdown.WaitForShutdown(serverErr)
}

// newHandler assembles the analysis API, health checks and metrics
func newHandler(cfg *config.Config, src *sfapi.Source, logger logrus.FieldLogger) (http.Handler, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)
	if src.DB != nil {
		observability.RegisterDBStats(registry, src.DB, "snapshot")
	}
	if src.Describer != nil {
		observability.RegisterDescribeCacheStats(registry, src.Describer.Stats)
	}

	analyzer, err := dependencies.NewAnalyzer(dependencies.Config{
		Services:    src.Services,
		Logger:      logger,
		Recorder:    metrics,
		BaseURL:     cfg.Analysis.BaseURL,
		BatchSize:   cfg.Analysis.BatchSize,
		Concurrency: cfg.Analysis.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	router := mux.NewRouter()
	router.Use(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
	)
	if cfg.Observability.MetricsEnabled {
		router.Use(observability.HTTPMetricsMiddleware(metrics))
	}
	router.Use(httputil.CORSMiddleware(cfg.Server.CORSOrigins))

	dependencies.NewHandlers(analyzer, dependencies.HandlerOptions{
		Defaults: cfg.Analysis.Options(),
		Export:   cfg.Analysis.ExportOptions(),
		Logger:   logger,
	}).RegisterRoutes(router)

	observability.RegisterHealthRoutes(router, observability.NewHealthChecker(cfg.Source.Type, version, healthDependencies(src)...))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(router, registry)
	}

	return router, nil
}

// healthDependencies checks whatever the source opened
func healthDependencies(src *sfapi.Source) []observability.Dependency {
	var deps []observability.Dependency
	if src.DB != nil {
		deps = append(deps, observability.DatabaseDependency(src.DB))
	}
	if src.Redis != nil {
		deps = append(deps, observability.RedisDependency(src.Redis))
	}
	if src.Describer != nil {
		deps = append(deps, observability.DescribeCacheDependency(src.Describer.Stats))
	}
	return deps
}
