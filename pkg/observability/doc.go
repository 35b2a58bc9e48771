// Package observability provides structured logging, Prometheus metrics,
// health checks and OpenTelemetry tracing for the blastradius server.
//
// # Structured Logging
//
//	logger, err := observability.NewLogger("info", "json", os.Stderr)
//	logger.WithField("entry_point", "Account.Rating").Info("analysis started")
//
// # Prometheus Metrics
//
// Metrics implements the analyzer's recorder, so analyses, primary queries,
// degraded steps and session cache lookups are counted without the analyzer
// knowing about Prometheus:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	analyzer, err := dependencies.NewAnalyzer(dependencies.Config{Recorder: metrics, ...})
//
// # Health Checks
//
//	checker := observability.NewHealthChecker("sql", version,
//		observability.DatabaseDependency(db),
//		observability.RedisDependency(redisClient),
//	)
//	observability.RegisterHealthRoutes(router, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "blastradius",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
