package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Analysis metrics
	AnalysesTotal       *prometheus.CounterVec
	AnalysisDuration    *prometheus.HistogramVec
	AnalysisEdges       *prometheus.HistogramVec
	PrimaryQueriesTotal *prometheus.CounterVec
	DegradedStepsTotal  *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blastradius_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blastradius_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blastradius_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		AnalysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blastradius_analyses_total",
				Help: "Total number of dependency and usage analyses",
			},
			[]string{"direction", "kind", "status"},
		),
		AnalysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blastradius_analysis_duration_seconds",
				Help:    "Analysis duration in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"direction"},
		),
		AnalysisEdges: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blastradius_analysis_edges",
				Help:    "Number of edges returned per analysis",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"direction"},
		),
		PrimaryQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blastradius_primary_queries_total",
				Help: "Total number of primary dependency queries",
			},
			[]string{"direction", "status"},
		),
		DegradedStepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blastradius_degraded_steps_total",
				Help: "Total number of best-effort steps that failed",
			},
			[]string{"stage"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blastradius_cache_hits_total",
				Help: "Total number of session cache hits",
			},
			[]string{"kind"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blastradius_cache_misses_total",
				Help: "Total number of session cache misses",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.AnalysisEdges,
		m.PrimaryQueriesTotal,
		m.DegradedStepsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// RecordAnalysis records one finished analysis
func (m *Metrics) RecordAnalysis(direction, kind, status string, duration time.Duration, edges int) {
	m.AnalysesTotal.WithLabelValues(direction, kind, status).Inc()
	m.AnalysisDuration.WithLabelValues(direction).Observe(duration.Seconds())
	if status != "error" {
		m.AnalysisEdges.WithLabelValues(direction).Observe(float64(edges))
	}
}

// RecordPrimaryQuery records one primary dependency query
func (m *Metrics) RecordPrimaryQuery(direction string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.PrimaryQueriesTotal.WithLabelValues(direction, status).Inc()
}

// RecordDegraded records a failed best-effort step
func (m *Metrics) RecordDegraded(stage string) {
	m.DegradedStepsTotal.WithLabelValues(stage).Inc()
}

// RecordCacheLookup records a session cache lookup
func (m *Metrics) RecordCacheLookup(kind string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(kind).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(kind).Inc()
}

// RegisterDBStats exports connection pool statistics of the snapshot database
func RegisterDBStats(registry *prometheus.Registry, db *sql.DB, name string) {
	registry.MustRegister(collectors.NewDBStatsCollector(db, name))
}

// RegisterDescribeCacheStats exports hit and miss counts of a describe cache
func RegisterDescribeCacheStats(registry *prometheus.Registry, stats func() (hits, misses int64)) {
	registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "blastradius_describe_cache_hits_total",
			Help: "Total number of describe cache hits",
		}, func() float64 {
			hits, _ := stats()
			return float64(hits)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "blastradius_describe_cache_misses_total",
			Help: "Total number of describe cache misses",
		}, func() float64 {
			_, misses := stats()
			return float64(misses)
		}),
	)
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel returns the route template so component ids do not explode label
// cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			path := routeLabel(r)
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, registry *prometheus.Registry) {
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")
}
