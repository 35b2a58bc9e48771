package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Recorder(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.RecordAnalysis("usage", "StandardField", "success", 2*time.Second, 12)
	metrics.RecordAnalysis("usage", "StandardField", "error", time.Second, 0)
	metrics.RecordPrimaryQuery("usage", nil)
	metrics.RecordPrimaryQuery("usage", errors.New("boom"))
	metrics.RecordDegraded("references.CustomField")
	metrics.RecordCacheLookup("usage", true)
	metrics.RecordCacheLookup("usage", false)
	metrics.RecordCacheLookup("usage", false)

	expected := `
# HELP blastradius_analyses_total Total number of dependency and usage analyses
# TYPE blastradius_analyses_total counter
blastradius_analyses_total{direction="usage",kind="StandardField",status="error"} 1
blastradius_analyses_total{direction="usage",kind="StandardField",status="success"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(metrics.AnalysesTotal, strings.NewReader(expected)))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PrimaryQueriesTotal.WithLabelValues("usage", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PrimaryQueriesTotal.WithLabelValues("usage", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DegradedStepsTotal.WithLabelValues("references.CustomField")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues("usage")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CacheMissesTotal.WithLabelValues("usage")))

	// failed analyses do not observe an edge count
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.AnalysisEdges))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/api/v1/components/{type}/{id}/usage", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		io.WriteString(w, "short and stout")
	})

	for _, id := range []string{"a", "b"} {
		req := httptest.NewRequest("GET", "/api/v1/components/ApexClass/"+id+"/usage", nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	count := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/components/{type}/{id}/usage", "418"))
	assert.Equal(t, 2.0, count, "requests should be labelled by route template")
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.HTTPResponseSize))
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.RecordDegraded("enrich.code")

	router := mux.NewRouter()
	RegisterMetricsEndpoint(router, registry)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `blastradius_degraded_steps_total{stage="enrich.code"} 1`)
}

func TestRegisterDescribeCacheStats(t *testing.T) {
	registry := prometheus.NewRegistry()
	RegisterDescribeCacheStats(registry, func() (int64, int64) { return 7, 3 })

	expected := `
# HELP blastradius_describe_cache_hits_total Total number of describe cache hits
# TYPE blastradius_describe_cache_hits_total counter
blastradius_describe_cache_hits_total 7
# HELP blastradius_describe_cache_misses_total Total number of describe cache misses
# TYPE blastradius_describe_cache_misses_total counter
blastradius_describe_cache_misses_total 3
`
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected)))
}

func TestRegisterDBStats(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	registry := prometheus.NewRegistry()
	RegisterDBStats(registry, db, "snapshot")

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
