package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/blastradius/pkg/config"
	"github.com/platinummonkey/blastradius/pkg/observability"
	"github.com/platinummonkey/blastradius/pkg/sfapi"
	"github.com/platinummonkey/blastradius/pkg/sfapi/sfapitest"
)

func newTestHandler(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()

	m := sfapitest.New()
	m.AddRecords("ApexClass", sfapi.Record{
		"Id": "01p000000000001", "Name": "ClassA", "Body": "public class ClassA { void f(Account a) { a.Rating = 'Hot'; } }",
	})
	describer := sfapi.NewCachingDescriber(m, 10, time.Minute)
	services := m.Services()
	services.Describe = describer

	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	handler, err := newHandler(cfg, &sfapi.Source{Services: services, Describer: describer}, logger)
	require.NoError(t, err)
	return handler
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestNewHandler_Routes(t *testing.T) {
	h := newTestHandler(t, config.Default())

	w := get(h, "/api/v1/components/StandardField/Account.Rating/usage")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ClassA")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	assert.Equal(t, http.StatusOK, get(h, "/health/live").Code)
	ready := get(h, "/health/ready")
	assert.Equal(t, http.StatusOK, ready.Code)
	assert.Contains(t, ready.Body.String(), `"describe_cache"`)
	assert.Equal(t, http.StatusOK, get(h, "/api/v1/kinds").Code)
}

func TestNewHandler_Metrics(t *testing.T) {
	h := newTestHandler(t, config.Default())

	get(h, "/api/v1/components/StandardField/Account.Rating/usage")

	w := get(h, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `blastradius_http_requests_total{method="GET",path="/api/v1/components/{type}/{id}/usage",status="200"} 1`)
	assert.Contains(t, body, `blastradius_analyses_total{direction="usage",kind="StandardField",status="success"} 1`)
	assert.Contains(t, body, "blastradius_describe_cache_hits_total")
	assert.Contains(t, body, "go_goroutines")
}

func TestNewHandler_MetricsDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Observability.MetricsEnabled = false
	h := newTestHandler(t, cfg)

	assert.Equal(t, http.StatusNotFound, get(h, "/metrics").Code)
}

func TestServe_ListenFailureReturns(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	logger, _ := test.NewNullLogger()
	server := &http.Server{Addr: taken.Addr().String(), Handler: http.NotFoundHandler()}
	shutdown := observability.NewShutdownManager(logger, server, time.Second)
	var closed bool
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		closed = true
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- serve(server, shutdown, logger) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server failed")
		assert.True(t, closed)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after the listen failure")
	}
}
