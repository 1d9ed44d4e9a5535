package service

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-qa/sf-acceptor/metrics"
)

func TestHealthzHandle(t *testing.T) {
	h := &HealthzServer{log: log.NewLogger(log.DiscardHandler())}
	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHealthzHandleReportsStatus(t *testing.T) {
	s := New(log.NewLogger(log.DiscardHandler()), Config{
		Status: func() string { return "running: 3 environments" },
	})
	rec := httptest.NewRecorder()
	s.Healthz.Handle(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\nrunning: 3 environments", rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestMetricsHandlerExposesRegistry(t *testing.T) {
	metrics.RecordWorkerSpawn("chrome / Windows 11")

	srv := httptest.NewServer((&MetricsServer{}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "sf_acceptor_workers_spawned_total")
}

func TestShutdownBeforeStart(t *testing.T) {
	s := New(log.NewLogger(log.DiscardHandler()), Config{})
	s.Start(t.Context())
	s.Shutdown()
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "0.0.0.0:8080", cfg.HealthzAddr)
	assert.Equal(t, "0.0.0.0:7300", cfg.MetricsAddr)
}
