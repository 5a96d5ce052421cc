package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-ingest/internal/api/handlers"
	"github.com/markdave123-py/contexta-ingest/internal/core/chunker"
	"github.com/markdave123-py/contexta-ingest/internal/core/embedding"
	"github.com/markdave123-py/contexta-ingest/internal/core/extractor"
	"github.com/markdave123-py/contexta-ingest/internal/core/ingestion_engine"
	"github.com/markdave123-py/contexta-ingest/internal/metrics"
	"github.com/markdave123-py/contexta-ingest/internal/services"
	"github.com/markdave123-py/contexta-ingest/internal/testutils"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func testRouter(t *testing.T, ready Pinger) (http.Handler, *testutils.MemoryStore) {
	t.Helper()
	store := testutils.NewMemoryStore()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	b, err := embedding.New(testutils.NewHashEmbedder(8), embedding.Options{BatchSize: 8}, embedding.WithMetrics(m))
	require.NoError(t, err)
	split, err := chunker.New(chunker.DefaultConfig())
	require.NoError(t, err)
	ing, err := ingestion_engine.NewDocumentIngestor(store, nil, extractor.New(nil, nil, nil), split, b,
		ingestion_engine.DefaultIngestConfig(), ingestion_engine.WithMetrics(m))
	require.NoError(t, err)

	return NewRouter(RouterDeps{
		Ingest:    handlers.NewIngestHandler(ing, nil),
		Documents: handlers.NewDocumentHandler(services.NewDocumentService(store, b, nil), nil),
		Metrics:   metrics.HandlerFor(reg),
		Ready:     ready,
	}), store
}

func TestRouter_Probes(t *testing.T) {
	h, _ := testRouter(t, pingFunc(func(context.Context) error { return nil }))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	down, _ := testRouter(t, pingFunc(func(context.Context) error { return errors.New("connection refused") }))
	w = httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_IngestThenRead(t *testing.T) {
	h, store := testRouter(t, nil)
	body := `{"type":"text","title":"ML","content":"` +
		strings.Repeat("Machine learning is a subset of artificial intelligence. ", 20) + `"}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 1, store.DocumentCount())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(body))
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "second ingest is a duplicate")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"ML"`)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `ingestions_total{outcome="committed",source="text"} 1`)
	assert.Contains(t, w.Body.String(), `ingestions_total{outcome="duplicate",source="text"} 1`)
}

func TestRouter_CORSPreflight(t *testing.T) {
	h, _ := testRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/ingest", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
