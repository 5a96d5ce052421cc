// Package metrics defines the Prometheus collectors used by the ingestion
// pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	IngestionsTotal       *prometheus.CounterVec
	IngestionDuration     *prometheus.HistogramVec
	FetchAttemptsTotal    *prometheus.CounterVec
	EmbeddingBatchesTotal *prometheus.CounterVec
	ChunksCreatedTotal    prometheus.Counter
	PagesSkippedTotal     prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IngestionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestions_total",
				Help: "Ingestion calls by source kind and outcome (committed, duplicate, failed).",
			},
			[]string{"source", "outcome"},
		),
		IngestionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingestion_duration_seconds",
				Help:    "End-to-end ingestion latency in seconds.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"source"},
		),
		FetchAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetch_attempts_total",
				Help: "Outbound fetch attempts by result (ok, retry, fail).",
			},
			[]string{"result"},
		),
		EmbeddingBatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedding_batches_total",
				Help: "Embedding provider calls by status.",
			},
			[]string{"status"},
		),
		ChunksCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chunks_created_total",
				Help: "Total chunks persisted.",
			},
		),
		PagesSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pdf_pages_skipped_total",
				Help: "PDF pages that failed to render and were skipped.",
			},
		),
	}

	reg.MustRegister(
		m.IngestionsTotal,
		m.IngestionDuration,
		m.FetchAttemptsTotal,
		m.EmbeddingBatchesTotal,
		m.ChunksCreatedTotal,
		m.PagesSkippedTotal,
	)
	return m
}

// Handler serves the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves a specific gatherer, used with a private registry.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveIngestion(source, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.IngestionsTotal.WithLabelValues(source, outcome).Inc()
	m.IngestionDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) FetchAttempt(result string) {
	if m == nil {
		return
	}
	m.FetchAttemptsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) EmbeddingBatch(status string) {
	if m == nil {
		return
	}
	m.EmbeddingBatchesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ChunksCreated(n int) {
	if m == nil {
		return
	}
	m.ChunksCreatedTotal.Add(float64(n))
}

func (m *Metrics) PageSkipped() {
	if m == nil {
		return
	}
	m.PagesSkippedTotal.Inc()
}
