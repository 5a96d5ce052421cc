package ingestion_engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/core/chunker"
	"github.com/markdave123-py/contexta-ingest/internal/metrics"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

// IngestConfig tunes the pipeline.
//
// MinContentLength: extracted text shorter than this fails before fingerprinting.
// PersistBatchSize: chunks embedded and written per flush.
// QueueSize:        capacity of the asynchronous job queue.
// JobRetention:     how long a finished job's status stays queryable.
// MaxFinishedJobs:  finished statuses kept at most; the oldest go first.
// ArchiveBucket:    S3 bucket for raw sources; empty disables archiving.
type IngestConfig struct {
	MinContentLength int
	PersistBatchSize int
	QueueSize        int
	JobRetention     time.Duration
	MaxFinishedJobs  int
	ArchiveBucket    string
}

func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		MinContentLength: 50,
		PersistBatchSize: 16,
		QueueSize:        64,
		JobRetention:     time.Hour,
		MaxFinishedJobs:  1000,
	}
}

// Splitter cuts normalized text into chunks.
type Splitter interface {
	Chunk(text string) []chunker.Chunk
}

// Embedder embeds ordered texts, returning nil for blank positions.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbeddingDimension() int
}

// DocumentIngestor orchestrates one ingestion per call:
//
// db:        persistence for documents and chunks.
// obj:       optional raw source archive.
// extractor: turns a source descriptor into text.
// splitter:  chunker.
// embedder:  batched embedding provider.
// jobs:      in-memory queue for asynchronous requests.
type DocumentIngestor struct {
	db        core.DbClient
	obj       core.ObjectClient
	extractor core.ContentExtractor
	splitter  Splitter
	embedder  Embedder
	cfg       IngestConfig
	logger    *slog.Logger
	metrics   *metrics.Metrics

	jobs     chan Job
	statuses *jobTable
	workers  *errgroup.Group
}

// Job is one queued ingestion request.
type Job struct {
	ID      string
	Request models.IngestRequest
}

// JobState tracks an asynchronous job.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

type JobStatus struct {
	ID         string   `json:"id"`
	State      JobState `json:"state"`
	DocumentID string   `json:"document_id,omitempty"`
	Duplicate  bool     `json:"duplicate,omitempty"`
	Error      string   `json:"error,omitempty"`
}
