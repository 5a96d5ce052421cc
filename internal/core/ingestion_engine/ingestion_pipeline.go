package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
	"github.com/markdave123-py/contexta-ingest/internal/metrics"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

type Option func(*DocumentIngestor)

func WithLogger(l *slog.Logger) Option {
	return func(i *DocumentIngestor) { i.logger = logger.WithComponent(l, "ingestor") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(i *DocumentIngestor) { i.metrics = m }
}

// NewDocumentIngestor wires the pipeline. obj may be nil when archiving is off.
func NewDocumentIngestor(db core.DbClient, obj core.ObjectClient, ext core.ContentExtractor, sp Splitter, emb Embedder, cfg IngestConfig, opts ...Option) (*DocumentIngestor, error) {
	if db == nil || ext == nil || sp == nil || emb == nil {
		return nil, errors.New("ingestor: db, extractor, splitter and embedder are required")
	}
	if cfg.PersistBatchSize <= 0 {
		return nil, fmt.Errorf("ingestor: persist batch size must be positive, got %d", cfg.PersistBatchSize)
	}
	defaults := DefaultIngestConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.JobRetention <= 0 {
		cfg.JobRetention = defaults.JobRetention
	}
	if cfg.MaxFinishedJobs <= 0 {
		cfg.MaxFinishedJobs = defaults.MaxFinishedJobs
	}
	if cfg.ArchiveBucket != "" && obj == nil {
		return nil, errors.New("ingestor: archive bucket set without an object client")
	}

	i := &DocumentIngestor{
		db: db, obj: obj, extractor: ext, splitter: sp, embedder: emb, cfg: cfg,
		logger:   logger.WithComponent(nil, "ingestor"),
		jobs:     make(chan Job, cfg.QueueSize),
		statuses: newJobTable(cfg.JobRetention, cfg.MaxFinishedJobs),
	}
	for _, o := range opts {
		o(i)
	}
	return i, nil
}

// Start runs numWorkers goroutines reading from the jobs queue until ctx is
// done. Wait blocks until they have all returned.
func (i *DocumentIngestor) Start(ctx context.Context, numWorkers int) {
	g, gctx := errgroup.WithContext(ctx)
	for w := 1; w <= numWorkers; w++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					i.logger.Debug("worker shutting down", "worker", w)
					return nil
				case job := <-i.jobs:
					i.run(gctx, w, job)
				}
			}
		})
	}
	i.workers = g
}

// Wait returns once every worker started by Start has exited.
func (i *DocumentIngestor) Wait() error {
	if i.workers == nil {
		return nil
	}
	return i.workers.Wait()
}

// Enqueue schedules a request and returns its job id. It blocks while the
// queue is full, until ctx is done.
func (i *DocumentIngestor) Enqueue(ctx context.Context, req models.IngestRequest) (string, error) {
	if err := req.Source.Validate(); err != nil {
		return "", err
	}
	job := Job{ID: uuid.NewString(), Request: req}
	i.statuses.set(JobStatus{ID: job.ID, State: JobQueued})

	select {
	case i.jobs <- job:
		return job.ID, nil
	case <-ctx.Done():
		i.statuses.remove(job.ID)
		return "", ctx.Err()
	}
}

func (i *DocumentIngestor) JobStatus(id string) (JobStatus, bool) {
	return i.statuses.get(id)
}

func (i *DocumentIngestor) run(ctx context.Context, worker int, job Job) {
	ctx = logger.WithRequestID(ctx, job.ID)
	i.logger.InfoContext(ctx, "processing queued ingestion", "worker", worker, "source", job.Request.Source.Kind)
	i.statuses.set(JobStatus{ID: job.ID, State: JobRunning})

	res, err := i.Ingest(ctx, job.Request)
	if err != nil {
		i.statuses.set(JobStatus{ID: job.ID, State: JobFailed, Error: err.Error()})
		return
	}
	i.statuses.set(JobStatus{
		ID: job.ID, State: JobSucceeded, DocumentID: res.Document.ID, Duplicate: res.Duplicate,
	})
}
