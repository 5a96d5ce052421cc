package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/markdave123-py/contexta-ingest/internal/config"
	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/core/chunker"
	db "github.com/markdave123-py/contexta-ingest/internal/core/database"
	"github.com/markdave123-py/contexta-ingest/internal/core/embedding"
	"github.com/markdave123-py/contexta-ingest/internal/core/extractor"
	"github.com/markdave123-py/contexta-ingest/internal/core/fetcher"
	"github.com/markdave123-py/contexta-ingest/internal/core/ingestion_engine"
	"github.com/markdave123-py/contexta-ingest/internal/core/llm"
	objectclient "github.com/markdave123-py/contexta-ingest/internal/core/object-client"
	"github.com/markdave123-py/contexta-ingest/internal/core/render"
	"github.com/markdave123-py/contexta-ingest/internal/metrics"
)

// Pipeline is the wired ingestion stack shared by the server and the CLI.
type Pipeline struct {
	DB       *db.DatabaseClient
	Objects  *objectclient.S3Client // nil when the source archive is off
	Batcher  *embedding.Batcher
	Ingestor *ingestion_engine.DocumentIngestor

	closers []func() error
}

// BuildPipeline connects to Postgres, the embedding provider and (when a
// bucket is configured) S3, and wires the ingestion coordinator.
func BuildPipeline(ctx context.Context, cfg *config.Config, l *slog.Logger, m *metrics.Metrics) (*Pipeline, error) {
	p := &Pipeline{}

	dbClient, err := db.NewDatabaseClient(ctx, cfg, l)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	p.DB = dbClient
	p.closers = append(p.closers, dbClient.Close)
	l.Info("database initialized and ready")

	var objects core.ObjectClient
	if cfg.ArchiveEnabled() {
		s3Client, err := objectclient.NewS3Client(ctx, cfg, l)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("object storage: %w", err)
		}
		p.Objects, objects = s3Client, s3Client
		l.Info("source archive enabled", "bucket", cfg.BucketName)
	}

	provider, err := newEmbeddingProvider(ctx, cfg)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	if c, ok := provider.(interface{ Close() error }); ok {
		p.closers = append(p.closers, c.Close)
	}

	p.Batcher, err = embedding.New(provider, cfg.EmbeddingOptions(), embedding.WithLogger(l), embedding.WithMetrics(m))
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	split, err := chunker.New(cfg.ChunkerConfig())
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	ext := extractor.New(
		fetcher.New(cfg.FetcherOptions(), fetcher.WithLogger(l), fetcher.WithMetrics(m)),
		render.NewPDFRenderer(l),
		render.DocconvRemover{},
		extractor.WithLogger(l),
		extractor.WithMetrics(m),
	)

	ingCfg := ingestion_engine.DefaultIngestConfig()
	ingCfg.MinContentLength = cfg.MinContentLength
	ingCfg.PersistBatchSize = cfg.PersistBatchSize
	ingCfg.ArchiveBucket = cfg.BucketName
	ingCfg.JobRetention = cfg.JobRetention
	ingCfg.MaxFinishedJobs = cfg.MaxFinishedJobs

	p.Ingestor, err = ingestion_engine.NewDocumentIngestor(dbClient, objects, ext, split, p.Batcher, ingCfg,
		ingestion_engine.WithLogger(l), ingestion_engine.WithMetrics(m))
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func newEmbeddingProvider(ctx context.Context, cfg *config.Config) (core.EmbeddingProvider, error) {
	switch cfg.EmbedProvider {
	case config.ProviderGemini:
		return llm.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel, cfg.EmbedDim)
	case config.ProviderOpenAI:
		return llm.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbedModel, cfg.EmbedDim)
	}
	return nil, fmt.Errorf("%w: EMBED_PROVIDER %q", config.ErrInvalid, cfg.EmbedProvider)
}

// Close releases everything BuildPipeline opened, in reverse order.
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i]())
	}
	p.closers = nil
	return errors.Join(errs...)
}
