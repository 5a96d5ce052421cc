package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/contexta-ingest/internal/api/handlers"
	"github.com/markdave123-py/contexta-ingest/internal/config"
	"github.com/markdave123-py/contexta-ingest/internal/metrics"
	"github.com/markdave123-py/contexta-ingest/internal/services"
	"github.com/markdave123-py/contexta-ingest/internal/worker"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *Pipeline
	server   *Server
	consumer *worker.IngestConsumer
}

func NewApp(ctx context.Context, cfg *config.Config, l *slog.Logger) (*App, error) {
	initCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	p, err := BuildPipeline(initCtx, cfg, l, m)
	if err != nil {
		return nil, err
	}

	router := NewRouter(RouterDeps{
		Ingest:    handlers.NewIngestHandler(p.Ingestor, l),
		Documents: handlers.NewDocumentHandler(services.NewDocumentService(p.DB, p.Batcher, l), l),
		Metrics:   metrics.HandlerFor(reg),
		Ready:     p.DB,
		Logger:    l,
	})

	a := &App{cfg: cfg, logger: l, pipeline: p, server: NewServer(cfg.Port, router, l)}
	if cfg.EnableNSQWorker {
		a.consumer = worker.NewIngestConsumer(p.Ingestor, 0, l)
	}
	return a, nil
}

// Run serves HTTP, the in-process job workers and, when enabled, the NSQ
// consumer until ctx is done.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	a.pipeline.Ingestor.Start(gctx, a.cfg.IngestWorkers)

	g.Go(a.server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	g.Go(a.pipeline.Ingestor.Wait)
	if a.consumer != nil {
		g.Go(func() error {
			return a.consumer.Run(gctx, worker.ConsumerConfig{
				Lookupd:     a.cfg.NSQLookupd,
				Topic:       a.cfg.NSQTopic,
				Channel:     a.cfg.NSQChannel,
				MaxInFlight: a.cfg.IngestWorkers,
			})
		})
	}
	return g.Wait()
}

func (a *App) Close() error {
	return a.pipeline.Close()
}
