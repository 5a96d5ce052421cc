package extractor

import (
	"context"
	"log/slog"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/core/fetcher"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
	"github.com/markdave123-py/contexta-ingest/internal/metrics"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

// MinWebContentLength is the shortest cleaned web body accepted.
const MinWebContentLength = 100

// Fetcher is the network dependency of the PDF and web strategies.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, expected ...string) (*fetcher.Response, error)
}

var _ core.ContentExtractor = (*Extractor)(nil)

// Extractor implements core.ContentExtractor for text, PDF and web sources.
//
// fetcher:  retrieves remote PDFs and pages.
// renderer: turns PDF bytes into per-page text.
// remover:  pulls the main content out of HTML.
type Extractor struct {
	fetcher  Fetcher
	renderer core.PageRenderer
	remover  core.BoilerplateRemover
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Extractor)

func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = logger.WithComponent(l, "extractor") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

func New(f Fetcher, r core.PageRenderer, rm core.BoilerplateRemover, opts ...Option) *Extractor {
	e := &Extractor{
		fetcher:  f,
		renderer: r,
		remover:  rm,
		logger:   logger.WithComponent(nil, "extractor"),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract dispatches on the source kind. Every failure is *core.ExtractionError.
func (e *Extractor) Extract(ctx context.Context, src models.SourceDescriptor) (*core.Extraction, error) {
	if err := src.Validate(); err != nil {
		return nil, &core.ExtractionError{Source: src.Kind, Err: err}
	}

	var (
		out *core.Extraction
		err error
	)
	switch src.Kind {
	case models.SourceText:
		out = e.extractText(src)
	case models.SourcePDF:
		out, err = e.extractPDF(ctx, src)
	case models.SourceWeb:
		out, err = e.extractWeb(ctx, src)
	}
	if err != nil {
		return nil, &core.ExtractionError{Source: src.Kind, Err: err}
	}
	return out, nil
}

func (e *Extractor) extractText(src models.SourceDescriptor) *core.Extraction {
	return &core.Extraction{
		Text:        src.Content,
		Metadata:    map[string]string{},
		ContentType: "text/plain",
	}
}
