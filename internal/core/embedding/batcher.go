package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/core/chunker"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
	"github.com/markdave123-py/contexta-ingest/internal/metrics"
)

// Options configure a Batcher.
type Options struct {
	// BatchSize caps the texts sent in one provider call.
	BatchSize int
	// MaxInputTokens truncates longer inputs before they are sent. Zero disables.
	MaxInputTokens int
	// RequestsPerSecond limits provider calls. Zero means unlimited.
	RequestsPerSecond float64
}

func DefaultOptions() Options {
	return Options{BatchSize: 32, MaxInputTokens: 2048}
}

// Batcher embeds ordered text sequences through an EmbeddingProvider.
// Blank texts are never sent; their positions come back nil.
type Batcher struct {
	provider core.EmbeddingProvider
	opts     Options
	limiter  *rate.Limiter
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Batcher)

func WithLogger(l *slog.Logger) Option {
	return func(b *Batcher) { b.logger = logger.WithComponent(l, "embedding") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Batcher) { b.metrics = m }
}

func New(p core.EmbeddingProvider, opts Options, options ...Option) (*Batcher, error) {
	if p == nil {
		return nil, errors.New("embedding: provider is required")
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("embedding: batch size must be positive, got %d", opts.BatchSize)
	}
	if p.Dimension() <= 0 {
		return nil, fmt.Errorf("embedding: provider reports dimension %d", p.Dimension())
	}

	b := &Batcher{
		provider: p,
		opts:     opts,
		logger:   logger.WithComponent(nil, "embedding"),
	}
	if opts.RequestsPerSecond > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	for _, o := range options {
		o(b)
	}
	return b, nil
}

// EmbeddingDimension is the fixed vector length every result carries.
func (b *Batcher) EmbeddingDimension() int { return b.provider.Dimension() }

// BatchSize is the configured provider batch size.
func (b *Batcher) BatchSize() int { return b.opts.BatchSize }

// EmbedBatch returns one entry per input, in input order. Blank inputs map to
// nil. A failing batch aborts the call with *core.EmbeddingError whose range
// covers the input positions of that batch.
func (b *Batcher) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	positions := make([]int, 0, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) != "" {
			positions = append(positions, i)
		}
	}
	if len(positions) == 0 {
		return out, nil
	}

	dim := b.provider.Dimension()
	for start := 0; start < len(positions); start += b.opts.BatchSize {
		end := min(start+b.opts.BatchSize, len(positions))
		batch := positions[start:end]
		rng := &core.EmbeddingError{Start: batch[0], End: batch[len(batch)-1] + 1}

		vectors, err := b.embed(ctx, texts, batch)
		if err == nil && len(vectors) != len(batch) {
			err = fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(batch))
		}
		if err == nil {
			for j, v := range vectors {
				if len(v) != dim {
					err = fmt.Errorf("%w: got %d, want %d", core.ErrDimensionMismatch, len(v), dim)
					break
				}
				out[batch[j]] = v
			}
		}
		if err != nil {
			b.metrics.EmbeddingBatch("error")
			b.logger.WarnContext(ctx, "embedding batch failed", "start", rng.Start, "end", rng.End, "error", err)
			rng.Err = err
			return nil, rng
		}
		b.metrics.EmbeddingBatch("ok")
	}
	return out, nil
}

func (b *Batcher) embed(ctx context.Context, texts []string, batch []int) ([][]float32, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	inputs := make([]string, len(batch))
	for j, i := range batch {
		inputs[j] = texts[i]
		if b.opts.MaxInputTokens > 0 && chunker.EstimateTokens(inputs[j]) > b.opts.MaxInputTokens {
			inputs[j] = chunker.TruncateToTokens(inputs[j], b.opts.MaxInputTokens)
		}
	}
	return b.provider.EmbedTexts(ctx, inputs)
}
