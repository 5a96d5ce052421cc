package testutils

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/markdave123-py/contexta-ingest/internal/core"
)

var _ core.EmbeddingProvider = (*HashEmbedder)(nil)

// HashEmbedder is a deterministic EmbeddingProvider: equal texts always get
// equal vectors.
type HashEmbedder struct {
	Dim int
	// EmbedTextsFunc replaces the default behaviour when set.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	mu    sync.Mutex
	calls [][]string
}

func NewHashEmbedder(dim int) *HashEmbedder { return &HashEmbedder{Dim: dim} }

func (h *HashEmbedder) Dimension() int { return h.Dim }

func (h *HashEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	h.mu.Lock()
	h.calls = append(h.calls, append([]string(nil), texts...))
	h.mu.Unlock()

	if h.EmbedTextsFunc != nil {
		return h.EmbedTextsFunc(ctx, texts)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t, h.Dim)
	}
	return out, nil
}

// Calls returns the batches sent so far.
func (h *HashEmbedder) Calls() [][]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]string(nil), h.calls...)
}

// Vector derives a pseudo-random vector from the FNV hash of text.
func Vector(text string, dim int) []float32 {
	f := fnv.New32a()
	f.Write([]byte(text))
	seed := f.Sum32()

	v := make([]float32, dim)
	for i := range v {
		seed = seed*1664525 + 1013904223
		v[i] = float32(seed%1000) / 1000.0
	}
	return v
}
