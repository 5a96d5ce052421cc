package core

import "context"

// EmbeddingProvider turns a batch of texts into vectors of a fixed dimension.
// The whole batch fails together.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}
