package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

const (
	DefaultPageSize    = 20
	MaxPageSize        = 100
	DefaultSearchLimit = 5
	MaxSearchLimit     = 50
)

var ErrInvalidQuery = errors.New("invalid query")

// QueryEmbedder embeds search queries with the same provider used at ingest time.
type QueryEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// DocumentService is the read side over ingested documents.
type DocumentService struct {
	db       core.DbClient
	embedder QueryEmbedder
	logger   *slog.Logger
}

func NewDocumentService(db core.DbClient, embedder QueryEmbedder, l *slog.Logger) *DocumentService {
	return &DocumentService{db: db, embedder: embedder, logger: logger.WithComponent(l, "document_service")}
}

func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.db.GetDocumentByID(ctx, id)
}

// List pages through documents, newest first. limit is clamped to [1, MaxPageSize].
func (s *DocumentService) List(ctx context.Context, limit, offset int) ([]models.Document, error) {
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	return s.db.ListDocuments(ctx, limit, max(offset, 0))
}

// Chunks returns a document's chunks in index order.
func (s *DocumentService) Chunks(ctx context.Context, documentID string) ([]models.DocumentChunk, error) {
	if _, err := s.db.GetDocumentByID(ctx, documentID); err != nil {
		return nil, err
	}
	chunks, err := s.db.GetChunksByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].Embedding = nil
	}
	return chunks, nil
}

// Search returns the chunks of one document closest to query.
func (s *DocumentService) Search(ctx context.Context, documentID, query string, limit int) ([]models.DocumentChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrInvalidQuery)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, MaxSearchLimit)

	if _, err := s.db.GetDocumentByID(ctx, documentID); err != nil {
		return nil, err
	}

	vectors, err := s.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 || vectors[0] == nil {
		return nil, fmt.Errorf("embed query: %w", core.ErrDimensionMismatch)
	}

	chunks, err := s.db.SearchDocumentChunks(ctx, documentID, vectors[0], limit)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].Embedding = nil
	}
	s.logger.DebugContext(ctx, "similarity search", "document_id", documentID, "hits", len(chunks))
	return chunks, nil
}
