package core

import (
	"context"

	"github.com/markdave123-py/contexta-ingest/internal/models"
)

// DbClient defines all persistence operations the pipeline and services need.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type DbClient interface {
	// FindDocumentByFingerprint returns nil, nil when no document matches.
	FindDocumentByFingerprint(ctx context.Context, fingerprint string) (*models.Document, error)
	BeginTx(ctx context.Context) (DocumentTx, error)

	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, limit, offset int) ([]models.Document, error)
	GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error)
	SearchDocumentChunks(ctx context.Context, documentID string, embedding []float32, limit int) ([]models.DocumentChunk, error)

	Close() error
}

// DocumentTx is one ingestion's exclusive transaction. Rollback after Commit is a no-op.
type DocumentTx interface {
	// InsertDocument returns ErrDuplicateFingerprint on a content hash conflict.
	InsertDocument(ctx context.Context, doc *models.Document) (string, error)
	InsertChunks(ctx context.Context, documentID string, chunks []models.DocumentChunk) error
	Commit() error
	Rollback() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
}
