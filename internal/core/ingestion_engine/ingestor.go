package ingestion_engine

import (
	"context"

	"github.com/markdave123-py/contexta-ingest/internal/models"
)

type Ingestor interface {
	Ingest(ctx context.Context, req models.IngestRequest) (*models.IngestResult, error)
	Start(ctx context.Context, numWorkers int)
	Enqueue(ctx context.Context, req models.IngestRequest) (string, error)
	JobStatus(id string) (JobStatus, bool)
}

var _ Ingestor = (*DocumentIngestor)(nil)
