package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/markdave123-py/contexta-ingest/internal/models"
)

var (
	ErrInvalidSource          = models.ErrInvalidSource
	ErrContentTooShort        = errors.New("content too short")
	ErrNoExtractableContent   = errors.New("no extractable content")
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrDuplicateFingerprint   = errors.New("duplicate content fingerprint")
	ErrDimensionMismatch      = errors.New("embedding dimension mismatch")
	ErrEmptyChunkSet          = errors.New("empty chunk set from non-empty input")
	ErrDocumentNotFound       = errors.New("document not found")
)

// FetchError is returned by the fetcher once it gives up on a URL.
type FetchError struct {
	URL        string
	Attempts   int
	StatusCode int // 0 when no response was received
	Retryable  bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d after %d attempt(s): %v", e.URL, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch %s: after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractionError carries the source kind that could not be turned into text.
type ExtractionError struct {
	Source models.SourceKind
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ChunkingError means the chunker produced unusable output.
type ChunkingError struct {
	Err error
}

func (e *ChunkingError) Error() string { return fmt.Sprintf("chunking: %v", e.Err) }

func (e *ChunkingError) Unwrap() error { return e.Err }

// EmbeddingError reports a failed batch as the half-open input range [Start, End).
type EmbeddingError struct {
	Start int
	End   int
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding batch [%d,%d): %v", e.Start, e.End, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed store operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence %s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

// Stage is the coordinator state an ingestion failed in.
type Stage string

const (
	StageValidating     Stage = "validating"
	StageExtracting     Stage = "extracting"
	StageFingerprinting Stage = "fingerprinting"
	StageChunking       Stage = "chunking"
	StageEmbedding      Stage = "embedding"
	StagePersisting     Stage = "persisting"
)

// Kind discriminates ingestion failures.
type Kind string

const (
	KindInvalidSource Kind = "invalid_source"
	KindExtraction    Kind = "extraction"
	KindChunking      Kind = "chunking"
	KindEmbedding     Kind = "embedding"
	KindPersistence   Kind = "persistence"
	KindCanceled      Kind = "canceled"
)

// IngestionError is the single failure type returned by the coordinator.
type IngestionError struct {
	Stage Stage
	Kind  Kind
	Err   error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed while %s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// NewIngestionError classifies err into a Kind. Typed stage errors win over
// the stage hint. A deadline inside the chain is not a cancellation; callers
// mark the expiry of their own context with Canceled.
func NewIngestionError(stage Stage, err error) *IngestionError {
	return &IngestionError{Stage: stage, Kind: classify(stage, err), Err: err}
}

// Canceled marks e as caused by the caller's context ending.
func (e *IngestionError) Canceled() *IngestionError {
	e.Kind = KindCanceled
	return e
}

func classify(stage Stage, err error) Kind {
	var (
		extErr   *ExtractionError
		chunkErr *ChunkingError
		embErr   *EmbeddingError
		persErr  *PersistenceError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrInvalidSource):
		return KindInvalidSource
	case errors.As(err, &extErr):
		return KindExtraction
	case errors.As(err, &chunkErr):
		return KindChunking
	case errors.As(err, &embErr):
		return KindEmbedding
	case errors.As(err, &persErr):
		return KindPersistence
	}
	switch stage {
	case StageExtracting:
		return KindExtraction
	case StageChunking:
		return KindChunking
	case StageEmbedding:
		return KindEmbedding
	}
	return KindPersistence
}

// HTTPStatus maps an ingestion failure onto a response status.
func HTTPStatus(err error) int {
	var ingErr *IngestionError
	if errors.As(err, &ingErr) {
		switch ingErr.Kind {
		case KindInvalidSource:
			return http.StatusBadRequest
		case KindExtraction:
			return http.StatusUnprocessableEntity
		case KindCanceled:
			return http.StatusServiceUnavailable
		default:
			return http.StatusInternalServerError
		}
	}

	var extErr *ExtractionError
	switch {
	case errors.Is(err, ErrInvalidSource):
		return http.StatusBadRequest
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.As(err, &extErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
