package ingestion_engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/core/chunker"
	objectclient "github.com/markdave123-py/contexta-ingest/internal/core/object-client"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

const maxTitleLength = 200

// Fingerprint is the hex sha256 of the normalized text.
func Fingerprint(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Ingest runs one request through
// extracting -> fingerprinting -> (duplicate | chunking -> embedding -> committed).
// Every failure is a *core.IngestionError and leaves nothing persisted.
func (i *DocumentIngestor) Ingest(ctx context.Context, req models.IngestRequest) (*models.IngestResult, error) {
	started := time.Now()
	source := string(req.Source.Kind)
	log := i.logger.With("source", source)

	fail := func(stage core.Stage, err error) (*models.IngestResult, error) {
		ingErr := core.NewIngestionError(stage, err)
		if ctx.Err() != nil {
			ingErr.Canceled()
		}
		i.metrics.ObserveIngestion(source, string(ingErr.Kind), time.Since(started))
		log.ErrorContext(ctx, "ingestion failed", "stage", ingErr.Stage, "kind", ingErr.Kind, "error", err)
		return nil, ingErr
	}

	// extracting
	ext, err := i.extractor.Extract(ctx, req.Source)
	if err != nil {
		return fail(core.StageExtracting, err)
	}
	text := chunker.Normalize(ext.Text)
	if n := utf8.RuneCountInString(strings.TrimSpace(text)); n < i.cfg.MinContentLength {
		return fail(core.StageExtracting, &core.ExtractionError{
			Source: req.Source.Kind,
			Err:    fmt.Errorf("%w: %d characters, need %d", core.ErrContentTooShort, n, i.cfg.MinContentLength),
		})
	}

	// fingerprinting
	fingerprint := Fingerprint(text)
	existing, err := i.db.FindDocumentByFingerprint(ctx, fingerprint)
	if err != nil {
		return fail(core.StageFingerprinting, err)
	}
	if existing != nil {
		return i.duplicate(ctx, existing, source, started), nil
	}

	// chunking
	chunks := i.splitter.Chunk(text)
	if len(chunks) == 0 {
		return fail(core.StageChunking, &core.ChunkingError{Err: core.ErrEmptyChunkSet})
	}

	doc := i.newDocument(req, ext, text, fingerprint, len(chunks))
	log = log.With("document_id", doc.ID)

	archiveKey := i.archive(ctx, doc, ext)

	tx, err := i.db.BeginTx(ctx)
	if err != nil {
		i.discardArchive(ctx, archiveKey)
		return fail(core.StagePersisting, err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			log.WarnContext(ctx, "rollback failed", "error", rbErr)
		}
		i.discardArchive(ctx, archiveKey)
	}()

	if _, err := tx.InsertDocument(ctx, doc); err != nil {
		if errors.Is(err, core.ErrDuplicateFingerprint) {
			return i.resolveRace(ctx, tx, fingerprint, source, started, fail)
		}
		return fail(core.StagePersisting, err)
	}

	// embedding, flushed in sub-batches
	for start := 0; start < len(chunks); start += i.cfg.PersistBatchSize {
		if err := ctx.Err(); err != nil {
			return fail(core.StageEmbedding, err)
		}
		batch := chunks[start:min(start+i.cfg.PersistBatchSize, len(chunks))]

		texts := make([]string, len(batch))
		for k, c := range batch {
			texts[k] = c.Text
		}
		vectors, err := i.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			var embErr *core.EmbeddingError
			if errors.As(err, &embErr) {
				embErr.Start += start
				embErr.End += start
			}
			return fail(core.StageEmbedding, err)
		}

		rows := make([]models.DocumentChunk, len(batch))
		for k, c := range batch {
			rows[k] = toRow(doc.ID, c, vectors[k], doc.CreatedAt)
		}
		if err := tx.InsertChunks(ctx, doc.ID, rows); err != nil {
			return fail(core.StagePersisting, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fail(core.StagePersisting, err)
	}
	committed = true

	i.metrics.ChunksCreated(len(chunks))
	i.metrics.ObserveIngestion(source, "committed", time.Since(started))
	log.InfoContext(ctx, "document committed", "chunks", len(chunks), "duration", time.Since(started))

	return &models.IngestResult{Document: doc, ChunkCount: len(chunks)}, nil
}

func (i *DocumentIngestor) duplicate(ctx context.Context, doc *models.Document, source string, started time.Time) *models.IngestResult {
	i.metrics.ObserveIngestion(source, "duplicate", time.Since(started))
	i.logger.InfoContext(ctx, "duplicate content, returning existing document", "document_id", doc.ID)
	return &models.IngestResult{Document: doc, ChunkCount: doc.ChunkCount, Duplicate: true}
}

// resolveRace handles a concurrent ingestion of the same content committing
// first: this transaction is abandoned and the winner returned.
func (i *DocumentIngestor) resolveRace(
	ctx context.Context,
	tx core.DocumentTx,
	fingerprint, source string,
	started time.Time,
	fail func(core.Stage, error) (*models.IngestResult, error),
) (*models.IngestResult, error) {
	if err := tx.Rollback(); err != nil {
		i.logger.WarnContext(ctx, "rollback failed", "error", err)
	}
	winner, err := i.db.FindDocumentByFingerprint(ctx, fingerprint)
	if err != nil {
		return fail(core.StageFingerprinting, err)
	}
	if winner == nil {
		return fail(core.StagePersisting, &core.PersistenceError{Op: "insert document", Err: core.ErrDuplicateFingerprint})
	}
	return i.duplicate(ctx, winner, source, started), nil
}

func (i *DocumentIngestor) newDocument(req models.IngestRequest, ext *core.Extraction, text, fingerprint string, chunkCount int) *models.Document {
	meta := make(map[string]string, len(ext.Metadata)+len(req.Metadata))
	for k, v := range ext.Metadata {
		meta[k] = v
	}
	for k, v := range req.Metadata {
		meta[k] = v
	}
	if ext.ContentType != "" {
		meta["content_type"] = ext.ContentType
	}

	now := time.Now().UTC()
	return &models.Document{
		ID:          uuid.NewString(),
		Title:       resolveTitle(req, ext.Metadata["title"], text),
		SourceType:  req.Source.Kind,
		SourceURL:   req.Source.URL,
		ContentHash: fingerprint,
		RawContent:  text,
		Metadata:    meta,
		ChunkCount:  chunkCount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// resolveTitle prefers the caller's title, then the extracted one, then the
// first line of prose, then the source URL.
func resolveTitle(req models.IngestRequest, extracted, text string) string {
	for _, candidate := range []string{req.Title, extracted, firstLine(text), req.Source.URL, req.Source.Name} {
		if c := strings.TrimSpace(candidate); c != "" {
			return truncateRunes(c, maxTitleLength)
		}
	}
	return "Untitled"
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "<!--") || strings.HasPrefix(line, "Source: ") {
			continue
		}
		return strings.TrimSpace(strings.TrimLeft(line, "#"))
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// archive uploads the raw source when a bucket is configured. A failed
// upload is logged and ingestion continues without StorageURL.
func (i *DocumentIngestor) archive(ctx context.Context, doc *models.Document, ext *core.Extraction) string {
	if i.cfg.ArchiveBucket == "" {
		return ""
	}
	data, contentType := ext.Raw, ext.ContentType
	if len(data) == 0 {
		data, contentType = []byte(ext.Text), "text/plain"
	}
	key := objectclient.SourceKey(doc.ContentHash, doc.ID, contentType)
	url, err := i.obj.UploadFile(ctx, i.cfg.ArchiveBucket, key, data, contentType)
	if err != nil {
		i.logger.WarnContext(ctx, "source archive failed", "key", key, "error", err)
		return ""
	}
	doc.StorageURL = url
	return key
}

func (i *DocumentIngestor) discardArchive(ctx context.Context, key string) {
	if key == "" {
		return
	}
	// The ingestion context may already be cancelled.
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := i.obj.DeleteFile(delCtx, i.cfg.ArchiveBucket, key); err != nil {
		i.logger.WarnContext(ctx, "archived source not removed", "key", key, "error", err)
	}
}

func toRow(documentID string, c chunker.Chunk, embedding []float32, createdAt time.Time) models.DocumentChunk {
	return models.DocumentChunk{
		ID:             uuid.NewString(),
		DocumentID:     documentID,
		Index:          c.Index,
		Text:           c.Text,
		StartOffset:    c.Start,
		EndOffset:      c.End,
		TokenCount:     c.Metadata.TokenEstimate,
		SentenceCount:  c.Metadata.SentenceCount,
		HasTitle:       c.Metadata.HasTitle,
		StructuralKind: c.Metadata.StructuralKind,
		QualityScore:   c.Metadata.QualityScore,
		Embedding:      embedding,
		CreatedAt:      createdAt,
	}
}
