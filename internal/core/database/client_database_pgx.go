package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/contexta-ingest/internal/config"
	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

const uniqueViolation = "23505"

var _ core.DbClient = (*DatabaseClient)(nil)

type DatabaseClient struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config, l *slog.Logger) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	dsn, err := buildDSN(cfg.DatabaseURL, cfg.SslCertPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	c := NewWithDB(db, l)
	if err := EnsureBootstrapped(ctx, db, c.logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return c, nil
}

// NewWithDB wraps an already opened pool.
func NewWithDB(db *sql.DB, l *slog.Logger) *DatabaseClient {
	return &DatabaseClient{db: db, logger: logger.WithComponent(l, "database")}
}

// buildDSN switches the connection to verify-ca when a root cert is given.
func buildDSN(databaseURL, certPath string) (string, error) {
	if certPath == "" {
		return databaseURL, nil
	}
	if _, err := os.Stat(certPath); err != nil {
		return "", fmt.Errorf("ssl cert not accessible at %q: %w", certPath, err)
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	q := u.Query()
	q.Set("sslmode", "verify-ca")
	q.Set("sslrootcert", certPath)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Ping checks the pool can reach the server.
func (c *DatabaseClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

const documentColumns = `id, title, source_type, source_url, storage_url, content_hash, metadata, chunk_count, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (*models.Document, error) {
	var (
		d    models.Document
		meta []byte
	)
	if err := row.Scan(&d.ID, &d.Title, &d.SourceType, &d.SourceURL, &d.StorageURL, &d.ContentHash,
		&meta, &d.ChunkCount, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", d.ID, err)
		}
	}
	return &d, nil
}

func (c *DatabaseClient) FindDocumentByFingerprint(ctx context.Context, fingerprint string) (*models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE content_hash = $1`
	d, err := scanDocument(c.db.QueryRowContext(ctx, q, fingerprint))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.PersistenceError{Op: "find document by fingerprint", Err: err}
	}
	return d, nil
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	d, err := scanDocument(c.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}
	if err != nil {
		return nil, &core.PersistenceError{Op: "get document", Err: err}
	}
	return d, nil
}

func (c *DatabaseClient) ListDocuments(ctx context.Context, limit, offset int) ([]models.Document, error) {
	q := `SELECT ` + documentColumns + `
		FROM documents
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`
	rows, err := c.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, &core.PersistenceError{Op: "list documents", Err: err}
	}
	defer rows.Close()

	out := []models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, &core.PersistenceError{Op: "list documents", Err: err}
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.PersistenceError{Op: "list documents", Err: err}
	}
	return out, nil
}

const chunkColumns = `id, document_id, chunk_index, content, start_offset, end_offset, token_count,
		sentence_count, has_title, structural_kind, quality_score, embedding, created_at`

func scanChunk(row interface{ Scan(...any) error }, extra ...any) (models.DocumentChunk, error) {
	var (
		ch  models.DocumentChunk
		emb sql.Null[pgvector.Vector]
	)
	dest := []any{&ch.ID, &ch.DocumentID, &ch.Index, &ch.Text, &ch.StartOffset, &ch.EndOffset, &ch.TokenCount,
		&ch.SentenceCount, &ch.HasTitle, &ch.StructuralKind, &ch.QualityScore, &emb, &ch.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return ch, err
	}
	if emb.Valid {
		ch.Embedding = emb.V.Slice()
	}
	return ch, nil
}

func (c *DatabaseClient) GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error) {
	q := `SELECT ` + chunkColumns + `
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY chunk_index ASC`
	rows, err := c.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, &core.PersistenceError{Op: "get chunks", Err: err}
	}
	defer rows.Close()

	out := []models.DocumentChunk{}
	for rows.Next() {
		ch, err := scanChunk(rows)
		if err != nil {
			return nil, &core.PersistenceError{Op: "get chunks", Err: err}
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.PersistenceError{Op: "get chunks", Err: err}
	}
	return out, nil
}

// SearchDocumentChunks returns the top-k chunks of a document by cosine
// similarity. Chunks stored without an embedding are never returned.
func (c *DatabaseClient) SearchDocumentChunks(ctx context.Context, documentID string, embedding []float32, limit int) ([]models.DocumentChunk, error) {
	q := `SELECT ` + chunkColumns + `, 1 - (embedding <=> $2) AS similarity
		FROM document_chunks
		WHERE document_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3`
	rows, err := c.db.QueryContext(ctx, q, documentID, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, &core.PersistenceError{Op: "search chunks", Err: err}
	}
	defer rows.Close()

	out := []models.DocumentChunk{}
	for rows.Next() {
		var sim float64
		ch, err := scanChunk(rows, &sim)
		if err != nil {
			return nil, &core.PersistenceError{Op: "search chunks", Err: err}
		}
		ch.Similarity = sim
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.PersistenceError{Op: "search chunks", Err: err}
	}
	return out, nil
}

func (c *DatabaseClient) BeginTx(ctx context.Context) (core.DocumentTx, error) {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, &core.PersistenceError{Op: "begin", Err: err}
	}
	return &documentTx{tx: tx}, nil
}

// documentTx is owned by a single ingestion call.
type documentTx struct {
	tx *sql.Tx
}

func (t *documentTx) InsertDocument(ctx context.Context, doc *models.Document) (string, error) {
	if doc == nil {
		return "", errors.New("nil document")
	}
	meta, err := json.Marshal(orEmpty(doc.Metadata))
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	const q = `
		INSERT INTO documents
			(id, title, source_type, source_url, storage_url, content_hash, raw_content, metadata, chunk_count, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`
	_, err = t.tx.ExecContext(ctx, q,
		doc.ID, doc.Title, string(doc.SourceType), doc.SourceURL, doc.StorageURL, doc.ContentHash, doc.RawContent, meta, doc.ChunkCount, doc.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "documents_content_hash_key" {
			return "", fmt.Errorf("%w: %s", core.ErrDuplicateFingerprint, doc.ContentHash)
		}
		return "", &core.PersistenceError{Op: "insert document", Err: err}
	}
	return doc.ID, nil
}

// InsertChunks writes one sub-batch through a prepared statement.
func (t *documentTx) InsertChunks(ctx context.Context, documentID string, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	const q = `
		INSERT INTO document_chunks
			(id, document_id, chunk_index, content, start_offset, end_offset, token_count,
			 sentence_count, has_title, structural_kind, quality_score, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	stmt, err := t.tx.PrepareContext(ctx, q)
	if err != nil {
		return &core.PersistenceError{Op: "prepare chunk insert", Err: err}
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		if _, err := stmt.ExecContext(ctx,
			ch.ID, documentID, ch.Index, ch.Text, ch.StartOffset, ch.EndOffset, ch.TokenCount,
			ch.SentenceCount, ch.HasTitle, string(ch.StructuralKind), ch.QualityScore, vectorArg(ch.Embedding), ch.CreatedAt,
		); err != nil {
			return &core.PersistenceError{Op: fmt.Sprintf("insert chunk %d", ch.Index), Err: err}
		}
	}
	return nil
}

func (t *documentTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return &core.PersistenceError{Op: "commit", Err: err}
	}
	return nil
}

func (t *documentTx) Rollback() error {
	err := t.tx.Rollback()
	if err == nil || errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return &core.PersistenceError{Op: "rollback", Err: err}
}

// vectorArg stores absent embeddings as NULL.
func vectorArg(v []float32) any {
	if v == nil {
		return nil
	}
	return pgvector.NewVector(v)
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
