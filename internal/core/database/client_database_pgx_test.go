package db

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*DatabaseClient, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewWithDB(sqlDB, nil), mock
}

func documentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "source_type", "source_url", "storage_url", "content_hash", "metadata", "chunk_count", "created_at", "updated_at"})
}

func chunkRows(extra ...string) *sqlmock.Rows {
	cols := []string{"id", "document_id", "chunk_index", "content", "start_offset", "end_offset", "token_count",
		"sentence_count", "has_title", "structural_kind", "quality_score", "embedding", "created_at"}
	return sqlmock.NewRows(append(cols, extra...))
}

func TestFindDocumentByFingerprint(t *testing.T) {
	c, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE content_hash = $1")).
		WithArgs("abc").
		WillReturnRows(documentRows().AddRow("doc-1", "Intro", "text", "", "", "abc", []byte(`{"lang":"en"}`), 3, now, now))

	doc, err := c.FindDocumentByFingerprint(context.Background(), "abc")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, models.SourceText, doc.SourceType)
	assert.Equal(t, map[string]string{"lang": "en"}, doc.Metadata)
	assert.Equal(t, 3, doc.ChunkCount)

	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE content_hash = $1")).
		WithArgs("missing").
		WillReturnRows(documentRows())

	doc, err = c.FindDocumentByFingerprint(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, doc)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDocumentByID_NotFound(t *testing.T) {
	c, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE id = $1")).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := c.GetDocumentByID(context.Background(), "nope")
	assert.ErrorIs(t, err, core.ErrDocumentNotFound)
}

func TestListDocuments(t *testing.T) {
	c, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id")).
		WithArgs(10, 20).
		WillReturnRows(documentRows().
			AddRow("d2", "B", "url", "https://example.com", "", "h2", []byte(`{}`), 1, now, now).
			AddRow("d1", "A", "pdf", "", "s3://bucket/h1", "h1", []byte(`{}`), 4, now, now))

	docs, err := c.ListDocuments(context.Background(), 10, 20)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "d2", docs[0].ID)
	assert.Equal(t, models.SourcePDF, docs[1].SourceType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetChunksByDocument(t *testing.T) {
	c, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY chunk_index ASC")).
		WithArgs("d1").
		WillReturnRows(chunkRows().
			AddRow("c0", "d1", 0, "first", 0, 5, 2, 1, true, "title", 0.9, "[1,2,3]", now).
			AddRow("c1", "d1", 1, "second", 5, 11, 2, 1, false, "paragraph", 0.7, nil, now))

	chunks, err := c.GetChunksByDocument(context.Background(), "d1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, []float32{1, 2, 3}, chunks[0].Embedding)
	assert.Equal(t, models.KindTitle, chunks[0].StructuralKind)
	assert.True(t, chunks[0].HasTitle)
	assert.Nil(t, chunks[1].Embedding)
	assert.Equal(t, 1, chunks[1].Index)
}

func TestSearchDocumentChunks(t *testing.T) {
	c, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY embedding <=> $2")).
		WithArgs("d1", "[0.5,0.5]", 2).
		WillReturnRows(chunkRows("similarity").
			AddRow("c3", "d1", 3, "best", 0, 4, 1, 1, false, "paragraph", 0.8, "[0.5,0.5]", now, 0.99))

	out, err := c.SearchDocumentChunks(context.Background(), "d1", []float32{0.5, 0.5}, 2)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "c3", out[0].ID)
	assert.InDelta(t, 0.99, out[0].Similarity, 1e-9)
}

func TestDocumentTx_CommitFlow(t *testing.T) {
	c, mock := newMock(t)

	doc := &models.Document{
		ID: "d1", Title: "T", SourceType: models.SourceText, ContentHash: "h",
		RawContent: "raw", Metadata: map[string]string{"k": "v"}, ChunkCount: 2, CreatedAt: now,
	}
	chunks := []models.DocumentChunk{
		{ID: "c0", Index: 0, Text: "a", EndOffset: 1, TokenCount: 1, SentenceCount: 1, StructuralKind: models.KindParagraph, QualityScore: 0.5, Embedding: []float32{1, 2}, CreatedAt: now},
		{ID: "c1", Index: 1, Text: "b", StartOffset: 1, EndOffset: 2, TokenCount: 1, SentenceCount: 1, StructuralKind: models.KindParagraph, QualityScore: 0.5, CreatedAt: now},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WithArgs("d1", "T", "text", "", "", "h", "raw", []byte(`{"k":"v"}`), 2, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO document_chunks"))
	prep.ExpectExec().
		WithArgs("c0", "d1", 0, "a", 0, 1, 1, 1, false, "paragraph", 0.5, "[1,2]", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("c1", "d1", 1, "b", 1, 2, 1, 1, false, "paragraph", 0.5, nil, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := c.BeginTx(ctx)
	require.NoError(t, err)

	id, err := tx.InsertDocument(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, "d1", id)
	require.NoError(t, tx.InsertChunks(ctx, id, chunks))
	require.NoError(t, tx.Commit())
	assert.NoError(t, tx.Rollback(), "rollback after commit is a no-op")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentTx_DuplicateFingerprint(t *testing.T) {
	c, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "documents_content_hash_key"})
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := c.BeginTx(ctx)
	require.NoError(t, err)

	_, err = tx.InsertDocument(ctx, &models.Document{ID: "d1", ContentHash: "h", CreatedAt: now})
	assert.ErrorIs(t, err, core.ErrDuplicateFingerprint)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentTx_ChunkFailureIsPersistenceError(t *testing.T) {
	c, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO document_chunks")).
		ExpectExec().
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := c.BeginTx(ctx)
	require.NoError(t, err)

	err = tx.InsertChunks(ctx, "d1", []models.DocumentChunk{{ID: "c0", CreatedAt: now}})
	var persErr *core.PersistenceError
	require.ErrorAs(t, err, &persErr)
	assert.Equal(t, "insert chunk 0", persErr.Op)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureBootstrapped(t *testing.T) {
	t.Run("fresh database runs script", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer sqlDB.Close()

		mock.ExpectQuery(regexp.QuoteMeta("information_schema.tables")).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("CREATE EXTENSION IF NOT EXISTS vector")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		require.NoError(t, EnsureBootstrapped(context.Background(), sqlDB, slog.Default()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("current version is left alone", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer sqlDB.Close()

		mock.ExpectQuery(regexp.QuoteMeta("information_schema.tables")).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery(regexp.QuoteMeta("FROM contexta_meta WHERE version = $1")).
			WithArgs(schemaVersion).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		require.NoError(t, EnsureBootstrapped(context.Background(), sqlDB, slog.Default()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBuildDSN(t *testing.T) {
	dsn, err := buildDSN("postgres://u:p@host:5432/db", "")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@host:5432/db", dsn)

	_, err = buildDSN("postgres://u:p@host:5432/db", "/does/not/exist.pem")
	assert.Error(t, err)

	cert := t.TempDir() + "/ca.pem"
	require.NoError(t, os.WriteFile(cert, []byte("-----BEGIN CERTIFICATE-----\n"), 0o600))
	dsn, err = buildDSN("postgres://u:p@host:5432/db", cert)
	require.NoError(t, err)
	assert.Contains(t, dsn, "sslmode=verify-ca")
	assert.Contains(t, dsn, "sslrootcert=")
}
