package models

import (
	"time"
)

// SourceKind names the extraction strategy for a source.
type SourceKind string

const (
	SourceText SourceKind = "text"
	SourcePDF  SourceKind = "pdf"
	SourceWeb  SourceKind = "url"
)

// StructuralKind classifies a section or chunk of text.
type StructuralKind string

const (
	KindParagraph StructuralKind = "paragraph"
	KindList      StructuralKind = "list"
	KindTitle     StructuralKind = "title"
	KindCode      StructuralKind = "code"
)

// Document represents one ingested, deduplicated source.
type Document struct {
	ID          string            `db:"id" json:"id"`
	Title       string            `db:"title" json:"title"`
	SourceType  SourceKind        `db:"source_type" json:"source_type"`
	SourceURL   string            `db:"source_url" json:"source_url,omitempty"`
	StorageURL  string            `db:"storage_url" json:"storage_url,omitempty"` // archived raw source, if any
	ContentHash string            `db:"content_hash" json:"content_hash"`         // sha256 of the normalized content
	RawContent  string            `db:"raw_content" json:"-"`
	Metadata    map[string]string `db:"metadata" json:"metadata,omitempty"`
	ChunkCount  int               `db:"chunk_count" json:"chunk_count"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// DocumentChunk represents one text chunk from a document.
type DocumentChunk struct {
	ID             string         `db:"id" json:"id"`
	DocumentID     string         `db:"document_id" json:"document_id"`
	Index          int            `db:"chunk_index" json:"chunk_index"`
	Text           string         `db:"content" json:"text"`
	StartOffset    int            `db:"start_offset" json:"start_offset"`
	EndOffset      int            `db:"end_offset" json:"end_offset"`
	TokenCount     int            `db:"token_count" json:"token_count"`
	SentenceCount  int            `db:"sentence_count" json:"sentence_count"`
	HasTitle       bool           `db:"has_title" json:"has_title"`
	StructuralKind StructuralKind `db:"structural_kind" json:"structural_kind"`
	QualityScore   float64        `db:"quality_score" json:"quality_score"`
	Embedding      []float32      `db:"embedding" json:"embedding,omitempty"` // pgvector column, nil when absent
	Similarity     float64        `db:"-" json:"similarity,omitempty"`        // set by similarity search only
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// IngestRequest is the input of one ingestion call.
type IngestRequest struct {
	Title    string            `json:"title"`
	Source   SourceDescriptor  `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IngestResult is the committed outcome of one ingestion call.
type IngestResult struct {
	Document   *Document `json:"document"`
	ChunkCount int       `json:"chunk_count"`
	Duplicate  bool      `json:"duplicate"`
}
