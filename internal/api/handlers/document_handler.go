package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/contexta-ingest/internal/logger"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

// DocumentReader is the read side the handler serves.
type DocumentReader interface {
	Get(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, limit, offset int) ([]models.Document, error)
	Chunks(ctx context.Context, documentID string) ([]models.DocumentChunk, error)
	Search(ctx context.Context, documentID, query string, limit int) ([]models.DocumentChunk, error)
}

type DocumentHandler struct {
	docs   DocumentReader
	logger *slog.Logger
}

func NewDocumentHandler(docs DocumentReader, l *slog.Logger) *DocumentHandler {
	return &DocumentHandler{docs: docs, logger: logger.WithComponent(l, "document_handler")}
}

// List handles GET /api/documents?limit=&offset=.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	docs, err := h.docs.List(r.Context(), limit, offset)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.docs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Chunks(w http.ResponseWriter, r *http.Request) {
	chunks, err := h.docs.Chunks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(r.Context(), w, h.logger, err)
		return
	}
	if chunks == nil {
		chunks = []models.DocumentChunk{}
	}
	writeJSON(w, http.StatusOK, chunks)
}

// Search handles GET /api/documents/{id}/search?q=&limit=.
func (h *DocumentHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := h.docs.Search(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, err)
		return
	}
	if hits == nil {
		hits = []models.DocumentChunk{}
	}
	writeJSON(w, http.StatusOK, hits)
}
