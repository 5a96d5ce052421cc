package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/contexta-ingest/internal/core/ingestion_engine"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

const maxUploadBytes = 50 << 20

type IngestHandler struct {
	ingestor ingestion_engine.Ingestor
	logger   *slog.Logger
}

func NewIngestHandler(ing ingestion_engine.Ingestor, l *slog.Logger) *IngestHandler {
	return &IngestHandler{ingestor: ing, logger: logger.WithComponent(l, "ingest_handler")}
}

type ingestBody struct {
	Title    string            `json:"title"`
	Type     string            `json:"type"`
	Content  string            `json:"content"`
	URL      string            `json:"url"`
	Metadata map[string]string `json:"metadata"`
}

type jobAccepted struct {
	JobID string `json:"job_id"`
}

// Ingest handles POST /api/ingest. A new document answers 201, a duplicate
// 200, and ?async=true queues the request and answers 202 with a job id.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var body ingestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON body")
		return
	}
	kind, err := models.ParseSourceKind(body.Type)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	req := models.IngestRequest{
		Title:    body.Title,
		Source:   models.SourceDescriptor{Kind: kind, Content: body.Content, URL: body.URL},
		Metadata: body.Metadata,
	}
	h.dispatch(w, r, req)
}

// Upload handles POST /api/documents/upload with a multipart "file" field
// holding a PDF. "title" is optional.
func (h *IngestHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_ERROR", "file too large or malformed form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_ERROR", "unable to retrieve file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_ERROR", "unable to read file")
		return
	}

	name := filepath.Base(header.Filename)
	req := models.IngestRequest{
		Title:    r.FormValue("title"),
		Source:   models.PDFBytesSource(name, data),
		Metadata: map[string]string{"file_name": name},
	}
	h.dispatch(w, r, req)
}

func (h *IngestHandler) dispatch(w http.ResponseWriter, r *http.Request, req models.IngestRequest) {
	ctx := r.Context()
	if err := req.Source.Validate(); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		id, err := h.ingestor.Enqueue(ctx, req)
		if err != nil {
			writeFailure(ctx, w, h.logger, err)
			return
		}
		w.Header().Set("Location", "/api/ingest/jobs/"+id)
		writeJSON(w, http.StatusAccepted, jobAccepted{JobID: id})
		return
	}

	res, err := h.ingestor.Ingest(ctx, req)
	if err != nil {
		writeFailure(ctx, w, h.logger, err)
		return
	}
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// Job handles GET /api/ingest/jobs/{id}.
func (h *IngestHandler) Job(w http.ResponseWriter, r *http.Request) {
	st, ok := h.ingestor.JobStatus(chi.URLParam(r, "id"))
	if !ok {
		writeError(r.Context(), w, http.StatusNotFound, "NOT_FOUND", "job not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
