package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
	"github.com/markdave123-py/contexta-ingest/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]any{"data": data}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"request_id": logger.RequestID(ctx),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// writeFailure maps err onto a status and an error code. Server-side
// failures are logged and their detail is not echoed.
func writeFailure(ctx context.Context, w http.ResponseWriter, log *slog.Logger, err error) {
	status := core.HTTPStatus(err)
	if errors.Is(err, services.ErrInvalidQuery) {
		status = http.StatusBadRequest
	}

	code := errorCode(status)
	var ingErr *core.IngestionError
	if errors.As(err, &ingErr) {
		code = string(ingErr.Kind)
	}

	if status >= http.StatusInternalServerError {
		log.ErrorContext(ctx, "request failed", "status", status, "error", err)
		writeError(ctx, w, status, code, http.StatusText(status))
		return
	}
	writeError(ctx, w, status, code, err.Error())
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "VALIDATION_ERROR"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusUnprocessableEntity:
		return "EXTRACTION_FAILED"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	}
	return "INTERNAL_ERROR"
}
