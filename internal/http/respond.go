package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/remote"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps the pipeline's error taxonomy to HTTP statuses.
func handleError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	var conflict *domain.StockConflictError
	var rejected *remote.RejectedError

	switch {
	case errors.As(err, &validation):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: validation.Message, Code: "validation_error", Details: validation.Field})
	case errors.As(err, &conflict):
		respondJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "stock_conflict", Details: conflict.SKU})
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &rejected):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: rejected.Message, Code: "order_rejected", Details: rejected.Code})
	case errors.Is(err, domain.ErrPersistence):
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
	case errors.Is(err, domain.ErrNetwork):
		respondError(w, http.StatusBadGateway, "remote_unreachable", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}
