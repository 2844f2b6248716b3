package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"carma-vehicle-api/internal/model"
	"carma-vehicle-api/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, debug any) {
	writeJSON(w, status, model.ErrorResponse{Error: message, Debug: debug})
}

// writeServiceError maps error kinds onto HTTP statuses: NotFound → 404,
// BadRequest → 400, transient store failures → 503, everything else → 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var noCandidates *service.NoCandidatesError
	switch {
	case errors.As(err, &noCandidates):
		writeError(w, http.StatusNotFound, "No comparable vehicles found", noCandidates.Debug)
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "Vehicle not found", nil)
	case errors.Is(err, model.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, model.ErrStoreTransient):
		slog.Error("store unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "Listing store temporarily unavailable", nil)
	case errors.Is(err, model.ErrStorePermanent):
		slog.Error("store query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	default:
		slog.Error("unhandled error", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}
