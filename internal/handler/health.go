package handler

import (
	"context"
	"net/http"
	"time"

	"carma-vehicle-api/internal/model"
	"carma-vehicle-api/internal/service"
)

type HealthHandler struct {
	source service.ListingSource
}

func NewHealthHandler(source service.ListingSource) *HealthHandler {
	return &HealthHandler{source: source}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	count, err := h.source.CountAvailable(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":             "unhealthy",
			"database_connected": false,
			"error":              "database unreachable",
		})
		return
	}

	writeJSON(w, http.StatusOK, model.HealthResponse{
		Status:            "healthy",
		DatabaseConnected: true,
		VehicleCount:      count,
		Timestamp:         time.Now().UTC(),
	})
}
