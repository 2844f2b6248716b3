package handler

import (
	"net/http"
	"time"

	"carma-vehicle-api/internal/service"
)

type StatsHandler struct {
	source service.ListingSource
}

func NewStatsHandler(source service.ListingSource) *StatsHandler {
	return &StatsHandler{source: source}
}

func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.source.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	stats.Timestamp = time.Now().UTC()
	writeJSON(w, http.StatusOK, stats)
}
