package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"carma-vehicle-api/internal/model"
	"carma-vehicle-api/internal/service"
)

type ListingHandler struct {
	svc    *service.ComparablesService
	source service.ListingSource
}

func NewListingHandler(svc *service.ComparablesService, source service.ListingSource) *ListingHandler {
	return &ListingHandler{svc: svc, source: source}
}

// Get returns the normalised payload of one listing.
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")

	payload, err := h.svc.Listing(r.Context(), vehicleID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// TopVehicles lists the most listed make/model pairs.
func (h *ListingHandler) TopVehicles(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 50 {
		limit = 50
	}

	vehicles, err := h.source.TopVehicles(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if vehicles == nil {
		vehicles = []model.TopVehicle{}
	}
	writeJSON(w, http.StatusOK, model.TopVehiclesResponse{
		Vehicles:      vehicles,
		TotalReturned: len(vehicles),
	})
}
