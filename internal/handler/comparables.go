package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"carma-vehicle-api/internal/service"
)

type ComparablesHandler struct {
	svc            *service.ComparablesService
	candidateLimit int
}

func NewComparablesHandler(svc *service.ComparablesService, candidateLimit int) *ComparablesHandler {
	return &ComparablesHandler{svc: svc, candidateLimit: candidateLimit}
}

// Get handles GET /listings/{id}/comparables.
func (h *ComparablesHandler) Get(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")
	query := r.URL.Query()

	params := service.DefaultParams(h.candidateLimit)

	// top must be a positive integer; values above 50 clamp.
	if raw := query.Get("top"); raw != "" {
		top, err := strconv.Atoi(raw)
		if err != nil || top < 1 {
			writeError(w, http.StatusBadRequest, "Invalid 'top' parameter", nil)
			return
		}
		if top > 50 {
			top = 50
		}
		params.Top = top
	}

	params.YearVariance = intParam(query.Get("year_variance"), params.YearVariance)
	if params.YearVariance < 0 {
		params.YearVariance = 0
	}
	params.MileageVarianceMultiplier = floatParam(query.Get("mileage_variance_multiplier"), params.MileageVarianceMultiplier)
	params.MileageMinWindow = floatParam(query.Get("mileage_min_window"), params.MileageMinWindow)
	params.PowerVariancePct = floatParam(query.Get("power_variance_pct"), params.PowerVariancePct)
	params.PowerMinWindow = floatParam(query.Get("power_min_window"), params.PowerMinWindow)

	params.MaxCandidates = intParam(query.Get("max_candidates"), params.MaxCandidates)
	if params.MaxCandidates < 50 {
		params.MaxCandidates = 50
	}

	params.Balance = floatParam(query.Get("balance"), params.Balance)
	if params.Balance < -1 {
		params.Balance = -1
	}
	if params.Balance > 1 {
		params.Balance = 1
	}

	response, err := h.svc.Comparables(r.Context(), vehicleID, params)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func floatParam(raw string, fallback float64) float64 {
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
