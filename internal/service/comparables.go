// Package service orchestrates the comparable-vehicle pipeline: fetch the
// target, normalise, retrieve a cohort through the relaxation ladder, score,
// rank, and assemble the response envelope.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"carma-vehicle-api/internal/model"
	"carma-vehicle-api/internal/normalize"
	"carma-vehicle-api/internal/ranking"
	"carma-vehicle-api/internal/retrieval"
	"carma-vehicle-api/internal/similarity"
)

// ListingSource is everything the handlers and the pipeline need from the
// listing store adapter. Implemented by repository.ListingRepo; tests swap in
// an in-memory fake.
type ListingSource interface {
	Fetch(ctx context.Context, vehicleID string) (*model.Listing, error)
	FetchCandidates(ctx context.Context, spec model.FilterSpec, limit int) ([]*model.Listing, error)
	CountAvailable(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*model.StatsResponse, error)
	TopVehicles(ctx context.Context, limit int) ([]model.TopVehicle, error)
}

// Params are the per-request tuning knobs, already validated and defaulted
// by the handler.
type Params struct {
	Top                       int
	YearVariance              int
	MileageVarianceMultiplier float64
	MileageMinWindow          float64
	PowerVariancePct          float64
	PowerMinWindow            float64
	MaxCandidates             int
	Balance                   float64
}

// DefaultParams returns the documented defaults; candidateLimit comes from
// configuration.
func DefaultParams(candidateLimit int) Params {
	return Params{
		Top:                       10,
		YearVariance:              2,
		MileageVarianceMultiplier: 2.0,
		MileageMinWindow:          5000,
		PowerVariancePct:          0.15,
		PowerMinWindow:            15,
		MaxCandidates:             candidateLimit,
		Balance:                   0,
	}
}

// NoCandidatesError carries the ladder report into the 404 debug payload.
type NoCandidatesError struct {
	Debug model.RetrievalDebug
}

func (e *NoCandidatesError) Error() string { return "no comparable vehicles found" }

func (e *NoCandidatesError) Unwrap() error { return model.ErrNotFound }

type ComparablesService struct {
	source    ListingSource
	retriever *retrieval.Retriever
	engine    *similarity.Engine
	now       func() time.Time
}

func NewComparablesService(source ListingSource, retriever *retrieval.Retriever) *ComparablesService {
	return &ComparablesService{
		source:    source,
		retriever: retriever,
		engine:    similarity.NewEngine(nil),
		now:       time.Now,
	}
}

// Comparables runs the full pipeline for one target.
func (s *ComparablesService) Comparables(ctx context.Context, vehicleID string, p Params) (*model.ComparablesResponse, error) {
	started := s.now()
	now := started.UTC()

	target, err := retryTransient(ctx, func() (*model.Listing, error) {
		return s.source.Fetch(ctx, vehicleID)
	})
	if err != nil {
		return nil, err
	}

	targetPayload := normalize.Payload(target, now)
	if targetPayload.Make == nil || targetPayload.Model == nil {
		return nil, fmt.Errorf("%w: target vehicle missing make or model", model.ErrBadRequest)
	}

	minResults := p.Top
	if minResults < 5 {
		minResults = 5
	}
	opts := retrieval.Options{CandidateLimit: p.MaxCandidates, MinResults: minResults}

	rows, debug, err := s.findWithRetry(ctx, target, opts)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &NoCandidatesError{Debug: debug}
	}

	// Text profiles are the hottest CPU path; memoise by listing id within
	// the request.
	profiles := make(map[string]*normalize.TextProfile, len(rows)+1)
	profileOf := func(id, description string) *normalize.TextProfile {
		if cached, ok := profiles[id]; ok {
			return cached
		}
		profile := normalize.BuildTextProfile(description)
		profiles[id] = &profile
		return &profile
	}

	targetProfile := profileOf(targetPayload.ID, targetPayload.Description)
	candidates := make([]ranking.Candidate, 0, len(rows))
	for _, row := range rows {
		payload := normalize.Payload(row, now)
		candidates = append(candidates, ranking.Candidate{
			Vehicle:  payload,
			Profile:  profileOf(payload.ID, payload.Description),
			Strategy: row.MatchStrategy,
		})
	}

	tolerances := similarity.Tolerances{
		YearToleranceYears: float64(p.YearVariance),
		MileageRatio:       p.MileageVarianceMultiplier,
		MileageMinWindow:   p.MileageMinWindow,
		PowerRatio:         p.PowerVariancePct,
		PowerMinWindow:     p.PowerMinWindow,
	}
	weights := ranking.BlendWeights(p.Balance)
	ranker := ranking.NewRanker(s.engine, weights)

	scored, floorReadmitted := ranker.Rank(targetPayload, targetProfile, candidates, tolerances)

	cohortMedian := medianPrice(scored)

	topSlice := scored
	if len(topSlice) > p.Top {
		topSlice = topSlice[:p.Top]
	}

	var warnings []string
	if debug.Warning != "" {
		warnings = append(warnings, debug.Warning)
	}
	if floorReadmitted {
		warnings = append(warnings, "quality floor relaxed: sub-threshold candidates re-admitted")
	}
	if targetPayload.ColorCanonical != nil && !normalize.IsCanonicalColour(*targetPayload.ColorCanonical) {
		warnings = append(warnings, fmt.Sprintf("color %q is not canonical; cross-language colour matching unavailable", *targetPayload.ColorCanonical))
	}

	return &model.ComparablesResponse{
		Vehicle:     targetPayload,
		Comparables: topSlice,
		Metadata: model.ComparablesMetadata{
			RequestedTop:       p.Top,
			Returned:           len(topSlice),
			TotalCandidates:    len(scored),
			RawCandidates:      len(rows),
			FilterStrategy:     debug.SelectedAttempt,
			FiltersApplied:     selectedFilters(debug),
			RelaxationAttempts: len(debug.Attempts),
			ProcessingTimeS:    s.now().Sub(started).Seconds(),
			Weights:            weights,
			CohortMedianPrice:  cohortMedian,
			Warning:            strings.Join(warnings, "; "),
		},
	}, nil
}

// Listing fetches and normalises a single vehicle payload.
func (s *ComparablesService) Listing(ctx context.Context, vehicleID string) (*model.Vehicle, error) {
	row, err := retryTransient(ctx, func() (*model.Listing, error) {
		return s.source.Fetch(ctx, vehicleID)
	})
	if err != nil {
		return nil, err
	}
	payload := normalize.Payload(row, s.now().UTC())
	return &payload, nil
}

func (s *ComparablesService) findWithRetry(ctx context.Context, target *model.Listing, opts retrieval.Options) ([]*model.Listing, model.RetrievalDebug, error) {
	rows, debug, err := s.retriever.Find(ctx, target, opts)
	if err != nil && errors.Is(err, model.ErrStoreTransient) {
		if waitErr := backoff(ctx); waitErr != nil {
			return nil, debug, err
		}
		rows, debug, err = s.retriever.Find(ctx, target, opts)
	}
	return rows, debug, err
}

func selectedFilters(debug model.RetrievalDebug) *model.FiltersApplied {
	for _, attempt := range debug.Attempts {
		if attempt.Name == debug.SelectedAttempt {
			filters := attempt.FiltersApplied
			return &filters
		}
	}
	return nil
}

func medianPrice(scored []model.Comparable) *float64 {
	prices := make([]float64, 0, len(scored))
	for _, item := range scored {
		if item.PriceEUR != nil {
			prices = append(prices, *item.PriceEUR)
		}
	}
	if len(prices) == 0 {
		return nil
	}
	sort.Float64s(prices)
	n := len(prices)
	var median float64
	if n%2 == 1 {
		median = prices[n/2]
	} else {
		median = (prices[n/2-1] + prices[n/2]) / 2
	}
	return &median
}

// retryTransient retries an idempotent read once after a short backoff when
// the store reports a transient failure.
func retryTransient[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	value, err := fn()
	if err == nil || !errors.Is(err, model.ErrStoreTransient) {
		return value, err
	}
	if waitErr := backoff(ctx); waitErr != nil {
		return value, err
	}
	return fn()
}

func backoff(ctx context.Context) error {
	select {
	case <-time.After(200 * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
