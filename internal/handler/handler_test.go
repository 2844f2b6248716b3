package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carma-vehicle-api/internal/model"
	"carma-vehicle-api/internal/retrieval"
	"carma-vehicle-api/internal/service"
)

func strp(s string) *string   { return &s }
func fptr(f float64) *float64 { return &f }

type fakeStore struct {
	listings   map[string]*model.Listing
	candidates []*model.Listing
	top        []model.TopVehicle
	countErr   error
	fetchErr   error
}

func (f *fakeStore) Fetch(_ context.Context, vehicleID string) (*model.Listing, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	listing, ok := f.listings[vehicleID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return listing, nil
}

func (f *fakeStore) FetchCandidates(context.Context, model.FilterSpec, int) ([]*model.Listing, error) {
	return f.candidates, nil
}

func (f *fakeStore) CountAvailable(context.Context) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.listings)), nil
}

func (f *fakeStore) Stats(context.Context) (*model.StatsResponse, error) {
	if f.countErr != nil {
		return nil, f.countErr
	}
	return &model.StatsResponse{
		TotalVehicles: int64(len(f.listings)),
		UniqueMakes:   1,
		DataSources:   1,
	}, nil
}

func (f *fakeStore) TopVehicles(context.Context, int) ([]model.TopVehicle, error) {
	return f.top, nil
}

func storeListing(id string, mutate func(l *model.Listing)) *model.Listing {
	created := time.Now().UTC().Add(-24 * time.Hour)
	l := &model.Listing{
		VehicleID:            id,
		Make:                 strp("BMW"),
		Model:                strp("3er"),
		BodyType:             strp("Limousine"),
		FuelType:             strp("Benzin"),
		Transmission:         strp("Automatik"),
		Color:                strp("Schwarz"),
		FirstRegistrationRaw: strp("2021-06-15"),
		MileageNum:           fptr(45000),
		PriceNum:             fptr(25000),
		PowerKW:              fptr(120),
		Description:          strp("Sitzheizung Panoramadach"),
		CreatedAt:            &created,
	}
	if mutate != nil {
		mutate(l)
	}
	return l
}

func newRouter(store *fakeStore) http.Handler {
	svc := service.NewComparablesService(store, retrieval.NewRetriever(store, nil))

	r := chi.NewRouter()
	r.Get("/health", NewHealthHandler(store).Check)
	r.Get("/stats", NewStatsHandler(store).Stats)
	r.Get("/top-vehicles", NewListingHandler(svc, store).TopVehicles)
	r.Get("/listings/{id}", NewListingHandler(svc, store).Get)
	r.Get("/listings/{id}/comparables", NewComparablesHandler(svc, 400).Get)
	return r
}

func doRequest(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthOK(t *testing.T) {
	router := newRouter(&fakeStore{listings: map[string]*model.Listing{"v": storeListing("v", nil)}})

	rec := doRequest(t, router, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body model.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.True(t, body.DatabaseConnected)
	assert.Equal(t, int64(1), body.VehicleCount)
}

func TestHealthStoreDown(t *testing.T) {
	router := newRouter(&fakeStore{
		countErr: model.NewStoreError("count_available", model.ErrStoreTransient, errors.New("dial timeout")),
	})

	rec := doRequest(t, router, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStats(t *testing.T) {
	router := newRouter(&fakeStore{listings: map[string]*model.Listing{"v": storeListing("v", nil)}})

	rec := doRequest(t, router, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var body model.StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.TotalVehicles)
	assert.False(t, body.Timestamp.IsZero())
}

func TestGetListing(t *testing.T) {
	router := newRouter(&fakeStore{listings: map[string]*model.Listing{"v1": storeListing("v1", nil)}})

	rec := doRequest(t, router, "/listings/v1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body model.Vehicle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "v1", body.ID)
	require.NotNil(t, body.BodyGroup)
	assert.Equal(t, "sedan", *body.BodyGroup)
}

func TestGetListingNotFound(t *testing.T) {
	router := newRouter(&fakeStore{listings: map[string]*model.Listing{}})

	rec := doRequest(t, router, "/listings/unknown")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body model.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Error)
}

func TestComparablesHappyPath(t *testing.T) {
	router := newRouter(&fakeStore{
		listings: map[string]*model.Listing{"target": storeListing("target", nil)},
		candidates: []*model.Listing{
			storeListing("twin", func(l *model.Listing) { l.PriceNum = fptr(23500) }),
		},
	})

	rec := doRequest(t, router, "/listings/target/comparables?top=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var body model.ComparablesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "target", body.Vehicle.ID)
	require.Len(t, body.Comparables, 1)
	assert.Equal(t, "twin", body.Comparables[0].ID)
	assert.Equal(t, 5, body.Metadata.RequestedTop)
	assert.Equal(t, "strict", body.Metadata.FilterStrategy)
	assert.InDelta(t, 0.55, body.Metadata.Weights.Match, 1e-9)
}

func TestComparablesInvalidTop(t *testing.T) {
	router := newRouter(&fakeStore{
		listings: map[string]*model.Listing{"target": storeListing("target", nil)},
	})

	for _, path := range []string{
		"/listings/target/comparables?top=0",
		"/listings/target/comparables?top=-3",
		"/listings/target/comparables?top=abc",
	} {
		rec := doRequest(t, router, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestComparablesTopClamps(t *testing.T) {
	router := newRouter(&fakeStore{
		listings: map[string]*model.Listing{"target": storeListing("target", nil)},
		candidates: []*model.Listing{
			storeListing("twin", nil),
		},
	})

	rec := doRequest(t, router, "/listings/target/comparables?top=51")
	require.Equal(t, http.StatusOK, rec.Code)

	var body model.ComparablesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 50, body.Metadata.RequestedTop)
}

func TestComparablesBalanceShiftsWeights(t *testing.T) {
	store := &fakeStore{
		listings: map[string]*model.Listing{"target": storeListing("target", nil)},
		candidates: []*model.Listing{
			storeListing("twin", nil),
		},
	}
	router := newRouter(store)

	rec := doRequest(t, router, "/listings/target/comparables?balance=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body model.ComparablesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Greater(t, body.Metadata.Weights.Match, 0.55)
	assert.Less(t, body.Metadata.Weights.Deal, 0.30)
	assert.InDelta(t, 0.85, body.Metadata.Weights.Match+body.Metadata.Weights.Deal, 1e-9)
}

func TestComparablesTargetNotFound(t *testing.T) {
	router := newRouter(&fakeStore{listings: map[string]*model.Listing{}})

	rec := doRequest(t, router, "/listings/missing/comparables")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestComparablesEmptyCohortHas404Debug(t *testing.T) {
	router := newRouter(&fakeStore{
		listings:   map[string]*model.Listing{"target": storeListing("target", nil)},
		candidates: []*model.Listing{},
	})

	rec := doRequest(t, router, "/listings/target/comparables")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body model.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "No comparable vehicles found", body.Error)
	assert.NotNil(t, body.Debug)
}

func TestComparablesStoreDownIs503(t *testing.T) {
	router := newRouter(&fakeStore{
		fetchErr: model.NewStoreError("fetch", model.ErrStoreTransient, errors.New("connection refused")),
	})

	rec := doRequest(t, router, "/listings/target/comparables")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTopVehicles(t *testing.T) {
	router := newRouter(&fakeStore{
		top: []model.TopVehicle{
			{Rank: 1, Make: "BMW", Model: "3er", Count: 42, SampleURL: "https://example.test/1"},
		},
	})

	rec := doRequest(t, router, "/top-vehicles?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var body model.TopVehiclesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.TotalReturned)
	assert.Equal(t, "BMW", body.Vehicles[0].Make)
}

func TestRateLimiterBlocksBursts(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	router := chi.NewRouter()
	router.Use(limiter.Middleware)
	router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])

	// A different client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
