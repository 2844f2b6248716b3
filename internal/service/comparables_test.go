package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carma-vehicle-api/internal/model"
	"carma-vehicle-api/internal/retrieval"
)

func strp(s string) *string   { return &s }
func fptr(f float64) *float64 { return &f }

type fakeStore struct {
	listings   map[string]*model.Listing
	candidates []*model.Listing
	fetchErr   error
	fetchCalls int
}

func (f *fakeStore) Fetch(_ context.Context, vehicleID string) (*model.Listing, error) {
	f.fetchCalls++
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
	return int64(len(f.listings)), nil
}

func (f *fakeStore) Stats(context.Context) (*model.StatsResponse, error) {
	return &model.StatsResponse{TotalVehicles: int64(len(f.listings))}, nil
}

func (f *fakeStore) TopVehicles(context.Context, int) ([]model.TopVehicle, error) {
	return nil, nil
}

const twinDescription = "Sitzheizung Panoramadach Apple CarPlay Matrix LED"

func storeListing(id string, mutate func(l *model.Listing)) *model.Listing {
	created := time.Now().UTC().Add(-24 * time.Hour)
	l := &model.Listing{
		VehicleID:            id,
		ListingURL:           strp("https://example.test/" + id),
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
		Description:          strp(twinDescription),
		ImagesRaw:            strp(`["https://img.test/1.jpg"]`),
		CreatedAt:            &created,
	}
	if mutate != nil {
		mutate(l)
	}
	return l
}

func newService(store *fakeStore) *ComparablesService {
	return NewComparablesService(store, retrieval.NewRetriever(store, nil))
}

func TestComparablesExactTwinRanksFirst(t *testing.T) {
	store := &fakeStore{
		listings: map[string]*model.Listing{"target": storeListing("target", nil)},
		candidates: []*model.Listing{
			storeListing("same-price", nil),
			storeListing("cheaper-twin", func(l *model.Listing) {
				l.PriceNum = fptr(23500)
				l.MileageNum = fptr(43000)
			}),
		},
	}
	svc := newService(store)

	response, err := svc.Comparables(context.Background(), "target", DefaultParams(400))
	require.NoError(t, err)

	require.NotEmpty(t, response.Comparables)
	first := response.Comparables[0]
	assert.Equal(t, "cheaper-twin", first.ID)
	assert.Greater(t, first.SimilarityScore, 0.95)
	assert.Greater(t, first.DealScore, 0.55)
	assert.Equal(t, 1500.0, first.Savings)
	assert.Equal(t, "strict", response.Metadata.FilterStrategy)
	assert.Contains(t, response.Metadata.Warning, "Only found 2 results")

	require.NotNil(t, response.Metadata.CohortMedianPrice)
	assert.Equal(t, 24250.0, *response.Metadata.CohortMedianPrice)
}

func TestComparablesCheaperHigherMileageStillRanked(t *testing.T) {
	store := &fakeStore{
		listings: map[string]*model.Listing{"target": storeListing("target", nil)},
		candidates: []*model.Listing{
			storeListing("expensive-low-mileage", func(l *model.Listing) {
				l.PriceNum = fptr(27000)
				l.MileageNum = fptr(40000)
			}),
			storeListing("cheap-high-mileage", func(l *model.Listing) {
				l.PriceNum = fptr(23500)
				l.MileageNum = fptr(60000)
			}),
		},
	}
	svc := newService(store)

	response, err := svc.Comparables(context.Background(), "target", DefaultParams(400))
	require.NoError(t, err)
	require.Len(t, response.Comparables, 2)
	assert.Equal(t, "cheap-high-mileage", response.Comparables[0].ID)
	for _, item := range response.Comparables {
		assert.GreaterOrEqual(t, item.FinalScore, 0.0)
		assert.LessOrEqual(t, item.FinalScore, 1.0)
	}
}

func TestComparablesTopOne(t *testing.T) {
	store := &fakeStore{
		listings: map[string]*model.Listing{"target": storeListing("target", nil)},
		candidates: []*model.Listing{
			storeListing("a", nil),
			storeListing("b", func(l *model.Listing) { l.PriceNum = fptr(24000) }),
		},
	}
	svc := newService(store)

	params := DefaultParams(400)
	params.Top = 1
	response, err := svc.Comparables(context.Background(), "target", params)
	require.NoError(t, err)
	assert.Len(t, response.Comparables, 1)
	assert.Equal(t, 1, response.Metadata.RequestedTop)
	assert.Equal(t, 2, response.Metadata.TotalCandidates)
}

func TestComparablesTargetNotFound(t *testing.T) {
	svc := newService(&fakeStore{listings: map[string]*model.Listing{}})

	_, err := svc.Comparables(context.Background(), "missing", DefaultParams(400))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestComparablesMissingMakeIsBadRequest(t *testing.T) {
	store := &fakeStore{
		listings: map[string]*model.Listing{
			"target": storeListing("target", func(l *model.Listing) { l.Make = nil }),
		},
	}
	svc := newService(store)

	_, err := svc.Comparables(context.Background(), "target", DefaultParams(400))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrBadRequest)
}

func TestComparablesEmptyCohortIsNotFoundWithDebug(t *testing.T) {
	store := &fakeStore{
		listings: map[string]*model.Listing{"target": storeListing("target", nil)},
		candidates: []*model.Listing{
			storeListing("white", func(l *model.Listing) { l.Color = strp("Weiss") }),
		},
	}
	svc := newService(store)

	_, err := svc.Comparables(context.Background(), "target", DefaultParams(400))
	require.Error(t, err)

	var noCandidates *NoCandidatesError
	require.ErrorAs(t, err, &noCandidates)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NotEmpty(t, noCandidates.Debug.Attempts)
}

func TestComparablesRetriesTransientFetch(t *testing.T) {
	store := &fakeStore{
		fetchErr: model.NewStoreError("fetch", model.ErrStoreTransient, errors.New("connection refused")),
	}
	svc := newService(store)

	_, err := svc.Comparables(context.Background(), "target", DefaultParams(400))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrStoreTransient)
	assert.Equal(t, 2, store.fetchCalls)
}

func TestListingNormalisesPayload(t *testing.T) {
	store := &fakeStore{
		listings: map[string]*model.Listing{"target": storeListing("target", nil)},
	}
	svc := newService(store)

	payload, err := svc.Listing(context.Background(), "target")
	require.NoError(t, err)
	require.NotNil(t, payload.PriceEUR)
	assert.Equal(t, 25000.0, *payload.PriceEUR)
	require.NotNil(t, payload.BodyGroup)
	assert.Equal(t, "sedan", *payload.BodyGroup)
	require.NotNil(t, payload.ColorCanonical)
	assert.Equal(t, "black", *payload.ColorCanonical)
	require.NotNil(t, payload.Year)
	assert.Equal(t, 2021, *payload.Year)
	assert.Equal(t, []string{"https://img.test/1.jpg"}, payload.Images)
}
