package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"carma-vehicle-api/internal/model"
)

// Price and mileage may be stored as free-form text; coerce to numeric by
// stripping non-digits before casting. power_kw is cast through TEXT so the
// same fragment works whether the column is numeric or text.
const (
	numericPriceSQL   = "CAST(NULLIF(REGEXP_REPLACE(COALESCE(CAST(price AS TEXT), ''), '[^0-9]', '', 'g'), '') AS DOUBLE PRECISION)"
	numericMileageSQL = "CAST(NULLIF(REGEXP_REPLACE(COALESCE(CAST(mileage_km AS TEXT), ''), '[^0-9]', '', 'g'), '') AS DOUBLE PRECISION)"
	numericPowerSQL   = "CAST(NULLIF(REGEXP_REPLACE(COALESCE(CAST(power_kw AS TEXT), ''), '[^0-9.]', '', 'g'), '') AS DOUBLE PRECISION)"

	listingTable = "vehicle_marketplace.vehicle_data"
)

var selectBaseFields = fmt.Sprintf(`
	vehicle_id,
	listing_url,
	CAST(price AS TEXT) AS price,
	CAST(mileage_km AS TEXT) AS mileage_km,
	first_registration_raw,
	make,
	model,
	fuel_type,
	transmission,
	body_type,
	color,
	interior_color,
	upholstery_color,
	description,
	data_source,
	CAST(images AS TEXT) AS images,
	created_at,
	updated_at,
	%s AS price_num,
	%s AS mileage_num,
	%s AS power_num`, numericPriceSQL, numericMileageSQL, numericPowerSQL)

type ListingRepo struct {
	db *pgxpool.Pool
}

func NewListingRepo(db *pgxpool.Pool) *ListingRepo {
	return &ListingRepo{db: db}
}

// Fetch returns a single available listing, or ErrNotFound.
func (r *ListingRepo) Fetch(ctx context.Context, vehicleID string) (*model.Listing, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE vehicle_id = $1
		  AND is_vehicle_available = true
		LIMIT 1
	`, selectBaseFields, listingTable)

	rows, err := r.db.Query(ctx, query, vehicleID)
	if err != nil {
		return nil, classify("fetch", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, classify("fetch", err)
		}
		return nil, model.ErrNotFound
	}

	listing, err := scanListing(rows)
	if err != nil {
		return nil, classify("fetch", err)
	}
	return listing, nil
}

// FetchCandidates executes a composed candidate query and returns up to
// limit rows ordered by recency.
func (r *ListingRepo) FetchCandidates(ctx context.Context, spec model.FilterSpec, limit int) ([]*model.Listing, error) {
	conditions := []string{"is_vehicle_available = true", "vehicle_id != $1"}
	args := []any{spec.ExcludeID}

	next := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if spec.FoldMakeModel {
		conditions = append(conditions, fmt.Sprintf("LOWER(TRIM(make)) = %s", next(strings.ToLower(strings.TrimSpace(spec.Make)))))
		conditions = append(conditions, fmt.Sprintf("LOWER(TRIM(model)) = %s", next(strings.ToLower(strings.TrimSpace(spec.Model)))))
	} else {
		conditions = append(conditions, fmt.Sprintf("make = %s", next(spec.Make)))
		conditions = append(conditions, fmt.Sprintf("model = %s", next(spec.Model)))
	}

	if spec.Body != nil {
		conditions = append(conditions, fmt.Sprintf("LOWER(TRIM(body_type)) = %s", next(*spec.Body)))
	}
	if spec.Fuel != nil {
		conditions = append(conditions, fmt.Sprintf("LOWER(TRIM(fuel_type)) = %s", next(*spec.Fuel)))
	}
	if spec.Transmission != nil {
		conditions = append(conditions, fmt.Sprintf("LOWER(TRIM(transmission)) = %s", next(*spec.Transmission)))
	}
	if spec.RequireColor {
		conditions = append(conditions, "color IS NOT NULL AND color != ''")
	}

	if spec.MileageBounds != nil {
		conditions = append(conditions, fmt.Sprintf("%s BETWEEN %s AND %s",
			numericMileageSQL, next(spec.MileageBounds.Low), next(spec.MileageBounds.High)))
	}
	if spec.PriceBounds != nil {
		conditions = append(conditions, fmt.Sprintf("%s BETWEEN %s AND %s",
			numericPriceSQL, next(spec.PriceBounds.Low), next(spec.PriceBounds.High)))
	}
	if spec.PowerBounds != nil {
		conditions = append(conditions, fmt.Sprintf("%s BETWEEN %s AND %s",
			numericPowerSQL, next(spec.PowerBounds.Low), next(spec.PowerBounds.High)))
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s
		ORDER BY created_at DESC
		LIMIT %s
	`, selectBaseFields, listingTable, strings.Join(conditions, " AND "), next(limit))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("fetch_candidates", err)
	}
	defer rows.Close()

	var listings []*model.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, classify("fetch_candidates", err)
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("fetch_candidates", err)
	}
	return listings, nil
}

// CountAvailable returns the number of visible listings; used by /health.
func (r *ListingRepo) CountAvailable(ctx context.Context) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE is_vehicle_available = true", listingTable)
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, classify("count_available", err)
	}
	return count, nil
}

// Stats returns the aggregates behind /stats.
func (r *ListingRepo) Stats(ctx context.Context) (*model.StatsResponse, error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(*) FILTER (WHERE is_vehicle_available) AS total_vehicles,
			COUNT(DISTINCT make) AS unique_makes,
			COUNT(DISTINCT data_source) AS data_sources
		FROM %s
	`, listingTable)

	var stats model.StatsResponse
	if err := r.db.QueryRow(ctx, query).Scan(&stats.TotalVehicles, &stats.UniqueMakes, &stats.DataSources); err != nil {
		return nil, classify("stats", err)
	}
	return &stats, nil
}

// TopVehicles returns the most listed make/model pairs with a sample URL.
func (r *ListingRepo) TopVehicles(ctx context.Context, limit int) ([]model.TopVehicle, error) {
	query := fmt.Sprintf(`
		SELECT
			make::TEXT,
			model::TEXT,
			COUNT(*)::INTEGER AS count,
			MIN(listing_url)::TEXT AS sample_url
		FROM %s
		WHERE make IS NOT NULL
		  AND model IS NOT NULL
		  AND listing_url IS NOT NULL
		  AND is_vehicle_available = true
		GROUP BY make, model
		ORDER BY COUNT(*) DESC
		LIMIT $1
	`, listingTable)

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, classify("top_vehicles", err)
	}
	defer rows.Close()

	var vehicles []model.TopVehicle
	for rows.Next() {
		var v model.TopVehicle
		if err := rows.Scan(&v.Make, &v.Model, &v.Count, &v.SampleURL); err != nil {
			return nil, classify("top_vehicles", err)
		}
		v.Rank = len(vehicles) + 1
		vehicles = append(vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("top_vehicles", err)
	}
	return vehicles, nil
}

func scanListing(rows pgx.Rows) (*model.Listing, error) {
	var l model.Listing
	err := rows.Scan(
		&l.VehicleID,
		&l.ListingURL,
		&l.PriceRaw,
		&l.MileageRaw,
		&l.FirstRegistrationRaw,
		&l.Make,
		&l.Model,
		&l.FuelType,
		&l.Transmission,
		&l.BodyType,
		&l.Color,
		&l.InteriorColor,
		&l.UpholsteryColor,
		&l.Description,
		&l.DataSource,
		&l.ImagesRaw,
		&l.CreatedAt,
		&l.UpdatedAt,
		&l.PriceNum,
		&l.MileageNum,
		&l.PowerKW,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// classify maps driver failures onto the error kinds the handlers understand.
// Syntax and schema errors (SQLSTATE class 42) are permanent; everything else
// (connection, timeout, cancellation) is transient and retryable.
func classify(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "42") {
		return model.NewStoreError(op, model.ErrStorePermanent, err)
	}
	return model.NewStoreError(op, model.ErrStoreTransient, err)
}
