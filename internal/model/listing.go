package model

import "time"

// Listing is a raw row from the vehicle_data table. The core never writes it;
// ingestion owns the schema. Price and mileage arrive both raw (as stored,
// possibly free-form text) and coerced to numeric by the adapter's SQL.
type Listing struct {
	VehicleID            string
	ListingURL           *string
	PriceRaw             *string
	PriceNum             *float64
	MileageRaw           *string
	MileageNum           *float64
	FirstRegistrationRaw *string
	Make                 *string
	Model                *string
	FuelType             *string
	Transmission         *string
	BodyType             *string
	Color                *string
	InteriorColor        *string
	UpholsteryColor      *string
	Description          *string
	DataSource           *string
	PowerKW              *float64
	ImagesRaw            *string
	CreatedAt            *time.Time
	UpdatedAt            *time.Time

	// MatchStrategy records which relaxation step admitted the row. Set by
	// retrieval, never persisted.
	MatchStrategy string
}

// Clone returns a deep copy so cache consumers may mutate freely.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	out := *l
	out.ListingURL = cloneString(l.ListingURL)
	out.PriceRaw = cloneString(l.PriceRaw)
	out.PriceNum = cloneFloat(l.PriceNum)
	out.MileageRaw = cloneString(l.MileageRaw)
	out.MileageNum = cloneFloat(l.MileageNum)
	out.FirstRegistrationRaw = cloneString(l.FirstRegistrationRaw)
	out.Make = cloneString(l.Make)
	out.Model = cloneString(l.Model)
	out.FuelType = cloneString(l.FuelType)
	out.Transmission = cloneString(l.Transmission)
	out.BodyType = cloneString(l.BodyType)
	out.Color = cloneString(l.Color)
	out.InteriorColor = cloneString(l.InteriorColor)
	out.UpholsteryColor = cloneString(l.UpholsteryColor)
	out.Description = cloneString(l.Description)
	out.DataSource = cloneString(l.DataSource)
	out.PowerKW = cloneFloat(l.PowerKW)
	out.ImagesRaw = cloneString(l.ImagesRaw)
	out.CreatedAt = cloneTime(l.CreatedAt)
	out.UpdatedAt = cloneTime(l.UpdatedAt)
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Vehicle is the normalised, client-facing view of a listing.
type Vehicle struct {
	ID                     string     `json:"id"`
	URL                    *string    `json:"url"`
	PriceEUR               *float64   `json:"price_eur"`
	PriceRaw               *string    `json:"price_raw"`
	MileageKM              *float64   `json:"mileage_km"`
	MileageRaw             *string    `json:"mileage_raw"`
	Year                   *int       `json:"year"`
	AgeMonths              *int       `json:"age_months"`
	Make                   *string    `json:"make"`
	Model                  *string    `json:"model"`
	FuelGroup              *string    `json:"fuel_group"`
	TransmissionGroup      *string    `json:"transmission_group"`
	BodyGroup              *string    `json:"body_group"`
	Color                  *string    `json:"color"`
	ColorCanonical         *string    `json:"color_canonical"`
	InteriorColor          *string    `json:"interior_color"`
	InteriorColorEffective *string    `json:"interior_color_effective"`
	UpholsteryColor        *string    `json:"upholstery_color"`
	Description            string     `json:"description"`
	DataSource             *string    `json:"data_source"`
	PowerKW                *float64   `json:"power_kw"`
	Images                 []string   `json:"images"`
	FirstRegistrationRaw   *string    `json:"first_registration_raw"`
	CreatedAt              *time.Time `json:"created_at"`
	FreshnessDays          *float64   `json:"freshness_days"`
}

// FilterSpec describes one candidate query: hard locks always present,
// soft-lock ranges only when the target carries the corresponding numeric.
type FilterSpec struct {
	ExcludeID string
	Make      string
	Model     string
	// FoldMakeModel switches make/model equality to LOWER(TRIM(...)) matching,
	// used as a fallback when the raw-equality query returns nothing.
	FoldMakeModel bool
	// Body, Fuel and Transmission hold accent-stripped lowercase values
	// compared against LOWER(TRIM(column)).
	Body         *string
	Fuel         *string
	Transmission *string
	// RequireColor pre-filters rows with a non-empty colour; canonical colour
	// equality is applied by retrieval after normalisation.
	RequireColor  bool
	MileageBounds *Range
	PriceBounds   *Range
	PowerBounds   *Range
}

// Range is a closed numeric interval.
type Range struct {
	Low  float64
	High float64
}
