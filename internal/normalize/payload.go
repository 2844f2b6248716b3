package normalize

import (
	"encoding/json"
	"time"

	"carma-vehicle-api/internal/model"
)

// Payload converts a raw listing row into the normalised client view. Pure:
// the caller supplies the clock.
func Payload(row *model.Listing, now time.Time) model.Vehicle {
	price := row.PriceNum
	if price == nil {
		price = ParsePrice(row.PriceRaw)
	}
	mileage := row.MileageNum
	if mileage == nil {
		mileage = ParseMileage(row.MileageRaw)
	}

	year := ExtractYear(row.FirstRegistrationRaw)

	var ageMonths *int
	if reg := RegistrationDate(row.FirstRegistrationRaw); reg != nil {
		months := AgeMonths(*reg, now)
		ageMonths = &months
	}

	interiorRaw := Text(row.InteriorColor)
	if interiorRaw == nil {
		interiorRaw = Text(row.UpholsteryColor)
	}

	freshnessSource := row.UpdatedAt
	if freshnessSource == nil {
		freshnessSource = row.CreatedAt
	}

	description := ""
	if row.Description != nil {
		description = *row.Description
	}

	return model.Vehicle{
		ID:                     row.VehicleID,
		URL:                    row.ListingURL,
		PriceEUR:               price,
		PriceRaw:               row.PriceRaw,
		MileageKM:              mileage,
		MileageRaw:             row.MileageRaw,
		Year:                   year,
		AgeMonths:              ageMonths,
		Make:                   Text(row.Make),
		Model:                  Text(row.Model),
		FuelGroup:              Category(row.FuelType, FuelMap),
		TransmissionGroup:      Category(row.Transmission, TransmissionMap),
		BodyGroup:              Category(row.BodyType, BodyTypeMap),
		Color:                  row.Color,
		ColorCanonical:         Colour(row.Color),
		InteriorColor:          interiorRaw,
		InteriorColorEffective: Colour(interiorRaw),
		UpholsteryColor:        row.UpholsteryColor,
		Description:            description,
		DataSource:             row.DataSource,
		PowerKW:                row.PowerKW,
		Images:                 ParseImages(row.ImagesRaw),
		FirstRegistrationRaw:   row.FirstRegistrationRaw,
		CreatedAt:              row.CreatedAt,
		FreshnessDays:          FreshnessDays(freshnessSource, now),
	}
}

// ParseImages accepts a JSON-encoded list of image URLs; anything else yields
// an empty slice.
func ParseImages(raw *string) []string {
	if raw == nil || *raw == "" {
		return []string{}
	}
	var decoded []any
	if err := json.Unmarshal([]byte(*raw), &decoded); err != nil {
		return []string{}
	}
	images := make([]string, 0, len(decoded))
	for _, item := range decoded {
		if s, ok := item.(string); ok && s != "" {
			images = append(images, s)
		}
	}
	return images
}
