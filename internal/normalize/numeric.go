package normalize

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ParsePrice keeps only digits from a free-form price string ("€ 23.500,-"
// → 23500). Empty after filtering means no price.
func ParsePrice(value *string) *float64 {
	return digitsToFloat(value)
}

// ParseMileage behaves like ParsePrice for mileage text ("45.000 km").
func ParseMileage(value *string) *float64 {
	return digitsToFloat(value)
}

func digitsToFloat(value *string) *float64 {
	if value == nil {
		return nil
	}
	var b strings.Builder
	for _, ch := range *value {
		if unicode.IsDigit(ch) {
			b.WriteRune(ch)
		}
	}
	if b.Len() == 0 {
		return nil
	}
	parsed, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return nil
	}
	return &parsed
}

// ExtractYear locates the first 4-digit token after splitting on "/" and "-"
// ("06/2021" → 2021, "2019-03-01" → 2019).
func ExtractYear(raw *string) *int {
	if raw == nil {
		return nil
	}
	text := strings.ReplaceAll(*raw, "/", "-")
	for _, token := range strings.Split(text, "-") {
		token = strings.TrimSpace(token)
		if len(token) != 4 {
			continue
		}
		year, err := strconv.Atoi(token)
		if err != nil {
			continue
		}
		return &year
	}
	return nil
}

var registrationLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
}

// RegistrationDate parses a first-registration string on the layouts the
// ingestion pipeline emits. Returns nil when none fit.
func RegistrationDate(raw *string) *time.Time {
	text := Text(raw)
	if text == nil {
		return nil
	}
	for _, layout := range registrationLayouts {
		if parsed, err := time.Parse(layout, *text); err == nil {
			return &parsed
		}
	}
	return nil
}

// AgeMonths computes whole months between registration and now. Future
// registrations clamp to now, so the result is never negative.
func AgeMonths(registration, now time.Time) int {
	if registration.After(now) {
		registration = now
	}
	months := (now.Year()-registration.Year())*12 + int(now.Month()) - int(registration.Month())
	if now.Day() < registration.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// FreshnessDays is the age of the listing's last update in days, clamped ≥ 0.
func FreshnessDays(updated *time.Time, now time.Time) *float64 {
	if updated == nil {
		return nil
	}
	days := now.Sub(*updated).Seconds() / 86400.0
	if days < 0 {
		days = 0
	}
	return &days
}
