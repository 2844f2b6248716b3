package retrieval

// Step is one rung of the relaxation ladder. Hard locks are constant across
// steps; only the soft-lock widths change.
type Step struct {
	Name          string
	YearTolerance int
	MileageRatio  float64
	PriceLow      float64
	PriceHigh     float64
	PowerRatio    float64
}

// Ladder is ordered strictest first. Retrieval walks it until enough
// candidates survive, then stops.
var Ladder = []Step{
	{Name: "strict", YearTolerance: 2, MileageRatio: 0.50, PriceLow: 0.60, PriceHigh: 1.40, PowerRatio: 0.15},
	{Name: "relaxed_year", YearTolerance: 3, MileageRatio: 0.50, PriceLow: 0.60, PriceHigh: 1.40, PowerRatio: 0.15},
	{Name: "relaxed_mileage", YearTolerance: 3, MileageRatio: 0.75, PriceLow: 0.60, PriceHigh: 1.40, PowerRatio: 0.15},
	{Name: "relaxed_price", YearTolerance: 3, MileageRatio: 0.75, PriceLow: 0.50, PriceHigh: 1.50, PowerRatio: 0.15},
	{Name: "relaxed_power", YearTolerance: 3, MileageRatio: 0.75, PriceLow: 0.50, PriceHigh: 1.50, PowerRatio: 0.25},
}
