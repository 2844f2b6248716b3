package ranking

import (
	"carma-vehicle-api/internal/deal"
	"carma-vehicle-api/internal/model"
	"carma-vehicle-api/internal/similarity"
)

// The explanation surfaces make/model and body by default; the remaining
// hard-lock components stay in ranking_details for debugging clients.
var surfacedHardLocks = map[string]string{
	"make_model": "Make & Model",
	"body":       "Body Type",
}

func buildExplanation(
	target, candidate model.Vehicle,
	simDetails similarity.Details,
	dealDetails deal.Details,
	cohortSize int,
	savings float64,
) model.Explanation {
	hardMatches := make(map[string]model.HardMatch)
	if components, ok := simDetails.Categorical.Components.(map[string]similarity.CategoricalComponent); ok {
		for key, label := range surfacedHardLocks {
			component, ok := components[key]
			if !ok {
				continue
			}
			score := component.Score
			status := "partial"
			switch {
			case component.Target == nil || component.Candidate == nil:
				status = "unknown"
			case score >= 0.99:
				status = "match"
			case score <= 0.01:
				status = "mismatch"
			}
			hardMatches[label] = model.HardMatch{
				Status:    status,
				Target:    component.Target,
				Candidate: component.Candidate,
				Score:     &score,
			}
		}
	}

	var proximities model.Proximities
	if components, ok := simDetails.Numeric.Components.(map[string]similarity.NumericComponent); ok {
		proximities = model.Proximities{
			AgeMonthsDelta: components["age"].SignedDiff,
			MileageDelta:   components["mileage"].SignedDiff,
			PowerDeltaPct:  components["power"].PercentDiff,
		}
	}

	var textHits, sharedTokens []string
	if components, ok := simDetails.Textual.Components.(similarity.TextComponents); ok {
		textHits = topN(components.FeatureHits, 5)
		sharedTokens = topN(components.SharedTokens, 5)
	}

	comparableCount := dealDetails.ComparableCount
	if comparableCount == 0 {
		comparableCount = cohortSize
	}

	savingsCopy := savings
	return model.Explanation{
		HardMatches:  hardMatches,
		TextHits:     textHits,
		SharedTokens: sharedTokens,
		Proximities:  proximities,
		DealView: model.DealView{
			DiscountPct:     dealDetails.DiscountPct,
			PricePercentile: dealDetails.PricePercentile,
			MedianPrice:     dealDetails.MedianPrice,
			ComparableCount: comparableCount,
			SavingsEUR:      &savingsCopy,
			Components:      dealDetails.Components,
		},
		FreshnessDays:     candidate.FreshnessDays,
		TargetPriceEUR:    target.PriceEUR,
		CandidatePriceEUR: candidate.PriceEUR,
	}
}

func topN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
