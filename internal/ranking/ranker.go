// Package ranking blends match, deal, freshness and trust into the final
// ordering and assembles the per-result explanation bundle.
package ranking

import (
	"log/slog"
	"math"
	"sort"

	"carma-vehicle-api/internal/deal"
	"carma-vehicle-api/internal/model"
	"carma-vehicle-api/internal/normalize"
	"carma-vehicle-api/internal/similarity"
)

// Candidates below this match score are filtered out unless that would gut
// the response (see Rank).
const minSimilarityThreshold = 0.30

// Candidate pairs a normalised vehicle with its memoised text profile and
// the relaxation step that admitted it.
type Candidate struct {
	Vehicle  model.Vehicle
	Profile  *normalize.TextProfile
	Strategy string
}

type Ranker struct {
	engine  *similarity.Engine
	weights model.RankWeights
}

func NewRanker(engine *similarity.Engine, weights model.RankWeights) *Ranker {
	return &Ranker{engine: engine, weights: weights}
}

// BlendWeights shifts the match/deal split by balance in [-1, 1] (higher
// favours match) while preserving match+deal = 0.85.
func BlendWeights(balance float64) model.RankWeights {
	if balance < -1 {
		balance = -1
	}
	if balance > 1 {
		balance = 1
	}
	// Both weights stay within [0.15, 0.85]; clamping alpha and deriving
	// beta keeps the sum exact at the extremes.
	alpha := math.Min(0.70, math.Max(0.15, 0.55+balance*0.2))
	return model.RankWeights{
		Match:     alpha,
		Deal:      0.85 - alpha,
		Freshness: 0.10,
		Trust:     0.05,
	}
}

// Rank scores every candidate against the target, sorts by final score
// descending (ties keep retrieval order, i.e. store recency), and applies
// the quality floor. The returned flag reports whether sub-threshold
// candidates were re-admitted to avoid an empty response.
func (r *Ranker) Rank(target model.Vehicle, targetProfile *normalize.TextProfile, candidates []Candidate, tol similarity.Tolerances) ([]model.Comparable, bool) {
	prices := make([]float64, 0, len(candidates))
	for _, c := range candidates {
		if c.Vehicle.PriceEUR != nil {
			prices = append(prices, *c.Vehicle.PriceEUR)
		}
	}
	index := deal.NewPriceIndex(prices)
	median := index.Median()
	cohortSize := len(candidates)

	scored := make([]model.Comparable, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, r.scoreOne(target, targetProfile, c, tol, index, median, cohortSize))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].FinalScore > scored[j].FinalScore
	})

	return applyQualityFloor(scored)
}

func (r *Ranker) scoreOne(
	target model.Vehicle,
	targetProfile *normalize.TextProfile,
	c Candidate,
	tol similarity.Tolerances,
	index *deal.PriceIndex,
	median *float64,
	cohortSize int,
) model.Comparable {
	matchScore, simDetails := r.engine.Score(&target, &c.Vehicle, tol, targetProfile, c.Profile)

	percentile := index.Percentile(c.Vehicle.PriceEUR)
	dealScore, dealDetails := deal.Score(
		c.Vehicle.PriceEUR,
		percentile,
		median,
		target.PriceEUR,
		target.MileageKM,
		c.Vehicle.MileageKM,
	)
	dealDetails.ComparableCount = index.Len()

	savings := 0.0
	var savingsPercent *float64
	if target.PriceEUR != nil && c.Vehicle.PriceEUR != nil {
		savings = *target.PriceEUR - *c.Vehicle.PriceEUR
		if *target.PriceEUR > 0 {
			pct := savings / *target.PriceEUR * 100
			savingsPercent = &pct
		}
	}

	var freshnessScore *float64
	freshnessContribution := 0.0
	if c.Vehicle.FreshnessDays != nil {
		fresh := math.Exp(-*c.Vehicle.FreshnessDays / 30.0)
		freshnessScore = &fresh
		freshnessContribution = fresh
	}

	trustScore := trust(c.Vehicle)

	final := r.weights.Match*matchScore +
		r.weights.Deal*dealScore +
		r.weights.Freshness*freshnessContribution +
		r.weights.Trust*trustScore
	if math.IsNaN(final) || math.IsInf(final, 0) {
		slog.Error("non-finite final score clamped", "vehicle_id", c.Vehicle.ID, "match", matchScore, "deal", dealScore)
		final = 0.0
	}
	final = clamp01(final)

	var priceHat *float64
	if c.Vehicle.PriceEUR != nil {
		hat := *c.Vehicle.PriceEUR * 1.03
		priceHat = &hat
	}

	return model.Comparable{
		Vehicle:         c.Vehicle,
		SimilarityScore: matchScore,
		DealScore:       dealScore,
		FinalScore:      final,
		Score:           final,
		PriceHat:        priceHat,
		Savings:         savings,
		SavingsPercent:  savingsPercent,
		FreshnessScore:  freshnessScore,
		TrustScore:      trustScore,
		RankingDetails: model.RankingDetails{
			MatchScore: matchScore,
			SimilarityComponents: map[string]float64{
				"categorical": simDetails.Categorical.Score,
				"numeric":     simDetails.Numeric.Score,
				"text":        simDetails.Textual.Score,
			},
			CategoricalDetail: simDetails.Categorical.Components,
			NumericDetail:     simDetails.Numeric.Components,
			TextDetail:        simDetails.Textual.Components,
			Weights: model.RankingWeightsView{
				Match:   simDetails.Weights,
				Ranking: r.weights,
			},
			Deal: dealDetails,
		},
		Explanation: buildExplanation(target, c.Vehicle, simDetails, dealDetails, cohortSize, savings),
	}
}

// trust is the fraction of the five presence signals set: price, mileage,
// power, description, images.
func trust(v model.Vehicle) float64 {
	present := 0
	if v.PriceEUR != nil {
		present++
	}
	if v.MileageKM != nil {
		present++
	}
	if v.PowerKW != nil {
		present++
	}
	if v.Description != "" {
		present++
	}
	if len(v.Images) > 0 {
		present++
	}
	return float64(present) / 5.0
}

// applyQualityFloor drops matches below the threshold, unless fewer than
// half of the cohort would survive; then the top half of the sub-threshold
// tail is re-admitted so the response is never emptied by the floor alone.
func applyQualityFloor(sorted []model.Comparable) ([]model.Comparable, bool) {
	if len(sorted) == 0 {
		return sorted, false
	}

	var above, below []model.Comparable
	for _, item := range sorted {
		if item.SimilarityScore >= minSimilarityThreshold {
			above = append(above, item)
		} else {
			below = append(below, item)
		}
	}

	if len(above) >= (len(sorted)+1)/2 {
		return above, false
	}

	keep := len(below) / 2
	if keep < 1 {
		keep = 1
	}
	readmitted := append(above, below[:keep]...)
	sort.SliceStable(readmitted, func(i, j int) bool {
		return readmitted[i].FinalScore > readmitted[j].FinalScore
	})
	return readmitted, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
