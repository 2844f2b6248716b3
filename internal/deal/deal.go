// Package deal places a candidate's price against its market cohort. The
// score blends a cohort-median discount (comparable component) with a
// target-anchored discount (hedonic component), both squashed through a
// sigmoid so large discounts saturate instead of dominating.
package deal

import (
	"math"
	"sort"
)

// Details exposes the inputs and sub-scores behind one deal score.
type Details struct {
	PricePercentile *float64           `json:"price_percentile"`
	MedianPrice     *float64           `json:"median_price"`
	MileageRatio    *float64           `json:"mileage_ratio"`
	DiscountPct     *float64           `json:"discount_pct"`
	ComparableCount int                `json:"comparable_count"`
	Components      map[string]float64 `json:"components"`
}

// Score computes the 0..1 deal score. A missing candidate price yields the
// neutral 0.5 with unknown details.
func Score(price, percentile, medianPrice, targetPrice, targetMileage, candidateMileage *float64) (float64, Details) {
	if price == nil {
		return 0.5, Details{
			PricePercentile: percentile,
			MedianPrice:     medianPrice,
			Components:      map[string]float64{"comparable": 0.5, "hedonic": 0.5},
		}
	}

	// Comparable component: cohort-median discount when a median exists,
	// otherwise the inverted percentile.
	comps := 0.5
	if percentile != nil {
		comps = clamp01(1.0 - *percentile)
	}
	var discountPct *float64
	if medianPrice != nil && *medianPrice > 0 {
		discount := (*medianPrice - *price) / *medianPrice
		comps = sigmoid(6 * discount)
		pct := discount * 100.0
		discountPct = &pct
	}

	// Mileage adjustment: penalise higher mileage, reward lower softly.
	var mileageRatio *float64
	if targetMileage != nil && *targetMileage != 0 && candidateMileage != nil && *candidateMileage != 0 {
		ratio := (*candidateMileage - *targetMileage) / math.Max(*targetMileage, 1.0)
		mileageRatio = &ratio
		if ratio > 0 {
			comps -= math.Min(ratio/1.5, 1.0) * 0.25
		} else {
			comps += math.Min(math.Abs(ratio)/1.5, 1.0) * 0.15
		}
	}

	// Hedonic component anchored on the target's own price.
	hedonic := comps
	if targetPrice != nil && *targetPrice > 0 {
		hedonic = sigmoid(6 * (*targetPrice - *price) / *targetPrice)
	}

	score := clamp01(0.5*comps + 0.5*hedonic)
	return score, Details{
		PricePercentile: percentile,
		MedianPrice:     medianPrice,
		MileageRatio:    mileageRatio,
		DiscountPct:     discountPct,
		Components:      map[string]float64{"comparable": comps, "hedonic": hedonic},
	}
}

// PriceIndex is the sorted cohort price vector built once per request.
type PriceIndex struct {
	prices []float64
}

func NewPriceIndex(prices []float64) *PriceIndex {
	sorted := make([]float64, len(prices))
	copy(sorted, prices)
	sort.Float64s(sorted)
	return &PriceIndex{prices: sorted}
}

func (idx *PriceIndex) Len() int { return len(idx.prices) }

// Median of the cohort, or nil when empty.
func (idx *PriceIndex) Median() *float64 {
	n := len(idx.prices)
	if n == 0 {
		return nil
	}
	var median float64
	if n%2 == 1 {
		median = idx.prices[n/2]
	} else {
		median = (idx.prices[n/2-1] + idx.prices[n/2]) / 2
	}
	return &median
}

// Percentile places a price in the cohort via binary search; a cohort of one
// returns 0.
func (idx *PriceIndex) Percentile(price *float64) *float64 {
	if price == nil || len(idx.prices) == 0 {
		return nil
	}
	if len(idx.prices) == 1 {
		zero := 0.0
		return &zero
	}
	pos := sort.SearchFloat64s(idx.prices, *price)
	percentile := clamp01(float64(pos) / float64(len(idx.prices)-1))
	return &percentile
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
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
