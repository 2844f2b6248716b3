// Package similarity scores a (target, candidate) pair across three axes:
// categorical hard-lock agreement, numeric proximity, and free-text overlap.
package similarity

import (
	"fmt"
	"sort"

	"carma-vehicle-api/internal/model"
	"carma-vehicle-api/internal/normalize"
)

// Tolerances are the caller-tunable windows for the numeric axis.
type Tolerances struct {
	YearToleranceYears float64
	MileageRatio       float64
	MileageMinWindow   float64
	PowerRatio         float64
	PowerMinWindow     float64
}

// DefaultTolerances mirror the request-handler defaults.
func DefaultTolerances() Tolerances {
	return Tolerances{
		YearToleranceYears: 2,
		MileageRatio:       2.0,
		MileageMinWindow:   5000,
		PowerRatio:         0.15,
		PowerMinWindow:     15,
	}
}

// AxisWeights splits the final match score across the three axes.
type AxisWeights struct {
	Categorical float64
	Numeric     float64
	Text        float64
}

// CategoricalComponent is the per-field breakdown exposed for transparency.
type CategoricalComponent struct {
	Score     float64 `json:"score"`
	Weight    float64 `json:"weight"`
	Locked    bool    `json:"locked"`
	Target    *string `json:"target"`
	Candidate *string `json:"candidate"`
}

// NumericComponent carries the diff, window and both sides of one field.
type NumericComponent struct {
	Score       float64  `json:"score"`
	Diff        *float64 `json:"diff"`
	SignedDiff  *float64 `json:"signed_diff"`
	Window      float64  `json:"window"`
	PercentDiff *float64 `json:"percent_diff,omitempty"`
	Target      *float64 `json:"target"`
	Candidate   *float64 `json:"candidate"`
}

// TextComponents summarises the overlap axis.
type TextComponents struct {
	FeatureOverlap float64  `json:"feature_overlap"`
	TokenOverlap   float64  `json:"token_overlap"`
	FeatureHits    []string `json:"feature_hits"`
	SharedTokens   []string `json:"shared_tokens"`
}

// AxisDetail wraps one axis score with its components.
type AxisDetail struct {
	Score      float64 `json:"score"`
	Components any     `json:"components"`
}

// Details is the full debug bundle attached to every scored pair.
type Details struct {
	MatchScore  float64            `json:"match_score"`
	Categorical AxisDetail         `json:"categorical"`
	Numeric     AxisDetail         `json:"numeric"`
	Textual     AxisDetail         `json:"textual"`
	Weights     map[string]float64 `json:"weights"`
}

// Engine carries its weights as construction-time data; weights are
// re-normalised so callers may supply unnormalised overrides.
type Engine struct {
	axis        AxisWeights
	categorical map[string]float64
	numeric     map[string]float64
	text        map[string]float64
}

func NewEngine(axis *AxisWeights) *Engine {
	weights := AxisWeights{Categorical: 0.45, Numeric: 0.25, Text: 0.30}
	if axis != nil && axis.Categorical+axis.Numeric+axis.Text > 0 {
		weights = *axis
	}
	total := weights.Categorical + weights.Numeric + weights.Text
	weights.Categorical /= total
	weights.Numeric /= total
	weights.Text /= total

	return &Engine{
		axis: weights,
		categorical: normalizeWeights(map[string]float64{
			"make_model":     0.25,
			"body":           0.20,
			"fuel":           0.20,
			"transmission":   0.15,
			"exterior_color": 0.20,
		}),
		numeric: normalizeWeights(map[string]float64{
			"age":     0.40,
			"mileage": 0.40,
			"power":   0.20,
		}),
		text: normalizeWeights(map[string]float64{
			"feature_overlap": 0.60,
			"token_overlap":   0.40,
		}),
	}
}

func normalizeWeights(w map[string]float64) map[string]float64 {
	total := 0.0
	for _, v := range w {
		total += v
	}
	if total <= 0 {
		return w
	}
	out := make(map[string]float64, len(w))
	for k, v := range w {
		out[k] = v / total
	}
	return out
}

// Weights exposes the axis split actually in use.
func (e *Engine) Weights() map[string]float64 {
	return map[string]float64{
		"categorical": e.axis.Categorical,
		"numeric":     e.axis.Numeric,
		"text":        e.axis.Text,
	}
}

// Score blends the three axes into a final match in [0,1] plus the debug
// bundle. Inputs are already-normalised vehicles and their text profiles.
func (e *Engine) Score(target, candidate *model.Vehicle, tol Tolerances, targetProfile, candidateProfile *normalize.TextProfile) (float64, Details) {
	catScore, catDetail := e.categoricalSimilarity(target, candidate)
	numScore, numDetail := e.numericSimilarity(target, candidate, tol)
	textScore, textDetail := e.textualSimilarity(targetProfile, candidateProfile)

	total := e.axis.Categorical*catScore + e.axis.Numeric*numScore + e.axis.Text*textScore
	final := clamp01(total)

	return final, Details{
		MatchScore:  final,
		Categorical: catDetail,
		Numeric:     numDetail,
		Textual:     textDetail,
		Weights:     e.Weights(),
	}
}

// catScore: 1.0 when both sides are non-null and equal in comparison form,
// 0.0 when both present and unequal, neutral 0.5 when either is missing.
func catScore(a, b *string) float64 {
	if a == nil || b == nil {
		return 0.5
	}
	if normalize.Fold(*a) == normalize.Fold(*b) {
		return 1.0
	}
	return 0.0
}

func (e *Engine) categoricalSimilarity(target, candidate *model.Vehicle) (float64, AxisDetail) {
	components := make(map[string]CategoricalComponent)
	weighted := 0.0
	weightTotal := 0.0

	add := func(key string, score float64, targetVal, candidateVal *string) {
		weight := e.categorical[key]
		components[key] = CategoricalComponent{
			Score:     score,
			Weight:    weight,
			Locked:    true,
			Target:    targetVal,
			Candidate: candidateVal,
		}
		weighted += weight * score
		weightTotal += weight
	}

	// Make & model match only when both fields agree on both sides.
	var mmScore float64
	switch {
	case target.Make == nil || target.Model == nil || candidate.Make == nil || candidate.Model == nil:
		mmScore = 0.5
	case normalize.Fold(*target.Make) == normalize.Fold(*candidate.Make) &&
		normalize.Fold(*target.Model) == normalize.Fold(*candidate.Model):
		mmScore = 1.0
	default:
		mmScore = 0.0
	}
	add("make_model", mmScore, joinMakeModel(target), joinMakeModel(candidate))
	add("body", catScore(target.BodyGroup, candidate.BodyGroup), target.BodyGroup, candidate.BodyGroup)
	add("fuel", catScore(target.FuelGroup, candidate.FuelGroup), target.FuelGroup, candidate.FuelGroup)
	add("transmission", catScore(target.TransmissionGroup, candidate.TransmissionGroup), target.TransmissionGroup, candidate.TransmissionGroup)
	add("exterior_color", catScore(target.ColorCanonical, candidate.ColorCanonical), target.ColorCanonical, candidate.ColorCanonical)

	score := 0.5
	if weightTotal > 0 {
		score = weighted / weightTotal
	}
	return score, AxisDetail{Score: score, Components: components}
}

func joinMakeModel(v *model.Vehicle) *string {
	if v.Make == nil && v.Model == nil {
		return nil
	}
	joined := ""
	if v.Make != nil {
		joined = *v.Make
	}
	if v.Model != nil {
		if joined != "" {
			joined += " "
		}
		joined += *v.Model
	}
	return &joined
}

// boundedSimilarity is max(0, 1 − |Δ|/window).
func boundedSimilarity(diff, window float64) float64 {
	if window <= 0 {
		return 0.5
	}
	return clamp01(1.0 - diff/window)
}

func (e *Engine) numericSimilarity(target, candidate *model.Vehicle, tol Tolerances) (float64, AxisDetail) {
	yearWindow := maxf(tol.YearToleranceYears, 0.1) * 12.0
	mileageRatio := maxf(tol.MileageRatio, 0.01)
	mileageMinWindow := maxf(tol.MileageMinWindow, 0)
	powerRatio := maxf(tol.PowerRatio, 0.01)
	powerMinWindow := maxf(tol.PowerMinWindow, 0)

	components := make(map[string]NumericComponent)
	weighted := 0.0
	weightTotal := 0.0

	// Age in months.
	ageWindow := maxf(yearWindow, 1.0)
	ageComp := proximity(floatOfInt(target.AgeMonths), floatOfInt(candidate.AgeMonths), ageWindow)
	components["age"] = ageComp
	weighted += e.numeric["age"] * ageComp.Score
	weightTotal += e.numeric["age"]

	// Mileage window scales with the target's own mileage.
	mileageWindow := mileageMinWindow
	if target.MileageKM != nil {
		mileageWindow = maxf(absf(*target.MileageKM)*mileageRatio, mileageMinWindow)
	}
	mileageComp := proximity(target.MileageKM, candidate.MileageKM, fallbackWindow(mileageWindow, mileageMinWindow))
	components["mileage"] = mileageComp
	weighted += e.numeric["mileage"] * mileageComp.Score
	weightTotal += e.numeric["mileage"]

	// Power, with the signed percent diff the explanation surfaces.
	powerWindow := powerMinWindow
	if target.PowerKW != nil {
		powerWindow = maxf(absf(*target.PowerKW)*powerRatio, powerMinWindow)
	}
	powerComp := proximity(target.PowerKW, candidate.PowerKW, fallbackWindow(powerWindow, powerMinWindow))
	if powerComp.SignedDiff != nil && target.PowerKW != nil {
		pct := *powerComp.SignedDiff / maxf(*target.PowerKW, 1.0) * 100.0
		powerComp.PercentDiff = &pct
	}
	components["power"] = powerComp
	weighted += e.numeric["power"] * powerComp.Score
	weightTotal += e.numeric["power"]

	score := 0.5
	if weightTotal > 0 {
		score = weighted / weightTotal
	}
	return score, AxisDetail{Score: score, Components: components}
}

func proximity(target, candidate *float64, window float64) NumericComponent {
	comp := NumericComponent{Score: 0.5, Window: window, Target: target, Candidate: candidate}
	if target == nil || candidate == nil {
		return comp
	}
	signed := *candidate - *target
	diff := absf(signed)
	comp.SignedDiff = &signed
	comp.Diff = &diff
	comp.Score = boundedSimilarity(diff, window)
	return comp
}

func (e *Engine) textualSimilarity(targetProfile, candidateProfile *normalize.TextProfile) (float64, AxisDetail) {
	tokenOverlap, sharedTokens := jaccard(targetProfile.Tokens, candidateProfile.Tokens)
	featureOverlap, sharedFeatures := jaccard(targetProfile.Features, candidateProfile.Features)

	score := e.text["feature_overlap"]*featureOverlap + e.text["token_overlap"]*tokenOverlap

	featureLabels := make([]string, 0, len(sharedFeatures))
	for _, key := range sharedFeatures {
		label, ok := normalize.OptionLabels[key]
		if !ok {
			label = key
		}
		featureLabels = append(featureLabels, label)
	}

	if len(sharedTokens) > 10 {
		sharedTokens = sharedTokens[:10]
	}

	return score, AxisDetail{
		Score: score,
		Components: TextComponents{
			FeatureOverlap: featureOverlap,
			TokenOverlap:   tokenOverlap,
			FeatureHits:    featureLabels,
			SharedTokens:   sharedTokens,
		},
	}
}

// jaccard returns |a∩b|/|a∪b| and the sorted intersection, or neutral 0.5
// when both sets are empty.
func jaccard(a, b map[string]struct{}) (float64, []string) {
	union := len(a)
	var shared []string
	for item := range b {
		if _, ok := a[item]; ok {
			shared = append(shared, item)
		} else {
			union++
		}
	}
	sort.Strings(shared)
	if union == 0 {
		return 0.5, shared
	}
	return float64(len(shared)) / float64(union), shared
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

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func fallbackWindow(window, minWindow float64) float64 {
	if window > 0 {
		return window
	}
	if minWindow > 0 {
		return minWindow
	}
	return 1.0
}

func floatOfInt(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

// String renders the axis split for logs.
func (e *Engine) String() string {
	return fmt.Sprintf("similarity(cat=%.2f num=%.2f text=%.2f)", e.axis.Categorical, e.axis.Numeric, e.axis.Text)
}
