// Package retrieval finds comparable candidates for a target listing by
// walking a fixed ladder of progressively relaxed filter configurations.
// Hard locks (make, model, body, fuel, transmission, exterior colour) apply
// at every step; soft locks (year, mileage, price, power) widen per step.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"time"

	"carma-vehicle-api/internal/cache"
	"carma-vehicle-api/internal/model"
	"carma-vehicle-api/internal/normalize"
)

// CandidateSource is the slice of the listing store adapter retrieval needs.
type CandidateSource interface {
	FetchCandidates(ctx context.Context, spec model.FilterSpec, limit int) ([]*model.Listing, error)
}

// Options bound one retrieval run.
type Options struct {
	CandidateLimit int
	MinResults     int
}

type Retriever struct {
	source CandidateSource
	cache  cache.CandidateCache // nil disables caching
	now    func() time.Time
}

func NewRetriever(source CandidateSource, candidateCache cache.CandidateCache) *Retriever {
	return &Retriever{source: source, cache: candidateCache, now: time.Now}
}

// targetView holds everything of the target the ladder predicates need,
// extracted once.
type targetView struct {
	id           string
	makeName     string
	model        string
	body         *string // folded raw value for SQL
	fuel         *string
	transmission *string
	bodyGroup    *string // canonical group for in-process checks
	fuelGroup    *string
	transGroup   *string
	colour       *string
	year         *int
	mileage      *float64
	price        *float64
	power        *float64
}

func viewOf(target *model.Listing) (*targetView, error) {
	mk := normalize.Text(target.Make)
	md := normalize.Text(target.Model)
	if mk == nil || md == nil {
		return nil, fmt.Errorf("%w: target vehicle missing make or model", model.ErrBadRequest)
	}

	price := target.PriceNum
	if price == nil {
		price = normalize.ParsePrice(target.PriceRaw)
	}
	mileage := target.MileageNum
	if mileage == nil {
		mileage = normalize.ParseMileage(target.MileageRaw)
	}

	return &targetView{
		id:           target.VehicleID,
		makeName:     *mk,
		model:        *md,
		body:         normalize.FoldPtr(target.BodyType),
		fuel:         normalize.FoldPtr(target.FuelType),
		transmission: normalize.FoldPtr(target.Transmission),
		bodyGroup:    normalize.Category(target.BodyType, normalize.BodyTypeMap),
		fuelGroup:    normalize.Category(target.FuelType, normalize.FuelMap),
		transGroup:   normalize.Category(target.Transmission, normalize.TransmissionMap),
		colour:       normalize.Colour(target.Color),
		year:         normalize.ExtractYear(target.FirstRegistrationRaw),
		mileage:      mileage,
		price:        price,
		power:        target.PowerKW,
	}, nil
}

// Find walks the ladder and returns the admitted candidates, each annotated
// with the step that admitted it, plus the run report. An empty cohort with a
// nil error means every step came back empty; the caller maps that to 404.
func (r *Retriever) Find(ctx context.Context, target *model.Listing, opts Options) ([]*model.Listing, model.RetrievalDebug, error) {
	debug := model.RetrievalDebug{}

	view, err := viewOf(target)
	if err != nil {
		return nil, debug, err
	}

	// With the cohort cache enabled, one make/model superset query feeds all
	// steps and the remaining predicates run in-process. Without it, each
	// step composes its own narrowed query.
	var superset []*model.Listing
	if r.cache != nil {
		superset, debug.CacheHit, err = r.supersetRows(ctx, view, opts.CandidateLimit)
		if err != nil {
			return nil, debug, err
		}
	}

	var best []*model.Listing
	bestStep := ""
	seenFingerprints := map[string]struct{}{}

	for _, step := range Ladder {
		fingerprint := r.fingerprint(view, step)
		if _, dup := seenFingerprints[fingerprint]; dup {
			debug.Attempts = append(debug.Attempts, model.AttemptLog{
				Name:             step.Name,
				SkippedDuplicate: true,
				FiltersApplied:   r.filtersApplied(view, step),
			})
			continue
		}
		seenFingerprints[fingerprint] = struct{}{}

		started := r.now()
		rows := superset
		if r.cache == nil {
			rows, err = r.source.FetchCandidates(ctx, r.stepSpec(view, step), opts.CandidateLimit)
			if err != nil {
				return nil, debug, err
			}
			if len(rows) == 0 {
				rows, err = r.source.FetchCandidates(ctx, r.foldedSpec(view, step), opts.CandidateLimit)
				if err != nil {
					return nil, debug, err
				}
			}
		}

		kept := make([]*model.Listing, 0, len(rows))
		for _, row := range rows {
			if !r.admit(view, step, row) {
				continue
			}
			admitted := row.Clone()
			admitted.MatchStrategy = step.Name
			kept = append(kept, admitted)
		}

		debug.Attempts = append(debug.Attempts, model.AttemptLog{
			Name:             step.Name,
			RowCount:         len(kept),
			QueryTimeSeconds: r.now().Sub(started).Seconds(),
			FiltersApplied:   r.filtersApplied(view, step),
		})

		if len(kept) > len(best) {
			best = kept
			bestStep = step.Name
		}

		if len(kept) >= opts.MinResults {
			debug.SelectedAttempt = step.Name
			return kept, debug, nil
		}
	}

	if len(best) > 0 {
		debug.SelectedAttempt = bestStep
		debug.Warning = fmt.Sprintf("Only found %d results (minimum: %d)", len(best), opts.MinResults)
		return best, debug, nil
	}

	return nil, debug, nil
}

// supersetRows fetches (or replays from cache) the make/model-constrained
// superset all steps filter from.
func (r *Retriever) supersetRows(ctx context.Context, view *targetView, limit int) ([]*model.Listing, bool, error) {
	key := cache.Key{Make: normalize.Fold(view.makeName), Model: normalize.Fold(view.model), Limit: limit}
	if rows, ok := r.cache.Get(ctx, key); ok {
		return rows, true, nil
	}

	spec := model.FilterSpec{ExcludeID: view.id, Make: view.makeName, Model: view.model}
	rows, err := r.source.FetchCandidates(ctx, spec, limit)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		spec.FoldMakeModel = true
		rows, err = r.source.FetchCandidates(ctx, spec, limit)
		if err != nil {
			return nil, false, err
		}
	}
	r.cache.Set(ctx, key, rows)
	return rows, false, nil
}

func (r *Retriever) stepSpec(view *targetView, step Step) model.FilterSpec {
	spec := model.FilterSpec{
		ExcludeID:    view.id,
		Make:         view.makeName,
		Model:        view.model,
		Body:         view.body,
		Fuel:         view.fuel,
		Transmission: view.transmission,
		RequireColor: view.colour != nil,
	}
	if view.mileage != nil && *view.mileage > 0 {
		spec.MileageBounds = &model.Range{
			Low:  *view.mileage * (1 - step.MileageRatio),
			High: *view.mileage * (1 + step.MileageRatio),
		}
	}
	if view.price != nil && *view.price > 0 {
		spec.PriceBounds = &model.Range{
			Low:  *view.price * step.PriceLow,
			High: *view.price * step.PriceHigh,
		}
	}
	if view.power != nil && *view.power > 0 {
		spec.PowerBounds = &model.Range{
			Low:  *view.power * (1 - step.PowerRatio),
			High: *view.power * (1 + step.PowerRatio),
		}
	}
	return spec
}

func (r *Retriever) foldedSpec(view *targetView, step Step) model.FilterSpec {
	spec := r.stepSpec(view, step)
	spec.FoldMakeModel = true
	return spec
}

// fingerprint renders the effective predicate set of a step; two steps with
// equal fingerprints would run the identical query, so the later is skipped.
func (r *Retriever) fingerprint(view *targetView, step Step) string {
	spec := r.stepSpec(view, step)
	fp := ""
	if view.year != nil {
		fp += fmt.Sprintf("y±%d;", step.YearTolerance)
	}
	if spec.MileageBounds != nil {
		fp += fmt.Sprintf("m%.1f-%.1f;", spec.MileageBounds.Low, spec.MileageBounds.High)
	}
	if spec.PriceBounds != nil {
		fp += fmt.Sprintf("p%.1f-%.1f;", spec.PriceBounds.Low, spec.PriceBounds.High)
	}
	if spec.PowerBounds != nil {
		fp += fmt.Sprintf("kw%.1f-%.1f;", spec.PowerBounds.Low, spec.PowerBounds.High)
	}
	return fp
}

// admit applies every predicate in-process: the hard locks after
// normalisation (required regardless of how the rows were fetched, since
// colour canonicalisation and year extraction are not expressible in SQL)
// and the step's soft-lock ranges.
func (r *Retriever) admit(view *targetView, step Step, row *model.Listing) bool {
	if row.VehicleID == view.id {
		return false
	}

	if !equalFold(&view.makeName, row.Make) || !equalFold(&view.model, row.Model) {
		return false
	}
	if view.bodyGroup != nil && !equalPtr(view.bodyGroup, normalize.Category(row.BodyType, normalize.BodyTypeMap)) {
		return false
	}
	if view.fuelGroup != nil && !equalPtr(view.fuelGroup, normalize.Category(row.FuelType, normalize.FuelMap)) {
		return false
	}
	if view.transGroup != nil && !equalPtr(view.transGroup, normalize.Category(row.Transmission, normalize.TransmissionMap)) {
		return false
	}
	if view.colour != nil && !equalPtr(view.colour, normalize.Colour(row.Color)) {
		return false
	}

	if view.year != nil {
		candidateYear := normalize.ExtractYear(row.FirstRegistrationRaw)
		if candidateYear == nil || math.Abs(float64(*candidateYear-*view.year)) > float64(step.YearTolerance) {
			return false
		}
	}
	if view.mileage != nil && *view.mileage > 0 {
		mileage := row.MileageNum
		if mileage == nil {
			mileage = normalize.ParseMileage(row.MileageRaw)
		}
		if !within(mileage, *view.mileage*(1-step.MileageRatio), *view.mileage*(1+step.MileageRatio)) {
			return false
		}
	}
	if view.price != nil && *view.price > 0 {
		price := row.PriceNum
		if price == nil {
			price = normalize.ParsePrice(row.PriceRaw)
		}
		if !within(price, *view.price*step.PriceLow, *view.price*step.PriceHigh) {
			return false
		}
	}
	if view.power != nil && *view.power > 0 {
		if !within(row.PowerKW, *view.power*(1-step.PowerRatio), *view.power*(1+step.PowerRatio)) {
			return false
		}
	}
	return true
}

func (r *Retriever) filtersApplied(view *targetView, step Step) model.FiltersApplied {
	soft := map[string]*string{"year": nil, "mileage": nil, "price": nil, "power": nil}
	if view.year != nil {
		soft["year"] = strPtr(fmt.Sprintf("±%d", step.YearTolerance))
	}
	if view.mileage != nil && *view.mileage > 0 {
		soft["mileage"] = strPtr(fmt.Sprintf("±%d%%", int(step.MileageRatio*100)))
	}
	if view.price != nil && *view.price > 0 {
		soft["price"] = strPtr(fmt.Sprintf("%d-%d%%", int(step.PriceLow*100), int(step.PriceHigh*100)))
	}
	if view.power != nil && *view.power > 0 {
		soft["power"] = strPtr(fmt.Sprintf("±%d%%", int(step.PowerRatio*100)))
	}
	return model.FiltersApplied{
		HardLocks: map[string]bool{
			"make":           true,
			"model":          true,
			"body_type":      view.bodyGroup != nil,
			"fuel_type":      view.fuelGroup != nil,
			"transmission":   view.transGroup != nil,
			"exterior_color": view.colour != nil,
		},
		SoftLocks: soft,
	}
}

func equalFold(a, b *string) bool {
	if a == nil || b == nil {
		return false
	}
	return normalize.Fold(*a) == normalize.Fold(*b)
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

func within(value *float64, low, high float64) bool {
	return value != nil && *value >= low && *value <= high
}

func strPtr(s string) *string { return &s }
