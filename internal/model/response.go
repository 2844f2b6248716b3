package model

import "time"

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status            string    `json:"status"`
	DatabaseConnected bool      `json:"database_connected"`
	VehicleCount      int64     `json:"vehicle_count"`
	Timestamp         time.Time `json:"timestamp"`
}

// StatsResponse is returned by GET /stats.
type StatsResponse struct {
	TotalVehicles int64     `json:"total_vehicles"`
	UniqueMakes   int64     `json:"unique_makes"`
	DataSources   int64     `json:"data_sources"`
	Timestamp     time.Time `json:"timestamp"`
}

// TopVehicle is one row of GET /top-vehicles.
type TopVehicle struct {
	Rank      int    `json:"rank"`
	Make      string `json:"make"`
	Model     string `json:"model"`
	Count     int    `json:"count"`
	SampleURL string `json:"sample_url"`
}

// TopVehiclesResponse is returned by GET /top-vehicles.
type TopVehiclesResponse struct {
	Vehicles      []TopVehicle `json:"vehicles"`
	TotalReturned int          `json:"total_returned"`
}

// ErrorResponse is the body of every non-200 response.
type ErrorResponse struct {
	Error string `json:"error"`
	Debug any    `json:"debug,omitempty"`
}

// AttemptLog records one relaxation step of a retrieval run.
type AttemptLog struct {
	Name             string         `json:"name"`
	RowCount         int            `json:"row_count"`
	QueryTimeSeconds float64        `json:"query_time_s"`
	SkippedDuplicate bool           `json:"skipped_duplicate,omitempty"`
	FiltersApplied   FiltersApplied `json:"filters_applied"`
}

// FiltersApplied describes the predicates a step carried.
type FiltersApplied struct {
	HardLocks map[string]bool    `json:"hard_locks"`
	SoftLocks map[string]*string `json:"soft_locks"`
}

// RetrievalDebug is the ladder's run report, surfaced in metadata and in the
// 404 debug payload when no candidates survive.
type RetrievalDebug struct {
	SelectedAttempt string       `json:"selected_attempt,omitempty"`
	Attempts        []AttemptLog `json:"attempts"`
	Warning         string       `json:"warning,omitempty"`
	CacheHit        bool         `json:"cache_hit,omitempty"`
}

// HardMatch reports one hard-lock field of the explanation.
type HardMatch struct {
	Status    string   `json:"status"` // match | mismatch | partial | unknown
	Target    *string  `json:"target"`
	Candidate *string  `json:"candidate"`
	Score     *float64 `json:"score"`
}

// Proximities carries the signed numeric deltas of the explanation.
type Proximities struct {
	AgeMonthsDelta *float64 `json:"age_months_delta"`
	MileageDelta   *float64 `json:"mileage_delta"`
	PowerDeltaPct  *float64 `json:"power_delta_pct"`
}

// DealView is the deal slice of the explanation.
type DealView struct {
	DiscountPct     *float64           `json:"discount_pct"`
	PricePercentile *float64           `json:"price_percentile"`
	MedianPrice     *float64           `json:"median_price"`
	ComparableCount int                `json:"comparable_count"`
	SavingsEUR      *float64           `json:"savings_eur"`
	Components      map[string]float64 `json:"components"`
}

// Explanation is the per-candidate why-was-this-chosen bundle.
type Explanation struct {
	HardMatches       map[string]HardMatch `json:"hard_matches"`
	TextHits          []string             `json:"text_hits"`
	SharedTokens      []string             `json:"shared_tokens"`
	Proximities       Proximities          `json:"proximities"`
	DealView          DealView             `json:"deal_view"`
	FreshnessDays     *float64             `json:"freshness_days"`
	TargetPriceEUR    *float64             `json:"target_price_eur"`
	CandidatePriceEUR *float64             `json:"candidate_price_eur"`
}

// RankWeights is the final-score blend actually used for a request.
type RankWeights struct {
	Match     float64 `json:"match"`
	Deal      float64 `json:"deal"`
	Freshness float64 `json:"freshness"`
	Trust     float64 `json:"trust"`
}

// Comparable is one ranked result.
type Comparable struct {
	Vehicle
	SimilarityScore float64        `json:"similarity_score"`
	DealScore       float64        `json:"deal_score"`
	FinalScore      float64        `json:"final_score"`
	Score           float64        `json:"score"`
	PriceHat        *float64       `json:"price_hat"`
	Savings         float64        `json:"savings"`
	SavingsPercent  *float64       `json:"savings_percent"`
	FreshnessScore  *float64       `json:"freshness_score"`
	TrustScore      float64        `json:"trust_score"`
	RankingDetails  RankingDetails `json:"ranking_details"`
	Explanation     Explanation    `json:"explanation"`
}

// RankingDetails exposes the full scoring breakdown for debugging clients.
type RankingDetails struct {
	MatchScore           float64            `json:"match_score"`
	SimilarityComponents map[string]float64 `json:"similarity_components"`
	CategoricalDetail    any                `json:"categorical_components"`
	NumericDetail        any                `json:"numeric_components"`
	TextDetail           any                `json:"text_components"`
	Weights              RankingWeightsView `json:"weights"`
	Deal                 any                `json:"deal"`
}

// RankingWeightsView groups the match-axis weights and the ranking blend.
type RankingWeightsView struct {
	Match   map[string]float64 `json:"match"`
	Ranking RankWeights        `json:"ranking"`
}

// ComparablesMetadata echoes how the cohort was produced.
type ComparablesMetadata struct {
	RequestedTop       int             `json:"requested_top"`
	Returned           int             `json:"returned"`
	TotalCandidates    int             `json:"total_candidates"`
	RawCandidates      int             `json:"raw_candidates"`
	FilterStrategy     string          `json:"filter_strategy"`
	FiltersApplied     *FiltersApplied `json:"filters_applied,omitempty"`
	RelaxationAttempts int             `json:"relaxation_attempts"`
	ProcessingTimeS    float64         `json:"processing_time_s"`
	Weights            RankWeights     `json:"weights"`
	CohortMedianPrice  *float64        `json:"cohort_median_price"`
	Warning            string          `json:"warning,omitempty"`
}

// ComparablesResponse is the envelope of GET /listings/{id}/comparables.
type ComparablesResponse struct {
	Vehicle     Vehicle             `json:"vehicle"`
	Comparables []Comparable        `json:"comparables"`
	Metadata    ComparablesMetadata `json:"metadata"`
}
