package model

import "time"

// AdjudicationReason explains why a line was awarded to an offer.
type AdjudicationReason string

const (
	// ReasonBestScore means the offer won on composite score among
	// coverage-qualified bidders.
	ReasonBestScore AdjudicationReason = "best_score_with_coverage"
	// ReasonSoleOffer means the offer was the only bidder for the line and
	// won by exception despite insufficient coverage.
	ReasonSoleOffer AdjudicationReason = "sole_offer_exception"
)

// Adjudication is the award decision for one request line. Immutable once
// created; at most one per request line.
type Adjudication struct {
	ID            int64
	RequestID     string
	RequestLineID int64
	OfferID       string
	OfferLineID   int64
	AdvisorID     string

	AwardedPrice    float64
	AwardedQuantity int
	WarrantyDays    int
	DeliveryDays    int

	Score       float64
	CoveragePct float64
	Reason      AdjudicationReason

	CreatedAt time.Time
}

// EvaluationRun is the append-only audit record of one evaluation pass.
type EvaluationRun struct {
	ID        string
	RequestID string

	OffersEvaluated int
	LinesTotal      int
	LinesAwarded    int
	DistinctWinners int
	Mixed           bool
	TotalAwarded    float64

	PriceWeight    float64
	DeliveryWeight float64
	WarrantyWeight float64
	CoverageMinPct float64

	Duration time.Duration
	Detail   []byte // serialized per-line detail blob

	CreatedAt time.Time
}
