package model

import "time"

// OfferState is the lifecycle state of a vendor offer.
type OfferState string

const (
	// OfferSubmitted is the initial state set by the offer-submission path.
	OfferSubmitted OfferState = "SUBMITTED"
	// OfferWinning means at least one line was adjudicated to this offer.
	OfferWinning OfferState = "WINNING"
	// OfferNotSelected means the offer lost every line it quoted.
	OfferNotSelected OfferState = "NOT_SELECTED"
	// OfferExpired means the advisor's response window lapsed before evaluation.
	OfferExpired OfferState = "EXPIRED"
	// OfferRejected means the customer declined this winning offer.
	OfferRejected OfferState = "REJECTED"
	// OfferAccepted means the customer accepted this winning offer.
	OfferAccepted OfferState = "ACCEPTED"
)

// Offer is one advisor's full submission for a request.
// States after SUBMITTED are set only by the evaluation engine or by
// client-response handling.
type Offer struct {
	ID           string
	RequestID    string
	AdvisorID    string
	DeliveryDays int
	Notes        string
	State        OfferState

	// Aggregate totals, recomputed whenever line details change.
	TotalAmount float64
	ItemCount   int
	CoveragePct float64

	SubmittedAt time.Time
	UpdatedAt   time.Time

	Lines []OfferLine
}

// OfferLine is one advisor's quote for one request line within one offer.
// Unique per (offer, request line).
type OfferLine struct {
	ID            int64
	OfferID       string
	RequestLineID int64
	UnitPrice     float64
	Quantity      int
	WarrantyDays  int
	DeliveryDays  int

	// Per-criterion and composite scores, set by the evaluation pass.
	PriceScore     *float64
	DeliveryScore  *float64
	WarrantyScore  *float64
	CompositeScore *float64
}

// LineTotal returns the extended price for this line.
func (l OfferLine) LineTotal() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// RecomputeTotals refreshes the offer's aggregate amount, item count and
// coverage percentage from its lines. totalRequestLines is the number of
// lines on the parent request; zero yields zero coverage.
func (o *Offer) RecomputeTotals(totalRequestLines int) {
	o.ItemCount = len(o.Lines)
	o.TotalAmount = 0
	for _, l := range o.Lines {
		o.TotalAmount += l.LineTotal()
	}
	if totalRequestLines > 0 {
		o.CoveragePct = float64(distinctLines(o.Lines)) / float64(totalRequestLines) * 100
	} else {
		o.CoveragePct = 0
	}
}

// QuotesLine reports whether the offer contains a quote for the given
// request line.
func (o Offer) QuotesLine(requestLineID int64) (OfferLine, bool) {
	for _, l := range o.Lines {
		if l.RequestLineID == requestLineID {
			return l, true
		}
	}
	return OfferLine{}, false
}

func distinctLines(lines []OfferLine) int {
	seen := make(map[int64]bool, len(lines))
	for _, l := range lines {
		seen[l.RequestLineID] = true
	}
	return len(seen)
}
