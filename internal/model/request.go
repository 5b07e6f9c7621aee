// Package model defines the domain types shared by the escalation and
// evaluation engines.
package model

import "time"

// RequestState is the lifecycle state of a part request.
type RequestState string

const (
	// RequestOpen means the request is accepting offers.
	RequestOpen RequestState = "OPEN"
	// RequestEvaluated means the evaluation pass adjudicated at least one line.
	RequestEvaluated RequestState = "EVALUATED"
	// RequestOffersAccepted means the customer accepted the winning offers.
	RequestOffersAccepted RequestState = "OFFERS_ACCEPTED"
	// RequestOffersRejected means the customer rejected the winning offers.
	RequestOffersRejected RequestState = "OFFERS_REJECTED"
	// RequestClosedNoOffers means evaluation ran with nothing to adjudicate.
	RequestClosedNoOffers RequestState = "CLOSED_NO_OFFERS"
)

// Evaluable reports whether a request in this state may enter an
// evaluation pass. Only open requests qualify; re-evaluating an
// EVALUATED request is rejected so adjudications stay immutable.
func (s RequestState) Evaluable() bool {
	return s == RequestOpen
}

// Request is a customer's multi-line part request.
type Request struct {
	ID              string
	CustomerID      string
	LocationID      string
	DesiredOffers   int           // minimum SUBMITTED offers before early closure
	OfferTimeout    time.Duration // per-offer response window
	TierLevel       int           // current escalation tier, 1..5
	State           RequestState
	TotalAwarded    float64
	EscalatedAt     *time.Time
	EvaluatedAt     *time.Time
	CreatedAt       time.Time
}

// RequestLine is one requested item. Immutable once created.
type RequestLine struct {
	ID             int64
	RequestID      string
	Name           string
	Quantity       int
	VehicleContext string
}
