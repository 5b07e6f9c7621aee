// Package offers implements the offer-write path: advisor submissions
// (guarded by the request lock) and the customer's accept/reject response.
package offers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/partsbid/matching-engine/internal/model"
)

var (
	// ErrRequestNotFound indicates the request id does not exist.
	ErrRequestNotFound = eris.New("offers: request not found")
	// ErrRequestLocked means evaluation holds the request lock; the caller
	// should retry after a short delay.
	ErrRequestLocked = eris.New("offers: request is being evaluated")
	// ErrRequestClosed means the request no longer accepts offers.
	ErrRequestClosed = eris.New("offers: request is not accepting offers")
	// ErrNotEvaluated means a client response arrived before evaluation.
	ErrNotEvaluated = eris.New("offers: request has no evaluation to respond to")
)

// SubmissionLine is one quoted request line in a submission.
type SubmissionLine struct {
	RequestLineID int64   `json:"request_line_id"`
	UnitPrice     float64 `json:"unit_price"`
	Quantity      int     `json:"quantity"`
	WarrantyDays  int     `json:"warranty_days"`
	DeliveryDays  int     `json:"delivery_days"`
}

// Submission is an advisor's incoming offer.
type Submission struct {
	RequestID    string           `json:"request_id"`
	AdvisorID    string           `json:"advisor_id"`
	DeliveryDays int              `json:"delivery_days"`
	Notes        string           `json:"notes"`
	Lines        []SubmissionLine `json:"lines"`
}

// LockChecker is the slice of the concurrency guard the write path needs.
type LockChecker interface {
	IsLocked(ctx context.Context, requestID string) (bool, error)
}

// Store persists offers and client responses.
type Store interface {
	GetRequest(ctx context.Context, id string) (*model.Request, error)
	RequestLineIDs(ctx context.Context, requestID string) (map[int64]bool, error)
	InsertOffer(ctx context.Context, offer *model.Offer) error
	SetClientResponse(ctx context.Context, requestID string, state model.RequestState, offerState model.OfferState) error
}

// Service is the offer-write service.
type Service struct {
	store Store
	guard LockChecker
	log   *zap.Logger
}

// NewService creates a Service.
func NewService(store Store, guard LockChecker) *Service {
	return &Service{
		store: store,
		guard: guard,
		log:   zap.L().With(zap.String("component", "offers")),
	}
}

// Submit validates and persists an advisor's offer. A request under
// evaluation rejects the write with ErrRequestLocked so the advisor retries
// instead of racing the adjudication pass.
func (s *Service) Submit(ctx context.Context, sub Submission) (*model.Offer, error) {
	if sub.AdvisorID == "" {
		return nil, eris.New("offers: advisor id is required")
	}
	if len(sub.Lines) == 0 {
		return nil, eris.New("offers: at least one line is required")
	}

	locked, err := s.guard.IsLocked(ctx, sub.RequestID)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, ErrRequestLocked
	}

	req, err := s.store.GetRequest(ctx, sub.RequestID)
	if err != nil {
		return nil, err
	}
	if req.State != model.RequestOpen {
		return nil, ErrRequestClosed
	}

	validLines, err := s.store.RequestLineIDs(ctx, sub.RequestID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	offer := &model.Offer{
		ID:           uuid.NewString(),
		RequestID:    sub.RequestID,
		AdvisorID:    sub.AdvisorID,
		DeliveryDays: sub.DeliveryDays,
		Notes:        sub.Notes,
		State:        model.OfferSubmitted,
		SubmittedAt:  now,
		UpdatedAt:    now,
	}

	seen := make(map[int64]bool, len(sub.Lines))
	for _, l := range sub.Lines {
		if !validLines[l.RequestLineID] {
			return nil, eris.Errorf("offers: line %d does not belong to request %s", l.RequestLineID, sub.RequestID)
		}
		if seen[l.RequestLineID] {
			return nil, eris.Errorf("offers: line %d quoted twice", l.RequestLineID)
		}
		seen[l.RequestLineID] = true
		if l.UnitPrice <= 0 {
			return nil, eris.Errorf("offers: line %d unit price must be positive", l.RequestLineID)
		}
		if l.Quantity <= 0 {
			return nil, eris.Errorf("offers: line %d quantity must be positive", l.RequestLineID)
		}
		offer.Lines = append(offer.Lines, model.OfferLine{
			OfferID:       offer.ID,
			RequestLineID: l.RequestLineID,
			UnitPrice:     l.UnitPrice,
			Quantity:      l.Quantity,
			WarrantyDays:  l.WarrantyDays,
			DeliveryDays:  l.DeliveryDays,
		})
	}

	offer.RecomputeTotals(len(validLines))

	if err := s.store.InsertOffer(ctx, offer); err != nil {
		return nil, err
	}

	s.log.Info("offer submitted",
		zap.String("request_id", sub.RequestID),
		zap.String("offer_id", offer.ID),
		zap.String("advisor_id", sub.AdvisorID),
		zap.Float64("total", offer.TotalAmount),
		zap.Float64("coverage_pct", offer.CoveragePct),
	)
	return offer, nil
}

// Respond records the customer's decision on an evaluated request: accepted
// moves winning offers to ACCEPTED, rejected to REJECTED.
func (s *Service) Respond(ctx context.Context, requestID string, accepted bool) error {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.State != model.RequestEvaluated {
		return ErrNotEvaluated
	}

	reqState := model.RequestOffersAccepted
	offerState := model.OfferAccepted
	if !accepted {
		reqState = model.RequestOffersRejected
		offerState = model.OfferRejected
	}

	if err := s.store.SetClientResponse(ctx, requestID, reqState, offerState); err != nil {
		return err
	}

	s.log.Info("client response recorded",
		zap.String("request_id", requestID),
		zap.Bool("accepted", accepted),
	)
	return nil
}
