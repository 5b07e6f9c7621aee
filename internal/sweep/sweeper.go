// Package sweep drives request progression between waves: it advances tiers
// whose wait budget lapsed, closes requests early once enough offers arrive,
// expires stale offers, and hands finished requests to evaluation.
package sweep

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/partsbid/matching-engine/internal/escalation"
	"github.com/partsbid/matching-engine/internal/evaluation"
	"github.com/partsbid/matching-engine/internal/events"
	"github.com/partsbid/matching-engine/internal/lock"
	"github.com/partsbid/matching-engine/internal/model"
)

// Escalator is the slice of the escalation engine the sweeper drives.
type Escalator interface {
	ExecuteWave(ctx context.Context, requestID string, tier int) (*escalation.WaveResult, error)
	CanCloseEarly(ctx context.Context, requestID string) (bool, error)
}

// Evaluator is the slice of the evaluation engine the sweeper drives.
type Evaluator interface {
	EvaluateWithTimeout(ctx context.Context, requestID string) (*evaluation.Outcome, error)
}

// Locker serializes evaluation against the offer-write path.
type Locker interface {
	TryAcquire(ctx context.Context, requestID string) (*lock.Lease, error)
	Release(ctx context.Context, lease *lock.Lease) error
}

// ExpiredOffer identifies one offer transitioned to EXPIRED by a sweep.
type ExpiredOffer struct {
	OfferID   string
	RequestID string
}

// Store is the sweeper's read/expire surface.
type Store interface {
	// ListOpenRequests returns every request still accepting offers.
	ListOpenRequests(ctx context.Context) ([]model.Request, error)
	// PendingTierNotifications counts not-yet-notified records at a tier.
	PendingTierNotifications(ctx context.Context, requestID string, tier int) (int, error)
	// TierDeadline returns the latest notification timeout at a tier, or nil
	// when nothing at the tier was notified yet.
	TierDeadline(ctx context.Context, requestID string, tier int) (*time.Time, error)
	// ExpireOffers transitions SUBMITTED offers past their response window
	// to EXPIRED and returns them.
	ExpireOffers(ctx context.Context, now time.Time) ([]ExpiredOffer, error)
}

// Result summarizes one sweep pass.
type Result struct {
	Requests      int
	WavesExecuted int
	Evaluated     int
	OffersExpired int
	Skipped       int // requests left alone (lock busy, wave still running)
}

// Sweeper runs one pass over all open requests.
type Sweeper struct {
	store     Store
	escalator Escalator
	evaluator Evaluator
	locker    Locker
	publisher events.Publisher
	maxTier   int
	log       *zap.Logger
}

// New creates a Sweeper. maxTier is the worst tier in the configured table.
func New(store Store, escalator Escalator, evaluator Evaluator, locker Locker,
	publisher events.Publisher, maxTier int) *Sweeper {
	return &Sweeper{
		store:     store,
		escalator: escalator,
		evaluator: evaluator,
		locker:    locker,
		publisher: publisher,
		maxTier:   maxTier,
		log:       zap.L().With(zap.String("component", "sweep")),
	}
}

// Run executes one sweep pass. Per-request failures are isolated; the pass
// always visits every open request.
func (s *Sweeper) Run(ctx context.Context) (*Result, error) {
	now := time.Now().UTC()
	result := &Result{}

	expired, err := s.store.ExpireOffers(ctx, now)
	if err != nil {
		s.log.Warn("offer expiry failed", zap.Error(err))
	}
	result.OffersExpired = len(expired)
	for _, e := range expired {
		if err := s.publisher.Publish(ctx, events.Event{
			Type:      events.EventOfferExpired,
			RequestID: e.RequestID,
			Payload:   map[string]any{"offer_id": e.OfferID},
		}); err != nil {
			s.log.Warn("publishing offer expiry failed",
				zap.String("offer_id", e.OfferID), zap.Error(err))
		}
	}

	requests, err := s.store.ListOpenRequests(ctx)
	if err != nil {
		return result, eris.Wrap(err, "sweep: list open requests")
	}
	result.Requests = len(requests)

	for _, req := range requests {
		if err := ctx.Err(); err != nil {
			return result, eris.Wrap(err, "sweep: cancelled")
		}
		s.sweepRequest(ctx, req, now, result)
	}

	s.log.Info("sweep pass finished",
		zap.Int("requests", result.Requests),
		zap.Int("waves", result.WavesExecuted),
		zap.Int("evaluated", result.Evaluated),
		zap.Int("offers_expired", result.OffersExpired),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (s *Sweeper) sweepRequest(ctx context.Context, req model.Request, now time.Time, result *Result) {
	log := s.log.With(zap.String("request_id", req.ID))

	closeEarly, err := s.escalator.CanCloseEarly(ctx, req.ID)
	if err != nil {
		log.Warn("early-closure check failed", zap.Error(err))
		result.Skipped++
		return
	}
	if closeEarly {
		s.evaluate(ctx, req.ID, result, log)
		return
	}

	tier := req.TierLevel
	if tier < 1 {
		tier = 1
	}

	pending, err := s.store.PendingTierNotifications(ctx, req.ID, tier)
	if err != nil {
		log.Warn("pending-notification check failed", zap.Error(err))
		result.Skipped++
		return
	}
	if pending > 0 {
		if _, err := s.escalator.ExecuteWave(ctx, req.ID, tier); err != nil {
			log.Warn("wave execution failed", zap.Int("tier", tier), zap.Error(err))
			result.Skipped++
			return
		}
		result.WavesExecuted++
		return
	}

	deadline, err := s.store.TierDeadline(ctx, req.ID, tier)
	if err != nil {
		log.Warn("tier deadline lookup failed", zap.Error(err))
		result.Skipped++
		return
	}
	if deadline != nil && now.Before(*deadline) {
		// Wave still within its wait budget.
		result.Skipped++
		return
	}
	// A nil deadline means the tier holds no advisors at all; advance.

	if tier < s.maxTier {
		if _, err := s.escalator.ExecuteWave(ctx, req.ID, tier+1); err != nil {
			log.Warn("tier advancement failed", zap.Int("tier", tier+1), zap.Error(err))
			result.Skipped++
			return
		}
		result.WavesExecuted++
		return
	}

	// Last tier exhausted: evaluate with whatever arrived.
	s.evaluate(ctx, req.ID, result, log)
}

// evaluate runs the evaluation engine under the request lock. A busy lock
// means an offer write is in flight; the next sweep retries.
func (s *Sweeper) evaluate(ctx context.Context, requestID string, result *Result, log *zap.Logger) {
	lease, err := s.locker.TryAcquire(ctx, requestID)
	if err != nil {
		if eris.Is(err, lock.ErrBusy) {
			log.Debug("request busy, deferring evaluation to next sweep")
		} else {
			log.Warn("lock acquisition failed", zap.Error(err))
		}
		result.Skipped++
		return
	}
	defer func() {
		if err := s.locker.Release(ctx, lease); err != nil {
			log.Warn("lock release failed", zap.Error(err))
		}
	}()

	out, err := s.evaluator.EvaluateWithTimeout(ctx, requestID)
	if err != nil {
		log.Warn("evaluation rejected", zap.Error(err))
		result.Skipped++
		return
	}
	if out.TimedOut || out.Err != nil {
		result.Skipped++
		return
	}
	result.Evaluated++
}
