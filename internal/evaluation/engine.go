package evaluation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/partsbid/matching-engine/internal/config"
	"github.com/partsbid/matching-engine/internal/events"
	"github.com/partsbid/matching-engine/internal/model"
	"github.com/partsbid/matching-engine/internal/scoring"
)

// Outcome reason codes.
const (
	ReasonEvaluated      = "evaluated"
	ReasonNoOffers       = "closed_no_offers"
	ReasonNothingAwarded = "no lines met the coverage gate"
	ReasonTimeout        = "evaluation timed out"
	ReasonExecutionError = "execution error"
)

// LineResult is the per-line detail of an evaluation pass. Serialized into
// the run's audit blob.
type LineResult struct {
	RequestLineID int64   `json:"request_line_id"`
	Candidates    int     `json:"candidates"`
	Awarded       bool    `json:"awarded"`
	OfferID       string  `json:"offer_id,omitempty"`
	AdvisorID     string  `json:"advisor_id,omitempty"`
	Score         float64 `json:"score,omitempty"`
	Reason        string  `json:"reason"`
}

// Outcome is the structured result of an evaluation pass.
type Outcome struct {
	RequestID string
	Success   bool
	Reason    string
	State     model.RequestState

	OffersEvaluated int
	LinesTotal      int
	LinesAwarded    int
	DistinctWinners int
	Mixed           bool
	TotalAwarded    float64
	Lines           []LineResult
	Duration        time.Duration

	TimedOut bool
	Err      error // cause, set only for execution-error outcomes
}

// Engine runs evaluation passes. It never acquires the request lock itself;
// callers serialize evaluation against offer writes.
type Engine struct {
	store     Store
	publisher events.Publisher
	cfg       config.EvaluationConfig
	log       *zap.Logger
}

// New creates an evaluation Engine.
func New(store Store, publisher events.Publisher, cfg config.EvaluationConfig) *Engine {
	return &Engine{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		log:       zap.L().With(zap.String("component", "evaluation")),
	}
}

// EvaluateRequest runs one full evaluation pass: score every line, apply the
// coverage gate, adjudicate, and commit all writes in a single transaction.
// A request that is not in an evaluable state is rejected before any work.
func (e *Engine) EvaluateRequest(ctx context.Context, requestID string) (*Outcome, error) {
	start := time.Now()

	snap, err := e.store.LoadSnapshot(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if !snap.Request.State.Evaluable() {
		if snap.Request.State == model.RequestEvaluated {
			return nil, ErrAlreadyEvaluated
		}
		return nil, eris.Errorf("evaluation: request %s in state %s is not evaluable",
			requestID, snap.Request.State)
	}

	if len(snap.Offers) == 0 {
		return e.closeNoOffers(ctx, snap, start)
	}

	coverage := make(map[string]float64, len(snap.Offers))
	for i := range snap.Offers {
		snap.Offers[i].RecomputeTotals(len(snap.Lines))
		coverage[snap.Offers[i].ID] = snap.Offers[i].CoveragePct
	}

	weights := scoring.OfferWeights{
		Price:    e.cfg.PriceWeight,
		Delivery: e.cfg.DeliveryWeight,
		Warranty: e.cfg.WarrantyWeight,
	}

	// Lines are independent; score them in parallel and gather the verdicts
	// before touching any state.
	verdicts := make([]lineVerdict, len(snap.Lines))
	g, gctx := errgroup.WithContext(ctx)
	for i, line := range snap.Lines {
		i, line := i, line
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			candidates := collectCandidates(snap.Offers, line.ID)
			verdicts[i] = adjudicateLine(line, candidates, weights, e.cfg.TieBreak, coverage, e.cfg.CoverageMinPct)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrapf(err, "evaluation: score request %s", requestID)
	}

	commit, outcome := e.buildCommit(snap, verdicts, start)
	if err := e.store.Apply(ctx, commit); err != nil {
		return nil, eris.Wrapf(err, "evaluation: commit request %s", requestID)
	}

	e.log.Info("evaluation completed",
		zap.String("request_id", requestID),
		zap.Int("offers", outcome.OffersEvaluated),
		zap.Int("lines_awarded", outcome.LinesAwarded),
		zap.Int("lines_total", outcome.LinesTotal),
		zap.Bool("mixed", outcome.Mixed),
		zap.Float64("total_awarded", outcome.TotalAwarded),
		zap.Duration("duration", outcome.Duration),
	)
	e.publish(ctx, events.EventEvaluationCompleted, outcome)

	return outcome, nil
}

// EvaluateWithTimeout wraps EvaluateRequest in the configured deadline. A
// pass that misses the deadline commits nothing and yields a distinct
// timeout outcome; any other failure becomes an execution-error outcome
// carrying the cause. Validation rejections still surface as errors.
func (e *Engine) EvaluateWithTimeout(ctx context.Context, requestID string) (*Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout())
	defer cancel()

	outcome, err := e.EvaluateRequest(ctx, requestID)
	if err == nil {
		return outcome, nil
	}
	if eris.Is(err, ErrRequestNotFound) || eris.Is(err, ErrAlreadyEvaluated) {
		return nil, err
	}

	if eris.Is(err, context.DeadlineExceeded) {
		e.log.Warn("evaluation timed out, no state written",
			zap.String("request_id", requestID),
			zap.Duration("timeout", e.cfg.Timeout()),
		)
		out := &Outcome{RequestID: requestID, Reason: ReasonTimeout, TimedOut: true}
		e.publish(context.WithoutCancel(ctx), events.EventEvaluationTimeout, out)
		return out, nil
	}

	e.log.Error("evaluation failed", zap.String("request_id", requestID), zap.Error(err))
	return &Outcome{RequestID: requestID, Reason: ReasonExecutionError, Err: err}, nil
}

func (e *Engine) closeNoOffers(ctx context.Context, snap *Snapshot, start time.Time) (*Outcome, error) {
	now := time.Now().UTC()
	commit := &Commit{
		RequestID:    snap.Request.ID,
		RequestState: model.RequestClosedNoOffers,
		EvaluatedAt:  now,
		Run: &model.EvaluationRun{
			ID:             uuid.NewString(),
			RequestID:      snap.Request.ID,
			LinesTotal:     len(snap.Lines),
			PriceWeight:    e.cfg.PriceWeight,
			DeliveryWeight: e.cfg.DeliveryWeight,
			WarrantyWeight: e.cfg.WarrantyWeight,
			CoverageMinPct: e.cfg.CoverageMinPct,
			Duration:       time.Since(start),
		},
	}
	if err := e.store.Apply(ctx, commit); err != nil {
		return nil, eris.Wrapf(err, "evaluation: close request %s without offers", snap.Request.ID)
	}

	e.log.Info("request closed without offers", zap.String("request_id", snap.Request.ID))
	out := &Outcome{
		RequestID:  snap.Request.ID,
		Success:    false,
		Reason:     ReasonNoOffers,
		State:      model.RequestClosedNoOffers,
		LinesTotal: len(snap.Lines),
		Duration:   time.Since(start),
	}
	e.publish(ctx, events.EventEvaluationCompleted, out)
	return out, nil
}

func (e *Engine) buildCommit(snap *Snapshot, verdicts []lineVerdict, start time.Time) (*Commit, *Outcome) {
	now := time.Now().UTC()

	var (
		adjudications []model.Adjudication
		scoredLines   []model.OfferLine
		lineResults   = make([]LineResult, 0, len(verdicts))
		totalAwarded  float64
		winners       = map[string]bool{}
	)

	for _, v := range verdicts {
		for _, ls := range v.scores {
			ls := ls
			scoredLines = append(scoredLines, model.OfferLine{
				ID:             ls.OfferLineID,
				PriceScore:     &ls.PriceScore,
				DeliveryScore:  &ls.DeliveryScore,
				WarrantyScore:  &ls.WarrantyScore,
				CompositeScore: &ls.CompositeScore,
			})
		}

		lr := LineResult{RequestLineID: v.line.ID, Candidates: v.quoted, Reason: v.note}
		if v.winner != nil {
			w := v.winner
			adjudications = append(adjudications, model.Adjudication{
				RequestID:       snap.Request.ID,
				RequestLineID:   v.line.ID,
				OfferID:         w.OfferID,
				OfferLineID:     w.OfferLineID,
				AdvisorID:       w.AdvisorID,
				AwardedPrice:    w.UnitPrice,
				AwardedQuantity: w.Quantity,
				WarrantyDays:    w.WarrantyDays,
				DeliveryDays:    w.DeliveryDays,
				Score:           w.CompositeScore,
				CoveragePct:     coverageOf(snap.Offers, w.OfferID),
				Reason:          v.reason,
				CreatedAt:       now,
			})
			totalAwarded += w.UnitPrice * float64(w.Quantity)
			winners[w.OfferID] = true
			lr.Awarded = true
			lr.OfferID = w.OfferID
			lr.AdvisorID = w.AdvisorID
			lr.Score = w.CompositeScore
			lr.Reason = string(v.reason)
		}
		lineResults = append(lineResults, lr)
	}

	offerStates := make(map[string]model.OfferState, len(snap.Offers))
	for _, o := range snap.Offers {
		if winners[o.ID] {
			offerStates[o.ID] = model.OfferWinning
		} else {
			offerStates[o.ID] = model.OfferNotSelected
		}
	}

	// A pass with offers but no awarded line closes the request the same way
	// the no-offer path does; only an award transitions to EVALUATED.
	state := model.RequestEvaluated
	reason := ReasonEvaluated
	if len(adjudications) == 0 {
		state = model.RequestClosedNoOffers
		reason = ReasonNothingAwarded
	}

	detail, _ := json.Marshal(lineResults)
	run := &model.EvaluationRun{
		ID:              uuid.NewString(),
		RequestID:       snap.Request.ID,
		OffersEvaluated: len(snap.Offers),
		LinesTotal:      len(verdicts),
		LinesAwarded:    len(adjudications),
		DistinctWinners: len(winners),
		Mixed:           len(winners) > 1,
		TotalAwarded:    totalAwarded,
		PriceWeight:     e.cfg.PriceWeight,
		DeliveryWeight:  e.cfg.DeliveryWeight,
		WarrantyWeight:  e.cfg.WarrantyWeight,
		CoverageMinPct:  e.cfg.CoverageMinPct,
		Duration:        time.Since(start),
		Detail:          detail,
	}

	commit := &Commit{
		RequestID:     snap.Request.ID,
		RequestState:  state,
		EvaluatedAt:   now,
		TotalAwarded:  totalAwarded,
		Adjudications: adjudications,
		ScoredLines:   scoredLines,
		OfferStates:   offerStates,
		Run:           run,
	}

	outcome := &Outcome{
		RequestID:       snap.Request.ID,
		Success:         len(adjudications) > 0,
		Reason:          reason,
		State:           state,
		OffersEvaluated: len(snap.Offers),
		LinesTotal:      len(verdicts),
		LinesAwarded:    len(adjudications),
		DistinctWinners: len(winners),
		Mixed:           len(winners) > 1,
		TotalAwarded:    totalAwarded,
		Lines:           lineResults,
		Duration:        run.Duration,
	}
	return commit, outcome
}

func (e *Engine) publish(ctx context.Context, typ events.EventType, out *Outcome) {
	ev := events.Event{
		Type:      typ,
		RequestID: out.RequestID,
		Payload: map[string]any{
			"success":          out.Success,
			"reason":           out.Reason,
			"lines_awarded":    out.LinesAwarded,
			"lines_total":      out.LinesTotal,
			"distinct_winners": out.DistinctWinners,
			"mixed":            out.Mixed,
			"total_awarded":    out.TotalAwarded,
		},
	}
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.log.Warn("event publish failed",
			zap.String("type", string(typ)),
			zap.String("request_id", out.RequestID),
			zap.Error(err),
		)
	}
}

func collectCandidates(offers []model.Offer, requestLineID int64) []scoring.Candidate {
	var candidates []scoring.Candidate
	for _, o := range offers {
		ol, ok := o.QuotesLine(requestLineID)
		if !ok {
			continue
		}
		deliveryDays := ol.DeliveryDays
		if deliveryDays == 0 {
			deliveryDays = o.DeliveryDays
		}
		candidates = append(candidates, scoring.Candidate{
			OfferID:      o.ID,
			OfferLineID:  ol.ID,
			AdvisorID:    o.AdvisorID,
			UnitPrice:    ol.UnitPrice,
			Quantity:     ol.Quantity,
			DeliveryDays: deliveryDays,
			WarrantyDays: ol.WarrantyDays,
			SubmittedAt:  o.SubmittedAt,
		})
	}
	return candidates
}

func coverageOf(offers []model.Offer, offerID string) float64 {
	for _, o := range offers {
		if o.ID == offerID {
			return o.CoveragePct
		}
	}
	return 0
}
