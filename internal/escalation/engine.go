package escalation

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/partsbid/matching-engine/internal/config"
	"github.com/partsbid/matching-engine/internal/events"
	"github.com/partsbid/matching-engine/internal/geo"
	"github.com/partsbid/matching-engine/internal/model"
	"github.com/partsbid/matching-engine/internal/resilience"
	"github.com/partsbid/matching-engine/internal/scoring"
)

// Exclusion reasons for advisors filtered out of escalation.
const (
	ExcludeAdvisorInactive   = "advisor_inactive"
	ExcludeAccountInactive   = "account_inactive"
	ExcludeTrustBelowMinimum = "trust_below_minimum"
)

// Exclusion records one advisor filtered out of a run, so callers can audit
// exclusions without failing the whole escalation.
type Exclusion struct {
	AdvisorID string
	Reason    string
}

// PlanResult is the outcome of one escalation run.
type PlanResult struct {
	Success   bool
	Reason    string
	RequestID string

	// Degraded is true when the request location was unresolvable and
	// every active advisor was treated as a candidate.
	Degraded bool

	Candidates int
	Eligible   int
	Excluded   []Exclusion
	Records    []model.EscalationRecord
}

// WaveResult is the outcome of executing one notification wave.
type WaveResult struct {
	RequestID string
	Tier      int
	Notified  int
	Failed    int
}

// Engine orchestrates advisor discovery, filtering, scoring, tiering and
// wave execution.
type Engine struct {
	store     Store
	directory Directory
	gateway   Gateway
	resolver  geo.Resolver
	publisher events.Publisher
	cfg       config.EscalationConfig
	limiter   *rate.Limiter
}

// New creates an escalation Engine.
func New(store Store, directory Directory, gateway Gateway, resolver geo.Resolver,
	publisher events.Publisher, cfg config.EscalationConfig, notify config.NotifyConfig) *Engine {
	sends := notify.SendsPerSecond
	if sends <= 0 {
		sends = 10
	}
	return &Engine{
		store:     store,
		directory: directory,
		gateway:   gateway,
		resolver:  resolver,
		publisher: publisher,
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Limit(sends), 1),
	}
}

// Escalate builds and persists the tiered notification plan for a request:
// discover candidates, filter, score, tier, persist one record per eligible
// advisor. An escalation run always produces some tiering unless zero
// eligible advisors exist.
func (e *Engine) Escalate(ctx context.Context, requestID string) (*PlanResult, error) {
	log := zap.L().With(zap.String("component", "escalation"), zap.String("request_id", requestID))

	req, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.State != model.RequestOpen {
		return nil, eris.Errorf("escalation: request %s is %s, not OPEN", requestID, req.State)
	}

	origin, degraded := e.resolveOrigin(ctx, req, log)

	candidates, err := e.discover(ctx, origin, degraded)
	if err != nil {
		return nil, err
	}

	eligible, excluded := filterEligible(candidates, e.cfg.MinTrust, log)

	result := &PlanResult{
		RequestID:  requestID,
		Degraded:   degraded,
		Candidates: len(candidates),
		Eligible:   len(eligible),
		Excluded:   excluded,
	}

	if len(eligible) == 0 {
		result.Reason = "no eligible advisors"
		log.Warn("escalation produced zero eligible advisors",
			zap.Int("candidates", len(candidates)),
			zap.Int("excluded", len(excluded)),
		)
		return result, nil
	}

	records := make([]model.EscalationRecord, 0, len(eligible))
	for _, adv := range eligible {
		records = append(records, e.scoreAdvisor(ctx, req.ID, origin, adv, log))
	}

	// Best advisors first, so tier listings and audits read naturally.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CompositeScore > records[j].CompositeScore
	})

	if _, err := e.store.InsertRecords(ctx, records); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := e.store.SetRequestTier(ctx, req.ID, 1, now); err != nil {
		return nil, err
	}

	result.Success = true
	result.Records = records

	log.Info("escalation plan built",
		zap.Int("candidates", len(candidates)),
		zap.Int("eligible", len(eligible)),
		zap.Int("excluded", len(excluded)),
		zap.Bool("degraded", degraded),
	)

	return result, nil
}

// resolveOrigin resolves the request location. Unresolved geography is
// never fatal: it degrades to coverage-degraded mode with a warning.
func (e *Engine) resolveOrigin(ctx context.Context, req *model.Request, log *zap.Logger) (geo.Location, bool) {
	origin, err := e.resolver.Resolve(ctx, req.LocationID)
	if err != nil || !origin.Resolved() {
		log.Warn("request location unresolved, entering coverage-degraded mode",
			zap.String("location_id", req.LocationID),
			zap.Error(err),
		)
		return geo.Location{}, true
	}
	return origin, false
}

// discover returns the deduplicated union of same-city, any-metro-area and
// same-hub advisors. In degraded mode every active advisor is a candidate.
func (e *Engine) discover(ctx context.Context, origin geo.Location, degraded bool) ([]Advisor, error) {
	if degraded {
		all, err := e.directory.FindAllActive(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "escalation: find all active advisors")
		}
		return dedupe(all), nil
	}

	var pool []Advisor

	byCity, err := e.directory.FindByCity(ctx, origin.CityID)
	if err != nil {
		return nil, eris.Wrap(err, "escalation: find advisors by city")
	}
	pool = append(pool, byCity...)

	byMetro, err := e.directory.FindByMetroAreaAny(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "escalation: find advisors by metro area")
	}
	pool = append(pool, byMetro...)

	byHub, err := e.directory.FindByHub(ctx, origin.HubID)
	if err != nil {
		return nil, eris.Wrap(err, "escalation: find advisors by hub")
	}
	pool = append(pool, byHub...)

	return dedupe(pool), nil
}

func dedupe(advisors []Advisor) []Advisor {
	seen := make(map[string]bool, len(advisors))
	out := advisors[:0:0]
	for _, a := range advisors {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	return out
}

// filterEligible applies the eligibility rules, accumulating exclusions
// with their reasons.
func filterEligible(candidates []Advisor, minTrust float64, log *zap.Logger) ([]Advisor, []Exclusion) {
	var eligible []Advisor
	var excluded []Exclusion

	for _, a := range candidates {
		reason := ""
		switch {
		case !a.Active:
			reason = ExcludeAdvisorInactive
		case !a.AccountActive:
			reason = ExcludeAccountInactive
		case a.Trust < minTrust:
			reason = ExcludeTrustBelowMinimum
		}
		if reason != "" {
			excluded = append(excluded, Exclusion{AdvisorID: a.ID, Reason: reason})
			log.Debug("advisor excluded from escalation",
				zap.String("advisor_id", a.ID),
				zap.String("reason", reason),
			)
			continue
		}
		eligible = append(eligible, a)
	}

	return eligible, excluded
}

// scoreAdvisor computes the full score breakdown and tier for one advisor.
// Metric failures are isolated: a failed stats lookup falls back to the
// configured default for both history metrics and the advisor stays in the
// plan.
func (e *Engine) scoreAdvisor(ctx context.Context, requestID string, origin geo.Location, adv Advisor, log *zap.Logger) model.EscalationRecord {
	proximity, label := geo.ClassifyProximity(origin, adv.Location)

	var activity, performance scoring.MetricResult
	stats, err := e.store.AdvisorStats(ctx, adv.ID)
	if err != nil {
		log.Warn("advisor stats lookup failed, using fallback scores",
			zap.String("advisor_id", adv.ID),
			zap.Error(err),
		)
		activity = scoring.MetricResult{Score: e.cfg.FallbackScore, UsedFallback: true}
		performance = scoring.MetricResult{Score: e.cfg.FallbackScore, UsedFallback: true}
	} else {
		activity = scoring.Activity(stats.Notified30d, stats.Responded30d, adv.ActivityPct, e.cfg.FallbackScore)
		performance = scoring.Performance(stats.Performance, adv.PerformancePct, e.cfg.FallbackScore)
	}

	trust := scoring.Trust(adv.Trust)

	composite := scoring.Composite(scoring.AdvisorWeights{
		Proximity:   e.cfg.ProximityWeight,
		Activity:    e.cfg.ActivityWeight,
		Performance: e.cfg.PerformanceWeight,
		Trust:       e.cfg.TrustWeight,
	}, proximity, activity.Score, performance.Score, trust.Score)

	tp := tierFor(composite, e.cfg.Tiers)

	return model.EscalationRecord{
		RequestID:        requestID,
		AdvisorID:        adv.ID,
		ProximityScore:   proximity,
		ActivityScore:    activity.Score,
		PerformanceScore: performance.Score,
		TrustScore:       trust.Score,
		CompositeScore:   composite,
		ProximityLabel:   label,
		Tier:             tp.Tier,
		Channel:          channelFor(tp),
		WaitBudget:       waitBudget(tp),
	}
}

// ExecuteWave notifies every not-yet-notified advisor at the given tier via
// its assigned channel. Per-advisor failures are isolated and counted; the
// wave still succeeds.
func (e *Engine) ExecuteWave(ctx context.Context, requestID string, tier int) (*WaveResult, error) {
	log := zap.L().With(zap.String("component", "escalation"),
		zap.String("request_id", requestID), zap.Int("tier", tier))

	req, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.State != model.RequestOpen {
		return nil, eris.Errorf("escalation: request %s is %s, not OPEN", requestID, req.State)
	}

	lineCount, err := e.store.CountRequestLines(ctx, requestID)
	if err != nil {
		return nil, err
	}

	records, err := e.store.ListTierRecords(ctx, requestID, tier)
	if err != nil {
		return nil, err
	}

	result := &WaveResult{RequestID: requestID, Tier: tier}

	for _, rec := range records {
		if err := e.limiter.Wait(ctx); err != nil {
			return result, eris.Wrap(err, "escalation: wave cancelled")
		}

		now := time.Now().UTC()
		payload := Payload{
			RequestID: requestID,
			LineCount: lineCount,
			RespondBy: now.Add(rec.WaitBudget),
		}

		sendErr := resilience.Do(ctx, resilience.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: 250 * time.Millisecond,
			OnRetry:        resilience.RetryLogger("notify", "send"),
		}, func(ctx context.Context) error {
			return e.gateway.Send(ctx, rec.AdvisorID, rec.Channel, payload)
		})
		if sendErr != nil {
			result.Failed++
			log.Warn("notification failed",
				zap.String("advisor_id", rec.AdvisorID),
				zap.String("channel", string(rec.Channel)),
				zap.Error(sendErr),
			)
			continue
		}

		timeoutAt := now.Add(rec.WaitBudget)
		if err := e.store.MarkNotified(ctx, rec.ID, now, timeoutAt); err != nil {
			result.Failed++
			log.Warn("stamping notification failed",
				zap.String("advisor_id", rec.AdvisorID),
				zap.Error(err),
			)
			continue
		}
		result.Notified++
	}

	if err := e.store.SetRequestTier(ctx, requestID, tier, time.Now().UTC()); err != nil {
		return result, err
	}

	if err := e.publisher.Publish(ctx, events.Event{
		Type:      events.EventWaveExecuted,
		RequestID: requestID,
		Payload: map[string]any{
			"tier":     tier,
			"notified": result.Notified,
			"failed":   result.Failed,
		},
	}); err != nil {
		log.Warn("publishing wave event failed", zap.Error(err))
	}

	log.Info("wave executed", zap.Int("notified", result.Notified), zap.Int("failed", result.Failed))
	return result, nil
}

// CanCloseEarly reports whether enough offers arrived to stop advancing
// tiers and evaluate immediately. Polled by the scheduler between waves.
func (e *Engine) CanCloseEarly(ctx context.Context, requestID string) (bool, error) {
	req, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		return false, err
	}

	count, err := e.store.CountSubmittedOffers(ctx, requestID)
	if err != nil {
		return false, err
	}

	return count >= req.DesiredOffers, nil
}
