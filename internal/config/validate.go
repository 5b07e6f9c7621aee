package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that a Config is internally consistent. It is called by
// Load and again by commands that accept config overrides.
func Validate(c *Config) error {
	var errs []string

	esc := map[string]float64{
		"escalation.proximity_weight":   c.Escalation.ProximityWeight,
		"escalation.activity_weight":    c.Escalation.ActivityWeight,
		"escalation.performance_weight": c.Escalation.PerformanceWeight,
		"escalation.trust_weight":       c.Escalation.TrustWeight,
	}
	for name, w := range esc {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}
	escSum := c.Escalation.ProximityWeight + c.Escalation.ActivityWeight +
		c.Escalation.PerformanceWeight + c.Escalation.TrustWeight
	if math.Abs(escSum-1.0) > 0.01 {
		errs = append(errs, fmt.Sprintf("escalation weights should sum to 1.0, got %.2f", escSum))
	}

	evalSum := c.Evaluation.PriceWeight + c.Evaluation.DeliveryWeight + c.Evaluation.WarrantyWeight
	if math.Abs(evalSum-1.0) > 0.01 {
		errs = append(errs, fmt.Sprintf("evaluation weights should sum to 1.0, got %.2f", evalSum))
	}

	if c.Escalation.FallbackScore < 1.0 || c.Escalation.FallbackScore > 5.0 {
		errs = append(errs, "escalation.fallback_score must be between 1.0 and 5.0")
	}
	if c.Escalation.MinTrust < 0 || c.Escalation.MinTrust > 5.0 {
		errs = append(errs, "escalation.min_trust must be between 0 and 5.0")
	}

	if err := validateTiers(c.Escalation.Tiers); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Evaluation.CoverageMinPct < 0 || c.Evaluation.CoverageMinPct > 100 {
		errs = append(errs, "evaluation.coverage_min_pct must be between 0 and 100")
	}
	if c.Evaluation.TimeoutSecs <= 0 {
		errs = append(errs, "evaluation.timeout_secs must be > 0")
	}
	switch c.Evaluation.TieBreak {
	case "earliest_submission", "lowest_price":
	default:
		errs = append(errs, fmt.Sprintf("evaluation.tie_break must be earliest_submission or lowest_price, got %q", c.Evaluation.TieBreak))
	}

	// A crashed evaluation holder's lock must self-expire, so the lease has
	// to outlive the worst-case pass.
	if c.Lock.TTLSecs <= c.Evaluation.TimeoutSecs {
		errs = append(errs, fmt.Sprintf(
			"lock.ttl_secs (%d) must exceed evaluation.timeout_secs (%d)",
			c.Lock.TTLSecs, c.Evaluation.TimeoutSecs))
	}
	if c.Lock.MaxAttempts <= 0 {
		errs = append(errs, "lock.max_attempts must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateTiers(tiers []TierPolicy) error {
	if len(tiers) == 0 {
		return eris.New("escalation.tiers must not be empty")
	}
	prevScore := math.Inf(1)
	for i, tp := range tiers {
		if tp.Tier != i+1 {
			return eris.Errorf("escalation.tiers[%d] must be tier %d, got %d", i, i+1, tp.Tier)
		}
		if tp.MinScore > prevScore {
			return eris.Errorf("escalation.tiers min_score must be non-increasing, tier %d breaks order", tp.Tier)
		}
		prevScore = tp.MinScore
		switch tp.Channel {
		case "push", "sms", "chat":
		default:
			return eris.Errorf("escalation.tiers[%d] has unknown channel %q", i, tp.Channel)
		}
		if tp.WaitMinutes <= 0 {
			return eris.Errorf("escalation.tiers[%d] wait_minutes must be > 0", i)
		}
	}
	// The last tier must catch everything.
	if tiers[len(tiers)-1].MinScore > 0 {
		return eris.New("escalation.tiers last tier min_score must be 0")
	}
	return nil
}
