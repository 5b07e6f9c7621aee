// Package scoring implements the pure scoring primitives for advisor
// tiering and offer evaluation. All scores are normalized to the 1-5 scale.
package scoring

// MetricResult carries one advisor metric score plus whether the configured
// fallback was substituted for missing history. Callers and tests can
// distinguish a real 3.0 from a defaulted one.
type MetricResult struct {
	Score        float64
	UsedFallback bool
}

// AdvisorWeights are the composite-score weights. They should sum to 1.0
// (validated at config load).
type AdvisorWeights struct {
	Proximity   float64
	Activity    float64
	Performance float64
	Trust       float64
}

// PerformanceStats holds the trailing-6-month history inputs for the
// performance metric.
type PerformanceStats struct {
	// AwardRate is won offers / submitted offers, in [0,1].
	AwardRate float64
	// FulfillmentRate is fulfilled / accepted offers, in [0,1].
	FulfillmentRate float64
	// AvgResponseHours is the mean time from notification to offer.
	AvgResponseHours float64
	// HasHistory is false when the advisor submitted no offers in the window.
	HasHistory bool
}

// worstResponseHours normalizes response-speed efficiency: anything at or
// beyond 24h scores zero.
const worstResponseHours = 24.0

// Activity scores responded/notified over the trailing 30 days, mapped
// linearly from [0,100]% to [1,5]. With zero notifications it falls back to
// the stored percentage if the directory carries one, else to fallback.
func Activity(notified, responded int, storedPct *float64, fallback float64) MetricResult {
	if notified > 0 {
		pct := float64(responded) / float64(notified) * 100
		return MetricResult{Score: mapPctToScore(pct)}
	}
	if storedPct != nil {
		return MetricResult{Score: mapPctToScore(*storedPct)}
	}
	return MetricResult{Score: fallback, UsedFallback: true}
}

// Performance blends award rate (50%), fulfillment rate (30%) and
// response-speed efficiency against a 24-hour worst case (20%), mapped to
// [1,5]. Without history it falls back to the stored percentage, then to
// fallback.
func Performance(stats PerformanceStats, storedPct *float64, fallback float64) MetricResult {
	if stats.HasHistory {
		speed := 1 - clamp(stats.AvgResponseHours, 0, worstResponseHours)/worstResponseHours
		blend := 0.50*clamp(stats.AwardRate, 0, 1) +
			0.30*clamp(stats.FulfillmentRate, 0, 1) +
			0.20*speed
		return MetricResult{Score: mapPctToScore(blend * 100)}
	}
	if storedPct != nil {
		return MetricResult{Score: mapPctToScore(*storedPct)}
	}
	return MetricResult{Score: fallback, UsedFallback: true}
}

// Trust returns the advisor's stored trust score clamped to [1,5]. No
// temporal decay is applied.
func Trust(stored float64) MetricResult {
	return MetricResult{Score: clamp(stored, 1, 5)}
}

// Composite computes the weighted advisor score, clamped to [1,5].
func Composite(w AdvisorWeights, proximity, activity, performance, trust float64) float64 {
	s := w.Proximity*proximity + w.Activity*activity + w.Performance*performance + w.Trust*trust
	return clamp(s, 1, 5)
}

// mapPctToScore maps a percentage in [0,100] linearly onto [1,5].
func mapPctToScore(pct float64) float64 {
	return 1 + 4*clamp(pct, 0, 100)/100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
