package model

// Advisor is a vendor who may be notified about and bid on requests.
// Read-only from the engines' perspective; trust is externally audited.
type Advisor struct {
	ID            string
	Name          string
	LocationID    string
	Active        bool
	AccountActive bool

	// ActivityPct is the responded/notified percentage over the trailing
	// 30 days. Nil when the advisor has no notification history.
	ActivityPct *float64

	// PerformancePct is the blended historical performance percentage over
	// the trailing 6 months. Nil when the advisor has no award history.
	PerformancePct *float64

	// Trust is the advisor's current trust score, 1.0-5.0.
	Trust float64
}
