package model

import "time"

// Channel identifies how a tier of advisors is notified.
type Channel string

const (
	ChannelPush Channel = "push"
	ChannelSMS  Channel = "sms"
	ChannelChat Channel = "chat"
)

// EscalationRecord stores the full score breakdown for one advisor on one
// request. At most one record exists per (request, advisor) pair. Created
// once during escalation; only the notification and timeout stamps change
// afterwards.
type EscalationRecord struct {
	ID        int64
	RequestID string
	AdvisorID string

	ProximityScore   float64
	ActivityScore    float64
	PerformanceScore float64
	TrustScore       float64
	CompositeScore   float64

	// ProximityLabel is the classification used for the proximity score
	// (same_city, metro_area, logistics_hub, out_of_coverage).
	ProximityLabel string

	Tier       int
	Channel    Channel
	WaitBudget time.Duration

	NotifiedAt *time.Time
	TimeoutAt  *time.Time
}
