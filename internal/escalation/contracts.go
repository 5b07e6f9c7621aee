// Package escalation converts a request's origin and the advisor pool into
// a tiered notification plan and executes it wave by wave.
package escalation

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/partsbid/matching-engine/internal/geo"
	"github.com/partsbid/matching-engine/internal/model"
	"github.com/partsbid/matching-engine/internal/scoring"
)

// ErrRequestNotFound is returned when the request id is unknown.
var ErrRequestNotFound = eris.New("escalation: request not found")

// Advisor is a directory entry: the advisor plus its resolved location.
type Advisor struct {
	model.Advisor
	Location geo.Location
}

// Directory finds active advisors by geography. Implemented outside this
// module; all methods return advisors with location already resolved.
type Directory interface {
	FindByCity(ctx context.Context, cityID string) ([]Advisor, error)
	// FindByMetroAreaAny returns advisors located in any metro area
	// nationwide. Applied unconditionally during discovery, not only when
	// the request itself originates from a metro area.
	FindByMetroAreaAny(ctx context.Context) ([]Advisor, error)
	FindByHub(ctx context.Context, hubID string) ([]Advisor, error)
	// FindAllActive backs coverage-degraded mode when the request location
	// cannot be resolved.
	FindAllActive(ctx context.Context) ([]Advisor, error)
}

// Payload is the notification content for one advisor.
type Payload struct {
	RequestID string
	LineCount int
	RespondBy time.Time
}

// Gateway delivers notifications. Send failures are non-fatal to a wave.
type Gateway interface {
	Send(ctx context.Context, advisorID string, channel model.Channel, payload Payload) error
}

// Stats is an advisor's engagement history used for activity and
// performance scoring.
type Stats struct {
	Notified30d  int
	Responded30d int
	Performance  scoring.PerformanceStats
}

// Store defines persistence operations for the escalation subsystem.
type Store interface {
	GetRequest(ctx context.Context, id string) (*model.Request, error)
	CountRequestLines(ctx context.Context, requestID string) (int, error)
	AdvisorStats(ctx context.Context, advisorID string) (Stats, error)
	// InsertRecords bulk-persists one record per eligible advisor.
	InsertRecords(ctx context.Context, records []model.EscalationRecord) (int64, error)
	// ListTierRecords returns the not-yet-notified records at a tier.
	ListTierRecords(ctx context.Context, requestID string, tier int) ([]model.EscalationRecord, error)
	MarkNotified(ctx context.Context, recordID int64, notifiedAt, timeoutAt time.Time) error
	SetRequestTier(ctx context.Context, requestID string, tier int, escalatedAt time.Time) error
	CountSubmittedOffers(ctx context.Context, requestID string) (int, error)
}
