package escalation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/partsbid/matching-engine/internal/db"
	"github.com/partsbid/matching-engine/internal/model"
	"github.com/partsbid/matching-engine/internal/scoring"
)

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// GetRequest loads a request by id.
func (s *PostgresStore) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	var (
		req         model.Request
		timeoutSecs int
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, customer_id, location_id, desired_offers, offer_timeout_secs,
			tier_level, state, total_awarded, escalated_at, evaluated_at, created_at
		FROM requests WHERE id = $1`, id,
	).Scan(&req.ID, &req.CustomerID, &req.LocationID, &req.DesiredOffers, &timeoutSecs,
		&req.TierLevel, &req.State, &req.TotalAwarded, &req.EscalatedAt, &req.EvaluatedAt, &req.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "escalation: get request %s", id)
	}
	req.OfferTimeout = time.Duration(timeoutSecs) * time.Second
	return &req, nil
}

// CountRequestLines returns the number of lines on a request.
func (s *PostgresStore) CountRequestLines(ctx context.Context, requestID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM request_lines WHERE request_id = $1`, requestID,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "escalation: count lines for %s", requestID)
	}
	return n, nil
}

// AdvisorStats aggregates an advisor's trailing engagement history:
// notifications and responses over 30 days, award/fulfillment/response-speed
// over 6 months.
func (s *PostgresStore) AdvisorStats(ctx context.Context, advisorID string) (Stats, error) {
	var (
		stats     Stats
		submitted int
		won       int
		accepted  int
		avgHours  *float64
	)

	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM escalation_records
				WHERE advisor_id = $1 AND notified_at > now() - interval '30 days'),
			(SELECT COUNT(*) FROM offers
				WHERE advisor_id = $1 AND submitted_at > now() - interval '30 days'),
			(SELECT COUNT(*) FROM offers
				WHERE advisor_id = $1 AND submitted_at > now() - interval '6 months'),
			(SELECT COUNT(*) FROM offers
				WHERE advisor_id = $1 AND submitted_at > now() - interval '6 months'
				AND state IN ('WINNING', 'ACCEPTED')),
			(SELECT COUNT(*) FROM offers
				WHERE advisor_id = $1 AND submitted_at > now() - interval '6 months'
				AND state = 'ACCEPTED'),
			(SELECT AVG(EXTRACT(EPOCH FROM (o.submitted_at - r.notified_at)) / 3600.0)
				FROM offers o
				JOIN escalation_records r ON r.request_id = o.request_id AND r.advisor_id = o.advisor_id
				WHERE o.advisor_id = $1 AND r.notified_at IS NOT NULL
				AND o.submitted_at > now() - interval '6 months')`,
		advisorID,
	).Scan(&stats.Notified30d, &stats.Responded30d, &submitted, &won, &accepted, &avgHours)
	if err != nil {
		return Stats{}, eris.Wrapf(err, "escalation: stats for advisor %s", advisorID)
	}

	if submitted > 0 {
		stats.Performance = scoring.PerformanceStats{
			AwardRate:  float64(won) / float64(submitted),
			HasHistory: true,
		}
		if won > 0 {
			stats.Performance.FulfillmentRate = float64(accepted) / float64(won)
		}
		if avgHours != nil {
			stats.Performance.AvgResponseHours = *avgHours
		}
	}

	return stats, nil
}

// InsertRecords bulk-persists escalation records via COPY. The unique
// (request_id, advisor_id) constraint enforces at most one record per pair.
func (s *PostgresStore) InsertRecords(ctx context.Context, records []model.EscalationRecord) (int64, error) {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{
			r.RequestID, r.AdvisorID,
			r.ProximityScore, r.ActivityScore, r.PerformanceScore, r.TrustScore,
			r.CompositeScore, r.ProximityLabel,
			r.Tier, string(r.Channel), int(r.WaitBudget.Minutes()),
		}
	}

	n, err := db.CopyFrom(ctx, s.pool, "escalation_records", []string{
		"request_id", "advisor_id",
		"proximity_score", "activity_score", "performance_score", "trust_score",
		"composite_score", "proximity_label",
		"tier", "channel", "wait_minutes",
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "escalation: insert records")
	}
	return n, nil
}

// ListTierRecords returns the not-yet-notified records at a tier, best
// composite first.
func (s *PostgresStore) ListTierRecords(ctx context.Context, requestID string, tier int) ([]model.EscalationRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, request_id, advisor_id,
			proximity_score, activity_score, performance_score, trust_score,
			composite_score, proximity_label,
			tier, channel, wait_minutes, notified_at, timeout_at
		FROM escalation_records
		WHERE request_id = $1 AND tier = $2 AND notified_at IS NULL
		ORDER BY composite_score DESC`, requestID, tier)
	if err != nil {
		return nil, eris.Wrapf(err, "escalation: list tier %d records", tier)
	}
	defer rows.Close()

	var records []model.EscalationRecord
	for rows.Next() {
		var (
			r           model.EscalationRecord
			channel     string
			waitMinutes int
		)
		if err := rows.Scan(
			&r.ID, &r.RequestID, &r.AdvisorID,
			&r.ProximityScore, &r.ActivityScore, &r.PerformanceScore, &r.TrustScore,
			&r.CompositeScore, &r.ProximityLabel,
			&r.Tier, &channel, &waitMinutes, &r.NotifiedAt, &r.TimeoutAt,
		); err != nil {
			return nil, eris.Wrap(err, "escalation: scan record")
		}
		r.Channel = model.Channel(channel)
		r.WaitBudget = time.Duration(waitMinutes) * time.Minute
		records = append(records, r)
	}
	return records, rows.Err()
}

// MarkNotified stamps the notification and timeout times on a record.
func (s *PostgresStore) MarkNotified(ctx context.Context, recordID int64, notifiedAt, timeoutAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE escalation_records SET notified_at = $2, timeout_at = $3 WHERE id = $1`,
		recordID, notifiedAt, timeoutAt,
	)
	if err != nil {
		return eris.Wrapf(err, "escalation: mark record %d notified", recordID)
	}
	return nil
}

// SetRequestTier advances the request's current tier and escalation stamp.
func (s *PostgresStore) SetRequestTier(ctx context.Context, requestID string, tier int, escalatedAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE requests SET tier_level = $2, escalated_at = $3 WHERE id = $1`,
		requestID, tier, escalatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "escalation: set tier for %s", requestID)
	}
	return nil
}

// CountSubmittedOffers counts offers still in SUBMITTED state.
func (s *PostgresStore) CountSubmittedOffers(ctx context.Context, requestID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM offers WHERE request_id = $1 AND state = 'SUBMITTED'`, requestID,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "escalation: count submitted offers for %s", requestID)
	}
	return n, nil
}
