package sweep

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/partsbid/matching-engine/internal/db"
	"github.com/partsbid/matching-engine/internal/model"
)

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// ListOpenRequests returns every OPEN request, oldest first.
func (s *PostgresStore) ListOpenRequests(ctx context.Context) ([]model.Request, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, customer_id, location_id, desired_offers, offer_timeout_secs,
			tier_level, state, total_awarded, escalated_at, evaluated_at, created_at
		FROM requests WHERE state = 'OPEN' ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "sweep: list open requests")
	}
	defer rows.Close()

	var requests []model.Request
	for rows.Next() {
		var (
			req         model.Request
			timeoutSecs int
		)
		if err := rows.Scan(&req.ID, &req.CustomerID, &req.LocationID, &req.DesiredOffers, &timeoutSecs,
			&req.TierLevel, &req.State, &req.TotalAwarded, &req.EscalatedAt, &req.EvaluatedAt, &req.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sweep: scan request")
		}
		req.OfferTimeout = time.Duration(timeoutSecs) * time.Second
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// PendingTierNotifications counts records at a tier not yet notified.
func (s *PostgresStore) PendingTierNotifications(ctx context.Context, requestID string, tier int) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM escalation_records
		WHERE request_id = $1 AND tier = $2 AND notified_at IS NULL`, requestID, tier,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "sweep: count pending notifications for %s tier %d", requestID, tier)
	}
	return n, nil
}

// TierDeadline returns the latest timeout_at among notified records at a
// tier; nil when nothing at the tier was notified.
func (s *PostgresStore) TierDeadline(ctx context.Context, requestID string, tier int) (*time.Time, error) {
	var deadline *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT MAX(timeout_at) FROM escalation_records
		WHERE request_id = $1 AND tier = $2 AND notified_at IS NOT NULL`, requestID, tier,
	).Scan(&deadline)
	if err != nil {
		return nil, eris.Wrapf(err, "sweep: tier deadline for %s tier %d", requestID, tier)
	}
	return deadline, nil
}

// ExpireOffers transitions SUBMITTED offers whose response window lapsed on
// a still-open request to EXPIRED.
func (s *PostgresStore) ExpireOffers(ctx context.Context, now time.Time) ([]ExpiredOffer, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE offers o
		SET state = 'EXPIRED', updated_at = $1
		FROM requests r
		WHERE r.id = o.request_id
			AND o.state = 'SUBMITTED'
			AND r.state = 'OPEN'
			AND o.submitted_at + make_interval(secs => r.offer_timeout_secs) < $1
		RETURNING o.id, o.request_id`, now)
	if err != nil {
		return nil, eris.Wrap(err, "sweep: expire offers")
	}
	defer rows.Close()

	var expired []ExpiredOffer
	for rows.Next() {
		var e ExpiredOffer
		if err := rows.Scan(&e.OfferID, &e.RequestID); err != nil {
			return nil, eris.Wrap(err, "sweep: scan expired offer")
		}
		expired = append(expired, e)
	}
	return expired, rows.Err()
}
