package offers

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
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
		return nil, eris.Wrapf(err, "offers: get request %s", id)
	}
	req.OfferTimeout = time.Duration(timeoutSecs) * time.Second
	return &req, nil
}

// RequestLineIDs returns the set of line ids belonging to a request.
func (s *PostgresStore) RequestLineIDs(ctx context.Context, requestID string) (map[int64]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM request_lines WHERE request_id = $1`, requestID)
	if err != nil {
		return nil, eris.Wrapf(err, "offers: list line ids for %s", requestID)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "offers: scan line id")
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// InsertOffer persists the offer and its lines in one transaction.
func (s *PostgresStore) InsertOffer(ctx context.Context, offer *model.Offer) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "offers: begin insert")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO offers (id, request_id, advisor_id, delivery_days, notes, state,
			total_amount, item_count, coverage_pct, submitted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		offer.ID, offer.RequestID, offer.AdvisorID, offer.DeliveryDays, offer.Notes, string(offer.State),
		offer.TotalAmount, offer.ItemCount, offer.CoveragePct, offer.SubmittedAt, offer.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "offers: insert offer for %s", offer.RequestID)
	}

	for _, l := range offer.Lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO offer_lines (offer_id, request_line_id, unit_price, quantity,
				warranty_days, delivery_days)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			l.OfferID, l.RequestLineID, l.UnitPrice, l.Quantity, l.WarrantyDays, l.DeliveryDays,
		)
		if err != nil {
			return eris.Wrapf(err, "offers: insert line %d", l.RequestLineID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "offers: commit insert")
	}
	return nil
}

// SetClientResponse applies the customer's decision to the request and its
// winning offers in one transaction.
func (s *PostgresStore) SetClientResponse(ctx context.Context, requestID string, state model.RequestState, offerState model.OfferState) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "offers: begin response")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE requests SET state = $2 WHERE id = $1 AND state = 'EVALUATED'`,
		requestID, string(state),
	)
	if err != nil {
		return eris.Wrapf(err, "offers: set request %s response", requestID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotEvaluated
	}

	_, err = tx.Exec(ctx,
		`UPDATE offers SET state = $2, updated_at = now() WHERE request_id = $1 AND state = 'WINNING'`,
		requestID, string(offerState),
	)
	if err != nil {
		return eris.Wrapf(err, "offers: set winning offers for %s", requestID)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "offers: commit response")
	}
	return nil
}
