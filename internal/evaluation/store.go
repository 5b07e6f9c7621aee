package evaluation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/partsbid/matching-engine/internal/db"
	"github.com/partsbid/matching-engine/internal/model"
)

// PostgresStore implements Store using pgx. Apply runs the entire write set
// in one transaction so a failed pass leaves no trace.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// LoadSnapshot reads the request, its lines, and the SUBMITTED offers with
// their quoted lines.
func (s *PostgresStore) LoadSnapshot(ctx context.Context, requestID string) (*Snapshot, error) {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	lines, err := s.listLines(ctx, requestID)
	if err != nil {
		return nil, err
	}

	offers, err := s.listSubmittedOffers(ctx, requestID)
	if err != nil {
		return nil, err
	}

	return &Snapshot{Request: req, Lines: lines, Offers: offers}, nil
}

func (s *PostgresStore) getRequest(ctx context.Context, id string) (*model.Request, error) {
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
		return nil, eris.Wrapf(err, "evaluation: get request %s", id)
	}
	req.OfferTimeout = time.Duration(timeoutSecs) * time.Second
	return &req, nil
}

func (s *PostgresStore) listLines(ctx context.Context, requestID string) ([]model.RequestLine, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, request_id, name, quantity, vehicle_context
		FROM request_lines WHERE request_id = $1 ORDER BY id`, requestID)
	if err != nil {
		return nil, eris.Wrapf(err, "evaluation: list lines for %s", requestID)
	}
	defer rows.Close()

	var lines []model.RequestLine
	for rows.Next() {
		var l model.RequestLine
		if err := rows.Scan(&l.ID, &l.RequestID, &l.Name, &l.Quantity, &l.VehicleContext); err != nil {
			return nil, eris.Wrap(err, "evaluation: scan request line")
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *PostgresStore) listSubmittedOffers(ctx context.Context, requestID string) ([]model.Offer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, request_id, advisor_id, delivery_days, notes, state,
			total_amount, item_count, coverage_pct, submitted_at, updated_at
		FROM offers
		WHERE request_id = $1 AND state = 'SUBMITTED'
		ORDER BY submitted_at`, requestID)
	if err != nil {
		return nil, eris.Wrapf(err, "evaluation: list offers for %s", requestID)
	}
	defer rows.Close()

	var offers []model.Offer
	index := map[string]int{}
	for rows.Next() {
		var o model.Offer
		if err := rows.Scan(&o.ID, &o.RequestID, &o.AdvisorID, &o.DeliveryDays, &o.Notes, &o.State,
			&o.TotalAmount, &o.ItemCount, &o.CoveragePct, &o.SubmittedAt, &o.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "evaluation: scan offer")
		}
		index[o.ID] = len(offers)
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "evaluation: iterate offers")
	}

	if len(offers) == 0 {
		return nil, nil
	}

	lineRows, err := s.pool.Query(ctx, `
		SELECT ol.id, ol.offer_id, ol.request_line_id, ol.unit_price, ol.quantity,
			ol.warranty_days, ol.delivery_days
		FROM offer_lines ol
		JOIN offers o ON o.id = ol.offer_id
		WHERE o.request_id = $1 AND o.state = 'SUBMITTED'
		ORDER BY ol.id`, requestID)
	if err != nil {
		return nil, eris.Wrapf(err, "evaluation: list offer lines for %s", requestID)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var l model.OfferLine
		if err := lineRows.Scan(&l.ID, &l.OfferID, &l.RequestLineID, &l.UnitPrice, &l.Quantity,
			&l.WarrantyDays, &l.DeliveryDays); err != nil {
			return nil, eris.Wrap(err, "evaluation: scan offer line")
		}
		if i, ok := index[l.OfferID]; ok {
			offers[i].Lines = append(offers[i].Lines, l)
		}
	}
	return offers, lineRows.Err()
}

// Apply commits the write set of one pass in a single transaction.
func (s *PostgresStore) Apply(ctx context.Context, commit *Commit) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "evaluation: begin commit")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, a := range commit.Adjudications {
		_, err := tx.Exec(ctx, `
			INSERT INTO adjudications (request_id, request_line_id, offer_id, offer_line_id,
				advisor_id, awarded_price, awarded_quantity, warranty_days, delivery_days,
				score, coverage_pct, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			a.RequestID, a.RequestLineID, a.OfferID, a.OfferLineID,
			a.AdvisorID, a.AwardedPrice, a.AwardedQuantity, a.WarrantyDays, a.DeliveryDays,
			a.Score, a.CoveragePct, string(a.Reason), a.CreatedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "evaluation: insert adjudication for line %d", a.RequestLineID)
		}
	}

	for _, l := range commit.ScoredLines {
		_, err := tx.Exec(ctx, `
			UPDATE offer_lines
			SET price_score = $2, delivery_score = $3, warranty_score = $4, composite_score = $5
			WHERE id = $1`,
			l.ID, l.PriceScore, l.DeliveryScore, l.WarrantyScore, l.CompositeScore,
		)
		if err != nil {
			return eris.Wrapf(err, "evaluation: score offer line %d", l.ID)
		}
	}

	for offerID, state := range commit.OfferStates {
		_, err := tx.Exec(ctx,
			`UPDATE offers SET state = $2, updated_at = now() WHERE id = $1`,
			offerID, string(state),
		)
		if err != nil {
			return eris.Wrapf(err, "evaluation: set offer %s state", offerID)
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE requests SET state = $2, evaluated_at = $3, total_awarded = $4 WHERE id = $1`,
		commit.RequestID, string(commit.RequestState), commit.EvaluatedAt, commit.TotalAwarded,
	)
	if err != nil {
		return eris.Wrapf(err, "evaluation: set request %s state", commit.RequestID)
	}

	if run := commit.Run; run != nil {
		_, err := tx.Exec(ctx, `
			INSERT INTO evaluation_runs (id, request_id, offers_evaluated, lines_total,
				lines_awarded, distinct_winners, mixed, total_awarded,
				price_weight, delivery_weight, warranty_weight, coverage_min_pct,
				duration_ms, detail)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			run.ID, run.RequestID, run.OffersEvaluated, run.LinesTotal,
			run.LinesAwarded, run.DistinctWinners, run.Mixed, run.TotalAwarded,
			run.PriceWeight, run.DeliveryWeight, run.WarrantyWeight, run.CoverageMinPct,
			run.Duration.Milliseconds(), run.Detail,
		)
		if err != nil {
			return eris.Wrapf(err, "evaluation: insert run for %s", run.RequestID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "evaluation: commit")
	}
	return nil
}
