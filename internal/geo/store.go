package geo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/partsbid/matching-engine/internal/db"
)

// PostgresResolver implements Resolver over the locations table.
type PostgresResolver struct {
	pool db.Pool
}

// NewPostgresResolver creates a new PostgresResolver.
func NewPostgresResolver(pool db.Pool) *PostgresResolver {
	return &PostgresResolver{pool: pool}
}

// Resolve looks up a location id. Unknown ids return ErrUnresolved so
// callers degrade instead of failing.
func (r *PostgresResolver) Resolve(ctx context.Context, locationID string) (Location, error) {
	var loc Location
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(city_id, ''), COALESCE(metro_area_id, ''), COALESCE(hub_id, '')
		FROM locations WHERE id = $1`, locationID,
	).Scan(&loc.CityID, &loc.MetroAreaID, &loc.HubID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, ErrUnresolved
	}
	if err != nil {
		return Location{}, eris.Wrapf(err, "geo: resolve location %s", locationID)
	}
	return loc, nil
}
