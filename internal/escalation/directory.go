package escalation

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/partsbid/matching-engine/internal/db"
)

// PostgresDirectory implements Directory over the advisors table.
type PostgresDirectory struct {
	pool db.Pool
}

// NewPostgresDirectory creates a new PostgresDirectory.
func NewPostgresDirectory(pool db.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

const advisorColumns = `
	a.id, a.name, a.location_id, a.active, a.account_active,
	a.activity_pct, a.performance_pct, a.trust,
	COALESCE(l.city_id, ''), COALESCE(l.metro_area_id, ''), COALESCE(l.hub_id, '')`

// FindByCity returns active advisors located in a city.
func (d *PostgresDirectory) FindByCity(ctx context.Context, cityID string) ([]Advisor, error) {
	return d.query(ctx, `
		SELECT `+advisorColumns+`
		FROM advisors a
		JOIN locations l ON l.id = a.location_id
		WHERE a.active AND l.city_id = $1`, cityID)
}

// FindByMetroAreaAny returns every active advisor attached to any metro
// area, nationwide.
func (d *PostgresDirectory) FindByMetroAreaAny(ctx context.Context) ([]Advisor, error) {
	return d.query(ctx, `
		SELECT `+advisorColumns+`
		FROM advisors a
		JOIN locations l ON l.id = a.location_id
		WHERE a.active AND l.metro_area_id IS NOT NULL AND l.metro_area_id <> ''`)
}

// FindByHub returns active advisors served by a logistics hub.
func (d *PostgresDirectory) FindByHub(ctx context.Context, hubID string) ([]Advisor, error) {
	return d.query(ctx, `
		SELECT `+advisorColumns+`
		FROM advisors a
		JOIN locations l ON l.id = a.location_id
		WHERE a.active AND l.hub_id = $1`, hubID)
}

// FindAllActive returns every active advisor. Coverage-degraded mode only.
func (d *PostgresDirectory) FindAllActive(ctx context.Context) ([]Advisor, error) {
	return d.query(ctx, `
		SELECT `+advisorColumns+`
		FROM advisors a
		LEFT JOIN locations l ON l.id = a.location_id
		WHERE a.active`)
}

func (d *PostgresDirectory) query(ctx context.Context, sql string, args ...any) ([]Advisor, error) {
	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "directory: query advisors")
	}
	defer rows.Close()

	var advisors []Advisor
	for rows.Next() {
		var a Advisor
		if err := rows.Scan(&a.ID, &a.Name, &a.LocationID, &a.Active, &a.AccountActive,
			&a.ActivityPct, &a.PerformancePct, &a.Trust,
			&a.Location.CityID, &a.Location.MetroAreaID, &a.Location.HubID); err != nil {
			return nil, eris.Wrap(err, "directory: scan advisor")
		}
		advisors = append(advisors, a)
	}
	return advisors, rows.Err()
}
