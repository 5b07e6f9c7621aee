// Package geo provides location resolution contracts and proximity
// classification between request and advisor locations.
package geo

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrUnresolved is returned by a Resolver when a location identifier cannot
// be resolved. Callers degrade to out-of-coverage classification instead of
// failing.
var ErrUnresolved = eris.New("geo: location unresolved")

// Location is a resolved location: city, optional metro area, and the
// logistics hub serving it.
type Location struct {
	CityID      string
	MetroAreaID string // empty when the city belongs to no metro area
	HubID       string
}

// Resolved reports whether the location carries any usable identifiers.
func (l Location) Resolved() bool {
	return l.CityID != "" || l.MetroAreaID != "" || l.HubID != ""
}

// Resolver resolves opaque location identifiers to structured locations.
// Implementations live outside this module (the geographic data pipeline);
// the engines consume only this contract.
type Resolver interface {
	Resolve(ctx context.Context, locationID string) (Location, error)
}
