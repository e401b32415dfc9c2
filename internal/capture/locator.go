package capture

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoFix is returned by a Locator that has no position to report.
var ErrNoFix = errors.New("no location fix")

// Location is a WGS84 coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Locator performs a single point-in-time position read.
type Locator interface {
	Locate(ctx context.Context) (Location, error)
}

// Fixed is a Locator for a position already known to the caller, such as
// coordinates posted by a client.
type Fixed Location

// Locate validates and returns the fixed position.
func (f Fixed) Locate(context.Context) (Location, error) {
	l := Location(f)
	if l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
		return Location{}, fmt.Errorf("%w: %v,%v out of range", ErrNoFix, l.Latitude, l.Longitude)
	}
	return l, nil
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (Location, error)

// Locate calls f.
func (f LocatorFunc) Locate(ctx context.Context) (Location, error) { return f(ctx) }
