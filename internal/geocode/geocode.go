// Package geocode resolves free-text locations to coordinates through an
// external lookup service.
package geocode

import (
	"context"
	"errors"
)

// ErrNoMatch is returned when the service answered but had no result.
var ErrNoMatch = errors.New("no match")

// Point is a resolved coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geocoder looks up the single best match for query.
type Geocoder interface {
	Geocode(ctx context.Context, apiKey, query string) (Point, error)
}

// Func adapts a plain function to the Geocoder interface.
type Func func(ctx context.Context, apiKey, query string) (Point, error)

func (f Func) Geocode(ctx context.Context, apiKey, query string) (Point, error) {
	return f(ctx, apiKey, query)
}
