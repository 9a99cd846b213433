// Package proj maps raw lon/lat coordinates onto the planar space the tile
// grid lives in. Projections are pure functions; the clipper never sees raw
// coordinates.
package proj

import (
	"fmt"
	"math"

	"github.com/wegman-software/osm2tiles-go/internal/geom"
)

// Projection converts a lon/lat coordinate (degrees) to a planar point.
// Implementations must be deterministic and safe for concurrent use.
type Projection interface {
	Project(lon, lat float64) geom.Point
	Name() string
}

// Identity passes coordinates through unchanged. Useful for tests and for
// inputs that are already planar.
type Identity struct{}

func (Identity) Project(lon, lat float64) geom.Point {
	return geom.Point{X: lon, Y: lat}
}

func (Identity) Name() string { return "identity" }

// WebMercator is the normalized spherical mercator: the whole world maps
// into the unit square, x growing east and y growing south. Latitudes past
// the projection's limits clamp to the square's edge.
type WebMercator struct{}

func (WebMercator) Project(lon, lat float64) geom.Point {
	lambda := lon * math.Pi / 180
	phi := lat * math.Pi / 180

	x := (lambda + math.Pi) / (2 * math.Pi)
	y := (math.Pi - math.Log(math.Tan(math.Pi/4+phi/2))) / (2 * math.Pi)
	if y < 0 || math.IsNaN(y) {
		y = 0
	} else if y > 1 {
		y = 1
	}
	return geom.Point{X: x, Y: y}
}

func (WebMercator) Name() string { return "web-mercator" }

// Parse resolves a projection by name.
func Parse(name string) (Projection, error) {
	switch name {
	case "identity":
		return Identity{}, nil
	case "web-mercator", "":
		return WebMercator{}, nil
	default:
		return nil, fmt.Errorf("unsupported projection %q (supported: identity, web-mercator)", name)
	}
}
