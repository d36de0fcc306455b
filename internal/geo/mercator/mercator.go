// Package mercator implements the spherical Web Mercator projection in the
// 256-unit world coordinate space used by slippy-map widgets.
package mercator

import (
	"math"

	"github.com/mohammed-shakir/solar-site-layout/internal/geo"
)

const (
	// TileSize is the width of the world in planar units at zoom 0.
	TileSize = 256.0

	// latitudes beyond this are clamped, sin(lat) never reaches ±1
	maxSin = 0.9999
)

type Projection struct {
	tile float64
}

func New() *Projection { return &Projection{tile: TileSize} }

// FromLatLngToPoint projects p into world coordinates. Y grows southward.
func (m *Projection) FromLatLngToPoint(p geo.GeoPoint) geo.PlanarPoint {
	siny := math.Sin(p.Lat * math.Pi / 180)
	siny = math.Min(math.Max(siny, -maxSin), maxSin)

	return geo.PlanarPoint{
		X: m.tile * (0.5 + p.Lng/360),
		Y: m.tile * (0.5 - math.Log((1+siny)/(1-siny))/(4*math.Pi)),
	}
}

// FromPointToLatLng is the inverse of FromLatLngToPoint.
func (m *Projection) FromPointToLatLng(p geo.PlanarPoint) geo.GeoPoint {
	n := math.Pi * (1 - 2*p.Y/m.tile)
	return geo.GeoPoint{
		Lat: math.Atan(math.Sinh(n)) * 180 / math.Pi,
		Lng: (p.X/m.tile - 0.5) * 360,
	}
}
