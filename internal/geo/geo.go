// Package geo holds the coordinate math behind site shapes: metric offsets on a
// spherical earth and planar rotation in a projection's flattened space.
package geo

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// EarthRadius is the spherical earth radius in meters used by offset and
// distance math.
const EarthRadius = 6378137.0

// GeoPoint is a geographic coordinate in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PlanarPoint is a coordinate in a projection's planar space. It is only
// meaningful relative to the projection that produced it.
type PlanarPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Projection maps between geographic and planar coordinates.
type Projection interface {
	FromLatLngToPoint(p GeoPoint) PlanarPoint
	FromPointToLatLng(p PlanarPoint) GeoPoint
}

// OffsetByMeters returns p displaced by deltaNorth and deltaEast meters.
// Longitude offsets are scaled by cos(lat); the result is undefined at the poles.
func OffsetByMeters(p GeoPoint, deltaNorth, deltaEast float64) GeoPoint {
	dLat := deltaNorth / EarthRadius
	dLng := deltaEast / (EarthRadius * math.Cos(toRad(p.Lat)))

	return GeoPoint{
		Lat: p.Lat + toDeg(dLat),
		Lng: p.Lng + toDeg(dLng),
	}
}

// RotateAboutOrigin rotates p around origin by angle degrees.
func RotateAboutOrigin(p, origin PlanarPoint, angle float64) PlanarPoint {
	v := r2.Rotate(r2.Vec{X: p.X, Y: p.Y}, toRad(angle), r2.Vec{X: origin.X, Y: origin.Y})
	return PlanarPoint{X: v.X, Y: v.Y}
}

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b GeoPoint) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * EarthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Valid reports whether p has finite coordinates inside the WGS84 ranges.
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
