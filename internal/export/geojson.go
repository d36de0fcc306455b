// Package export renders the overlays shown on a surface as GeoJSON.
package export

import (
	"encoding/json"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/mohammed-shakir/solar-site-layout/internal/geo"
	"github.com/mohammed-shakir/solar-site-layout/internal/mapper"
	"github.com/mohammed-shakir/solar-site-layout/internal/surface"
)

const ContentType = "application/geo+json"

type Options struct {
	// Mapper adds h3_cell and h3_cover properties when set.
	Mapper mapper.Interface
	H3Res  int
}

// Polygon converts an open boundary path to a closed go-geom polygon (lng, lat).
func Polygon(path []geo.GeoPoint) (*geom.Polygon, error) {
	if len(path) < 3 {
		return nil, fmt.Errorf("polygon needs >= 3 points, got %d", len(path))
	}
	ring := make([]geom.Coord, 0, len(path)+1)
	for _, p := range path {
		ring = append(ring, geom.Coord{p.Lng, p.Lat})
	}
	ring = append(ring, geom.Coord{path[0].Lng, path[0].Lat})

	poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{ring})
	if err != nil {
		return nil, fmt.Errorf("set coords: %w", err)
	}
	return poly, nil
}

func Feature(o surface.Overlay, opts Options) (*geojson.Feature, error) {
	poly, err := Polygon(o.Path)
	if err != nil {
		return nil, fmt.Errorf("overlay %s: %w", o.ID, err)
	}

	props := map[string]any{
		"kind":           string(o.Kind),
		"fingerprint":    o.Fingerprint,
		"stroke":         o.Style.StrokeColor,
		"stroke-opacity": o.Style.StrokeOpacity,
		"stroke-width":   o.Style.StrokeWeight,
		"fill":           o.Style.FillColor,
		"fill-opacity":   o.Style.FillOpacity,
	}

	if opts.Mapper != nil {
		cell, err := opts.Mapper.CellForPoint(centroid(o.Path), opts.H3Res)
		if err != nil {
			return nil, fmt.Errorf("overlay %s: %w", o.ID, err)
		}
		cover, err := opts.Mapper.CellsForBoundary(o.Path, opts.H3Res)
		if err != nil {
			return nil, fmt.Errorf("overlay %s: %w", o.ID, err)
		}
		props["h3_cell"] = cell
		props["h3_cover"] = cover
	}

	return &geojson.Feature{
		ID:         o.ID,
		Geometry:   poly,
		Properties: props,
	}, nil
}

// FeatureCollection encodes overlays in order as a GeoJSON FeatureCollection.
func FeatureCollection(overlays []surface.Overlay, opts Options) ([]byte, error) {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(overlays))}
	for _, o := range overlays {
		f, err := Feature(o, opts)
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, f)
	}
	b, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("marshal feature collection: %w", err)
	}
	return b, nil
}

func centroid(path []geo.GeoPoint) geo.GeoPoint {
	var c geo.GeoPoint
	for _, p := range path {
		c.Lat += p.Lat
		c.Lng += p.Lng
	}
	n := float64(len(path))
	return geo.GeoPoint{Lat: c.Lat / n, Lng: c.Lng / n}
}
