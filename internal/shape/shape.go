// Package shape builds rotated rectangles on the map: the boundary path derived
// from a center, size and rotation, and the overlay rendered for it.
package shape

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/mohammed-shakir/solar-site-layout/internal/geo"
	"github.com/mohammed-shakir/solar-site-layout/internal/surface"
)

// ErrInvalidSpec is returned for specs that would produce degenerate geometry.
var ErrInvalidSpec = errors.New("shape: invalid spec")

const (
	DefaultColor  = "#FF0000"
	strokeWeight  = 2
	strokeOpacity = 0.8
	fillOpacity   = 0.35
)

// RectSpec defines a rectangle: Length runs north-south and Width east-west
// before rotation. Rotation is in degrees.
type RectSpec struct {
	Kind     surface.Kind
	Center   geo.GeoPoint
	Width    float64
	Length   float64
	Rotation float64
	Color    string
	Surface  surface.Surface
}

// Validate rejects non-finite values and non-positive dimensions.
func (s RectSpec) Validate() error {
	if !s.Center.Valid() {
		return fmt.Errorf("%w: center %v out of range", ErrInvalidSpec, s.Center)
	}
	if !(s.Width > 0) || math.IsInf(s.Width, 0) {
		return fmt.Errorf("%w: width must be a positive number of meters (got %v)", ErrInvalidSpec, s.Width)
	}
	if !(s.Length > 0) || math.IsInf(s.Length, 0) {
		return fmt.Errorf("%w: length must be a positive number of meters (got %v)", ErrInvalidSpec, s.Length)
	}
	if math.IsNaN(s.Rotation) || math.IsInf(s.Rotation, 0) {
		return fmt.Errorf("%w: rotation must be finite (got %v)", ErrInvalidSpec, s.Rotation)
	}
	return nil
}

// Fingerprint is a stable hash of the geometry-defining fields and color.
func (s RectSpec) Fingerprint() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	key := string(s.Kind) + "|" + f(s.Center.Lat) + "," + f(s.Center.Lng) + "|" +
		f(s.Width) + "x" + f(s.Length) + "@" + f(s.Rotation) + "|" + s.Color
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}

type Shape struct {
	spec     RectSpec
	proj     geo.Projection
	path     []geo.GeoPoint
	overlay  surface.Overlay
	attached bool
}

// New derives the rotated boundary of spec using proj and prepares its overlay.
// The returned shape is detached.
func New(spec RectSpec, proj geo.Projection) (*Shape, error) {
	if proj == nil {
		return nil, surface.ErrNotReady
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if spec.Color == "" {
		spec.Color = DefaultColor
	}

	path := rotatePath(corners(spec), spec.Center, spec.Rotation, proj)

	return &Shape{
		spec: spec,
		proj: proj,
		path: path,
		overlay: surface.Overlay{
			ID:   uuid.NewString(),
			Kind: spec.Kind,
			Path: path,
			Style: surface.Style{
				StrokeColor:   spec.Color,
				StrokeOpacity: strokeOpacity,
				StrokeWeight:  strokeWeight,
				FillColor:     spec.Color,
				FillOpacity:   fillOpacity,
			},
			Fingerprint: spec.Fingerprint(),
		},
	}, nil
}

// corners walks the unrotated rectangle NW, SW, SE, NE so consecutive corners
// share an edge.
func corners(spec RectSpec) []geo.GeoPoint {
	hl, hw := spec.Length/2, spec.Width/2
	return []geo.GeoPoint{
		geo.OffsetByMeters(spec.Center, hl, -hw),
		geo.OffsetByMeters(spec.Center, -hl, -hw),
		geo.OffsetByMeters(spec.Center, -hl, hw),
		geo.OffsetByMeters(spec.Center, hl, hw),
	}
}

func rotatePath(path []geo.GeoPoint, origin geo.GeoPoint, angle float64, proj geo.Projection) []geo.GeoPoint {
	o := proj.FromLatLngToPoint(origin)
	out := make([]geo.GeoPoint, 0, len(path))
	for _, p := range path {
		q := geo.RotateAboutOrigin(proj.FromLatLngToPoint(p), o, angle)
		out = append(out, proj.FromPointToLatLng(q))
	}
	return out
}

// Attach shows the overlay on the spec's surface. The surface call is made even
// when the shape is already attached. A nil surface means the shape is not shown.
func (s *Shape) Attach(ctx context.Context) error {
	if s.spec.Surface == nil {
		return nil
	}
	if err := s.spec.Surface.Show(ctx, s.overlay); err != nil {
		return fmt.Errorf("attach %s %s: %w", s.overlay.Kind, s.overlay.ID, err)
	}
	s.attached = true
	return nil
}

// Detach hides the overlay if attached; detaching a detached shape is a no-op.
func (s *Shape) Detach(ctx context.Context) error {
	if !s.attached {
		return nil
	}
	if err := s.spec.Surface.Hide(ctx, s.overlay.ID); err != nil {
		return fmt.Errorf("detach %s %s: %w", s.overlay.Kind, s.overlay.ID, err)
	}
	s.attached = false
	return nil
}

func (s *Shape) Attached() bool { return s.attached }

// Boundary returns a copy of the four corners.
func (s *Shape) Boundary() []geo.GeoPoint { return slices.Clone(s.path) }

func (s *Shape) Spec() RectSpec { return s.spec }

func (s *Shape) Projection() geo.Projection { return s.proj }

func (s *Shape) Overlay() surface.Overlay {
	o := s.overlay
	o.Path = slices.Clone(o.Path)
	return o
}

func (s *Shape) ID() string { return s.overlay.ID }

// Dimensions measures the boundary edges: width is the first-to-last corner
// edge, length the first-to-second.
func (s *Shape) Dimensions() (width, length float64) {
	return geo.Distance(s.path[0], s.path[3]), geo.Distance(s.path[0], s.path[1])
}
