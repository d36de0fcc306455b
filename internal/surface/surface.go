// Package surface defines the map surface shapes render onto: the projection it
// supplies once ready and the overlays currently shown on it.
package surface

import (
	"context"
	"errors"
	"sync"

	"github.com/mohammed-shakir/solar-site-layout/internal/geo"
)

// ErrNotReady is returned when geometry is requested before the surface has
// signalled that its projection is usable.
var ErrNotReady = errors.New("surface: projection not ready")

type Kind string

const (
	KindRoof   Kind = "roof"
	KindModule Kind = "module"
)

// Style is the stroke/fill styling of a rendered polygon.
type Style struct {
	StrokeColor   string  `json:"stroke_color"`
	StrokeOpacity float64 `json:"stroke_opacity"`
	StrokeWeight  float64 `json:"stroke_weight"`
	FillColor     string  `json:"fill_color"`
	FillOpacity   float64 `json:"fill_opacity"`
}

// Overlay is a renderable polygon. Path is the open ring of the boundary; the
// closing edge from the last point back to the first is implicit.
type Overlay struct {
	ID          string         `json:"id"`
	Kind        Kind           `json:"kind"`
	Path        []geo.GeoPoint `json:"path"`
	Style       Style          `json:"style"`
	Fingerprint string         `json:"fingerprint,omitempty"`
}

// Surface is the collaborator shapes attach to.
type Surface interface {
	// Projection returns ErrNotReady until the surface is ready.
	Projection() (geo.Projection, error)
	Show(ctx context.Context, o Overlay) error
	Hide(ctx context.Context, id string) error
	Overlays(ctx context.Context) ([]Overlay, error)
}

// Notifier is implemented by surfaces that announce readiness.
type Notifier interface {
	OnReady(fn func(geo.Projection))
}

// Readiness holds the one-time projection readiness of a surface.
type Readiness struct {
	mu        sync.Mutex
	proj      geo.Projection
	listeners []func(geo.Projection)
}

func (r *Readiness) Projection() (geo.Projection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.proj == nil {
		return nil, ErrNotReady
	}
	return r.proj, nil
}

func (r *Readiness) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.proj != nil
}

// OnReady registers fn to run once the projection becomes valid. If the surface
// is already ready fn runs immediately.
func (r *Readiness) OnReady(fn func(geo.Projection)) {
	r.mu.Lock()
	if r.proj == nil {
		r.listeners = append(r.listeners, fn)
		r.mu.Unlock()
		return
	}
	p := r.proj
	r.mu.Unlock()
	fn(p)
}

// MarkReady installs the projection and fires pending listeners. Only the first
// call has an effect; it reports whether this call made the surface ready.
func (r *Readiness) MarkReady(p geo.Projection) bool {
	if p == nil {
		return false
	}
	r.mu.Lock()
	if r.proj != nil {
		r.mu.Unlock()
		return false
	}
	r.proj = p
	ls := r.listeners
	r.listeners = nil
	r.mu.Unlock()

	for _, fn := range ls {
		fn(p)
	}
	return true
}
