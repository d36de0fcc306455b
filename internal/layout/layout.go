// Package layout owns the shapes of one site (a roof plus its modules) and
// keeps the overlays attached on the surface equal to that collection.
package layout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mohammed-shakir/solar-site-layout/internal/core/model"
	"github.com/mohammed-shakir/solar-site-layout/internal/core/observability"
	mylog "github.com/mohammed-shakir/solar-site-layout/internal/logger"
	"github.com/mohammed-shakir/solar-site-layout/internal/shape"
	"github.com/mohammed-shakir/solar-site-layout/internal/surface"
)

var tracer = otel.Tracer("github.com/mohammed-shakir/solar-site-layout/internal/layout")

// ErrInvalidParams is returned for module parameters that cannot describe a panel.
var ErrInvalidParams = errors.New("layout: invalid module parameters")

// Input carries the per-rebuild parameters. A nil Roof uses the layout's roof.
type Input struct {
	Roof   *shape.RectSpec
	Params model.LayoutParams
}

type ShapeInfo struct {
	ID       string       `json:"id"`
	Kind     surface.Kind `json:"kind"`
	Attached bool         `json:"attached"`
}

type Summary struct {
	Trigger model.Trigger `json:"trigger"`
	Shapes  []ShapeInfo   `json:"shapes"`
	Count   int           `json:"count"`
}

type Layout struct {
	mu       sync.Mutex
	surf     surface.Surface
	roof     shape.RectSpec
	strategy Strategy
	logger   *slog.Logger
	shapes   []*shape.Shape
}

// New returns an empty layout rendering onto surf. roof is the rectangle used
// when a rebuild does not override it.
func New(surf surface.Surface, roof shape.RectSpec, strategy Strategy, logger *slog.Logger) (*Layout, error) {
	if surf == nil {
		return nil, errors.New("layout: surface is required")
	}
	if strategy == nil {
		return nil, errors.New("layout: module strategy is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Layout{surf: surf, roof: roof, strategy: strategy, logger: logger}, nil
}

// Rebuild replaces the site: it detaches and drops every held shape, builds the
// roof and its modules, then renders each by detaching and re-attaching it.
// Failures are returned as they happen and leave the layout in the state
// reached so far.
func (l *Layout) Rebuild(ctx context.Context, in Input, trigger model.Trigger) (Summary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	ctx = mylog.WithTrigger(ctx, string(trigger))
	ctx, span := tracer.Start(ctx, "layout.Rebuild")
	defer span.End()
	span.SetAttributes(attribute.String("layout.trigger", string(trigger)))

	err := l.rebuild(ctx, in)
	observability.ObserveRebuild(string(trigger), err, time.Since(start).Seconds())
	l.observeShapes()
	span.SetAttributes(attribute.Int("layout.shapes", len(l.shapes)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rebuild failed")
		l.logger.ErrorContext(ctx, "site rebuild failed", "err", err, "shapes", len(l.shapes))
		return Summary{}, err
	}

	sum := l.summary(trigger)
	l.logger.InfoContext(ctx, "site rebuilt",
		"shapes", sum.Count,
		"params", in.Params.String(),
		"duration", time.Since(start))
	return sum, nil
}

func (l *Layout) rebuild(ctx context.Context, in Input) error {
	proj, err := l.surf.Projection()
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	spec := l.roof
	if in.Roof != nil {
		spec = *in.Roof
	}
	spec.Kind = surface.KindRoof
	spec.Surface = l.surf
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("rebuild roof: %w", err)
	}
	if msg := in.Params.Validate(); msg != "" {
		return fmt.Errorf("%w: %s", ErrInvalidParams, msg)
	}

	if err := l.clear(ctx); err != nil {
		return err
	}

	roof, err := shape.New(spec, proj)
	if err != nil {
		return fmt.Errorf("build roof: %w", err)
	}
	modules, err := l.strategy.Modules(roof, in.Params)
	if err != nil {
		return fmt.Errorf("build modules: %w", err)
	}
	for i, m := range modules {
		switch {
		case m == nil:
			return errors.New("build modules: strategy returned a nil shape")
		case m.Spec().Surface != l.surf:
			return fmt.Errorf("build modules: module %d is not bound to the layout surface", i)
		case m.Projection() != proj:
			return fmt.Errorf("build modules: module %d uses a different projection", i)
		}
	}

	l.shapes = append(l.shapes, roof)
	l.shapes = append(l.shapes, modules...)

	return l.render(ctx)
}

// clear detaches every held shape and empties the collection.
func (l *Layout) clear(ctx context.Context) error {
	for _, s := range l.shapes {
		if err := s.Detach(ctx); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
	}
	l.shapes = nil
	return nil
}

func (l *Layout) render(ctx context.Context) error {
	for _, s := range l.shapes {
		if err := s.Detach(ctx); err != nil {
			return fmt.Errorf("render: %w", err)
		}
		if err := s.Attach(ctx); err != nil {
			return fmt.Errorf("render: %w", err)
		}
	}
	return nil
}

// Clear detaches and drops every shape.
func (l *Layout) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.clear(ctx)
	l.observeShapes()
	return err
}

// Shapes returns the held shapes in order, roof first.
func (l *Layout) Shapes() []*shape.Shape {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.shapes)
}

func (l *Layout) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.shapes)
}

func (l *Layout) summary(trigger model.Trigger) Summary {
	out := Summary{Trigger: trigger, Shapes: make([]ShapeInfo, 0, len(l.shapes))}
	for _, s := range l.shapes {
		out.Shapes = append(out.Shapes, ShapeInfo{ID: s.ID(), Kind: s.Spec().Kind, Attached: s.Attached()})
	}
	out.Count = len(out.Shapes)
	return out
}

func (l *Layout) observeShapes() {
	roofs, modules := 0, 0
	for _, s := range l.shapes {
		if s.Spec().Kind == surface.KindRoof {
			roofs++
		} else {
			modules++
		}
	}
	observability.SetSiteShapes(roofs, modules)
}
