// Package memory is an in-process map surface.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/mohammed-shakir/solar-site-layout/internal/surface"
)

type Surface struct {
	surface.Readiness

	mu    sync.RWMutex
	byID  map[string]surface.Overlay
	order []string
}

func New() *Surface {
	return &Surface{byID: make(map[string]surface.Overlay)}
}

// Show adds o, or replaces the overlay with the same id keeping its position.
func (s *Surface) Show(ctx context.Context, o surface.Overlay) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.ID == "" {
		return errors.New("memory surface: overlay id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[o.ID]; !ok {
		s.order = append(s.order, o.ID)
	}
	o.Path = slices.Clone(o.Path)
	s.byID[o.ID] = o
	return nil
}

// Hide removes the overlay; unknown ids are ignored.
func (s *Surface) Hide(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return nil
	}
	delete(s.byID, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

// Overlays returns the shown overlays in the order they were first shown.
func (s *Surface) Overlays(ctx context.Context) ([]surface.Overlay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]surface.Overlay, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out, nil
}

func (s *Surface) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
