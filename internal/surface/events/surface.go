package events

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/solar-site-layout/internal/core/observability"
	"github.com/mohammed-shakir/solar-site-layout/internal/geo"
	"github.com/mohammed-shakir/solar-site-layout/internal/surface"
)

// Surface wraps another surface and publishes an event for every overlay
// transition that reached the wrapped surface.
type Surface struct {
	surface.Surface

	site   string
	pub    *Publisher
	dedupe *transitionDedupe
	now    func() time.Time
}

func Wrap(inner surface.Surface, site string, pub *Publisher, dedupeSize int) *Surface {
	return &Surface{
		Surface: inner,
		site:    site,
		pub:     pub,
		dedupe:  newTransitionDedupe(dedupeSize),
		now:     time.Now,
	}
}

func (s *Surface) Show(ctx context.Context, o surface.Overlay) error {
	if err := s.Surface.Show(ctx, o); err != nil {
		return err
	}
	s.emit(Event{Op: OpShow, OverlayID: o.ID, Kind: string(o.Kind), Fingerprint: o.Fingerprint})
	return nil
}

func (s *Surface) Hide(ctx context.Context, id string) error {
	if err := s.Surface.Hide(ctx, id); err != nil {
		return err
	}
	s.emit(Event{Op: OpHide, OverlayID: id})
	return nil
}

// OnReady forwards to the wrapped surface when it announces readiness.
func (s *Surface) OnReady(fn func(geo.Projection)) {
	if n, ok := s.Surface.(surface.Notifier); ok {
		n.OnReady(fn)
	}
}

func (s *Surface) emit(ev Event) {
	if !s.dedupe.changed(ev.OverlayID, string(ev.Op)+"|"+ev.Fingerprint) {
		observability.IncSurfaceEvent(string(ev.Op), "deduped")
		return
	}
	ev.Site = s.site
	ev.TS = s.now().UTC()
	s.pub.Publish(ev)
}

// transitionDedupe remembers the last published state per overlay so a
// repeated identical show or hide is not re-announced.
type transitionDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, string]
}

func newTransitionDedupe(size int) *transitionDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, string](size)
	return &transitionDedupe{lru: c}
}

// returns true if state differs from the last one seen for id
func (d *transitionDedupe) changed(id, state string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(id); ok && last == state {
		return false
	}
	d.lru.Add(id, state)
	return true
}
