package redissurface

import (
	"context"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/solar-site-layout/internal/geo"
	"github.com/mohammed-shakir/solar-site-layout/internal/geo/mercator"
	"github.com/mohammed-shakir/solar-site-layout/internal/surface"
)

// creates a surface connected to miniredis for testing
func newMini(t *testing.T, site string) (*Surface, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	s, err := New(ctx, mr.Addr(), site, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func overlay(id string) surface.Overlay {
	return surface.Overlay{
		ID:   id,
		Kind: surface.KindModule,
		Path: []geo.GeoPoint{
			{Lat: 38.41800, Lng: -122.71180},
			{Lat: 38.41799, Lng: -122.71180},
			{Lat: 38.41799, Lng: -122.71179},
			{Lat: 38.41800, Lng: -122.71179},
		},
		Style:       surface.Style{StrokeColor: "#0000FF", FillColor: "#0000FF", StrokeWeight: 2},
		Fingerprint: "abc",
	}
}

func TestShowHideOverlays_RoundTrip(t *testing.T) {
	s, mr := newMini(t, "site-a")
	ctx := context.Background()

	for _, id := range []string{"b", "a", "c"} {
		if err := s.Show(ctx, overlay(id)); err != nil {
			t.Fatalf("Show %s: %v", id, err)
		}
	}
	// replacing keeps a single entry
	if err := s.Show(ctx, overlay("a")); err != nil {
		t.Fatalf("Show replace: %v", err)
	}

	got, err := s.Overlays(ctx)
	if err != nil {
		t.Fatalf("Overlays: %v", err)
	}
	if len(got) != 3 || got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Fatalf("unexpected overlays: %+v", got)
	}
	if got[0].Kind != surface.KindModule || len(got[0].Path) != 4 || got[0].Style.FillColor != "#0000FF" {
		t.Fatalf("overlay not decoded intact: %+v", got[0])
	}

	if err := s.Hide(ctx, "b"); err != nil {
		t.Fatalf("Hide: %v", err)
	}
	if err := s.Hide(ctx, "never-shown"); err != nil {
		t.Fatalf("Hide unknown: %v", err)
	}
	got, err = s.Overlays(ctx)
	if err != nil {
		t.Fatalf("Overlays: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d want 2", len(got))
	}
	if mr.Exists(overlayKey("site-a", "b")) {
		t.Fatalf("payload for hidden overlay still present")
	}
}

func TestOverlays_SkipsMissingPayloadAndEmpty(t *testing.T) {
	s, mr := newMini(t, "site-a")
	ctx := context.Background()

	got, err := s.Overlays(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("empty site: got=%v err=%v", got, err)
	}

	if err := s.Show(ctx, overlay("x")); err != nil {
		t.Fatalf("Show: %v", err)
	}
	mr.Del(overlayKey("site-a", "x"))

	got, err = s.Overlays(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("dangling index member should be skipped: got=%v err=%v", got, err)
	}
}

func TestSites_AreIsolated(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	ctx := context.Background()

	a, err := New(ctx, mr.Addr(), "north roof", 0)
	if err != nil {
		t.Fatalf("New a: %v", err)
	}
	defer a.Close()
	b, err := New(ctx, mr.Addr(), "north:roof", 0)
	if err != nil {
		t.Fatalf("New b: %v", err)
	}
	defer b.Close()

	if err := a.Show(ctx, overlay("1")); err != nil {
		t.Fatalf("Show: %v", err)
	}
	got, err := b.Overlays(ctx)
	if err != nil {
		t.Fatalf("Overlays: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("site b sees site a's overlays: %+v", got)
	}
}

func TestReset_RemovesSiteOverlays(t *testing.T) {
	s, mr := newMini(t, "site-a")
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if err := s.Show(ctx, overlay(id)); err != nil {
			t.Fatalf("Show: %v", err)
		}
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	got, err := s.Overlays(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("after reset: got=%v err=%v", got, err)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("keys left after reset: %v", keys)
	}
}

func TestContextCanceled_IsRespected(t *testing.T) {
	s, _ := newMini(t, "site-a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Show(ctx, overlay("a")); err == nil {
		t.Fatalf("expected error on Show with canceled context")
	}
	if err := s.Hide(ctx, "a"); err == nil {
		t.Fatalf("expected error on Hide with canceled context")
	}
	if _, err := s.Overlays(ctx); err == nil {
		t.Fatalf("expected error on Overlays with canceled context")
	}
}

func TestNew_Validation(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, "", "site", 0); err == nil {
		t.Fatalf("expected error for empty address")
	}
	if _, err := New(ctx, "127.0.0.1:1", "", 0); err == nil {
		t.Fatalf("expected error for empty site")
	}
	if err := (&Surface{}).Show(ctx, surface.Overlay{}); err == nil {
		t.Fatalf("expected error for empty overlay id")
	}
}

func TestReadiness_Embedded(t *testing.T) {
	s, _ := newMini(t, "site-a")
	if _, err := s.Projection(); err == nil {
		t.Fatalf("expected ErrNotReady before MarkReady")
	}
	s.MarkReady(mercator.New())
	if _, err := s.Projection(); err != nil {
		t.Fatalf("Projection after ready: %v", err)
	}
}

func TestKeys_SanitizedAndHashed(t *testing.T) {
	k := overlayKey("north roof", "id:1")
	if strings.Count(k, ":") != 3 {
		t.Fatalf("unexpected key layout: %q", k)
	}
	if !strings.HasPrefix(k, "overlay:north_roof:") || !strings.HasSuffix(k, ":id-1") {
		t.Fatalf("unexpected key: %q", k)
	}
	if indexKey("north roof") == indexKey("north:roof") {
		t.Fatalf("distinct sites must not share an index key")
	}
	long := strings.Repeat("x", 200)
	if tag := siteTag(long); len(tag) != maxSiteTextLen+9 {
		t.Fatalf("tag length=%d want %d", len(tag), maxSiteTextLen+9)
	}
}
