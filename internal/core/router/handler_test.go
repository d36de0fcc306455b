package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammed-shakir/solar-site-layout/internal/core/model"
	"github.com/mohammed-shakir/solar-site-layout/internal/export"
	"github.com/mohammed-shakir/solar-site-layout/internal/geo"
	"github.com/mohammed-shakir/solar-site-layout/internal/geo/mercator"
	"github.com/mohammed-shakir/solar-site-layout/internal/layout"
	"github.com/mohammed-shakir/solar-site-layout/internal/shape"
	"github.com/mohammed-shakir/solar-site-layout/internal/surface"
	"github.com/mohammed-shakir/solar-site-layout/internal/surface/memory"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newSite(t *testing.T, ready bool) (*layout.Layout, *memory.Surface) {
	t.Helper()
	surf := memory.New()
	if ready {
		surf.MarkReady(mercator.New())
	}
	strat, err := layout.StrategyFor(layout.DefaultStrategy, discard())
	if err != nil {
		t.Fatalf("StrategyFor: %v", err)
	}
	roof := shape.RectSpec{
		Center:   geo.GeoPoint{Lat: 38.41793702224591, Lng: -122.71176248788834},
		Width:    40.46,
		Length:   28.35,
		Rotation: 20,
	}
	l, err := layout.New(surf, roof, strat, discard())
	if err != nil {
		t.Fatalf("layout.New: %v", err)
	}
	return l, surf
}

func TestHandlePopulate_RebuildsSite(t *testing.T) {
	l, surf := newSite(t, true)
	h := HandlePopulate(discard(), defaults, l)

	req := httptest.NewRequest(http.MethodPost, "/populate?module-width=1.0", nil)
	rr := httptest.NewRecorder()
	h(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var sum layout.Summary
	if err := json.Unmarshal(rr.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.Trigger != model.TriggerPopulate || sum.Count != 1 || sum.Shapes[0].Kind != surface.KindRoof {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if surf.Len() != 1 {
		t.Fatalf("attached=%d want 1", surf.Len())
	}
}

func TestHandlePopulate_CanceledRequestStillCompletesRebuild(t *testing.T) {
	l, surf := newSite(t, true)
	if _, err := l.Rebuild(context.Background(), layout.Input{Params: defaults}, model.TriggerReady); err != nil {
		t.Fatalf("initial rebuild: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/populate?module-width=1.0", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	HandlePopulate(discard(), defaults, l)(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if surf.Len() != 1 || l.Len() != 1 {
		t.Fatalf("site left partial: shown=%d held=%d", surf.Len(), l.Len())
	}
}

func TestHandlePopulate_ErrorMapping(t *testing.T) {
	notReady, _ := newSite(t, false)
	rr := httptest.NewRecorder()
	HandlePopulate(discard(), defaults, notReady)(rr, httptest.NewRequest(http.MethodPost, "/populate", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("before ready: status=%d want 503", rr.Code)
	}

	l, surf := newSite(t, true)
	for _, target := range []string{"/populate?module-width=0", "/populate?module-length=x", "/populate?module-spacing=-1"} {
		rr := httptest.NewRecorder()
		HandlePopulate(discard(), defaults, l)(rr, httptest.NewRequest(http.MethodPost, target, nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d want 400", target, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), `"error"`) {
			t.Fatalf("%s: missing error body: %s", target, rr.Body.String())
		}
	}
	if surf.Len() != 0 {
		t.Fatalf("rejected requests must not touch the surface")
	}
}

type failingService struct{}

func (failingService) Rebuild(context.Context, layout.Input, model.Trigger) (layout.Summary, error) {
	return layout.Summary{}, errors.New("surface unavailable")
}

func TestHandlePopulate_InternalError(t *testing.T) {
	rr := httptest.NewRecorder()
	HandlePopulate(discard(), defaults, failingService{})(rr, httptest.NewRequest(http.MethodPost, "/populate", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want 500", rr.Code)
	}
}

func TestHandleSite_ServesAttachedOverlays(t *testing.T) {
	l, surf := newSite(t, true)
	if _, err := l.Rebuild(context.Background(), layout.Input{Params: defaults}, model.TriggerReady); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	rr := httptest.NewRecorder()
	HandleSite(discard(), surf, export.Options{})(rr, httptest.NewRequest(http.MethodGet, "/site", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != export.ContentType {
		t.Fatalf("content-type=%q", ct)
	}
	var doc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Type != "FeatureCollection" || len(doc.Features) != 1 {
		t.Fatalf("unexpected doc: %s", rr.Body.String())
	}
}

type brokenSource struct{}

func (brokenSource) Overlays(context.Context) ([]surface.Overlay, error) {
	return nil, errors.New("boom")
}

func TestHandleSite_SourceError(t *testing.T) {
	rr := httptest.NewRecorder()
	HandleSite(discard(), brokenSource{}, export.Options{})(rr, httptest.NewRequest(http.MethodGet, "/site", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want 500", rr.Code)
	}
}
