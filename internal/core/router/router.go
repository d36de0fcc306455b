package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/solar-site-layout/internal/core/model"
	"github.com/mohammed-shakir/solar-site-layout/internal/core/observability"
	"github.com/mohammed-shakir/solar-site-layout/internal/export"
	"github.com/mohammed-shakir/solar-site-layout/internal/geo"
	"github.com/mohammed-shakir/solar-site-layout/internal/layout"
	"github.com/mohammed-shakir/solar-site-layout/internal/shape"
	"github.com/mohammed-shakir/solar-site-layout/internal/surface"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks malformed input that never reached the layout.
var errBadRequest = errors.New("bad request")

// SiteService rebuilds the site layout.
type SiteService interface {
	Rebuild(ctx context.Context, in layout.Input, trigger model.Trigger) (layout.Summary, error)
}

// OverlaySource lists what is currently shown on the surface.
type OverlaySource interface {
	Overlays(ctx context.Context) ([]surface.Overlay, error)
}

// HandlePopulate parses module parameters and triggers a rebuild.
func HandlePopulate(logger *slog.Logger, defaults model.LayoutParams, svc SiteService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, "/populate", sw.code, time.Since(start).Seconds())
		}()

		in, err := ParsePopulateRequest(r, defaults)
		if err != nil {
			writeError(sw, logger, r, err)
			return
		}

		// a started rebuild runs to completion even if the client goes away
		sum, err := svc.Rebuild(context.WithoutCancel(r.Context()), in, model.TriggerPopulate)
		if err != nil {
			writeError(sw, logger, r, err)
			return
		}
		writeJSON(sw, http.StatusOK, sum)
	}
}

// HandleSite serves the overlays on the surface as a GeoJSON FeatureCollection.
func HandleSite(logger *slog.Logger, src OverlaySource, opts export.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, "/site", sw.code, time.Since(start).Seconds())
		}()

		overlays, err := src.Overlays(r.Context())
		if err != nil {
			writeError(sw, logger, r, err)
			return
		}
		b, err := export.FeatureCollection(overlays, opts)
		if err != nil {
			writeError(sw, logger, r, err)
			return
		}
		sw.Header().Set("Content-Type", export.ContentType)
		sw.WriteHeader(http.StatusOK)
		_, _ = sw.Write(b)
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

type roofRequest struct {
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Width    *float64 `json:"width"`
	Length   *float64 `json:"length"`
	Rotation float64  `json:"rotation"`
	Color    string   `json:"color"`
}

type populateRequest struct {
	ModuleWidth   *float64     `json:"module_width"`
	ModuleLength  *float64     `json:"module_length"`
	ModuleSpacing *float64     `json:"module_spacing"`
	Roof          *roofRequest `json:"roof"`
}

// ParsePopulateRequest reads module parameters from a JSON body, or from the
// module-width, module-length and module-spacing query/form fields. Fields
// left out take their value from defaults. A roof override is only accepted
// in a JSON body.
func ParsePopulateRequest(r *http.Request, defaults model.LayoutParams) (layout.Input, error) {
	in := layout.Input{Params: defaults}

	if isJSON(r.Header.Get("Content-Type")) {
		var req populateRequest
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return layout.Input{}, fmt.Errorf("%w: decode body: %v", errBadRequest, err)
		}
		if req.ModuleWidth != nil {
			in.Params.ModuleWidth = *req.ModuleWidth
		}
		if req.ModuleLength != nil {
			in.Params.ModuleLength = *req.ModuleLength
		}
		if req.ModuleSpacing != nil {
			in.Params.ModuleSpacing = *req.ModuleSpacing
		}
		if req.Roof != nil {
			spec, err := req.Roof.spec()
			if err != nil {
				return layout.Input{}, err
			}
			in.Roof = &spec
		}
		return in, nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return layout.Input{}, fmt.Errorf("%w: parse form: %v", errBadRequest, err)
	}
	fields := []struct {
		name string
		dst  *float64
	}{
		{"module-width", &in.Params.ModuleWidth},
		{"module-length", &in.Params.ModuleLength},
		{"module-spacing", &in.Params.ModuleSpacing},
	}
	for _, f := range fields {
		raw := strings.TrimSpace(r.Form.Get(f.name))
		if raw == "" {
			continue
		}
		v, err := parseFloat(raw)
		if err != nil {
			return layout.Input{}, fmt.Errorf("%w: %s: %v", errBadRequest, f.name, err)
		}
		*f.dst = v
	}
	return in, nil
}

func (rr *roofRequest) spec() (shape.RectSpec, error) {
	if rr.Lat == nil || rr.Lng == nil || rr.Width == nil || rr.Length == nil {
		return shape.RectSpec{}, fmt.Errorf("%w: roof override needs lat, lng, width and length", errBadRequest)
	}
	return shape.RectSpec{
		Kind:     surface.KindRoof,
		Center:   geo.GeoPoint{Lat: *rr.Lat, Lng: *rr.Lng},
		Width:    *rr.Width,
		Length:   *rr.Length,
		Rotation: rr.Rotation,
		Color:    rr.Color,
	}, nil
}

func isJSON(ct string) bool {
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && (mt == "application/json" || strings.HasSuffix(mt, "+json"))
}

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number: %q", v)
	}
	return f, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, surface.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, errBadRequest),
		errors.Is(err, layout.ErrInvalidParams),
		errors.Is(err, shape.ErrInvalidSpec):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError && code != http.StatusServiceUnavailable {
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	} else {
		logger.WarnContext(r.Context(), "request rejected", "path", r.URL.Path, "status", code, "err", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
