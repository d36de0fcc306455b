package observability

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var surfaceLabel atomic.Value

func init() {
	surfaceLabel.Store("memory")
}

// SetSurface sets the surface backend label attached to layout metrics.
func SetSurface(s string) {
	if s == "" {
		s = "memory"
	}
	surfaceLabel.Store(s)
}

func getSurface() string {
	if v := surfaceLabel.Load(); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "memory"
}

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status", "surface"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status", "surface"},
	)

	rebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_rebuilds_total",
			Help: "Site rebuilds by trigger and outcome.",
		},
		[]string{"trigger", "outcome", "surface"},
	)

	rebuildDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "site_rebuild_duration_seconds",
			Help:    "Duration of site rebuilds in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
		[]string{"trigger", "surface"},
	)

	siteShapes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "site_shapes",
			Help: "Shapes held by the site layout, by kind.",
		},
		[]string{"kind"},
	)

	surfaceOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surface_op_total",
			Help: "Surface operations by op and result.",
		},
		[]string{"op", "result", "surface"},
	)

	surfaceOpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "surface_op_duration_seconds",
			Help:    "Latency of surface backend operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"op", "surface"},
	)

	surfaceEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surface_events_total",
			Help: "Overlay attach/detach events by publish result.",
		},
		[]string{"op", "result"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

// Collectors returns the layout collectors so they can be registered on a
// private registry as well.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		rebuildsTotal,
		rebuildDurationSeconds,
		siteShapes,
		surfaceOpsTotal,
		surfaceOpDurationSeconds,
		surfaceEventsTotal,
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	s := getSurface()
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st, s).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st, s).Observe(durationSeconds)
}

func ObserveRebuild(trigger string, err error, durationSeconds float64) {
	s := getSurface()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	rebuildsTotal.WithLabelValues(trigger, outcome, s).Inc()
	rebuildDurationSeconds.WithLabelValues(trigger, s).Observe(durationSeconds)
}

func SetSiteShapes(roofs, modules int) {
	siteShapes.WithLabelValues("roof").Set(float64(roofs))
	siteShapes.WithLabelValues("module").Set(float64(modules))
}

func ObserveSurfaceOp(op string, err error, durationSeconds float64) {
	s := getSurface()
	result := "ok"
	if err != nil {
		result = "error"
	}
	surfaceOpsTotal.WithLabelValues(op, result, s).Inc()
	surfaceOpDurationSeconds.WithLabelValues(op, s).Observe(durationSeconds)
}

func IncSurfaceEvent(op, result string) {
	surfaceEventsTotal.WithLabelValues(op, result).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
