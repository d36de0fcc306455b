package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type EventsCfg struct {
	Enabled   bool
	Brokers   string
	Topic     string
	QueueSize int
	DedupeLRU int
}

type TracingCfg struct {
	Enabled     bool
	SampleRatio float64
}

type MetricsCfg struct {
	Enabled       bool
	Addr          string
	Path          string
	BuildVersion  string
	BuildRevision string
	BuildBranch   string
	BuildDate     string
}

type Config struct {
	Addr             string
	LogLevel         string
	LogConsole       bool
	LogSampleN       int
	SiteID           string
	SiteFile         string
	Strategy         string
	SurfaceDriver    string
	RedisAddr        string
	SurfaceOpTimeout time.Duration
	RequestTimeout   time.Duration
	H3Res            int
	Events           EventsCfg
	Metrics          MetricsCfg
	Tracing          TracingCfg
}

func FromEnv() Config {
	res := getint("H3_RES", 12)
	if res < 0 || res > 15 {
		res = 12
	}

	ratio := getfloat("TRACING_SAMPLE_RATIO", 1)
	if ratio < 0 || ratio > 1 {
		ratio = 1
	}

	return Config{
		Addr:             getenv("ADDR", ":8090"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogConsole:       getbool("LOG_CONSOLE", false),
		LogSampleN:       getint("LOG_SAMPLE_N", 0),
		SiteID:           getenv("SITE_ID", "default"),
		SiteFile:         getenv("SITE_FILE", ""),
		Strategy:         getenv("STRATEGY", ""),
		SurfaceDriver:    strings.ToLower(getenv("SURFACE_DRIVER", "memory")),
		RedisAddr:        getenv("REDIS_ADDR", "localhost:6379"),
		SurfaceOpTimeout: getduration("SURFACE_OP_TIMEOUT", 2*time.Second),
		RequestTimeout:   getduration("REQUEST_TIMEOUT", 30*time.Second),
		H3Res:            res,
		Events: EventsCfg{
			Enabled:   getbool("EVENTS_ENABLED", false),
			Brokers:   getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:     getenv("KAFKA_TOPIC", "site-overlays"),
			QueueSize: getint("EVENTS_QUEUE", 1024),
			DedupeLRU: getint("EVENTS_DEDUPE_SIZE", 4096),
		},
		Metrics: MetricsCfg{
			Enabled:       getbool("METRICS_ENABLED", false),
			Addr:          getenv("METRICS_ADDR", ":9090"),
			Path:          getenv("METRICS_PATH", "/metrics"),
			BuildVersion:  os.Getenv("BUILD_VERSION"),
			BuildRevision: os.Getenv("BUILD_REVISION"),
			BuildBranch:   os.Getenv("BUILD_BRANCH"),
			BuildDate:     os.Getenv("BUILD_DATE"),
		},
		Tracing: TracingCfg{
			Enabled:     getbool("TRACING_ENABLED", false),
			SampleRatio: ratio,
		},
	}
}

// BrokerList splits the comma separated broker string.
func (e EventsCfg) BrokerList() []string {
	var out []string
	for b := range strings.SplitSeq(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
