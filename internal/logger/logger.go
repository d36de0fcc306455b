// Package logger builds the service's zerolog logger and the context fields
// (request id, component, rebuild trigger) its slog bridge attaches.
package logger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level     string
	Console   bool
	SampleN   int
	Site      string
	Component string
}

type ctxKey string

// context keys double as the emitted field names
const (
	ctxRequestID ctxKey = "request_id"
	ctxComponent ctxKey = "component"
	ctxTrigger   ctxKey = "trigger"
)

var ctxFields = []ctxKey{ctxRequestID, ctxComponent, ctxTrigger}

func WithRequestID(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		reqID = NewID()
	}
	return context.WithValue(ctx, ctxRequestID, reqID)
}

func WithComponent(ctx context.Context, component string) context.Context {
	return withField(ctx, ctxComponent, component)
}

// WithTrigger records what started a site rebuild (populate, ready).
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return withField(ctx, ctxTrigger, trigger)
}

func withField(ctx context.Context, k ctxKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, k, v)
}

// NewID returns a random 16 hex char id.
func NewID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func Build(cfg Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "msg"

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || lvl == zerolog.NoLevel || lvl > zerolog.ErrorLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	base := zerolog.New(out)
	if cfg.SampleN > 0 {
		base = base.Sample(&zerolog.BasicSampler{N: uint32(min(uint64(cfg.SampleN), math.MaxUint32))})
	}

	zc := base.With().Timestamp()
	if cfg.Site != "" {
		zc = zc.Str("site", cfg.Site)
	}
	if cfg.Component != "" {
		zc = zc.Str("component", cfg.Component)
	}
	return zc.Logger()
}

// withContext returns parent with the request fields found in ctx applied.
func withContext(ctx context.Context, parent zerolog.Logger) zerolog.Logger {
	zc := parent.With()
	for _, k := range ctxFields {
		if s, ok := ctx.Value(k).(string); ok && s != "" {
			zc = zc.Str(string(k), s)
		}
	}
	return zc.Logger()
}
