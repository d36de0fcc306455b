// Package redissurface keeps the overlays of one site in Redis so that other
// processes (map front-ends, exporters) can read what is currently shown.
package redissurface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammed-shakir/solar-site-layout/internal/core/observability"
	"github.com/mohammed-shakir/solar-site-layout/internal/surface"
)

var tracer = otel.Tracer("github.com/mohammed-shakir/solar-site-layout/internal/surface/redissurface")

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.ReadTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.WriteTimeout = d }
}

type Surface struct {
	surface.Readiness

	rdb  *redis.Client
	site string
	// per-operation deadline; zero means the caller's context only
	opTimeout time.Duration
}

// New connects to addr and pings it. site scopes every key the surface writes.
func New(ctx context.Context, addr, site string, opTimeout time.Duration, opts ...Option) (*Surface, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	if site == "" {
		return nil, errors.New("site id is required")
	}

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     16,
		MinIdleConns: 2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)

	start := time.Now()
	err := rdb.Ping(ctx).Err()
	observability.ObserveSurfaceOp("ping", err, time.Since(start).Seconds())
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Surface{rdb: rdb, site: site, opTimeout: opTimeout}, nil
}

// begin applies the op deadline and opens a client span; end must be called
// with the op result.
func (s *Surface) begin(ctx context.Context, op string) (context.Context, func(error)) {
	cancel := context.CancelFunc(func() {})
	if s.opTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.opTimeout)
	}
	ctx, span := tracer.Start(ctx, "redissurface."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("site", s.site),
		))
	start := time.Now()
	return ctx, func(err error) {
		observability.ObserveSurfaceOp(op, err, time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, op+" failed")
		}
		span.End()
		cancel()
	}
}

// Show stores o and adds it to the site index in one pipeline.
func (s *Surface) Show(ctx context.Context, o surface.Overlay) error {
	if o.ID == "" {
		return errors.New("redis surface: overlay id is required")
	}
	b, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode overlay %q: %w", o.ID, err)
	}

	ctx, end := s.begin(ctx, "show")
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, overlayKey(s.site, o.ID), b, 0)
		p.SAdd(ctx, indexKey(s.site), o.ID)
		return nil
	})
	end(err)
	if err != nil {
		return fmt.Errorf("redis show %q: %w", o.ID, err)
	}
	return nil
}

// Hide removes the overlay; unknown ids are ignored.
func (s *Surface) Hide(ctx context.Context, id string) error {
	ctx, end := s.begin(ctx, "hide")
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, overlayKey(s.site, id))
		p.SRem(ctx, indexKey(s.site), id)
		return nil
	})
	end(err)
	if err != nil {
		return fmt.Errorf("redis hide %q: %w", id, err)
	}
	return nil
}

// Overlays returns the shown overlays sorted by id. Index members whose
// payload is gone are skipped.
func (s *Surface) Overlays(ctx context.Context) ([]surface.Overlay, error) {
	ctx, end := s.begin(ctx, "list")
	ids, err := s.rdb.SMembers(ctx, indexKey(s.site)).Result()
	if err != nil {
		end(err)
		return nil, fmt.Errorf("redis SMEMBERS: %w", err)
	}
	if len(ids) == 0 {
		end(nil)
		return []surface.Overlay{}, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = overlayKey(s.site, id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	end(err)
	if err != nil {
		return nil, fmt.Errorf("redis MGET %d keys: %w", len(keys), err)
	}

	out := make([]surface.Overlay, 0, len(vals))
	for i, v := range vals {
		var raw []byte
		switch t := v.(type) {
		case nil:
			continue // missing key
		case string:
			raw = []byte(t)
		case []byte:
			raw = t
		default:
			raw = fmt.Append(nil, t)
		}
		var o surface.Overlay
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("decode overlay %q: %w", ids[i], err)
		}
		out = append(out, o)
	}
	return out, nil
}

// Reset removes every overlay of the site, including ones left by an earlier
// process.
func (s *Surface) Reset(ctx context.Context) error {
	ctx, end := s.begin(ctx, "reset")
	ids, err := s.rdb.SMembers(ctx, indexKey(s.site)).Result()
	if err == nil {
		keys := make([]string, 0, len(ids)+1)
		for _, id := range ids {
			keys = append(keys, overlayKey(s.site, id))
		}
		keys = append(keys, indexKey(s.site))
		err = s.rdb.Del(ctx, keys...).Err()
	}
	end(err)
	if err != nil {
		return fmt.Errorf("redis reset site %q: %w", s.site, err)
	}
	return nil
}

func (s *Surface) Close() error {
	if err := s.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
