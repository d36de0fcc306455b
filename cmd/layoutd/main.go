package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mohammed-shakir/solar-site-layout/internal/core/config"
	"github.com/mohammed-shakir/solar-site-layout/internal/core/model"
	"github.com/mohammed-shakir/solar-site-layout/internal/core/observability"
	"github.com/mohammed-shakir/solar-site-layout/internal/core/server"
	"github.com/mohammed-shakir/solar-site-layout/internal/core/tracing"
	"github.com/mohammed-shakir/solar-site-layout/internal/export"
	"github.com/mohammed-shakir/solar-site-layout/internal/geo"
	"github.com/mohammed-shakir/solar-site-layout/internal/geo/mercator"
	"github.com/mohammed-shakir/solar-site-layout/internal/layout"
	"github.com/mohammed-shakir/solar-site-layout/internal/logger"
	h3mapper "github.com/mohammed-shakir/solar-site-layout/internal/mapper/h3"
	"github.com/mohammed-shakir/solar-site-layout/internal/metrics"
	"github.com/mohammed-shakir/solar-site-layout/internal/shape"
	"github.com/mohammed-shakir/solar-site-layout/internal/surface"
	"github.com/mohammed-shakir/solar-site-layout/internal/surface/events"
	"github.com/mohammed-shakir/solar-site-layout/internal/surface/memory"
	"github.com/mohammed-shakir/solar-site-layout/internal/surface/redissurface"
)

var Version = "dev"

// backend is a surface that also owns its readiness.
type backend interface {
	surface.Surface
	surface.Notifier
	MarkReady(p geo.Projection) bool
	Ready() bool
}

func main() {
	os.Exit(run())
}

func run() int {
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	siteFlag := flag.String("site-file", "", "site definition file (overrides SITE_FILE)")
	strategyFlag := flag.String("strategy", "", "module strategy (overrides STRATEGY and the site file)")
	flag.Parse()

	// a missing .env is fine
	_ = godotenv.Load(*envFile)

	cfg := config.FromEnv()
	if *siteFlag != "" {
		cfg.SiteFile = strings.TrimSpace(*siteFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Site:      cfg.SiteID,
		Component: "layoutd",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	site, err := config.LoadSite(cfg.SiteFile)
	if err != nil {
		appLog.Error("invalid site definition", "err", err, "file", cfg.SiteFile)
		return 1
	}
	strategyName := site.Strategy
	if cfg.Strategy != "" {
		strategyName = cfg.Strategy
	}
	if *strategyFlag != "" {
		strategyName = strings.TrimSpace(*strategyFlag)
	}

	shutdownTracing, err := tracing.Setup(cfg.Tracing, "layoutd", Version, os.Stderr)
	if err != nil {
		appLog.Error("tracing setup failed", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			appLog.Warn("tracing shutdown", "err", err)
		}
	}()

	observability.SetSurface(cfg.SurfaceDriver)
	observability.ExposeBuildInfo(Version)
	appLog.Info("starting layoutd",
		"addr", cfg.Addr,
		"version", Version,
		"site", cfg.SiteID,
		"surface", cfg.SurfaceDriver,
		"strategy", strategyName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	base, closeBase, err := openSurface(ctx, cfg)
	if err != nil {
		appLog.Error("surface setup failed", "err", err, "driver", cfg.SurfaceDriver)
		return 1
	}
	defer closeBase()

	var surf surface.Surface = base
	if cfg.Events.Enabled {
		pub, err := events.NewPublisher(cfg.Events.BrokerList(), cfg.Events.Topic, cfg.Events.QueueSize, appLog)
		if err != nil {
			appLog.Error("events publisher setup failed", "err", err)
			return 1
		}
		defer func() {
			if err := pub.Close(); err != nil {
				appLog.Warn("events publisher close", "err", err)
			}
		}()
		surf = events.Wrap(base, cfg.SiteID, pub, cfg.Events.DedupeLRU)
		appLog.Info("publishing overlay events", "topic", cfg.Events.Topic, "brokers", cfg.Events.Brokers)
	}

	strategy, err := layout.StrategyFor(strategyName, appLog)
	if err != nil {
		appLog.Error("strategy setup failed", "err", err)
		return 1
	}

	roof := shape.RectSpec{
		Kind:     surface.KindRoof,
		Center:   geo.GeoPoint{Lat: site.Roof.Lat, Lng: site.Roof.Lng},
		Width:    site.Roof.Width,
		Length:   site.Roof.Length,
		Rotation: site.Roof.Rotation,
		Color:    site.Roof.Color,
	}
	defaults := model.LayoutParams{
		ModuleWidth:   site.Modules.Width,
		ModuleLength:  site.Modules.Length,
		ModuleSpacing: site.Modules.Spacing,
	}

	siteLayout, err := layout.New(surf, roof, strategy, appLog.With("component", "layout"))
	if err != nil {
		appLog.Error("layout setup failed", "err", err)
		return 1
	}

	base.OnReady(func(geo.Projection) {
		if _, err := siteLayout.Rebuild(ctx, layout.Input{Params: defaults}, model.TriggerReady); err != nil {
			appLog.Error("initial site build failed", "err", err)
		}
	})
	base.MarkReady(mercator.New())

	if cfg.Metrics.Enabled {
		p := metrics.Init(metrics.Config{
			Addr: cfg.Metrics.Addr,
			Path: cfg.Metrics.Path,
			Build: metrics.BuildInfo{
				Version:   cfg.Metrics.BuildVersion,
				Revision:  cfg.Metrics.BuildRevision,
				Branch:    cfg.Metrics.BuildBranch,
				BuildDate: cfg.Metrics.BuildDate,
			},
		})
		p.Register(observability.Collectors()...)
		go func() {
			if err := p.Serve(ctx, appLog); err != nil {
				appLog.Error("metrics server exited", "err", err)
			}
		}()
	}

	deps := server.Deps{
		Site:     siteLayout,
		Overlays: surf,
		Ready:    base,
		Defaults: defaults,
		Export:   export.Options{Mapper: h3mapper.New(), H3Res: cfg.H3Res},
	}
	if err := server.Run(ctx, cfg, appLog, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func openSurface(ctx context.Context, cfg config.Config) (backend, func(), error) {
	switch cfg.SurfaceDriver {
	case "", "memory":
		return memory.New(), func() {}, nil
	case "redis":
		s, err := redissurface.New(ctx, cfg.RedisAddr, cfg.SiteID, cfg.SurfaceOpTimeout)
		if err != nil {
			return nil, nil, err
		}
		if err := s.Reset(ctx); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown surface driver %q (want memory or redis)", cfg.SurfaceDriver)
	}
}
