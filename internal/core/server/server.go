package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/solar-site-layout/internal/core/config"
	"github.com/mohammed-shakir/solar-site-layout/internal/core/health"
	middleware "github.com/mohammed-shakir/solar-site-layout/internal/core/middleware"
	"github.com/mohammed-shakir/solar-site-layout/internal/core/model"
	"github.com/mohammed-shakir/solar-site-layout/internal/core/router"
	"github.com/mohammed-shakir/solar-site-layout/internal/export"
)

// Deps are the collaborators the HTTP handlers serve from.
type Deps struct {
	Site     router.SiteService
	Overlays router.OverlaySource
	Ready    health.ReadinessReporter
	Defaults model.LayoutParams
	Export   export.Options
}

func NewHandler(cfg config.Config, logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(d.Ready))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Post("/populate", router.HandlePopulate(logger, d.Defaults, d.Site))
		r.Get("/site", router.HandleSite(logger, d.Overlays, d.Export))
	})
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(cfg, logger, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
