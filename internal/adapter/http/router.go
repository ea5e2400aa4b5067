package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/cbledger/internal/adapter/http/handler"
	"github.com/iho/cbledger/internal/adapter/http/middleware"
	"github.com/iho/cbledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Logger            zerolog.Logger
	ComplianceHandler *handler.ComplianceHandler
	BankingHandler    *handler.BankingHandler
	PoolHandler       *handler.PoolHandler
	RouteHandler      *handler.RouteHandler
	HealthHandler     *handler.HealthHandler
	IdempotencyStore  usecase.IdempotencyStore
	RateLimiter       *middleware.RateLimiter
	MetricsHandler    http.Handler
	IdempotencyTTL    time.Duration
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics)

	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Group(func(r chi.Router) {
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL).Wrap)
		}

		r.Route("/routes", func(r chi.Router) {
			r.Get("/", cfg.RouteHandler.List)
			r.Post("/", cfg.RouteHandler.Import)
			r.Get("/comparison", cfg.RouteHandler.Comparison)
			r.Post("/{id}/baseline", cfg.RouteHandler.SetBaseline)
		})

		r.Route("/compliance", func(r chi.Router) {
			r.Get("/cb", cfg.ComplianceHandler.GetCB)
			r.Post("/cb", cfg.ComplianceHandler.SetCB)
			r.Post("/sync", cfg.ComplianceHandler.Sync)
			r.Get("/adjusted-cb", cfg.ComplianceHandler.GetAdjustedCB)
			r.Get("/reconcile", cfg.ComplianceHandler.Reconcile)
		})

		r.Route("/banking", func(r chi.Router) {
			r.Get("/records", cfg.BankingHandler.GetRecord)
			r.Post("/bank", cfg.BankingHandler.Bank)
			r.Post("/apply", cfg.BankingHandler.Apply)
		})

		r.Route("/pools", func(r chi.Router) {
			r.Get("/", cfg.PoolHandler.List)
			r.Post("/", cfg.PoolHandler.Create)
			r.Get("/{id}", cfg.PoolHandler.Get)
		})
	})

	return r
}
