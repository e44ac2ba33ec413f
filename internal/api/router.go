package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/RouteRisk/internal/risk"
)

type RouterConfig struct {
	AdminToken         string
	RateLimitPerMinute int
}

func NewRouter(a Assessor, s SnapshotReader, policy *risk.WeightPolicy, grades *risk.GradeTable, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(cfg.RateLimitPerMinute))

	h := NewRiskHandler(a, s, policy, grades, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/routes/{id}/risk", h.Calculate)
		r.Get("/routes/{id}/risk", h.Latest)
		r.Get("/risk/policy", h.Policy)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminToken))
			r.Post("/risk/batch", h.Batch)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
