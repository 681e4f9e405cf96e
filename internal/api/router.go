package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/PriceEngine/internal/cache"
	"github.com/MikeSquared-Agency/PriceEngine/internal/config"
	"github.com/MikeSquared-Agency/PriceEngine/internal/hermes"
	"github.com/MikeSquared-Agency/PriceEngine/internal/metrics"
	"github.com/MikeSquared-Agency/PriceEngine/internal/pricing"
	"github.com/MikeSquared-Agency/PriceEngine/internal/store"
)

// Deps are the collaborators of the HTTP layer. Holder, Metrics and Logger
// are required; the rest may be nil.
type Deps struct {
	Holder     *pricing.Holder
	Store      store.Store
	Hermes     hermes.Client
	Cache      cache.Cache
	Metrics    *metrics.Recorder
	Reloader   WeightsReloader
	AdminToken string
	RateLimit  config.RateLimitConfig
	Logger     *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(d.Logger))

	recommend := NewRecommendHandler(d)
	model := NewModelHandler(d)
	recs := NewRecommendationsHandler(d.Store)

	r.Get("/health", model.Health)

	r.Group(func(r chi.Router) {
		if d.RateLimit.Enabled {
			r.Use(RateLimitMiddleware(d.RateLimit.RequestsPerSecond, d.RateLimit.Burst))
		}
		r.Post("/", recommend.Recommend)
		r.Post("/recommend", recommend.Recommend)

		r.Route("/v1", func(r chi.Router) {
			r.Post("/recommend", recommend.Recommend)
			r.Get("/model", model.Model)
			r.Get("/recommendations", recs.List)
			r.Get("/recommendations/{id}", recs.Get)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(AdminAuthMiddleware(d.AdminToken))
		r.Post("/weights/reload", model.Reload)
	})

	return r
}

// NewMetricsRouter serves /metrics from g, or the default gatherer when g is nil.
func NewMetricsRouter(g prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if g == nil {
		r.Handle("/metrics", promhttp.Handler())
	} else {
		r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	}
	return r
}
