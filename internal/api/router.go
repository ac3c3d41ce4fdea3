package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yegors/flightdev/internal/config"
	"github.com/yegors/flightdev/pkg/logger"
)

// Router wires the handlers to their routes
type Router struct {
	handler *Handler
	logger  *logger.Logger
}

// NewRouter creates a new router
func NewRouter(store Store, cfg *config.Config, log *logger.Logger) *Router {
	return &Router{
		handler: NewHandler(store, cfg, log),
		logger:  log.Named("api-router"),
	}
}

// Routes returns the HTTP handler serving the API and the Prometheus metrics
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(rt.requestLogger)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", rt.handler.GetHealth)
		r.Get("/config", rt.handler.GetConfig)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", rt.handler.GetRuns)
			r.Route("/{runID}", func(r chi.Router) {
				r.Get("/", rt.handler.GetRun)
				r.Get("/deviations", rt.handler.GetRunDeviations)
				r.Get("/skipped", rt.handler.GetRunSkipped)
				r.Get("/failures", rt.handler.GetRunFailures)
			})
		})

		r.Get("/flights/{flightID}/deviations", rt.handler.GetFlightDeviations)
	})

	return r
}

func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		rt.logger.Debug("HTTP request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}
