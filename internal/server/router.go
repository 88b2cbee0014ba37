package server

import (
	"net/http"

	"github.com/cloo-solutions/insightd/internal/api/handlers"
	"github.com/cloo-solutions/insightd/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type RouterConfig struct {
	CycleHandler *handlers.CycleHandler
	Metrics      http.Handler
	Logger       *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 64 * 1024

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(logger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", cfg.CycleHandler.Health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/cycles", func(r chi.Router) {
		r.Post("/", cfg.CycleHandler.Trigger)
		r.Get("/", cfg.CycleHandler.List)
		r.Get("/latest", cfg.CycleHandler.Latest)
		r.Get("/{id}", cfg.CycleHandler.Get)
	})

	return r
}
