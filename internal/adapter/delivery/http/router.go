// Package http provides the HTTP delivery layer of the short link service.
// It decodes and validates requests, calls the use cases and maps their
// errors onto status codes.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
)

// Config carries the presentation settings of the router.
type Config struct {
	// BaseURL prefixes short codes in shortUrl fields.
	BaseURL     string
	DefaultDays int
	TopLimit    int
}

type metricsCollector interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

// NewRouter initializes and returns a new Chi router configured with middleware
// and routes for the short link API. metrics may be nil.
func NewRouter(
	logger *httplog.Logger,
	cfg Config,
	urlUseCase urlUseCase,
	reportUseCase reportUseCase,
	metrics metricsCollector,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"POST", "GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(recoverer)

	if metrics != nil {
		r.Use(metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	validate := newValidator()
	urls := newURLHandler(urlUseCase, validate, cfg.BaseURL)
	reports := newReportHandler(reportUseCase, validate, cfg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", handlePing)

		r.Route("/url", func(r chi.Router) {
			r.Post("/", urls.createURL)
			r.Get("/", urls.listURLs)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/stats", reports.stats)
			r.Get("/daily", reports.daily)
			r.Get("/top-urls", reports.topURLs)
			r.Get("/peak-access", reports.peakAccess)
			r.Get("/export", reports.export)
		})
	})

	r.Get("/{shortCode}", urls.redirect)

	return r
}
