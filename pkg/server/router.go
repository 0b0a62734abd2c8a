package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// NewRouter wires every relayer endpoint onto a chi router. metricsHandler
// is mounted at /metrics when non-nil; callers that don't need Prometheus
// scraping in a given binary (e.g. a one-shot CLI) can pass nil.
func NewRouter(h *Handlers, jwtSecret string, logger *logrus.Logger, metricsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(accessLog(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.HandleHealth)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/intent", func(r chi.Router) {
		r.Post("/", h.HandleSubmitIntent)
	})

	r.Route("/subscription/{id}", func(r chi.Router) {
		r.Get("/", h.HandleGetSubscription)

		r.Group(func(r chi.Router) {
			r.Use(requireJWT(jwtSecret))
			r.Post("/pause", h.HandlePauseSubscription)
			r.Post("/resume", h.HandleResumeSubscription)
			r.Post("/cancel", h.HandleCancelSubscription)
		})
	})

	r.Route("/merchant/{address}", func(r chi.Router) {
		r.Get("/transactions", h.HandleMerchantTransactions)
		r.Get("/stats", h.HandleMerchantStats)
	})

	return r
}
