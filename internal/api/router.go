// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ventidole/compass/internal/config"
	"github.com/ventidole/compass/internal/middleware"
)

// Router wires the handler set into an HTTP routing tree.
type Router struct {
	handlers *Handlers
	cfg      config.APIConfig
}

// NewRouter creates a router around the given handlers.
func NewRouter(handlers *Handlers, cfg config.APIConfig) *Router {
	return &Router{handlers: handlers, cfg: cfg}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler so it can be used with r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Setup builds the routing tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chiMiddleware(middleware.RequestLogger))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints stay unthrottled so orchestrators can probe freely.
	r.Get("/health", router.handlers.Health)
	r.Get("/health/ready", router.handlers.HealthReady)

	r.Route("/api/v1", func(r chi.Router) {
		if !router.cfg.RateLimitDisabled {
			r.Use(httprate.LimitByIP(router.cfg.RateLimitReqs, router.cfg.RateLimitWindow))
		}
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.Get("/recommendations/{userID}", router.handlers.Recommendations)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/reload", router.handlers.AdminReload)
			r.Get("/status", router.handlers.AdminStatus)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
