package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/vidrelay/internal/api/handler"
	mw "github.com/iconidentify/vidrelay/internal/api/middleware"
)

// apiTimeout bounds non-streaming endpoints. It sits above the resolver
// timeout so resolver failures surface as their own error.
const apiTimeout = 90 * time.Second

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	proxyHandler *handler.ProxyHandler,
	parseHandler *handler.ParseHandler,
	healthHandler *handler.HealthHandler,
	apiKey string,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath) // Normalize paths (e.g., //ready -> /ready)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// CORS for browser players
	r.Use(mw.CORS)

	// Health endpoints (no auth)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	r.Group(func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))

		// Streams are bounded by the relay's own timeout.
		r.Get("/proxy", proxyHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(apiTimeout))
			r.Post("/api/parse_video", parseHandler.Parse)
			r.Get("/stats", healthHandler.Stats)
		})
	})

	return r
}
