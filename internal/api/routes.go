package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/spark-tracker/internal/config"
)

var defaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// SetupRoutes configures all API routes. Health endpoints are open; /api
// requires the API key when one is configured.
func SetupRoutes(h *Handlers, health *HealthChecker, cfg config.ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", health.HandleHealth)
	r.Get("/health/live", health.HandleLiveness)
	r.Get("/health/ready", health.HandleReadiness)

	r.Route("/api", func(r chi.Router) {
		if cfg.APIKey != "" {
			r.Use(requireAPIKey(cfg.APIKey))
		}

		r.Route("/sparks", func(r chi.Router) {
			r.Post("/", h.CreateSpark)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSpark)
				r.Post("/send", h.SendSpark)
				r.Post("/events", h.TrackEvent)
				r.Post("/expire", h.ExpireSpark)
			})
		})

		r.Route("/owners/{owner}", func(r chi.Router) {
			r.Get("/sparks", h.ListSparks)
			r.Get("/analytics", h.GetAnalytics)
			r.Get("/notifications", h.ListNotifications)
			r.Post("/notifications/{id}/read", h.MarkNotificationRead)
			r.Get("/preferences", h.GetPreferences)
			r.Put("/preferences", h.PutPreferences)
		})
	})

	return r
}

// requireAPIKey accepts the key in X-API-Key or as a bearer token.
func requireAPIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			got := req.Header.Get("X-API-Key")
			if got == "" {
				got = strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
