/**
 * @description
 * This file sets up the HTTP router using the go-chi/chi router. It defines
 * the API routes, applies middleware for logging, CORS, and authentication,
 * and maps the routes to their handler functions. The webhook and plan
 * catalog routes are deliberately outside the auth group.
 */
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers all routes.
func NewRouter(h *Handler, webhook *WebhookHandler, jwtSecret, allowedOrigins string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(allowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tavus-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("TherapAI backend is healthy"))
	})

	r.Route("/api", func(r chi.Router) {
		// Open routes: the billing provider authenticates via signature, and
		// the plan catalog backs the public pricing page.
		r.Post("/subscriptions/webhook", webhook.ServeHTTP)
		r.Post("/subscription/webhook", webhook.ServeHTTP) // legacy alias
		r.Get("/subscriptions/plans", h.handlePlans)

		// Chat allows guests; everything else requires a valid token.
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(jwtSecret, true))
			r.Post("/ai/chat", h.handleChat)
		})

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(jwtSecret, false))

			r.Get("/subscriptions/status", h.handleSubscriptionStatus)

			r.Post("/voice/synthesize", h.handleSynthesize)

			r.Post("/video/create", h.handleCreateVideo)
			r.Get("/video/status/{id}", h.handleVideoStatus)

			r.Get("/sessions", h.handleListSessions)
			r.Get("/sessions/{id}/messages", h.handleListMessages)
			r.Post("/sessions/{id}/end", h.handleEndSession)

			r.Get("/community/posts", h.handleListPosts)
			r.Post("/community/posts", h.handleCreatePost)
			r.Post("/community/posts/{id}/react", h.handleReact)

			r.Get("/users/me", h.handleGetMe)
			r.Put("/users/me", h.handleUpdateMe)
		})
	})

	return r
}

func splitOrigins(allowedOrigins string) []string {
	if strings.TrimSpace(allowedOrigins) == "" || allowedOrigins == "*" {
		return []string{"https://*", "http://*"}
	}
	parts := strings.Split(allowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
