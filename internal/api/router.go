package api

import (
	"net/http"

	"github.com/dom/court-rotation/internal/api/handlers"
	"github.com/dom/court-rotation/internal/api/middleware"
	"github.com/dom/court-rotation/internal/config"
	"github.com/dom/court-rotation/internal/service"
	"github.com/dom/court-rotation/internal/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(services *service.Services, hub *websocket.Hub, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.CORS)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(services.Auth)
	eventHandler := handlers.NewEventHandler(services.Event)
	wsHandler := handlers.NewWebSocketHandler(hub, services.Event)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(services.Auth))
				r.Get("/me", authHandler.Me)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// Read-only event routes, shared by short code with viewers
		r.Get("/events/{idOrCode}", eventHandler.Get)
		r.Get("/events/{idOrCode}/schedule", eventHandler.GetSchedule)
		r.Get("/events/{idOrCode}/validation", eventHandler.Validation)
		r.Get("/events/{idOrCode}/export", eventHandler.Export)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(services.Auth))

			r.Post("/events", eventHandler.Create)
			r.Get("/users/me/events", eventHandler.ListMine)

			r.Put("/events/{idOrCode}/players/{playerId}", eventHandler.UpdatePlayer)
			r.Post("/events/{idOrCode}/schedule", eventHandler.Generate)
			r.Post("/events/{idOrCode}/matches/{matchId}/approve", eventHandler.Approve)
			r.Post("/events/{idOrCode}/matches/{matchId}/reject", eventHandler.Reject)
			r.Post("/events/{idOrCode}/swap", eventHandler.Swap)
			r.Put("/events/{idOrCode}/rounds/{round}/style", eventHandler.Retype)
			r.Post("/events/{idOrCode}/rounds/{round}/regenerate", eventHandler.Regenerate)
			r.Post("/events/{idOrCode}/import", eventHandler.Import)
		})

		// Live view: operators by token, anonymous viewers by event code
		r.With(middleware.Viewer(services.Auth)).Get("/ws", wsHandler.Handle)
	})

	return r
}
