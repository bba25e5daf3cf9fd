package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"talk-lab/api/handlers"
	"talk-lab/api/middleware"
	"talk-lab/observability"
)

// NewRouter wires the HTTP surface. Read endpoints take optional auth so
// guests can reach public rooms with the session header; everything that
// touches membership or accounts requires a token.
func NewRouter(log *slog.Logger, h *handlers.Handler, monitoring *observability.MonitoringManager, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Metrics(monitoring))
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Guest-Session"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)

	// Guest-reachable room endpoints
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth)

		r.Get("/rooms/{token}", h.GetRoom)
		r.Post("/rooms/{token}/ping", h.Heartbeat)
		r.Delete("/rooms/{token}/participants/self", h.RemoveSelf)
		r.Get("/rooms/search", h.SearchRooms)
	})

	// Authenticated room endpoints
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/rooms", h.ListRooms)
		r.Post("/rooms", h.CreateRoom)
		r.Put("/rooms/{token}", h.Rename)
		r.Post("/rooms/{token}/participants", h.AddParticipant)
		r.Post("/rooms/{token}/public", h.MakePublic)
		r.Delete("/rooms/{token}/public", h.MakePrivate)
		r.Get("/activities", h.Activities)
	})

	return r
}
