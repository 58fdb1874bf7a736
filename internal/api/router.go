package api

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adityaxdubey/whisper-rebellion/internal/api/middleware"
	"github.com/adityaxdubey/whisper-rebellion/internal/config"
	"github.com/adityaxdubey/whisper-rebellion/internal/handlers"
	"github.com/adityaxdubey/whisper-rebellion/internal/ws"
)

const maxBodyBytes = 64 * 1024

// NewRouter builds the HTTP routing table with the full middleware chain.
func NewRouter(cfg *config.Config, h *handlers.Handler, hub *ws.Hub, authmw *middleware.AuthMiddleware, limiter *middleware.RateLimiter) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Metrics)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(maxBodyBytes))
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(h.Logger()))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(limiter.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Public endpoints
	r.Post("/users", h.Register)
	r.Post("/login", h.Login)
	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/ws", hub.HandleWS)

	// Authenticated endpoints
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth)
		r.Get("/users", h.ListUsers)
		r.Post("/messages", h.SendMessage)
		r.Get("/messages", h.GetMessages)
		r.Get("/messages/search", h.SearchMessages)
	})

	// Static frontend
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.ServeFile(w, req, filepath.Join(cfg.FrontendDir, "index.html"))
	})
	r.Get("/chat", func(w http.ResponseWriter, req *http.Request) {
		http.ServeFile(w, req, filepath.Join(cfg.FrontendDir, "chat.html"))
	})
	fs := http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.FrontendDir)))
	r.Get("/static/*", fs.ServeHTTP)

	return r
}
