package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/teamroom/internal/api/middleware"
	"github.com/eldtechnologies/teamroom/internal/handlers"
)

// maxBodyBytes leaves room for JSON escaping around a 4096-byte message.
const maxBodyBytes = 16 * 1024

// RouterConfig holds what the router needs beyond the handler services.
type RouterConfig struct {
	RateLimit middleware.RateLimiterConfig
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, svc handlers.Services, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(maxBodyBytes))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting; a no-op without Redis
	var client *redis.Client
	if svc.Redis != nil {
		client = svc.Redis.Client()
	}
	limiter := middleware.NewRateLimiter(client, logger, cfg.RateLimit)
	r.Use(limiter.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Last-Event-ID", middleware.UserHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(svc)
	identity := middleware.NewIdentity(svc.Store)

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api", h.Root)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)

	r.Post("/users", h.RegisterUser)
	r.Get("/users/{id}", h.GetUser)

	r.Get("/personas", h.ListPersonas)
	r.Get("/personas/{id}", h.GetPersona)

	r.Post("/projects", h.CreateProject)
	r.Get("/projects/{id}", h.GetProject)
	r.Post("/projects/{id}/rooms/init", h.InitProjectRooms)
	r.Get("/projects/{id}/rooms", h.ListProjectRooms)
	r.Get("/projects/{id}/team", h.GetProjectTeam)
	r.Post("/projects/{id}/team", h.SetProjectTeam)

	r.Post("/rooms", h.CreateRoom)
	r.Get("/rooms/{id}/participants", h.ListParticipants)
	r.Post("/rooms/{id}/participants", h.AddParticipant)
	r.Get("/rooms/{id}/messages", h.GetRoomMessages)
	r.Get("/rooms/{id}/events", h.RoomEvents)

	// Posting requires a registered sender
	r.Group(func(r chi.Router) {
		r.Use(identity.RequireUser)

		r.Post("/rooms/{id}/messages", h.PostMessage)
	})

	return r
}
