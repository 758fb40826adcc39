package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-auth-service/internal/config"
	"go-auth-service/internal/handler"
	"go-auth-service/internal/middleware"
)

type Handlers struct {
	Auth   *handler.AuthHandler
	User   *handler.UserHandler
	Audit  *handler.AuditHandler
	Health *handler.HealthHandler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, handlers Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", handlers.Health.Check)
	r.Get("/health/live", handlers.Health.Live)
	r.Get("/health/ready", handlers.Health.Ready)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", handlers.Auth.Register)
			auth.Post("/login", handlers.Auth.Login)
			auth.Post("/refresh", handlers.Auth.Refresh)
			auth.Post("/logout", handlers.Auth.Logout)
			auth.With(authMiddleware.RequireAuth).Post("/logout-all", handlers.Auth.LogoutAll)
			auth.With(authMiddleware.RequireAuth).Get("/profile", handlers.Auth.Profile)
		})

		api.With(authMiddleware.RequireAuth).Get("/users", handlers.User.List)
		api.With(authMiddleware.RequireAuth).Get("/users/{id}", handlers.User.Get)
		api.With(authMiddleware.RequireAuth).Put("/users/{id}", handlers.User.Update)
		api.With(authMiddleware.RequireAuth).Delete("/users/{id}", handlers.User.Delete)
		api.With(authMiddleware.RequireAuth).Get("/audit", handlers.Audit.List)
	})

	return r
}
