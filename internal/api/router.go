package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/courseloop/backend/internal/api/handlers"
	"github.com/courseloop/backend/internal/api/middleware"
	"github.com/courseloop/backend/internal/auth"
	"github.com/courseloop/backend/internal/authz"
	"github.com/courseloop/backend/internal/referral"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB              *gorm.DB
	Redis           *redis.Client
	Logger          *slog.Logger
	JWTService      *auth.JWTService
	AuthService     *auth.Service
	ReferralService *referral.Service
	AllowedOrigins  []string // CORS allowed origins
	RateLimitReqs   int      // Rate limit requests per window
	RateLimitSecs   int      // Rate limit window in seconds
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	// CORS - restrict to configured origins, or allow localhost in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService)
	userHandler := handlers.NewUserHandler(cfg.AuthService)
	courseHandler := handlers.NewCourseHandler(cfg.DB)
	referralHandler := handlers.NewReferralHandler(cfg.ReferralService)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Post("/auth/refresh-tokens", authHandler.RefreshTokens)
		r.Post("/auth/forgot-password", authHandler.ForgotPassword)
		r.Post("/auth/reset-password", authHandler.ResetPassword)
		r.Post("/auth/verify-email", authHandler.VerifyEmail)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))

			r.Route("/users", func(r chi.Router) {
				r.With(middleware.RequireCapability(authz.CapViewOwnProfile)).
					Get("/me", userHandler.Me)
				r.With(middleware.RequireCapability(authz.CapManageAnyUserRole)).
					Patch("/{id}/role", userHandler.UpdateRole)
			})

			r.Route("/courses", func(r chi.Router) {
				r.Get("/", courseHandler.List)
				r.Get("/{id}", courseHandler.Get)
				r.With(middleware.RequireCapability(authz.CapManageOwnCourses)).
					Post("/", courseHandler.Create)
			})

			r.Route("/referralLinks", func(r chi.Router) {
				r.Use(middleware.RequireCapability(authz.CapManageOwnReferralLinks))
				r.Get("/", referralHandler.List)
				r.Post("/", referralHandler.Create)
				r.Get("/{id}", referralHandler.Get)
				r.Post("/{id}/expire", referralHandler.Expire)
				r.Delete("/{id}", referralHandler.Delete)
			})
		})
	})

	return &Router{r}
}
