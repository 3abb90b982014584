package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bohdanboiprav/photoshare-app/internal/core/domain"
	"github.com/bohdanboiprav/photoshare-app/internal/infra/config"
	"github.com/bohdanboiprav/photoshare-app/internal/infra/telemetry"
	"github.com/bohdanboiprav/photoshare-app/internal/transport/http/handlers"
	"github.com/bohdanboiprav/photoshare-app/internal/transport/http/middleware"
	"github.com/bohdanboiprav/photoshare-app/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Sessions      *usecase.SessionService
	Registration  *usecase.RegistrationService
	PasswordReset *usecase.PasswordResetService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Metrics     *telemetry.Provider
	HTTPMetrics *middleware.HTTPMetrics
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.CORSAllowedOrigins))

	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Handler())
	}

	authMiddleware := middleware.RequireAuth(deps.Services.Sessions)

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		authHandler := handlers.NewAuthHandler(
			deps.Services.Sessions,
			deps.Services.Registration,
			deps.Services.PasswordReset,
			deps.Metrics,
			accessTokenTTL(deps.Config),
		)

		authGroup := api.Group("/auth")
		authHandler.RegisterRoutes(authGroup, handlers.RouteMiddlewares{
			Auth:    authMiddleware,
			Signup:  buildRateLimitChain(deps, "auth_signup_ip", deps.Config.RateLimit.RegisterMaxAttempts),
			Login:   buildRateLimitChain(deps, "auth_login_ip", deps.Config.RateLimit.LoginMaxAttempts),
			Refresh: buildRateLimitChain(deps, "auth_refresh_ip", deps.Config.RateLimit.RefreshMaxAttempts),
			Reset:   buildRateLimitChain(deps, "auth_reset_ip", deps.Config.RateLimit.ResetMaxAttempts),
		})

		api.GET("/me", authMiddleware, authHandler.Me)

		adminGroup := api.Group("/admin")
		adminGroup.Use(authMiddleware, middleware.RequireRole(domain.RoleAdmin, domain.RoleModerator))
		adminHandler := handlers.NewAdminUsersHandler(deps.Services.Sessions)
		adminHandler.RegisterRoutes(adminGroup)
	}

	return r
}

func accessTokenTTL(cfg *config.AppConfig) time.Duration {
	if cfg == nil || cfg.JWT.AccessTokenTTL <= 0 {
		return 15 * time.Minute
	}
	return cfg.JWT.AccessTokenTTL
}

func buildRateLimitChain(deps Dependencies, name string, limit int) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
