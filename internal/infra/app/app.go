package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/bohdanboiprav/photoshare-app/internal/core/domain"
	"github.com/bohdanboiprav/photoshare-app/internal/core/port"
	"github.com/bohdanboiprav/photoshare-app/internal/infra/config"
	"github.com/bohdanboiprav/photoshare-app/internal/infra/database"
	kafkainfra "github.com/bohdanboiprav/photoshare-app/internal/infra/kafka"
	"github.com/bohdanboiprav/photoshare-app/internal/infra/logger"
	redisinfra "github.com/bohdanboiprav/photoshare-app/internal/infra/redis"
	"github.com/bohdanboiprav/photoshare-app/internal/infra/security"
	"github.com/bohdanboiprav/photoshare-app/internal/infra/telemetry"
	postgresrepo "github.com/bohdanboiprav/photoshare-app/internal/repository/postgres"
	redisrepo "github.com/bohdanboiprav/photoshare-app/internal/repository/redis"
	"github.com/bohdanboiprav/photoshare-app/internal/transport/http/middleware"
	"github.com/bohdanboiprav/photoshare-app/internal/transport/http/routes"
	"github.com/bohdanboiprav/photoshare-app/internal/usecase"
)

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics := telemetry.NewProvider(nil)

	httpMetrics := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	hasher, err := security.NewHasher(security.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	codec, err := security.NewTokenCodec(security.TokenCodecConfig{
		Secret:     cfg.JWT.Secret,
		Algorithm:  cfg.JWT.Algorithm,
		Issuer:     cfg.JWT.Issuer,
		AccessTTL:  cfg.JWT.AccessTokenTTL,
		RefreshTTL: cfg.JWT.RefreshTokenTTL,
		VerifyTTL:  cfg.JWT.VerifyTokenTTL,
		ResetTTL:   cfg.JWT.ResetTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	keyPrefix := redisClient.KeyPrefix()
	blacklist := redisrepo.NewBlacklistRepository(redisClient.Client(), keyPrefix+":blacklist")
	principalCache := redisrepo.NewPrincipalCacheRepository(redisClient.Client(), keyPrefix+":principal")

	throttle := redisrepo.NewAttemptThrottleRepository(redisClient.Client(), keyPrefix+":throttle")

	rateLimiter := middleware.NewRateLimiter(throttle, log).
		WithLimitedCounter(metrics.CountRateLimited)

	users := postgresrepo.NewUserRepository(pool)

	var eventPublisher port.EventPublisher
	var producer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	policy := domain.NewCacheDegradationPolicy(domain.ParseCacheDegradationMode(cfg.Cache.DegradationPolicy))

	sessionService, err := usecase.NewSessionService(users, blacklist, principalCache, eventPublisher, codec, hasher, policy, cfg.Cache.PrincipalTTL)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init session service: %w", err)
	}

	registrationService, err := usecase.NewRegistrationService(users, eventPublisher, codec, hasher)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init registration service: %w", err)
	}

	passwordResetService, err := usecase.NewPasswordResetService(users, blacklist, eventPublisher, codec, hasher)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init password reset service: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Metrics:     metrics,
		HTTPMetrics: httpMetrics,
		RateLimiter: rateLimiter,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Sessions:      sessionService,
			Registration:  registrationService,
			PasswordReset: passwordResetService,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
