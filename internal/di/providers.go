package di

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"

	"github.com/movian/movian-api/internal/app"
	"github.com/movian/movian-api/internal/config"
	"github.com/movian/movian-api/internal/database"
	"github.com/movian/movian-api/internal/health"
	"github.com/movian/movian-api/internal/http/handler"
	"github.com/movian/movian-api/internal/http/middleware"
	"github.com/movian/movian-api/internal/http/router"
	"github.com/movian/movian-api/internal/observability"
	"github.com/movian/movian-api/internal/repository"
	"github.com/movian/movian-api/internal/security"
	"github.com/movian/movian-api/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideStore,
	provideRedisClient,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	provideUserRepository,
	providePendingRepository,
)

var SecuritySet = wire.NewSet(
	provideJWTManager,
	provideCookieManager,
	providePasswordHasher,
)

var ServiceSet = wire.NewSet(
	provideTokenService,
	provideEmailDispatcher,
	provideVerificationNotifier,
	providePasswordResetNotifier,
	provideAvatarStore,
	provideLoginThrottle,
	service.NewAuthService,
	service.NewUserService,
	service.NewAdminService,
	wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
	wire.Bind(new(service.UserServiceInterface), new(*service.UserService)),
	wire.Bind(new(service.AdminServiceInterface), new(*service.AdminService)),
)

var HTTPSet = wire.NewSet(
	provideAuthHandler,
	provideUserHandler,
	handler.NewAdminHandler,
	provideGlobalRateLimiter,
	provideAuthRateLimiter,
	provideForgotRateLimiter,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(app.New)

// emailDispatcher is whatever delivers both kinds of account email.
type emailDispatcher interface {
	service.EmailVerificationNotifier
	service.PasswordResetNotifier
}

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	logger := observability.InitLogger(cfg, runtime.LoggerProvider)
	slog.SetDefault(logger)
	return logger
}

func provideStore(cfg *config.Config) (*database.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return database.OpenStore(ctx, cfg, true)
}

func provideRedisClient(cfg *config.Config, logger *slog.Logger) redis.UniversalClient {
	if !cfg.RedisEnabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	observability.InstrumentRedisClient(client, logger)
	return client
}

func provideReadinessProbeRunner(cfg *config.Config, store *database.Store, redisClient redis.UniversalClient) *health.ProbeRunner {
	checkers := []health.Checker{store.Checker()}
	if redisClient != nil {
		checkers = append(checkers, health.NewRedisChecker(redisClient))
	}
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout, checkers...)
}

// provideUserRepository wraps the store's users with the admin listing cache
// when enabled. Redis is used when available so every instance sees the same
// invalidations.
func provideUserRepository(cfg *config.Config, store *database.Store, redisClient redis.UniversalClient) repository.UserRepository {
	users := store.Users()
	if !cfg.AdminListCacheEnabled {
		return users
	}
	var cache service.UserListCache = service.NewMemoryUserListCache()
	if redisClient != nil {
		cache = service.NewRedisUserListCache(redisClient, cfg.AdminListCacheRedisPrefix)
	}
	return service.NewCachedUserRepository(users, cache, cfg.AdminListCacheTTL)
}

func providePendingRepository(store *database.Store) repository.PendingVerificationRepository {
	return store.Pending()
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSecret)
}

func provideCookieManager(cfg *config.Config) *security.CookieManager {
	return security.NewCookieManager(cfg.CookieDomain, cfg.CookieSecure, cfg.CookieSameSite)
}

func providePasswordHasher(cfg *config.Config) *security.PasswordHasher {
	return security.NewPasswordHasher(cfg.AuthBcryptCost)
}

func provideTokenService(cfg *config.Config, jwt *security.JWTManager) *service.TokenService {
	return service.NewTokenService(jwt, cfg.AuthSessionTTL, cfg.AuthAdminSessionTTL, cfg.AuthEmailVerifyTokenTTL, cfg.AuthPasswordResetTokenTTL)
}

func provideEmailDispatcher(cfg *config.Config, logger *slog.Logger) emailDispatcher {
	if cfg.MailDriver == "smtp" {
		return service.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
	}
	return service.NewLogEmailNotifier(logger)
}

func provideVerificationNotifier(d emailDispatcher) service.EmailVerificationNotifier { return d }

func providePasswordResetNotifier(d emailDispatcher) service.PasswordResetNotifier { return d }

func provideAvatarStore(cfg *config.Config) (service.AvatarStore, error) {
	if !cfg.AvatarStorageEnabled {
		return service.DisabledAvatarStore{}, nil
	}
	return service.NewMinIOAvatarStore(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOBucket, cfg.MinIOUseSSL, cfg.AvatarMaxBytes)
}

func provideLoginThrottle(cfg *config.Config, redisClient redis.UniversalClient) service.LoginThrottle {
	if !cfg.AuthAbuseProtectionEnabled {
		return service.NoopLoginThrottle{}
	}
	policy := service.ThrottlePolicy{
		FreeAttempts: cfg.AuthAbuseFreeAttempts,
		BaseDelay:    cfg.AuthAbuseBaseDelay,
		Multiplier:   cfg.AuthAbuseMultiplier,
		MaxDelay:     cfg.AuthAbuseMaxDelay,
		ResetWindow:  cfg.AuthAbuseResetWindow,
	}
	if cfg.AuthAbuseRedisEnabled && redisClient != nil {
		return service.NewRedisLoginThrottle(redisClient, cfg.AuthAbuseRedisPrefix, policy)
	}
	return service.NewMemoryLoginThrottle(policy)
}

func provideAuthHandler(authSvc service.AuthServiceInterface, cookieMgr *security.CookieManager, throttle service.LoginThrottle, cfg *config.Config) *handler.AuthHandler {
	return handler.NewAuthHandler(authSvc, cookieMgr, throttle, cfg.AuthForgotConcealUnknown)
}

func provideUserHandler(userSvc service.UserServiceInterface, cfg *config.Config) *handler.UserHandler {
	return handler.NewUserHandler(userSvc, cfg.AvatarMaxBytes)
}

// The api limiter fails open on a Redis outage; the auth and forgot-password
// limiters fail closed.
func provideGlobalRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.GlobalRateLimiterFunc {
	return buildRateLimiter(cfg, redisClient, "api", cfg.APIRateLimitPerMin, middleware.FailOpen)
}

func provideAuthRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.AuthRateLimiterFunc {
	return buildRateLimiter(cfg, redisClient, "auth", cfg.AuthRateLimitPerMin, middleware.FailClosed)
}

func provideForgotRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.ForgotRateLimiterFunc {
	return buildRateLimiter(cfg, redisClient, "forgot", cfg.ForgotPasswordRateLimitPerMin, middleware.FailClosed)
}

func buildRateLimiter(cfg *config.Config, redisClient redis.UniversalClient, scope string, limit int, mode middleware.FailureMode) func(http.Handler) http.Handler {
	if cfg.RateLimitRedisEnabled && redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RateLimitRedisPrefix+":"+scope)
		return middleware.NewDistributedRateLimiter(redisLimiter, limit, time.Minute, mode, scope).Middleware()
	}
	return middleware.NewRateLimiter(limit, time.Minute, scope).Middleware()
}

func provideRouterDependencies(
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	adminHandler *handler.AdminHandler,
	jwt *security.JWTManager,
	globalRateLimiter router.GlobalRateLimiterFunc,
	authRateLimiter router.AuthRateLimiterFunc,
	forgotRateLimiter router.ForgotRateLimiterFunc,
	readiness *health.ProbeRunner,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:                authHandler,
		UserHandler:                userHandler,
		AdminHandler:               adminHandler,
		JWTManager:                 jwt,
		CORSOrigins:                cfg.CORSAllowedOrigins,
		AuthRateLimitRPM:           cfg.AuthRateLimitPerMin,
		PasswordForgotRateLimitRPM: cfg.ForgotPasswordRateLimitPerMin,
		APIRateLimitRPM:            cfg.APIRateLimitPerMin,
		AvatarMaxBytes:             cfg.AvatarMaxBytes,
		GlobalRateLimiter:          globalRateLimiter,
		AuthRateLimiter:            authRateLimiter,
		ForgotRateLimiter:          forgotRateLimiter,
		Readiness:                  readiness,
		EnableOTelHTTP:             cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
		SecureTransport:            cfg.CookieSecure,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
