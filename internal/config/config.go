package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env       string
	HTTPPort  string
	ClientURL string

	StoreDriver   string
	DatabaseURL   string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string

	JWTIssuer   string
	JWTAudience string
	JWTSecret   string

	AuthSessionTTL            time.Duration
	AuthAdminSessionTTL       time.Duration
	AuthEmailVerifyTokenTTL   time.Duration
	AuthPasswordResetTokenTTL time.Duration
	AuthBcryptCost            int
	AuthPasswordMinEntropy    float64
	AuthForgotConcealUnknown  bool

	CookieDomain       string
	CookieSecure       bool
	CookieSameSite     string
	CORSAllowedOrigins []string

	MailDriver   string
	MailFrom     string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AuthRateLimitPerMin           int
	APIRateLimitPerMin            int
	ForgotPasswordRateLimitPerMin int
	RateLimitRedisEnabled         bool
	RateLimitRedisPrefix          string

	AuthAbuseProtectionEnabled bool
	AuthAbuseRedisEnabled      bool
	AuthAbuseRedisPrefix       string
	AuthAbuseFreeAttempts      int
	AuthAbuseBaseDelay         time.Duration
	AuthAbuseMultiplier        float64
	AuthAbuseMaxDelay          time.Duration
	AuthAbuseResetWindow       time.Duration

	AdminListCacheEnabled     bool
	AdminListCacheTTL         time.Duration
	AdminListCacheRedisPrefix string

	AvatarStorageEnabled bool
	MinIOEndpoint        string
	MinIOAccessKey       string
	MinIOSecretKey       string
	MinIOBucket          string
	MinIOUseSSL          bool
	AvatarMaxBytes       int64

	ReadinessProbeTimeout        time.Duration
	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELLogLevel              string
}

func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")
	prod := IsProductionEnv(env)
	sameSiteDefault := ""
	if prod {
		sameSiteDefault = "lax"
	}

	cfg := &Config{
		Env:           env,
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		ClientURL:     strings.TrimRight(getEnv("CLIENT_URL", "http://localhost:5173"), "/"),
		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SQLitePath:    getEnv("SQLITE_PATH", "movian.db"),
		MongoURI:      os.Getenv("MONGO_URI"),
		MongoDatabase: getEnv("MONGO_DATABASE", "movian"),

		JWTIssuer:   getEnv("JWT_ISSUER", "movian-api"),
		JWTAudience: getEnv("JWT_AUDIENCE", "movian-web"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		AuthBcryptCost:           getEnvInt("AUTH_BCRYPT_COST", 12),
		AuthPasswordMinEntropy:   getEnvFloat("AUTH_PASSWORD_MIN_ENTROPY", 40),
		AuthForgotConcealUnknown: getEnvBool("AUTH_FORGOT_CONCEAL_UNKNOWN", true),

		CookieDomain:       os.Getenv("COOKIE_DOMAIN"),
		CookieSecure:       getEnvBool("COOKIE_SECURE", prod),
		CookieSameSite:     strings.ToLower(getEnv("COOKIE_SAMESITE", sameSiteDefault)),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),

		MailDriver:   strings.ToLower(getEnv("MAIL_DRIVER", "log")),
		MailFrom:     getEnv("MAIL_FROM", `"Movian" <no-reply@movian.local>`),
		SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     getEnvInt("SMTP_PORT", 465),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AuthRateLimitPerMin:           getEnvInt("AUTH_RATE_LIMIT_PER_MIN", 30),
		APIRateLimitPerMin:            getEnvInt("API_RATE_LIMIT_PER_MIN", 120),
		ForgotPasswordRateLimitPerMin: getEnvInt("AUTH_FORGOT_RATE_LIMIT_PER_MIN", 5),
		RateLimitRedisEnabled:         getEnvBool("RATE_LIMIT_REDIS_ENABLED", false),
		RateLimitRedisPrefix:          getEnv("RATE_LIMIT_REDIS_PREFIX", "rl"),

		AuthAbuseProtectionEnabled: getEnvBool("AUTH_ABUSE_PROTECTION_ENABLED", true),
		AuthAbuseRedisEnabled:      getEnvBool("AUTH_ABUSE_REDIS_ENABLED", false),
		AuthAbuseRedisPrefix:       getEnv("AUTH_ABUSE_REDIS_PREFIX", "auth_abuse"),
		AuthAbuseFreeAttempts:      getEnvInt("AUTH_ABUSE_FREE_ATTEMPTS", 3),
		AuthAbuseMultiplier:        getEnvFloat("AUTH_ABUSE_MULTIPLIER", 2.0),

		AdminListCacheEnabled:     getEnvBool("ADMIN_LIST_CACHE_ENABLED", false),
		AdminListCacheRedisPrefix: getEnv("ADMIN_LIST_CACHE_REDIS_PREFIX", "admin_list_cache"),

		AvatarStorageEnabled: getEnvBool("AVATAR_STORAGE_ENABLED", false),
		MinIOEndpoint:        getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey:       os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey:       os.Getenv("MINIO_SECRET_KEY"),
		MinIOBucket:          getEnv("MINIO_BUCKET", "avatars"),
		MinIOUseSSL:          getEnvBool("MINIO_USE_SSL", false),
		AvatarMaxBytes:       int64(getEnvInt("AVATAR_MAX_BYTES", 5*1024*1024)),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "movian-api"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", env),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELTraceSamplingRatio:   getEnvFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", false),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", false),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", false),
		OTELLogLevel:             strings.ToLower(getEnv("OTEL_LOG_LEVEL", "info")),
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"AUTH_SESSION_TTL", "168h", &cfg.AuthSessionTTL},
		{"AUTH_ADMIN_SESSION_TTL", "168h", &cfg.AuthAdminSessionTTL},
		{"AUTH_EMAIL_VERIFY_TTL", "15m", &cfg.AuthEmailVerifyTokenTTL},
		{"AUTH_PASSWORD_RESET_TTL", "1h", &cfg.AuthPasswordResetTokenTTL},
		{"AUTH_ABUSE_BASE_DELAY", "2s", &cfg.AuthAbuseBaseDelay},
		{"AUTH_ABUSE_MAX_DELAY", "5m", &cfg.AuthAbuseMaxDelay},
		{"AUTH_ABUSE_RESET_WINDOW", "30m", &cfg.AuthAbuseResetWindow},
		{"ADMIN_LIST_CACHE_TTL", "30s", &cfg.AdminListCacheTTL},
		{"READINESS_PROBE_TIMEOUT", "1s", &cfg.ReadinessProbeTimeout},
		{"SHUTDOWN_TIMEOUT", "20s", &cfg.ShutdownTimeout},
		{"SHUTDOWN_HTTP_DRAIN_TIMEOUT", "10s", &cfg.ShutdownHTTPDrainTimeout},
		{"SHUTDOWN_OBSERVABILITY_TIMEOUT", "8s", &cfg.ShutdownObservabilityTimeout},
		{"OTEL_METRICS_EXPORT_INTERVAL", "10s", &cfg.OTELMetricsExportInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			errs = append(errs, "SQLITE_PATH is required when STORE_DRIVER=sqlite")
		}
	case "mongo":
		if c.MongoURI == "" {
			errs = append(errs, "MONGO_URI is required when STORE_DRIVER=mongo")
		}
		if c.MongoDatabase == "" {
			errs = append(errs, "MONGO_DATABASE is required when STORE_DRIVER=mongo")
		}
	default:
		errs = append(errs, "STORE_DRIVER must be one of postgres, sqlite, mongo")
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 chars")
	}
	if c.ClientURL == "" {
		errs = append(errs, "CLIENT_URL is required")
	}
	if c.AuthSessionTTL <= 0 || c.AuthSessionTTL > 30*24*time.Hour {
		errs = append(errs, "AUTH_SESSION_TTL must be between 1s and 30d")
	}
	if c.AuthAdminSessionTTL <= 0 || c.AuthAdminSessionTTL > 30*24*time.Hour {
		errs = append(errs, "AUTH_ADMIN_SESSION_TTL must be between 1s and 30d")
	}
	if c.AuthEmailVerifyTokenTTL <= 0 || c.AuthEmailVerifyTokenTTL > 24*time.Hour {
		errs = append(errs, "AUTH_EMAIL_VERIFY_TTL must be between 1s and 24h")
	}
	if c.AuthPasswordResetTokenTTL <= 0 || c.AuthPasswordResetTokenTTL > 24*time.Hour {
		errs = append(errs, "AUTH_PASSWORD_RESET_TTL must be between 1s and 24h")
	}
	if c.AuthBcryptCost < 10 || c.AuthBcryptCost > 31 {
		errs = append(errs, "AUTH_BCRYPT_COST must be between 10 and 31")
	}
	if c.AuthPasswordMinEntropy < 0 {
		errs = append(errs, "AUTH_PASSWORD_MIN_ENTROPY must be >= 0")
	}
	if !isValidSameSite(c.CookieSameSite) {
		errs = append(errs, "COOKIE_SAMESITE must be one of lax, strict, none or empty")
	}
	if c.CookieSameSite == "none" && !c.CookieSecure {
		errs = append(errs, "COOKIE_SAMESITE=none requires COOKIE_SECURE=true")
	}
	switch c.MailDriver {
	case "log":
	case "smtp":
		if c.SMTPHost == "" || c.SMTPPort <= 0 {
			errs = append(errs, "SMTP_HOST and SMTP_PORT are required when MAIL_DRIVER=smtp")
		}
		if c.MailFrom == "" {
			errs = append(errs, "MAIL_FROM is required when MAIL_DRIVER=smtp")
		}
	default:
		errs = append(errs, "MAIL_DRIVER must be one of log, smtp")
	}
	if c.AuthRateLimitPerMin <= 0 {
		errs = append(errs, "AUTH_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.APIRateLimitPerMin <= 0 {
		errs = append(errs, "API_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.ForgotPasswordRateLimitPerMin <= 0 {
		errs = append(errs, "AUTH_FORGOT_RATE_LIMIT_PER_MIN must be > 0")
	}
	if (c.RateLimitRedisEnabled || c.AuthAbuseRedisEnabled) && !c.RedisEnabled {
		errs = append(errs, "redis-backed rate limiting requires REDIS_ENABLED=true")
	}
	if c.RedisEnabled && c.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required when REDIS_ENABLED=true")
	}
	if c.AuthAbuseProtectionEnabled {
		if c.AuthAbuseFreeAttempts < 0 {
			errs = append(errs, "AUTH_ABUSE_FREE_ATTEMPTS must be >= 0")
		}
		if c.AuthAbuseMultiplier < 1 {
			errs = append(errs, "AUTH_ABUSE_MULTIPLIER must be >= 1")
		}
		if c.AuthAbuseBaseDelay <= 0 || c.AuthAbuseMaxDelay < c.AuthAbuseBaseDelay {
			errs = append(errs, "AUTH_ABUSE_BASE_DELAY must be > 0 and <= AUTH_ABUSE_MAX_DELAY")
		}
		if c.AuthAbuseResetWindow <= 0 {
			errs = append(errs, "AUTH_ABUSE_RESET_WINDOW must be > 0")
		}
	}
	if c.AdminListCacheEnabled && c.AdminListCacheTTL <= 0 {
		errs = append(errs, "ADMIN_LIST_CACHE_TTL must be > 0 when ADMIN_LIST_CACHE_ENABLED=true")
	}
	if c.AvatarStorageEnabled {
		if c.MinIOEndpoint == "" || c.MinIOBucket == "" {
			errs = append(errs, "MINIO_ENDPOINT and MINIO_BUCKET are required when AVATAR_STORAGE_ENABLED=true")
		}
		if c.AvatarMaxBytes <= 0 {
			errs = append(errs, "AVATAR_MAX_BYTES must be > 0")
		}
	}
	if c.ReadinessProbeTimeout <= 0 {
		errs = append(errs, "READINESS_PROBE_TIMEOUT must be > 0")
	}
	if c.ShutdownTimeout <= 0 || c.ShutdownHTTPDrainTimeout <= 0 || c.ShutdownObservabilityTimeout <= 0 {
		errs = append(errs, "shutdown timeouts must be > 0")
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.OTELMetricsEnabled && c.OTELMetricsExportInterval <= 0 {
		errs = append(errs, "OTEL_METRICS_EXPORT_INTERVAL must be > 0")
	}
	if !isValidLogLevel(c.OTELLogLevel) {
		errs = append(errs, "OTEL_LOG_LEVEL must be one of debug, info, warn, error")
	}

	if c.IsProduction() {
		if !c.CookieSecure {
			errs = append(errs, "COOKIE_SECURE must be true in production")
		}
		if c.MailDriver != "smtp" {
			errs = append(errs, "MAIL_DRIVER must be smtp in production")
		}
		if c.StoreDriver == "sqlite" {
			errs = append(errs, "STORE_DRIVER=sqlite is not allowed in production")
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return IsProductionEnv(c.Env)
}

func IsProductionEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod":
		return true
	default:
		return false
	}
}

func isValidSameSite(v string) bool {
	switch strings.ToLower(v) {
	case "", "lax", "strict", "none":
		return true
	default:
		return false
	}
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
