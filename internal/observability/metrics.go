package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"

	"github.com/movian/movian-api/internal/config"
)

const meterName = "movian-api"

// Counter and histogram names. Every Record* helper maps to exactly one of these.
const (
	metricAuthFlow          = "auth.flow.events"
	metricAuthReqDuration   = "auth.request.duration"
	metricTokenValidation   = "auth.token.validation.events"
	metricThrottle          = "auth.throttle.events"
	metricThrottleCooldown  = "auth.throttle.cooldown"
	metricRateLimit         = "http.rate_limit.decisions"
	metricRateLimitRetry    = "http.rate_limit.retry_after"
	metricMailDelivery      = "mail.delivery.events"
	metricUserProfile       = "user.profile.events"
	metricAvatarUpload      = "user.avatar.upload.events"
	metricAdminUser         = "admin.user.events"
	metricAdminListPageSize = "admin.list.page_size"
	metricAdminListCache    = "admin.list.cache.events"
	metricHealthResult      = "health.check.results"
	metricHealthDuration    = "health.check.duration"
	metricDBStartup         = "database.startup.events"
	metricDBStartupDuration = "database.startup.duration"
	metricToolCommand       = "tool.command.runs"
	metricMiddleware        = "http.middleware.validation.events"
)

var (
	counterNames = []string{
		metricAuthFlow, metricTokenValidation, metricThrottle, metricRateLimit,
		metricMailDelivery, metricUserProfile, metricAvatarUpload, metricAdminUser, metricAdminListCache,
		metricHealthResult, metricDBStartup, metricToolCommand, metricMiddleware,
	}
	secondsHistograms = []string{
		metricAuthReqDuration, metricThrottleCooldown, metricRateLimitRetry,
		metricHealthDuration, metricDBStartupDuration,
	}
	plainHistograms = []string{metricAdminListPageSize}
)

// AppMetrics holds the instruments created from one MeterProvider.
type AppMetrics struct {
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}
	res, err := serviceResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))),
		sdkmetric.WithExemplarFilter(exemplar.TraceBasedFilter),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: metricAuthReqDuration},
			sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
				// bcrypt at cost 12 dominates login latency.
				Boundaries: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 0.75, 1, 2, 5},
			}},
		)),
	)
	otel.SetMeterProvider(mp)

	m, err := NewAppMetrics(mp)
	if err != nil {
		return nil, err
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

// NewAppMetrics registers every application instrument on provider.
func NewAppMetrics(provider metric.MeterProvider) (*AppMetrics, error) {
	meter := provider.Meter(meterName)
	m := &AppMetrics{
		counters:   make(map[string]metric.Int64Counter, len(counterNames)),
		histograms: make(map[string]metric.Float64Histogram, len(secondsHistograms)+len(plainHistograms)),
	}
	for _, name := range counterNames {
		c, err := meter.Int64Counter(name)
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", name, err)
		}
		m.counters[name] = c
	}
	for _, name := range secondsHistograms {
		h, err := meter.Float64Histogram(name, metric.WithUnit("s"))
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", name, err)
		}
		m.histograms[name] = h
	}
	for _, name := range plainHistograms {
		h, err := meter.Float64Histogram(name)
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", name, err)
		}
		m.histograms[name] = h
	}
	return m, nil
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func add(ctx context.Context, name string, kv ...string) {
	m := current()
	if m == nil {
		return
	}
	if c, ok := m.counters[name]; ok {
		c.Add(ctx, 1, metric.WithAttributes(pairs(kv)...))
	}
}

func record(ctx context.Context, name string, v float64, kv ...string) {
	m := current()
	if m == nil {
		return
	}
	if h, ok := m.histograms[name]; ok {
		h.Record(ctx, v, metric.WithAttributes(pairs(kv)...))
	}
}

func pairs(kv []string) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, attribute.String(kv[i], kv[i+1]))
	}
	return out
}

// RecordAuthFlow counts one step of an account flow: register, verify_email,
// login, logout, forgot_password, reset_password, admin_login, admin_logout.
func RecordAuthFlow(ctx context.Context, flow, outcome string) {
	add(ctx, metricAuthFlow, "flow", flow, "outcome", outcome)
}

func RecordAuthRequestDuration(ctx context.Context, endpoint, status string, d time.Duration) {
	record(ctx, metricAuthReqDuration, d.Seconds(), "endpoint", endpoint, "status", status)
}

func RecordTokenValidation(ctx context.Context, lane, outcome string) {
	add(ctx, metricTokenValidation, "lane", lane, "outcome", outcome)
}

func RecordThrottleEvent(ctx context.Context, scope, action, outcome string) {
	add(ctx, metricThrottle, "scope", scope, "action", action, "outcome", outcome)
}

func RecordThrottleCooldown(ctx context.Context, scope string, d time.Duration) {
	record(ctx, metricThrottleCooldown, d.Seconds(), "scope", scope)
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome, mode string) {
	add(ctx, metricRateLimit, "scope", scope, "outcome", outcome, "mode", mode)
}

func RecordRateLimitRetryAfter(ctx context.Context, scope string, d time.Duration) {
	record(ctx, metricRateLimitRetry, d.Seconds(), "scope", scope)
}

func RecordMailDelivery(ctx context.Context, kind, outcome string) {
	add(ctx, metricMailDelivery, "kind", kind, "outcome", outcome)
}

func RecordUserProfileEvent(ctx context.Context, action, outcome string) {
	add(ctx, metricUserProfile, "action", action, "outcome", outcome)
}

func RecordAvatarUpload(ctx context.Context, outcome string) {
	add(ctx, metricAvatarUpload, "outcome", outcome)
}

func RecordAdminUserEvent(ctx context.Context, action, outcome string) {
	add(ctx, metricAdminUser, "action", action, "outcome", outcome)
}

func RecordAdminListPageSize(ctx context.Context, pageSize int) {
	record(ctx, metricAdminListPageSize, float64(pageSize))
}

func RecordAdminListCacheEvent(ctx context.Context, outcome string) {
	add(ctx, metricAdminListCache, "outcome", outcome)
}

func RecordHealthCheckResult(ctx context.Context, check, outcome string) {
	add(ctx, metricHealthResult, "check", check, "outcome", outcome)
}

func RecordHealthCheckDuration(ctx context.Context, check string, d time.Duration) {
	record(ctx, metricHealthDuration, d.Seconds(), "check", check)
}

func RecordDatabaseStartupEvent(ctx context.Context, phase, outcome string) {
	add(ctx, metricDBStartup, "phase", phase, "outcome", outcome)
}

func RecordDatabaseStartupDuration(ctx context.Context, phase string, d time.Duration) {
	record(ctx, metricDBStartupDuration, d.Seconds(), "phase", phase)
}

func RecordToolCommandRun(ctx context.Context, tool, command, outcome string) {
	add(ctx, metricToolCommand, "tool", tool, "command", command, "outcome", outcome)
}

func RecordMiddlewareValidationEvent(ctx context.Context, middleware, outcome string) {
	add(ctx, metricMiddleware, "middleware", middleware, "outcome", outcome)
}
