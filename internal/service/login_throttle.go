package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"sync"
	"time"
)

type ThrottleScope string

const (
	ThrottleScopeLogin      ThrottleScope = "login"
	ThrottleScopeAdminLogin ThrottleScope = "admin_login"
	ThrottleScopeForgot     ThrottleScope = "forgot"
)

// ThrottlePolicy describes the backoff applied after repeated failures.
// The first FreeAttempts failures inside ResetWindow cost nothing; each later
// one waits BaseDelay*Multiplier^n, capped at MaxDelay.
type ThrottlePolicy struct {
	FreeAttempts int
	BaseDelay    time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	ResetWindow  time.Duration
}

func (p ThrottlePolicy) normalized() ThrottlePolicy {
	if p.FreeAttempts < 0 {
		p.FreeAttempts = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 2 * time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = 5 * time.Minute
	}
	if p.ResetWindow <= 0 {
		p.ResetWindow = 30 * time.Minute
	}
	return p
}

func (p ThrottlePolicy) delayFor(failures int) time.Duration {
	if failures <= p.FreeAttempts {
		return 0
	}
	d := time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(failures-p.FreeAttempts-1)))
	if d > p.MaxDelay || d < 0 {
		return p.MaxDelay
	}
	return d
}

// LoginThrottle tracks failures per account identity and per client IP.
// Check and RegisterFailure return the remaining wait; zero means go ahead.
type LoginThrottle interface {
	Check(ctx context.Context, scope ThrottleScope, identity, ip string) (time.Duration, error)
	RegisterFailure(ctx context.Context, scope ThrottleScope, identity, ip string) (time.Duration, error)
	Reset(ctx context.Context, scope ThrottleScope, identity, ip string) error
}

type NoopLoginThrottle struct{}

func (NoopLoginThrottle) Check(context.Context, ThrottleScope, string, string) (time.Duration, error) {
	return 0, nil
}

func (NoopLoginThrottle) RegisterFailure(context.Context, ThrottleScope, string, string) (time.Duration, error) {
	return 0, nil
}

func (NoopLoginThrottle) Reset(context.Context, ThrottleScope, string, string) error { return nil }

type throttleRecord struct {
	failures     int
	lastFailure  time.Time
	blockedUntil time.Time
}

// MemoryLoginThrottle is the single-instance fallback used when Redis is off.
type MemoryLoginThrottle struct {
	mu      sync.Mutex
	policy  ThrottlePolicy
	records map[string]throttleRecord
	now     func() time.Time
}

func NewMemoryLoginThrottle(policy ThrottlePolicy) *MemoryLoginThrottle {
	return &MemoryLoginThrottle{
		policy:  policy.normalized(),
		records: make(map[string]throttleRecord),
		now:     time.Now,
	}
}

func (t *MemoryLoginThrottle) Check(_ context.Context, scope ThrottleScope, identity, ip string) (time.Duration, error) {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	var wait time.Duration
	for _, key := range throttleKeys(scope, identity, ip) {
		wait = max(wait, t.remainingLocked(now, key))
	}
	return wait, nil
}

func (t *MemoryLoginThrottle) RegisterFailure(_ context.Context, scope ThrottleScope, identity, ip string) (time.Duration, error) {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	var wait time.Duration
	for _, key := range throttleKeys(scope, identity, ip) {
		rec := t.records[key]
		if rec.lastFailure.IsZero() || now.Sub(rec.lastFailure) > t.policy.ResetWindow {
			rec = throttleRecord{}
		}
		rec.failures++
		rec.lastFailure = now
		delay := t.policy.delayFor(rec.failures)
		rec.blockedUntil = now.Add(delay)
		t.records[key] = rec
		wait = max(wait, delay)
	}
	return wait, nil
}

func (t *MemoryLoginThrottle) Reset(_ context.Context, scope ThrottleScope, identity, ip string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, key := range throttleKeys(scope, identity, ip) {
		delete(t.records, key)
	}
	return nil
}

func (t *MemoryLoginThrottle) remainingLocked(now time.Time, key string) time.Duration {
	rec, ok := t.records[key]
	if !ok {
		return 0
	}
	if now.Sub(rec.lastFailure) > t.policy.ResetWindow {
		delete(t.records, key)
		return 0
	}
	if !now.Before(rec.blockedUntil) {
		return 0
	}
	return rec.blockedUntil.Sub(now)
}

// throttleKeys returns the identity key and the IP key, in that order.
// Values are hashed so raw emails never end up in Redis.
func throttleKeys(scope ThrottleScope, identity, ip string) [2]string {
	identity = strings.ToLower(strings.TrimSpace(identity))
	if identity == "" {
		identity = "anonymous"
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}
	return [2]string{
		string(scope) + ":id:" + digest(identity),
		string(scope) + ":ip:" + digest(ip),
	}
}

func digest(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:16])
}
