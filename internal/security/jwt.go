package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrTokenInvalid covers bad signatures, expiry and malformed input alike.
var ErrTokenInvalid = errors.New("token invalid")

type TokenKind string

const (
	KindSession           TokenKind = "session"
	KindAdminSession      TokenKind = "admin_session"
	KindEmailVerification TokenKind = "email_verify"
	KindPasswordReset     TokenKind = "password_reset"
)

func (k TokenKind) Valid() bool {
	switch k {
	case KindSession, KindAdminSession, KindEmailVerification, KindPasswordReset:
		return true
	default:
		return false
	}
}

// PendingClaims carries a registration that has no user row yet.
type PendingClaims struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"password"`
	DOB          string `json:"dob"`
}

type Claims struct {
	Kind    TokenKind      `json:"kind"`
	UserID  string         `json:"id,omitempty"`
	Role    string         `json:"role,omitempty"`
	Pending *PendingClaims `json:"pending,omitempty"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	issuer   string
	audience string
	secret   []byte
	now      func() time.Time
}

func NewJWTManager(issuer, audience, secret string) *JWTManager {
	return &JWTManager{issuer: issuer, audience: audience, secret: []byte(secret), now: time.Now}
}

// WithClock returns a copy of m that stamps and checks tokens against now.
func (m *JWTManager) WithClock(now func() time.Time) *JWTManager {
	cp := *m
	cp.now = now
	return &cp
}

// Issue signs claims with an absolute expiry ttl from now. Every token gets a fresh jti.
func (m *JWTManager) Issue(claims Claims, ttl time.Duration) (string, error) {
	if !claims.Kind.Valid() {
		return "", fmt.Errorf("issue token: unknown kind %q", claims.Kind)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("issue token: ttl must be positive")
	}
	now := m.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   claims.UserID,
		Audience:  []string{m.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate checks signature, expiry and shape. It never judges the kind or role;
// callers do that with the returned claims.
func (m *JWTManager) Validate(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrTokenInvalid
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if !claims.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrTokenInvalid, claims.Kind)
	}
	return claims, nil
}

// ValidateKind is Validate plus a discriminator check, for flows that accept exactly one variant.
func (m *JWTManager) ValidateKind(raw string, kind TokenKind) (*Claims, error) {
	claims, err := m.Validate(raw)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: expected %s token, got %s", ErrTokenInvalid, kind, claims.Kind)
	}
	return claims, nil
}
