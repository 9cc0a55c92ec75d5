package service

import (
	"time"

	"github.com/movian/movian-api/internal/domain"
	"github.com/movian/movian-api/internal/security"
)

// TokenService binds each token variant to its lifetime.
type TokenService struct {
	jwtMgr          *security.JWTManager
	sessionTTL      time.Duration
	adminSessionTTL time.Duration
	verifyTTL       time.Duration
	resetTTL        time.Duration
}

func NewTokenService(jwtMgr *security.JWTManager, sessionTTL, adminSessionTTL, verifyTTL, resetTTL time.Duration) *TokenService {
	return &TokenService{
		jwtMgr:          jwtMgr,
		sessionTTL:      sessionTTL,
		adminSessionTTL: adminSessionTTL,
		verifyTTL:       verifyTTL,
		resetTTL:        resetTTL,
	}
}

func (s *TokenService) SessionTTL() time.Duration           { return s.sessionTTL }
func (s *TokenService) AdminSessionTTL() time.Duration      { return s.adminSessionTTL }
func (s *TokenService) EmailVerificationTTL() time.Duration { return s.verifyTTL }
func (s *TokenService) PasswordResetTTL() time.Duration     { return s.resetTTL }

func (s *TokenService) IssueSession(user *domain.User) (string, error) {
	return s.jwtMgr.Issue(security.Claims{Kind: security.KindSession, UserID: user.ID, Role: user.Role}, s.sessionTTL)
}

func (s *TokenService) IssueAdminSession(user *domain.User) (string, error) {
	return s.jwtMgr.Issue(security.Claims{Kind: security.KindAdminSession, UserID: user.ID, Role: domain.RoleAdmin}, s.adminSessionTTL)
}

func (s *TokenService) IssueEmailVerification(p security.PendingClaims) (string, error) {
	return s.jwtMgr.Issue(security.Claims{Kind: security.KindEmailVerification, Pending: &p}, s.verifyTTL)
}

func (s *TokenService) IssuePasswordReset(userID string) (string, error) {
	return s.jwtMgr.Issue(security.Claims{Kind: security.KindPasswordReset, UserID: userID}, s.resetTTL)
}

func (s *TokenService) ParseEmailVerification(raw string) (*security.Claims, error) {
	claims, err := s.jwtMgr.ValidateKind(raw, security.KindEmailVerification)
	if err != nil {
		return nil, err
	}
	if claims.Pending == nil || claims.Pending.Email == "" {
		return nil, security.ErrTokenInvalid
	}
	return claims, nil
}

func (s *TokenService) ParsePasswordReset(raw string) (*security.Claims, error) {
	claims, err := s.jwtMgr.ValidateKind(raw, security.KindPasswordReset)
	if err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, security.ErrTokenInvalid
	}
	return claims, nil
}
