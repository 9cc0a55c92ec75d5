package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/movian/movian-api/internal/config"
	"github.com/movian/movian-api/internal/domain"
	"github.com/movian/movian-api/internal/repository"
	"github.com/movian/movian-api/internal/security"
)

type AuthService struct {
	cfg                   *config.Config
	tokenSvc              *TokenService
	hasher                *security.PasswordHasher
	userRepo              repository.UserRepository
	pendingRepo           repository.PendingVerificationRepository
	verificationNotifier  EmailVerificationNotifier
	passwordResetNotifier PasswordResetNotifier
	now                   func() time.Time
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	DOB      string `json:"dob"`
}

type RegisterResult struct {
	Email     string
	ExpiresAt time.Time
}

type VerifyResult struct {
	User            *domain.User
	SessionToken    string
	AlreadyVerified bool
}

type LoginResult struct {
	User         *domain.User
	SessionToken string
}

func NewAuthService(
	cfg *config.Config,
	tokenSvc *TokenService,
	hasher *security.PasswordHasher,
	userRepo repository.UserRepository,
	pendingRepo repository.PendingVerificationRepository,
	verificationNotifier EmailVerificationNotifier,
	passwordResetNotifier PasswordResetNotifier,
) *AuthService {
	return &AuthService{
		cfg:                   cfg,
		tokenSvc:              tokenSvc,
		hasher:                hasher,
		userRepo:              userRepo,
		pendingRepo:           pendingRepo,
		verificationNotifier:  verificationNotifier,
		passwordResetNotifier: passwordResetNotifier,
		now:                   time.Now,
	}
}

// Register stages a registration and mails a verification link. A later
// registration for the same email replaces this one.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.DOB = strings.TrimSpace(in.DOB)
	if in.Username == "" || in.Email == "" || in.Password == "" || in.DOB == "" {
		return nil, newValidationError("All fields are required")
	}
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Length(1, maxUsernameLength)),
		validation.Field(&in.Email, is.Email),
		validation.Field(&in.DOB, validation.By(dobRule)),
	)
	if err != nil {
		return nil, fromValidation("Invalid registration details", err)
	}
	if err := checkPasswordStrength(in.Password, s.cfg.AuthPasswordMinEntropy); err != nil {
		return nil, err
	}
	dob, _ := normalizeDOB(in.DOB)

	if _, err := s.userRepo.FindByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.userRepo.FindByUsername(ctx, in.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	token, err := s.tokenSvc.IssueEmailVerification(security.PendingClaims{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		DOB:          dob,
	})
	if err != nil {
		return nil, err
	}

	expiresAt := s.now().UTC().Add(s.tokenSvc.EmailVerificationTTL())
	pending := &domain.PendingVerification{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		DOB:          dob,
		Token:        token,
		ExpiresAt:    expiresAt,
	}
	if err := s.pendingRepo.Upsert(ctx, pending); err != nil {
		return nil, err
	}

	link, err := s.clientLink("verify-email", token)
	if err != nil {
		return nil, err
	}
	err = s.verificationNotifier.SendEmailVerification(ctx, VerificationNotification{
		Username:        in.Username,
		Email:           in.Email,
		Token:           token,
		ExpiresAt:       expiresAt,
		VerificationURL: link,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}
	return &RegisterResult{Email: in.Email, ExpiresAt: expiresAt}, nil
}

// VerifyEmail turns the pending registration behind token into a verified user.
// The token and the pending row must both be live.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*VerifyResult, error) {
	token = strings.TrimSpace(token)
	claims, err := s.tokenSvc.ParseEmailVerification(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	pending, err := s.pendingRepo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrPendingNotFound) {
			return nil, ErrPendingNotFound
		}
		return nil, err
	}
	if pending.Expired(s.now()) || pending.Email != claims.Pending.Email {
		_ = s.pendingRepo.DeleteByToken(ctx, token)
		return nil, ErrInvalidToken
	}

	if existing, err := s.userRepo.FindByEmail(ctx, pending.Email); err == nil {
		if err := s.discardPending(ctx, token); err != nil {
			return nil, err
		}
		return &VerifyResult{User: existing, AlreadyVerified: true}, nil
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.userRepo.FindByUsername(ctx, pending.Username); err == nil {
		if err := s.discardPending(ctx, token); err != nil {
			return nil, err
		}
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	user := &domain.User{
		Username:     pending.Username,
		Email:        pending.Email,
		PasswordHash: pending.PasswordHash,
		DOB:          pending.DOB,
		Role:         domain.RoleUser,
		IsVerified:   true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		return s.resolveVerifyConflict(ctx, token, pending)
	}
	if err := s.discardPending(ctx, token); err != nil {
		return nil, err
	}

	session, err := s.tokenSvc.IssueSession(user)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{User: user, SessionToken: session}, nil
}

// resolveVerifyConflict runs when the insert lost a race: either the same
// email was verified concurrently or someone else claimed the username.
func (s *AuthService) resolveVerifyConflict(ctx context.Context, token string, pending *domain.PendingVerification) (*VerifyResult, error) {
	if err := s.discardPending(ctx, token); err != nil {
		return nil, err
	}
	existing, err := s.userRepo.FindByEmail(ctx, pending.Email)
	if err == nil {
		return &VerifyResult{User: existing, AlreadyVerified: true}, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}
	return nil, ErrUsernameTaken
}

func (s *AuthService) discardPending(ctx context.Context, token string) error {
	err := s.pendingRepo.DeleteByToken(ctx, token)
	if err != nil && !errors.Is(err, repository.ErrPendingNotFound) {
		return err
	}
	return nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, newValidationError("Email and password are required")
	}
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, s.pendingLoginError(ctx, email, password)
		}
		return nil, err
	}
	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if !user.IsVerified {
		return nil, ErrEmailNotVerified
	}
	if user.IsBanned {
		return nil, ErrAccountBanned
	}
	session, err := s.tokenSvc.IssueSession(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, SessionToken: session}, nil
}

// pendingLoginError answers a login for an email that only has a staged
// registration. The password must match the staged hash before the caller
// learns that verification is outstanding.
func (s *AuthService) pendingLoginError(ctx context.Context, email, password string) error {
	pending, err := s.pendingRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrPendingNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	if pending.Expired(s.now()) {
		return ErrInvalidCredentials
	}
	ok, err := s.hasher.Verify(pending.PasswordHash, password)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return ErrEmailNotVerified
}

// ForgotPassword mails a reset link when email and date of birth both match a
// user. A mismatch is reported as ErrAccountNotFound; callers decide whether to
// reveal it.
func (s *AuthService) ForgotPassword(ctx context.Context, email, dob string) error {
	email = normalizeEmail(email)
	dob = strings.TrimSpace(dob)
	if email == "" || dob == "" {
		return newValidationError("Email and Date of Birth are required")
	}
	normalizedDOB, err := normalizeDOB(dob)
	if err != nil {
		return &ValidationError{Message: "Invalid date of birth", Fields: map[string]string{"dob": err.Error()}}
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	if user.DOB != normalizedDOB {
		return ErrAccountNotFound
	}

	token, err := s.tokenSvc.IssuePasswordReset(user.ID)
	if err != nil {
		return err
	}
	link, err := s.clientLink("reset-password", token)
	if err != nil {
		return err
	}
	err = s.passwordResetNotifier.SendPasswordReset(ctx, PasswordResetNotification{
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Token:     token,
		ExpiresAt: s.now().UTC().Add(s.tokenSvc.PasswordResetTTL()),
		ResetURL:  link,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}
	return nil
}

// ResetPassword overwrites the password of the user named by a reset token.
// No session is issued.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return newValidationError("Password is required")
	}
	claims, err := s.tokenSvc.ParsePasswordReset(strings.TrimSpace(token))
	if err != nil {
		return ErrInvalidToken
	}
	if err := checkPasswordStrength(newPassword, s.cfg.AuthPasswordMinEntropy); err != nil {
		return err
	}
	if _, err := s.userRepo.FindByID(ctx, claims.UserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	err = s.userRepo.Update(ctx, claims.UserID, map[string]any{repository.UserFieldPasswordHash: hash})
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrUserNotFound
	}
	return err
}

func (s *AuthService) SessionTTL() time.Duration { return s.tokenSvc.SessionTTL() }

func (s *AuthService) clientLink(route, token string) (string, error) {
	base, err := url.Parse(s.cfg.ClientURL)
	if err != nil {
		return "", fmt.Errorf("invalid CLIENT_URL: %w", err)
	}
	return base.JoinPath(route, token).String(), nil
}
