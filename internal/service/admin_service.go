package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/movian/movian-api/internal/domain"
	"github.com/movian/movian-api/internal/repository"
	"github.com/movian/movian-api/internal/security"
)

type AdminLoginResult struct {
	Admin        *domain.User
	SessionToken string
}

type AdminService struct {
	tokenSvc *TokenService
	hasher   *security.PasswordHasher
	userRepo repository.UserRepository
}

func NewAdminService(tokenSvc *TokenService, hasher *security.PasswordHasher, userRepo repository.UserRepository) *AdminService {
	return &AdminService{tokenSvc: tokenSvc, hasher: hasher, userRepo: userRepo}
}

// Login authenticates an admin on the admin lane. Unknown emails, non-admin
// accounts and wrong passwords all yield ErrInvalidCredentials.
func (s *AdminService) Login(ctx context.Context, email, password string) (*AdminLoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, newValidationError("Email and password are required")
	}
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, ErrInvalidCredentials
	}
	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if user.IsBanned {
		return nil, ErrAccountBanned
	}
	token, err := s.tokenSvc.IssueAdminSession(user)
	if err != nil {
		return nil, err
	}
	return &AdminLoginResult{Admin: user, SessionToken: token}, nil
}

func (s *AdminService) ListUsers(ctx context.Context, req repository.PageRequest) (repository.PageResult[domain.User], error) {
	return s.userRepo.ListPaged(ctx, req)
}

// ToggleBan flips the ban flag of userID on behalf of actorID.
func (s *AdminService) ToggleBan(ctx context.Context, actorID, userID string) (*domain.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, newValidationError("User id is required")
	}
	if userID == actorID {
		return nil, ErrCannotBanSelf
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	banned := !user.IsBanned
	if err := s.userRepo.Update(ctx, userID, map[string]any{repository.UserFieldIsBanned: banned}); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	user.IsBanned = banned
	return user, nil
}

func (s *AdminService) AdminSessionTTL() time.Duration { return s.tokenSvc.AdminSessionTTL() }
