package service

import (
	"context"
	"io"
	"time"

	"github.com/movian/movian-api/internal/domain"
	"github.com/movian/movian-api/internal/repository"
)

type AuthServiceInterface interface {
	Register(ctx context.Context, in RegisterInput) (*RegisterResult, error)
	VerifyEmail(ctx context.Context, token string) (*VerifyResult, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	ForgotPassword(ctx context.Context, email, dob string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	SessionTTL() time.Duration
}

type UserServiceInterface interface {
	GetProfile(ctx context.Context, id string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (*domain.User, error)
	UploadAvatar(ctx context.Context, id string, file io.Reader, size int64) (*domain.User, *StoredAvatar, error)
}

type AdminServiceInterface interface {
	Login(ctx context.Context, email, password string) (*AdminLoginResult, error)
	ListUsers(ctx context.Context, req repository.PageRequest) (repository.PageResult[domain.User], error)
	ToggleBan(ctx context.Context, actorID, userID string) (*domain.User, error)
	AdminSessionTTL() time.Duration
}
