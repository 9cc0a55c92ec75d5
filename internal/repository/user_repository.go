package repository

import (
	"context"
	"errors"
	"time"

	"github.com/movian/movian-api/internal/domain"

	"gorm.io/gorm"
)

// Column names accepted by UserRepository.Update.
const (
	UserFieldUsername     = "username"
	UserFieldEmail        = "email"
	UserFieldDOB          = "dob"
	UserFieldAvatar       = "avatar"
	UserFieldPasswordHash = "password_hash"
	UserFieldIsBanned     = "is_banned"
	UserFieldRole         = "role"
	UserFieldIsVerified   = "is_verified"
)

//go:generate mockgen -source=user_repository.go -destination=gomock/mock_user_repository.go -package=gomock

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, id string, fields map[string]any) error
	ListPaged(ctx context.Context, req PageRequest) (PageResult[domain.User], error)
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *GormUserRepository) first(ctx context.Context, query string, arg any) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) Create(ctx context.Context, user *domain.User) error {
	return translateWriteErr(r.db.WithContext(ctx).Create(user).Error)
}

func (r *GormUserRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return translateWriteErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *GormUserRepository) ListPaged(ctx context.Context, req PageRequest) (PageResult[domain.User], error) {
	req = req.Normalized()
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.User{}).Count(&total).Error; err != nil {
		return PageResult[domain.User]{}, err
	}
	var users []domain.User
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(req.Offset()).
		Limit(req.PageSize).
		Find(&users).Error
	if err != nil {
		return PageResult[domain.User]{}, err
	}
	return newPageResult(users, req, total), nil
}
