package repository

import (
	"context"
	"errors"
	"time"

	"github.com/movian/movian-api/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:generate mockgen -source=pending_verification_repository.go -destination=gomock/mock_pending_verification_repository.go -package=gomock

type PendingVerificationRepository interface {
	// Upsert stores p as the only pending registration for p.Email,
	// replacing any earlier one in a single statement.
	Upsert(ctx context.Context, p *domain.PendingVerification) error
	FindByToken(ctx context.Context, token string) (*domain.PendingVerification, error)
	FindByEmail(ctx context.Context, email string) (*domain.PendingVerification, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type GormPendingVerificationRepository struct{ db *gorm.DB }

func NewPendingVerificationRepository(db *gorm.DB) PendingVerificationRepository {
	return &GormPendingVerificationRepository{db: db}
}

func (r *GormPendingVerificationRepository) Upsert(ctx context.Context, p *domain.PendingVerification) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "password_hash", "dob", "token", "expires_at", "created_at"}),
	}).Create(p).Error
	return translateWriteErr(err)
}

func (r *GormPendingVerificationRepository) FindByToken(ctx context.Context, token string) (*domain.PendingVerification, error) {
	return r.first(ctx, "token = ?", token)
}

func (r *GormPendingVerificationRepository) FindByEmail(ctx context.Context, email string) (*domain.PendingVerification, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *GormPendingVerificationRepository) first(ctx context.Context, query string, arg any) (*domain.PendingVerification, error) {
	var p domain.PendingVerification
	err := r.db.WithContext(ctx).Where(query, arg).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPendingNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *GormPendingVerificationRepository) DeleteByToken(ctx context.Context, token string) error {
	res := r.db.WithContext(ctx).Where("token = ?", token).Delete(&domain.PendingVerification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPendingNotFound
	}
	return nil
}

func (r *GormPendingVerificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.PendingVerification{})
	return res.RowsAffected, res.Error
}
