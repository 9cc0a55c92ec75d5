package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PendingVerification is a registration that has not been confirmed by email yet.
// At most one row exists per email.
type PendingVerification struct {
	ID           string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	Username     string    `gorm:"size:64;not null" bson:"username" json:"username"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" bson:"email" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" bson:"password_hash" json:"-"`
	DOB          string    `gorm:"column:dob;size:10" bson:"dob" json:"dob"`
	Token        string    `gorm:"uniqueIndex;type:text;not null" bson:"token" json:"-"`
	ExpiresAt    time.Time `gorm:"index;not null" bson:"expires_at" json:"expires_at"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

func (p *PendingVerification) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (p *PendingVerification) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
