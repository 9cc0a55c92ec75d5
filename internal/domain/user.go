package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:64;not null" bson:"username" json:"username"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" bson:"email" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" bson:"password_hash" json:"-"`
	Role         string    `gorm:"size:16;not null;default:user;index:idx_users_role" bson:"role" json:"role"`
	IsVerified   bool      `gorm:"not null;default:false" bson:"is_verified" json:"is_verified"`
	IsBanned     bool      `gorm:"not null;default:false" bson:"is_banned" json:"is_banned"`
	DOB          string    `gorm:"column:dob;size:10" bson:"dob" json:"dob"`
	Avatar       string    `gorm:"size:1024" bson:"avatar" json:"avatar"`
	CreatedAt    time.Time `gorm:"index:idx_users_created_at" bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
