package handler

import (
	"time"

	"github.com/movian/movian-api/internal/domain"
)

// publicUser is what login, verification and admin login hand back.
type publicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type profileView struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	DOB        string    `json:"dob"`
	Avatar     string    `json:"avatar"`
	Role       string    `json:"role"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

type adminUserView struct {
	profileView
	IsBanned bool `json:"is_banned"`
}

func toPublicUser(u *domain.User) publicUser {
	return publicUser{ID: u.ID, Username: u.Username, Email: u.Email}
}

func toProfileView(u *domain.User) profileView {
	return profileView{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		DOB:        u.DOB,
		Avatar:     u.Avatar,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
	}
}

func toAdminUserView(u *domain.User) adminUserView {
	return adminUserView{profileView: toProfileView(u), IsBanned: u.IsBanned}
}
