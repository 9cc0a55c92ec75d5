package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/movian/movian-api/internal/domain"
	"github.com/movian/movian-api/internal/repository"
)

// ProfileUpdate lists the only fields a user may change on their own record.
// Nil means "leave as is".
type ProfileUpdate struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	DOB      *string `json:"dob"`
	Avatar   *string `json:"avatar"`
}

func (p ProfileUpdate) Empty() bool {
	return p.Username == nil && p.Email == nil && p.DOB == nil && p.Avatar == nil
}

type UserService struct {
	userRepo repository.UserRepository
	avatars  AvatarStore
	logger   *slog.Logger
}

func NewUserService(userRepo repository.UserRepository, avatars AvatarStore, logger *slog.Logger) *UserService {
	return &UserService{userRepo: userRepo, avatars: avatars, logger: logger}
}

// GetProfile loads the caller's record. Banned users lose access to it.
func (s *UserService) GetProfile(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if u.IsBanned {
		return nil, ErrAccountBanned
	}
	return u, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (*domain.User, error) {
	current, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Empty() {
		return current, nil
	}

	var username, email, dob, avatar string
	if in.Username != nil {
		username = strings.TrimSpace(*in.Username)
	}
	if in.Email != nil {
		email = normalizeEmail(*in.Email)
	}
	if in.DOB != nil {
		dob = strings.TrimSpace(*in.DOB)
	}
	if in.Avatar != nil {
		avatar = strings.TrimSpace(*in.Avatar)
	}
	form := struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		DOB      string `json:"dob"`
		Avatar   string `json:"avatar"`
	}{username, email, dob, avatar}
	err = validation.ValidateStruct(&form,
		validation.Field(&form.Username, rulesIf(in.Username != nil, validation.Required, validation.Length(1, maxUsernameLength))...),
		validation.Field(&form.Email, rulesIf(in.Email != nil, validation.Required, is.Email)...),
		validation.Field(&form.DOB, rulesIf(in.DOB != nil, validation.Required, validation.By(dobRule))...),
		validation.Field(&form.Avatar, validation.Length(0, 1024), is.URL),
	)
	if err != nil {
		return nil, fromValidation("Invalid profile details", err)
	}

	fields := map[string]any{}
	if in.Username != nil && username != current.Username {
		if other, err := s.userRepo.FindByUsername(ctx, username); err == nil && other.ID != id {
			return nil, ErrUsernameTaken
		} else if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return nil, err
		}
		fields[repository.UserFieldUsername] = username
	}
	if in.Email != nil && email != current.Email {
		if other, err := s.userRepo.FindByEmail(ctx, email); err == nil && other.ID != id {
			return nil, ErrEmailTaken
		} else if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return nil, err
		}
		fields[repository.UserFieldEmail] = email
	}
	if in.DOB != nil {
		normalized, _ := normalizeDOB(dob)
		fields[repository.UserFieldDOB] = normalized
	}
	if in.Avatar != nil {
		fields[repository.UserFieldAvatar] = avatar
	}

	if err := s.userRepo.Update(ctx, id, fields); err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, repository.ErrDuplicate):
			if _, changed := fields[repository.UserFieldEmail]; changed {
				return nil, ErrEmailTaken
			}
			return nil, ErrUsernameTaken
		default:
			return nil, err
		}
	}
	return s.GetProfile(ctx, id)
}

// UploadAvatar stores a new image, points the profile at it and removes the
// previous image when this store owns it.
func (s *UserService) UploadAvatar(ctx context.Context, id string, file io.Reader, size int64) (*domain.User, *StoredAvatar, error) {
	current, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	stored, err := s.avatars.PutAvatar(ctx, id, file, size)
	if err != nil {
		return nil, nil, err
	}
	if err := s.userRepo.Update(ctx, id, map[string]any{repository.UserFieldAvatar: stored.URL}); err != nil {
		_ = s.avatars.RemoveAvatar(ctx, id, stored.ObjectKey)
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, err
	}
	if oldKey := s.avatars.ObjectKeyFromURL(current.Avatar); oldKey != "" {
		if err := s.avatars.RemoveAvatar(ctx, id, oldKey); err != nil {
			s.logger.WarnContext(ctx, "previous avatar cleanup failed", "user_id", id, "error", err)
		}
	}
	updated, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return updated, stored, nil
}

func rulesIf(present bool, rules ...validation.Rule) []validation.Rule {
	if !present {
		return nil
	}
	return rules
}
