package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/movian/movian-api/internal/domain"
	"github.com/movian/movian-api/internal/observability"
	"github.com/movian/movian-api/internal/repository"
	"github.com/movian/movian-api/internal/security"
)

type AdminInput struct {
	Username string
	Email    string
	Password string
	DOB      string
}

type AdminProvisionReport struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Created  bool   `json:"created"`
	Promoted bool   `json:"promoted"`
	Noop     bool   `json:"noop"`
}

// ProvisionAdmin makes sure an admin account exists for in.Email. An existing
// user is promoted and verified; otherwise a new verified admin is created.
// With dryRun set nothing is written but the report reflects what would happen.
func ProvisionAdmin(ctx context.Context, users repository.UserRepository, hasher *security.PasswordHasher, in AdminInput, dryRun bool) (*AdminProvisionReport, error) {
	start := time.Now()
	defer func() {
		observability.RecordDatabaseStartupDuration(ctx, "provision_admin", time.Since(start))
	}()

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, fmt.Errorf("admin email is required")
	}
	report := &AdminProvisionReport{Email: email}

	existing, err := users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		report.UserID = existing.ID
		if existing.IsAdmin() && existing.IsVerified && !existing.IsBanned {
			report.Noop = true
			observability.RecordDatabaseStartupEvent(ctx, "provision_admin", "success")
			return report, nil
		}
		report.Promoted = true
		if dryRun {
			return report, nil
		}
		err = users.Update(ctx, existing.ID, map[string]any{
			repository.UserFieldRole:       domain.RoleAdmin,
			repository.UserFieldIsVerified: true,
			repository.UserFieldIsBanned:   false,
		})
		if err != nil {
			observability.RecordDatabaseStartupEvent(ctx, "provision_admin", "error")
			return nil, fmt.Errorf("promote admin: %w", err)
		}
	case errors.Is(err, repository.ErrUserNotFound):
		username := strings.TrimSpace(in.Username)
		if username == "" || in.Password == "" {
			return nil, fmt.Errorf("username and password are required to create an admin")
		}
		report.Created = true
		if dryRun {
			return report, nil
		}
		hash, err := hasher.Hash(in.Password)
		if err != nil {
			return nil, err
		}
		u := &domain.User{
			Username:     username,
			Email:        email,
			PasswordHash: hash,
			DOB:          strings.TrimSpace(in.DOB),
			Role:         domain.RoleAdmin,
			IsVerified:   true,
		}
		if err := users.Create(ctx, u); err != nil {
			observability.RecordDatabaseStartupEvent(ctx, "provision_admin", "error")
			return nil, fmt.Errorf("create admin: %w", err)
		}
		report.UserID = u.ID
	default:
		observability.RecordDatabaseStartupEvent(ctx, "provision_admin", "error")
		return nil, err
	}

	observability.RecordDatabaseStartupEvent(ctx, "provision_admin", "success")
	return report, nil
}

// PurgeExpiredPending deletes pending registrations whose links have lapsed.
func PurgeExpiredPending(ctx context.Context, pending repository.PendingVerificationRepository, now time.Time) (int64, error) {
	n, err := pending.DeleteExpired(ctx, now.UTC())
	if err != nil {
		observability.RecordDatabaseStartupEvent(ctx, "purge_pending", "error")
		return 0, err
	}
	observability.RecordDatabaseStartupEvent(ctx, "purge_pending", "success")
	return n, nil
}
