package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/movian/movian-api/internal/observability"
)

type VerificationNotification struct {
	Username        string
	Email           string
	Token           string
	ExpiresAt       time.Time
	VerificationURL string
}

type EmailVerificationNotifier interface {
	SendEmailVerification(ctx context.Context, notification VerificationNotification) error
}

type PasswordResetNotification struct {
	UserID    string
	Username  string
	Email     string
	Token     string
	ExpiresAt time.Time
	ResetURL  string
}

type PasswordResetNotifier interface {
	SendPasswordReset(ctx context.Context, notification PasswordResetNotification) error
}

// LogEmailNotifier prints account links to the application log instead of
// sending mail. Production config refuses MAIL_DRIVER=log, so links carrying
// tokens only reach local logs.
type LogEmailNotifier struct {
	logger *slog.Logger
}

func NewLogEmailNotifier(logger *slog.Logger) *LogEmailNotifier {
	return &LogEmailNotifier{logger: logger}
}

func (n *LogEmailNotifier) SendEmailVerification(ctx context.Context, msg VerificationNotification) error {
	n.deliver(ctx, "verification", msg.Email, msg.Username, msg.VerificationURL, msg.ExpiresAt)
	return nil
}

func (n *LogEmailNotifier) SendPasswordReset(ctx context.Context, msg PasswordResetNotification) error {
	n.deliver(ctx, "password_reset", msg.Email, msg.Username, msg.ResetURL, msg.ExpiresAt)
	return nil
}

func (n *LogEmailNotifier) deliver(ctx context.Context, kind, to, username, link string, expiresAt time.Time) {
	n.logger.InfoContext(ctx, "mail.log_driver",
		"kind", kind,
		"to", to,
		"username", username,
		"link", link,
		"expires_in", time.Until(expiresAt).Round(time.Second).String(),
	)
	observability.RecordMailDelivery(ctx, kind, "logged")
}
