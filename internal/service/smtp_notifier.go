package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/gomail.v2"

	"github.com/movian/movian-api/internal/observability"
)

const (
	verifySubject = "Verify Your Email - Movian"
	resetSubject  = "Reset Your Movian Password"
)

var (
	verifyEmailTmpl = template.Must(template.New("verify").Parse(`<h2>Welcome to Movian, {{.Username}}!</h2>
<p>Please verify your email by clicking the link below:</p>
<p><a href="{{.URL}}">Verify Email</a></p>
<p>This link expires in {{.Minutes}} minutes.</p>`))

	resetEmailTmpl = template.Must(template.New("reset").Parse(`<h2>Password Reset Request</h2>
<p>Hi {{.Username}}, click the link below to reset your password:</p>
<p><a href="{{.URL}}">Reset Password</a></p>
<p>This link expires in {{.Minutes}} minutes. If you did not request a reset you can ignore this email.</p>`))
)

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier delivers verification and reset links over SMTP.
type SMTPNotifier struct {
	sender mailSender
	from   string
}

func NewSMTPNotifier(host string, port int, username, password, from string) *SMTPNotifier {
	return &SMTPNotifier{sender: gomail.NewDialer(host, port, username, password), from: from}
}

func (n *SMTPNotifier) SendEmailVerification(ctx context.Context, notification VerificationNotification) error {
	body, err := renderEmail(verifyEmailTmpl, notification.Username, notification.VerificationURL, notification.ExpiresAt)
	if err != nil {
		return err
	}
	return n.send(ctx, "verification", notification.Email, verifySubject, body)
}

func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, notification PasswordResetNotification) error {
	body, err := renderEmail(resetEmailTmpl, notification.Username, notification.ResetURL, notification.ExpiresAt)
	if err != nil {
		return err
	}
	return n.send(ctx, "password_reset", notification.Email, resetSubject, body)
}

func (n *SMTPNotifier) send(ctx context.Context, kind, to, subject, body string) error {
	ctx, span := observability.StartSpan(ctx, "mail.send", attribute.String("mail.kind", kind))
	defer span.End()

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	done := make(chan error, 1)
	go func() { done <- n.sender.DialAndSend(m) }()
	select {
	case err := <-done:
		if err != nil {
			span.RecordError(err)
			observability.RecordMailDelivery(ctx, kind, "failed")
			return fmt.Errorf("smtp send: %w", err)
		}
		observability.RecordMailDelivery(ctx, kind, "sent")
		return nil
	case <-ctx.Done():
		observability.RecordMailDelivery(ctx, kind, "timeout")
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

func renderEmail(tmpl *template.Template, username, link string, expiresAt time.Time) (string, error) {
	minutes := int(time.Until(expiresAt).Round(time.Minute).Minutes())
	if minutes < 1 {
		minutes = 1
	}
	var buf bytes.Buffer
	err := tmpl.Execute(&buf, struct {
		Username string
		URL      string
		Minutes  int
	}{Username: username, URL: link, Minutes: minutes})
	if err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}
