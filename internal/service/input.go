package service

import (
	"errors"
	"strings"
	"time"

	passwordvalidator "github.com/wagslane/go-password-validator"

	"github.com/movian/movian-api/internal/security"
)

const dobLayout = "2006-01-02"

// maxUsernameLength bounds display names; any characters are allowed.
const maxUsernameLength = 64

var dobLayouts = []string{dobLayout, time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006/01/02"}

func normalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// normalizeDOB reduces any accepted date form to a UTC calendar date.
func normalizeDOB(v string) (string, error) {
	v = strings.TrimSpace(v)
	for _, layout := range dobLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC().Format(dobLayout), nil
		}
	}
	return "", errors.New("must be a date in YYYY-MM-DD format")
}

func dobRule(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	normalized, err := normalizeDOB(s)
	if err != nil {
		return err
	}
	t, _ := time.Parse(dobLayout, normalized)
	if !t.Before(time.Now().UTC()) {
		return errors.New("must be in the past")
	}
	return nil
}

func checkPasswordStrength(password string, minEntropy float64) error {
	if len(password) > security.MaxPasswordBytes {
		return &ValidationError{Message: "Password is too long", Fields: map[string]string{"password": "must be at most 72 bytes"}}
	}
	if err := passwordvalidator.Validate(password, minEntropy); err != nil {
		return &ValidationError{Message: "Password is not strong enough", Fields: map[string]string{"password": err.Error()}}
	}
	return nil
}
