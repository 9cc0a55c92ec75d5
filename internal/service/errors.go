package service

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrAccountBanned      = errors.New("account is banned")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrPendingNotFound    = errors.New("verification link is invalid or has expired")
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountNotFound    = errors.New("no account matches the provided details")
	ErrEmailDelivery      = errors.New("email delivery failed")
	ErrCannotBanSelf      = errors.New("admins cannot ban themselves")
)

// ValidationError reports malformed or missing input. Fields maps the JSON field
// name to the rule that failed and may be empty.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func newValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// fromValidation converts ozzo field errors into a ValidationError. Internal
// validator failures are returned unchanged.
func fromValidation(message string, err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		fields := make(map[string]string, len(fieldErrs))
		for name, ferr := range fieldErrs {
			if ferr != nil {
				fields[name] = ferr.Error()
			}
		}
		return &ValidationError{Message: message, Fields: fields}
	}
	return err
}
