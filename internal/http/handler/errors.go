package handler

import (
	"errors"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/movian/movian-api/internal/http/response"
	"github.com/movian/movian-api/internal/service"
)

const msgServerError = "Server error. Please try again later."

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

// errorMappings is ordered; the first sentinel matched by errors.Is wins.
var errorMappings = []errorMapping{
	{service.ErrInvalidCredentials, http.StatusBadRequest, "INVALID_CREDENTIALS", "Invalid credentials"},
	{service.ErrEmailNotVerified, http.StatusForbidden, "EMAIL_NOT_VERIFIED", "Email not verified. Please check your inbox."},
	{service.ErrAccountBanned, http.StatusForbidden, "FORBIDDEN", "Account is banned"},
	{service.ErrEmailTaken, http.StatusBadRequest, "CONFLICT", "Email is already registered"},
	{service.ErrUsernameTaken, http.StatusBadRequest, "CONFLICT", "Username is already taken"},
	{service.ErrInvalidToken, http.StatusBadRequest, "TOKEN_INVALID", "Invalid or expired link"},
	{service.ErrPendingNotFound, http.StatusBadRequest, "NOT_FOUND", "Verification link is invalid or has expired"},
	{service.ErrUserNotFound, http.StatusNotFound, "NOT_FOUND", "User not found"},
	{service.ErrAccountNotFound, http.StatusBadRequest, "NOT_FOUND", "No account found with provided details"},
	{service.ErrCannotBanSelf, http.StatusBadRequest, "VALIDATION_ERROR", "You cannot ban your own account"},
	{service.ErrEmailDelivery, http.StatusInternalServerError, "EMAIL_DELIVERY_FAILED", "Email could not be sent. Try again later."},
	{service.ErrStorageDisabled, http.StatusServiceUnavailable, "AVATAR_STORAGE_DISABLED", "Avatar uploads are not available"},
	{service.ErrFileTooBig, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Avatar exceeds the size limit"},
	{service.ErrInvalidFileType, http.StatusBadRequest, "INVALID_FILE_TYPE", "Only JPEG and PNG images are allowed"},
	{service.ErrBucketInitFailed, http.StatusBadGateway, "UPLOAD_FAILED", "Avatar could not be stored. Try again later."},
	{service.ErrUploadFailed, http.StatusBadGateway, "UPLOAD_FAILED", "Avatar could not be stored. Try again later."},
}

// override replaces the status and/or message of one sentinel for a single
// endpoint. A zero status keeps the default.
type override struct {
	status  int
	message string
}

type overrides map[error]override

// writeServiceError answers err with its mapped status, code and message.
// Unmapped errors are logged with the request id and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, ov overrides) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", ve.Message, ve.Fields)
		return
	}
	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		status, message := m.status, m.message
		if o, ok := ov[m.err]; ok {
			if o.status != 0 {
				status = o.status
			}
			if o.message != "" {
				message = o.message
			}
		}
		if status >= http.StatusInternalServerError {
			logUnexpected(r, err)
		}
		response.Error(w, r, status, m.code, message, nil)
		return
	}
	logUnexpected(r, err)
	response.Error(w, r, http.StatusInternalServerError, "INTERNAL", msgServerError, nil)
}

func logUnexpected(r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", chimiddleware.GetReqID(r.Context()),
		"error", err,
	)
}
