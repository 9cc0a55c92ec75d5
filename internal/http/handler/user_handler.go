package handler

import (
	"errors"
	"net/http"

	"github.com/movian/movian-api/internal/http/middleware"
	"github.com/movian/movian-api/internal/http/response"
	"github.com/movian/movian-api/internal/observability"
	"github.com/movian/movian-api/internal/service"
)

const avatarFormField = "avatar"

type UserHandler struct {
	userSvc        service.UserServiceInterface
	maxAvatarBytes int64
}

func NewUserHandler(userSvc service.UserServiceInterface, maxAvatarBytes int64) *UserHandler {
	return &UserHandler{userSvc: userSvc, maxAvatarBytes: maxAvatarBytes}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUserID(w, r)
	if !ok {
		return
	}
	u, err := h.userSvc.GetProfile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"user": toProfileView(u)})
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUserID(w, r)
	if !ok {
		return
	}
	var in service.ProfileUpdate
	if !decodeJSON(w, r, &in) {
		return
	}
	u, err := h.userSvc.UpdateProfile(r.Context(), userID, in)
	if err != nil {
		observability.RecordUserProfileEvent(r.Context(), "update", "failure")
		audit(r, "profile.update", userID, userID, "failure", auditReason(err))
		writeServiceError(w, r, err, overrides{
			service.ErrEmailTaken: {message: "Email is already in use by another account"},
		})
		return
	}
	observability.RecordUserProfileEvent(r.Context(), "update", "success")
	audit(r, "profile.update", userID, userID, "success", "")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user":    toProfileView(u),
	})
}

func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUserID(w, r)
	if !ok {
		return
	}
	// Leave room for the multipart framing around the file itself.
	limit := h.maxAvatarBytes + 64<<10
	if r.ContentLength > limit {
		observability.RecordAvatarUpload(r.Context(), "rejected")
		writeServiceError(w, r, service.ErrFileTooBig, nil)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(h.maxAvatarBytes); err != nil {
		observability.RecordAvatarUpload(r.Context(), "rejected")
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeServiceError(w, r, service.ErrFileTooBig, nil)
			return
		}
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Expected a multipart form with an avatar file", nil)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(avatarFormField)
	if err != nil {
		observability.RecordAvatarUpload(r.Context(), "rejected")
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Avatar file is required", nil)
		return
	}
	defer file.Close()

	u, stored, err := h.userSvc.UploadAvatar(r.Context(), userID, file, header.Size)
	if err != nil {
		observability.RecordAvatarUpload(r.Context(), "failure")
		audit(r, "profile.avatar", userID, userID, "failure", auditReason(err))
		writeServiceError(w, r, err, nil)
		return
	}
	observability.RecordAvatarUpload(r.Context(), "success")
	audit(r, "profile.avatar", userID, userID, "success", "")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"message": "Avatar updated successfully",
		"user":    toProfileView(u),
		"avatar": map[string]any{
			"url":          stored.URL,
			"content_type": stored.ContentType,
			"size":         stored.Size,
		},
	})
}

func sessionUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.UserID == "" {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated", nil)
		return "", false
	}
	return claims.UserID, true
}
