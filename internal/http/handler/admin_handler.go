package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/movian/movian-api/internal/http/middleware"
	"github.com/movian/movian-api/internal/http/response"
	"github.com/movian/movian-api/internal/observability"
	"github.com/movian/movian-api/internal/repository"
	"github.com/movian/movian-api/internal/security"
	"github.com/movian/movian-api/internal/service"
)

type AdminHandler struct {
	adminSvc  service.AdminServiceInterface
	cookieMgr *security.CookieManager
	loginGate throttleGate
}

func NewAdminHandler(adminSvc service.AdminServiceInterface, cookieMgr *security.CookieManager, throttle service.LoginThrottle) *AdminHandler {
	if throttle == nil {
		throttle = service.NoopLoginThrottle{}
	}
	return &AdminHandler{
		adminSvc:  adminSvc,
		cookieMgr: cookieMgr,
		loginGate: throttleGate{throttle: throttle, scope: service.ThrottleScopeAdminLogin},
	}
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	tr := trackFlow(r, "admin_login")
	defer tr.done()

	var in credentialsRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	identity := strings.ToLower(strings.TrimSpace(in.Email))
	if h.loginGate.blocked(w, r, identity) {
		audit(r, "admin.login", "", "", "rejected", "throttled")
		return
	}
	res, err := h.adminSvc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.loginGate.failed(r, identity)
		}
		audit(r, "admin.login", "", "", "failure", auditReason(err))
		writeServiceError(w, r, err, nil)
		return
	}
	h.loginGate.reset(r, identity)
	h.cookieMgr.SetAdminCookie(w, res.SessionToken, h.adminSvc.AdminSessionTTL())
	tr.succeed()
	audit(r, "admin.login", res.Admin.ID, res.Admin.ID, "success", "")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"message": "Admin login successful",
		"admin":   toPublicUser(res.Admin),
	})
}

// Logout clears only the admin lane; a user session in the same browser survives.
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	tr := trackFlow(r, "admin_logout")
	defer tr.done()

	h.cookieMgr.ClearAdminCookie(w)
	tr.succeed()
	audit(r, "admin.logout", "", "", "success", "")
	response.Message(w, r, http.StatusOK, "Logged out")
}

func (h *AdminHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.AdminClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"admin": map[string]string{"id": claims.UserID, "role": claims.Role},
	})
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	pageReq, err := parsePageRequest(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	page, err := h.adminSvc.ListUsers(r.Context(), pageReq)
	if err != nil {
		observability.RecordAdminUserEvent(r.Context(), "list", "failure")
		writeServiceError(w, r, err, nil)
		return
	}
	observability.RecordAdminUserEvent(r.Context(), "list", "success")
	observability.RecordAdminListPageSize(r.Context(), page.PageSize)

	users := make([]adminUserView, 0, len(page.Items))
	for i := range page.Items {
		users = append(users, toAdminUserView(&page.Items[i]))
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"count":       len(users),
		"users":       users,
		"page":        page.Page,
		"page_size":   page.PageSize,
		"total":       page.Total,
		"total_pages": page.TotalPages,
	})
}

func (h *AdminHandler) ToggleBan(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.AdminClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}
	targetID := chi.URLParam(r, "userId")
	u, err := h.adminSvc.ToggleBan(r.Context(), claims.UserID, targetID)
	if err != nil {
		observability.RecordAdminUserEvent(r.Context(), "ban_toggle", "failure")
		audit(r, "admin.ban_toggle", claims.UserID, targetID, "failure", auditReason(err))
		writeServiceError(w, r, err, nil)
		return
	}
	message, action := "User unbanned", "unban"
	if u.IsBanned {
		message, action = "User banned", "ban"
	}
	observability.RecordAdminUserEvent(r.Context(), action, "success")
	audit(r, "admin.ban_toggle", claims.UserID, u.ID, "success", action)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"message": message,
		"user":    toAdminUserView(u),
	})
}

func parsePageRequest(r *http.Request) (repository.PageRequest, error) {
	page := repository.DefaultPage
	pageSize := repository.DefaultPageSize
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return repository.PageRequest{}, errors.New("page must be a positive integer")
		}
		page = v
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("page_size")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return repository.PageRequest{}, errors.New("page_size must be a positive integer")
		}
		if v > repository.MaxPageSize {
			return repository.PageRequest{}, fmt.Errorf("page_size must be <= %d", repository.MaxPageSize)
		}
		pageSize = v
	}
	return repository.PageRequest{Page: page, PageSize: pageSize}, nil
}
