package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/movian/movian-api/internal/http/response"
	"github.com/movian/movian-api/internal/security"
	"github.com/movian/movian-api/internal/service"
)

const msgForgotSent = "Password reset link sent to your email."

type AuthHandler struct {
	authSvc        service.AuthServiceInterface
	cookieMgr      *security.CookieManager
	loginGate      throttleGate
	forgotGate     throttleGate
	concealUnknown bool
}

func NewAuthHandler(authSvc service.AuthServiceInterface, cookieMgr *security.CookieManager, throttle service.LoginThrottle, concealUnknown bool) *AuthHandler {
	if throttle == nil {
		throttle = service.NoopLoginThrottle{}
	}
	return &AuthHandler{
		authSvc:        authSvc,
		cookieMgr:      cookieMgr,
		loginGate:      throttleGate{throttle: throttle, scope: service.ThrottleScopeLogin},
		forgotGate:     throttleGate{throttle: throttle, scope: service.ThrottleScopeForgot},
		concealUnknown: concealUnknown,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	tr := trackFlow(r, "register")
	defer tr.done()

	var in service.RegisterInput
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := h.authSvc.Register(r.Context(), in)
	if err != nil {
		audit(r, "auth.register", "", "", "failure", auditReason(err))
		writeServiceError(w, r, err, overrides{
			service.ErrEmailDelivery: {message: "Verification email could not be sent. Try again later."},
		})
		return
	}
	tr.succeed()
	audit(r, "auth.register", "", res.Email, "success", "")
	response.Message(w, r, http.StatusOK, "Verification email sent. Check your inbox.")
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	tr := trackFlow(r, "verify_email")
	defer tr.done()

	res, err := h.authSvc.VerifyEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		audit(r, "auth.verify_email", "", "", "failure", auditReason(err))
		writeServiceError(w, r, err, overrides{
			service.ErrInvalidToken:  {message: "Invalid or expired verification link"},
			service.ErrUsernameTaken: {message: "Username already taken. Please register with another username."},
		})
		return
	}
	tr.succeed()
	if res.AlreadyVerified {
		audit(r, "auth.verify_email", res.User.ID, res.User.ID, "success", "already_verified")
		response.Message(w, r, http.StatusOK, "Email already verified")
		return
	}
	h.cookieMgr.SetSessionCookie(w, res.SessionToken, h.authSvc.SessionTTL())
	audit(r, "auth.verify_email", res.User.ID, res.User.ID, "success", "")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"message": "Email verified successfully",
		"user":    toPublicUser(res.User),
	})
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	tr := trackFlow(r, "login")
	defer tr.done()

	var in credentialsRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	identity := strings.ToLower(strings.TrimSpace(in.Email))
	if h.loginGate.blocked(w, r, identity) {
		audit(r, "auth.login", "", "", "rejected", "throttled")
		return
	}
	res, err := h.authSvc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.loginGate.failed(r, identity)
		}
		audit(r, "auth.login", "", "", "failure", auditReason(err))
		writeServiceError(w, r, err, nil)
		return
	}
	h.loginGate.reset(r, identity)
	h.cookieMgr.SetSessionCookie(w, res.SessionToken, h.authSvc.SessionTTL())
	tr.succeed()
	audit(r, "auth.login", res.User.ID, res.User.ID, "success", "")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    toPublicUser(res.User),
	})
}

// Logout clears both lanes. It needs no session: a stale cookie must still be removable.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	tr := trackFlow(r, "logout")
	defer tr.done()

	h.cookieMgr.ClearAll(w)
	tr.succeed()
	audit(r, "auth.logout", "", "", "success", "")
	response.Message(w, r, http.StatusOK, "Logged out successfully")
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
	DOB   string `json:"dob"`
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	tr := trackFlow(r, "forgot_password")
	defer tr.done()

	var in forgotPasswordRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	identity := strings.ToLower(strings.TrimSpace(in.Email))
	if h.forgotGate.blocked(w, r, identity) {
		audit(r, "auth.forgot_password", "", "", "rejected", "throttled")
		return
	}
	err := h.authSvc.ForgotPassword(r.Context(), in.Email, in.DOB)
	if errors.Is(err, service.ErrAccountNotFound) {
		h.forgotGate.failed(r, identity)
		audit(r, "auth.forgot_password", "", "", "failure", "not_found")
		if h.concealUnknown {
			tr.succeed()
			response.Message(w, r, http.StatusOK, msgForgotSent)
			return
		}
	}
	if err != nil {
		if !errors.Is(err, service.ErrAccountNotFound) {
			audit(r, "auth.forgot_password", "", "", "failure", auditReason(err))
		}
		writeServiceError(w, r, err, overrides{
			service.ErrEmailDelivery: {message: "Failed to send reset email. Try again later."},
		})
		return
	}
	tr.succeed()
	audit(r, "auth.forgot_password", "", "", "success", "")
	response.Message(w, r, http.StatusOK, msgForgotSent)
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	tr := trackFlow(r, "reset_password")
	defer tr.done()

	var in resetPasswordRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	err := h.authSvc.ResetPassword(r.Context(), chi.URLParam(r, "token"), in.Password)
	if err != nil {
		audit(r, "auth.reset_password", "", "", "failure", auditReason(err))
		writeServiceError(w, r, err, overrides{
			service.ErrInvalidToken: {message: "Invalid or expired reset link"},
			service.ErrUserNotFound: {status: http.StatusBadRequest},
		})
		return
	}
	tr.succeed()
	audit(r, "auth.reset_password", "", "", "success", "")
	response.Message(w, r, http.StatusOK, "Password reset successful. You can now log in.")
}
