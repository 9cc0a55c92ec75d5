package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/movian/movian-api/internal/security"
	"github.com/movian/movian-api/internal/service"
)

func TestRegisterResponses(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{name: "staged", body: `{"username":"alice","email":"a@x.com","password":"pw","dob":"2000-01-01"}`, wantCode: http.StatusOK, wantMsg: "Verification email sent. Check your inbox."},
		{name: "missing fields", body: `{"email":"a@x.com"}`, err: &service.ValidationError{Message: "All fields are required"}, wantCode: http.StatusBadRequest, wantMsg: "All fields are required"},
		{name: "email taken", body: `{}`, err: service.ErrEmailTaken, wantCode: http.StatusBadRequest, wantMsg: "Email is already registered"},
		{name: "mail failure", body: `{}`, err: fmt.Errorf("%w: smtp down", service.ErrEmailDelivery), wantCode: http.StatusInternalServerError, wantMsg: "Verification email could not be sent. Try again later."},
		{name: "store failure", body: `{}`, err: fmt.Errorf("db gone"), wantCode: http.StatusInternalServerError, wantMsg: msgServerError},
		{name: "malformed json", body: `{"email":`, wantCode: http.StatusBadRequest, wantMsg: "Invalid request body"},
		{name: "empty body", body: ``, wantCode: http.StatusBadRequest, wantMsg: "Request body is required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubAuthSvc{registerFn: func(in service.RegisterInput) (*service.RegisterResult, error) {
				if tc.err != nil {
					return nil, tc.err
				}
				return &service.RegisterResult{Email: in.Email, ExpiresAt: time.Now().Add(15 * time.Minute)}, nil
			}}
			h := NewAuthHandler(svc, testCookies(), nil, true)
			rr := httptest.NewRecorder()
			h.Register(rr, jsonRequest(http.MethodPost, "/api/auth/register", tc.body))

			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d (%s)", tc.wantCode, rr.Code, rr.Body.String())
			}
			body := decodeBody(t, rr)
			if body["message"] != tc.wantMsg {
				t.Fatalf("expected message %q, got %v", tc.wantMsg, body["message"])
			}
			if body["success"] != (tc.wantCode == http.StatusOK) {
				t.Fatalf("unexpected success flag: %v", body["success"])
			}
			if strings.Contains(rr.Body.String(), "smtp down") || strings.Contains(rr.Body.String(), "db gone") {
				t.Fatal("internal error detail leaked to client")
			}
		})
	}
}

func TestVerifyEmailSetsSessionCookie(t *testing.T) {
	var gotToken string
	svc := &stubAuthSvc{verifyFn: func(token string) (*service.VerifyResult, error) {
		gotToken = token
		return &service.VerifyResult{User: sampleUser(), SessionToken: "session-jwt"}, nil
	}}
	h := NewAuthHandler(svc, testCookies(), nil, true)
	rr := httptest.NewRecorder()
	h.VerifyEmail(rr, withURLParam(httptest.NewRequest(http.MethodGet, "/api/auth/verify-email/tok", nil), "token", "tok"))

	if rr.Code != http.StatusOK || gotToken != "tok" {
		t.Fatalf("expected 200 with token passed through, got %d token=%q", rr.Code, gotToken)
	}
	c := findCookie(rr, security.SessionCookieName)
	if c == nil || c.Value != "session-jwt" || !c.HttpOnly || !c.Secure || c.MaxAge != 7*24*3600 {
		t.Fatalf("unexpected session cookie: %+v", c)
	}
	if findCookie(rr, security.AdminCookieName) != nil {
		t.Fatal("verification must not touch the admin lane")
	}
	body := decodeBody(t, rr)
	user, _ := body["user"].(map[string]any)
	if user["id"] != "u-1" || user["username"] != "alice" || user["email"] != "a@x.com" {
		t.Fatalf("unexpected user payload: %v", body["user"])
	}
	if _, leaked := user["password"]; leaked || strings.Contains(rr.Body.String(), "$2a$") {
		t.Fatal("password hash leaked")
	}
}

func TestVerifyEmailOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		res      *service.VerifyResult
		err      error
		wantCode int
		wantMsg  string
	}{
		{name: "already verified", res: &service.VerifyResult{User: sampleUser(), AlreadyVerified: true}, wantCode: http.StatusOK, wantMsg: "Email already verified"},
		{name: "bad token", err: service.ErrInvalidToken, wantCode: http.StatusBadRequest, wantMsg: "Invalid or expired verification link"},
		{name: "pending gone", err: service.ErrPendingNotFound, wantCode: http.StatusBadRequest, wantMsg: "Verification link is invalid or has expired"},
		{name: "username claimed", err: service.ErrUsernameTaken, wantCode: http.StatusBadRequest, wantMsg: "Username already taken. Please register with another username."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubAuthSvc{verifyFn: func(string) (*service.VerifyResult, error) { return tc.res, tc.err }}
			rr := httptest.NewRecorder()
			NewAuthHandler(svc, testCookies(), nil, true).VerifyEmail(rr, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "token", "t"))
			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rr.Code)
			}
			if msg := decodeBody(t, rr)["message"]; msg != tc.wantMsg {
				t.Fatalf("expected %q, got %v", tc.wantMsg, msg)
			}
			if findCookie(rr, security.SessionCookieName) != nil {
				t.Fatal("no session cookie expected")
			}
		})
	}
}

func TestLoginResponses(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{name: "success", wantCode: http.StatusOK, wantMsg: "Login successful"},
		{name: "wrong password", err: service.ErrInvalidCredentials, wantCode: http.StatusBadRequest, wantMsg: "Invalid credentials"},
		{name: "unverified", err: service.ErrEmailNotVerified, wantCode: http.StatusForbidden, wantMsg: "Email not verified. Please check your inbox."},
		{name: "banned", err: service.ErrAccountBanned, wantCode: http.StatusForbidden, wantMsg: "Account is banned"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubAuthSvc{loginFn: func(email, password string) (*service.LoginResult, error) {
				if tc.err != nil {
					return nil, tc.err
				}
				return &service.LoginResult{User: sampleUser(), SessionToken: "session-jwt"}, nil
			}}
			rr := httptest.NewRecorder()
			NewAuthHandler(svc, testCookies(), nil, true).Login(rr, jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"pw"}`))
			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rr.Code)
			}
			if msg := decodeBody(t, rr)["message"]; msg != tc.wantMsg {
				t.Fatalf("expected %q, got %v", tc.wantMsg, msg)
			}
			if got := findCookie(rr, security.SessionCookieName) != nil; got != (tc.err == nil) {
				t.Fatalf("session cookie presence mismatch: %v", got)
			}
		})
	}
}

func TestLoginThrottleBlocksRepeatedFailures(t *testing.T) {
	throttle := service.NewMemoryLoginThrottle(service.ThrottlePolicy{
		FreeAttempts: 2,
		BaseDelay:    30 * time.Second,
		Multiplier:   2,
		MaxDelay:     time.Minute,
		ResetWindow:  time.Hour,
	})
	calls := 0
	svc := &stubAuthSvc{loginFn: func(string, string) (*service.LoginResult, error) {
		calls++
		return nil, service.ErrInvalidCredentials
	}}
	h := NewAuthHandler(svc, testCookies(), throttle, true)

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.Login(rr, jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"A@x.com","password":"bad"}`))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("attempt %d: expected 400, got %d", i+1, rr.Code)
		}
	}
	rr := httptest.NewRecorder()
	h.Login(rr, jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"bad"}`))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once cooling down, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	if calls != 3 {
		t.Fatalf("blocked attempt must not reach the service, got %d calls", calls)
	}
}

func TestLogoutClearsBothLanes(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	NewAuthHandler(&stubAuthSvc{}, testCookies(), nil, true).Logout(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	for _, name := range []string{security.SessionCookieName, security.AdminCookieName} {
		c := findCookie(rr, name)
		if c == nil || c.Value != "" || c.MaxAge >= 0 {
			t.Fatalf("expected %s to be cleared, got %+v", name, c)
		}
	}
	if msg := decodeBody(t, rr)["message"]; msg != "Logged out successfully" {
		t.Fatalf("unexpected message %v", msg)
	}
}

func TestForgotPasswordConcealment(t *testing.T) {
	tests := []struct {
		name     string
		conceal  bool
		err      error
		wantCode int
		wantMsg  string
	}{
		{name: "sent", conceal: true, wantCode: http.StatusOK, wantMsg: msgForgotSent},
		{name: "unknown concealed", conceal: true, err: service.ErrAccountNotFound, wantCode: http.StatusOK, wantMsg: msgForgotSent},
		{name: "unknown revealed", conceal: false, err: service.ErrAccountNotFound, wantCode: http.StatusBadRequest, wantMsg: "No account found with provided details"},
		{name: "missing dob", conceal: true, err: &service.ValidationError{Message: "Email and Date of Birth are required"}, wantCode: http.StatusBadRequest, wantMsg: "Email and Date of Birth are required"},
		{name: "mail down", conceal: true, err: fmt.Errorf("%w: dial", service.ErrEmailDelivery), wantCode: http.StatusInternalServerError, wantMsg: "Failed to send reset email. Try again later."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubAuthSvc{forgotFn: func(email, dob string) error { return tc.err }}
			rr := httptest.NewRecorder()
			NewAuthHandler(svc, testCookies(), nil, tc.conceal).ForgotPassword(rr, jsonRequest(http.MethodPost, "/api/auth/forgot-password", `{"email":"a@x.com","dob":"2000-01-01"}`))
			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rr.Code)
			}
			if msg := decodeBody(t, rr)["message"]; msg != tc.wantMsg {
				t.Fatalf("expected %q, got %v", tc.wantMsg, msg)
			}
		})
	}
}

func TestResetPasswordResponses(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{name: "ok", wantCode: http.StatusOK, wantMsg: "Password reset successful. You can now log in."},
		{name: "bad token", err: service.ErrInvalidToken, wantCode: http.StatusBadRequest, wantMsg: "Invalid or expired reset link"},
		{name: "user gone", err: service.ErrUserNotFound, wantCode: http.StatusBadRequest, wantMsg: "User not found"},
		{name: "missing password", err: &service.ValidationError{Message: "Password is required"}, wantCode: http.StatusBadRequest, wantMsg: "Password is required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotToken, gotPassword string
			svc := &stubAuthSvc{resetFn: func(token, password string) error {
				gotToken, gotPassword = token, password
				return tc.err
			}}
			req := withURLParam(jsonRequest(http.MethodPost, "/api/auth/reset-password/rt", `{"password":"N3w-Passw0rd!"}`), "token", "rt")
			rr := httptest.NewRecorder()
			NewAuthHandler(svc, testCookies(), nil, true).ResetPassword(rr, req)
			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rr.Code)
			}
			if msg := decodeBody(t, rr)["message"]; msg != tc.wantMsg {
				t.Fatalf("expected %q, got %v", tc.wantMsg, msg)
			}
			if gotToken != "rt" || gotPassword != "N3w-Passw0rd!" {
				t.Fatalf("unexpected args token=%q password=%q", gotToken, gotPassword)
			}
			if findCookie(rr, security.SessionCookieName) != nil {
				t.Fatal("reset must not issue a session")
			}
		})
	}
}
