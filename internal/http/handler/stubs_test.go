package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/movian/movian-api/internal/domain"
	"github.com/movian/movian-api/internal/http/middleware"
	"github.com/movian/movian-api/internal/repository"
	"github.com/movian/movian-api/internal/security"
	"github.com/movian/movian-api/internal/service"
)

var errNotImplemented = errors.New("not implemented")

type stubAuthSvc struct {
	registerFn func(in service.RegisterInput) (*service.RegisterResult, error)
	verifyFn   func(token string) (*service.VerifyResult, error)
	loginFn    func(email, password string) (*service.LoginResult, error)
	forgotFn   func(email, dob string) error
	resetFn    func(token, password string) error
}

func (s *stubAuthSvc) Register(_ context.Context, in service.RegisterInput) (*service.RegisterResult, error) {
	if s.registerFn != nil {
		return s.registerFn(in)
	}
	return nil, errNotImplemented
}

func (s *stubAuthSvc) VerifyEmail(_ context.Context, token string) (*service.VerifyResult, error) {
	if s.verifyFn != nil {
		return s.verifyFn(token)
	}
	return nil, errNotImplemented
}

func (s *stubAuthSvc) Login(_ context.Context, email, password string) (*service.LoginResult, error) {
	if s.loginFn != nil {
		return s.loginFn(email, password)
	}
	return nil, errNotImplemented
}

func (s *stubAuthSvc) ForgotPassword(_ context.Context, email, dob string) error {
	if s.forgotFn != nil {
		return s.forgotFn(email, dob)
	}
	return errNotImplemented
}

func (s *stubAuthSvc) ResetPassword(_ context.Context, token, password string) error {
	if s.resetFn != nil {
		return s.resetFn(token, password)
	}
	return errNotImplemented
}

func (s *stubAuthSvc) SessionTTL() time.Duration { return 7 * 24 * time.Hour }

type stubUserSvc struct {
	getFn    func(id string) (*domain.User, error)
	updateFn func(id string, in service.ProfileUpdate) (*domain.User, error)
	avatarFn func(id string, data []byte, size int64) (*domain.User, *service.StoredAvatar, error)
}

func (s *stubUserSvc) GetProfile(_ context.Context, id string) (*domain.User, error) {
	if s.getFn != nil {
		return s.getFn(id)
	}
	return nil, errNotImplemented
}

func (s *stubUserSvc) UpdateProfile(_ context.Context, id string, in service.ProfileUpdate) (*domain.User, error) {
	if s.updateFn != nil {
		return s.updateFn(id, in)
	}
	return nil, errNotImplemented
}

func (s *stubUserSvc) UploadAvatar(_ context.Context, id string, file io.Reader, size int64) (*domain.User, *service.StoredAvatar, error) {
	if s.avatarFn != nil {
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, nil, err
		}
		return s.avatarFn(id, data, size)
	}
	return nil, nil, errNotImplemented
}

type stubAdminSvc struct {
	loginFn  func(email, password string) (*service.AdminLoginResult, error)
	listFn   func(req repository.PageRequest) (repository.PageResult[domain.User], error)
	toggleFn func(actorID, userID string) (*domain.User, error)
}

func (s *stubAdminSvc) Login(_ context.Context, email, password string) (*service.AdminLoginResult, error) {
	if s.loginFn != nil {
		return s.loginFn(email, password)
	}
	return nil, errNotImplemented
}

func (s *stubAdminSvc) ListUsers(_ context.Context, req repository.PageRequest) (repository.PageResult[domain.User], error) {
	if s.listFn != nil {
		return s.listFn(req)
	}
	return repository.PageResult[domain.User]{}, errNotImplemented
}

func (s *stubAdminSvc) ToggleBan(_ context.Context, actorID, userID string) (*domain.User, error) {
	if s.toggleFn != nil {
		return s.toggleFn(actorID, userID)
	}
	return nil, errNotImplemented
}

func (s *stubAdminSvc) AdminSessionTTL() time.Duration { return 7 * 24 * time.Hour }

func testCookies() *security.CookieManager {
	return security.NewCookieManager("", true, "lax")
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:5000"
	return req
}

// withURLParam mimics chi routing for handlers invoked directly.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func withSession(r *http.Request, userID string) *http.Request {
	claims := &security.Claims{Kind: security.KindSession, UserID: userID, Role: domain.RoleUser}
	return r.WithContext(context.WithValue(r.Context(), middleware.ClaimsContextKey, claims))
}

func withAdmin(r *http.Request, userID string) *http.Request {
	claims := &security.Claims{Kind: security.KindAdminSession, UserID: userID, Role: domain.RoleAdmin}
	return r.WithContext(context.WithValue(r.Context(), middleware.AdminClaimsContextKey, claims))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rr.Body.String())
	}
	return body
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func sampleUser() *domain.User {
	return &domain.User{
		ID:           "u-1",
		Username:     "alice",
		Email:        "a@x.com",
		PasswordHash: "$2a$12$secret",
		Role:         domain.RoleUser,
		IsVerified:   true,
		DOB:          "2000-01-01",
	}
}
