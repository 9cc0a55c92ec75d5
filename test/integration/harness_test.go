package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/movian/movian-api/internal/config"
	"github.com/movian/movian-api/internal/database"
	"github.com/movian/movian-api/internal/http/handler"
	"github.com/movian/movian-api/internal/http/router"
	"github.com/movian/movian-api/internal/security"
	"github.com/movian/movian-api/internal/service"
)

const strongPassword = "Valid#Pass1234"

type envelope map[string]any

func (e envelope) success() bool { return e["success"] == true }

func (e envelope) message() string {
	s, _ := e["message"].(string)
	return s
}

func (e envelope) code() string {
	s, _ := e["code"].(string)
	return s
}

// captureNotifier keeps the last link of each kind per recipient.
type captureNotifier struct {
	mu     sync.Mutex
	verify map[string]service.VerificationNotification
	reset  map[string]service.PasswordResetNotification
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{
		verify: map[string]service.VerificationNotification{},
		reset:  map[string]service.PasswordResetNotification{},
	}
}

func (n *captureNotifier) SendEmailVerification(_ context.Context, v service.VerificationNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verify[v.Email] = v
	return nil
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, r service.PasswordResetNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset[r.Email] = r
	return nil
}

func (n *captureNotifier) verification(t *testing.T, email string) service.VerificationNotification {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.verify[email]
	if !ok {
		t.Fatalf("no verification mail for %s", email)
	}
	return v
}

func (n *captureNotifier) resetFor(email string) (service.PasswordResetNotification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	r, ok := n.reset[email]
	return r, ok
}

type serverOptions struct {
	cfgOverride func(cfg *config.Config)
	avatars     service.AvatarStore
	throttle    service.LoginThrottle
}

type testServer struct {
	URL      string
	Store    *database.Store
	Mail     *captureNotifier
	Hasher   *security.PasswordHasher
	JWT      *security.JWTManager
	Config   *config.Config
	shutdown func()
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	cfg := &config.Config{
		ClientURL:                     "http://localhost:5173",
		StoreDriver:                   database.DriverSQLite,
		SQLitePath:                    fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())),
		AuthSessionTTL:                7 * 24 * time.Hour,
		AuthAdminSessionTTL:           7 * 24 * time.Hour,
		AuthEmailVerifyTokenTTL:       15 * time.Minute,
		AuthPasswordResetTokenTTL:     time.Hour,
		AuthPasswordMinEntropy:        40,
		AuthForgotConcealUnknown:      true,
		AuthRateLimitPerMin:           1000,
		APIRateLimitPerMin:            1000,
		ForgotPasswordRateLimitPerMin: 1000,
		AvatarMaxBytes:                1 << 20,
	}
	if opts.cfgOverride != nil {
		opts.cfgOverride(cfg)
	}

	store, err := database.OpenStore(context.Background(), cfg, true)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	users := store.Users()
	pending := store.Pending()

	jwtMgr := security.NewJWTManager("movian-api", "movian-web", "abcdefghijklmnopqrstuvwxyz123456")
	hasher := security.NewPasswordHasher(bcrypt.MinCost)
	tokens := service.NewTokenService(jwtMgr, cfg.AuthSessionTTL, cfg.AuthAdminSessionTTL, cfg.AuthEmailVerifyTokenTTL, cfg.AuthPasswordResetTokenTTL)
	mail := newCaptureNotifier()
	avatars := opts.avatars
	if avatars == nil {
		avatars = service.DisabledAvatarStore{}
	}
	throttle := opts.throttle
	if throttle == nil {
		throttle = service.NoopLoginThrottle{}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	authSvc := service.NewAuthService(cfg, tokens, hasher, users, pending, mail, mail)
	userSvc := service.NewUserService(users, avatars, logger)
	adminSvc := service.NewAdminService(tokens, hasher, users)
	cookies := security.NewCookieManager("", false, "lax")

	r := router.NewRouter(router.Dependencies{
		AuthHandler:                handler.NewAuthHandler(authSvc, cookies, throttle, cfg.AuthForgotConcealUnknown),
		UserHandler:                handler.NewUserHandler(userSvc, cfg.AvatarMaxBytes),
		AdminHandler:               handler.NewAdminHandler(adminSvc, cookies, throttle),
		JWTManager:                 jwtMgr,
		CORSOrigins:                []string{"http://localhost:5173"},
		AuthRateLimitRPM:           cfg.AuthRateLimitPerMin,
		PasswordForgotRateLimitRPM: cfg.ForgotPasswordRateLimitPerMin,
		APIRateLimitRPM:            cfg.APIRateLimitPerMin,
		AvatarMaxBytes:             cfg.AvatarMaxBytes,
	})
	srv := httptest.NewServer(r)
	ts := &testServer{
		URL:    srv.URL,
		Store:  store,
		Mail:   mail,
		Hasher: hasher,
		JWT:    jwtMgr,
		Config: cfg,
		shutdown: func() {
			srv.Close()
			_ = store.Close(context.Background())
		},
	}
	t.Cleanup(ts.shutdown)
	return ts
}

func (s *testServer) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar, Timeout: 10 * time.Second}
}

// registerAndVerify walks a new account through registration and the
// emailed verification link, leaving client signed in.
func (s *testServer) registerAndVerify(t *testing.T, client *http.Client, username, email string) {
	t.Helper()
	resp, env := doJSON(t, client, http.MethodPost, s.URL+"/api/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": strongPassword,
		"dob":      "2000-01-01",
	})
	if resp.StatusCode != http.StatusOK || !env.success() {
		t.Fatalf("register %s: status=%d body=%v", email, resp.StatusCode, env)
	}
	token := s.Mail.verification(t, email).Token
	resp, env = doJSON(t, client, http.MethodGet, s.URL+"/api/auth/verify-email/"+token, nil)
	if resp.StatusCode != http.StatusOK || env.message() != "Email verified successfully" {
		t.Fatalf("verify %s: status=%d body=%v", email, resp.StatusCode, env)
	}
}

func (s *testServer) provisionAdmin(t *testing.T, email string) {
	t.Helper()
	_, err := database.ProvisionAdmin(context.Background(), s.Store.Users(), s.Hasher, database.AdminInput{
		Username: "admin_" + strings.Split(email, "@")[0],
		Email:    email,
		Password: strongPassword,
		DOB:      "1980-01-01",
	}, false)
	if err != nil {
		t.Fatalf("provision admin: %v", err)
	}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, envelope) {
	t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, payload)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return do(t, client, req)
}

func do(t *testing.T, client *http.Client, req *http.Request) (*http.Response, envelope) {
	t.Helper()
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, _ := io.ReadAll(resp.Body)
	env := envelope{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &env)
	}
	return resp, env
}

func cookieValue(client *http.Client, baseURL, name string) string {
	u, _ := url.Parse(baseURL + "/")
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
