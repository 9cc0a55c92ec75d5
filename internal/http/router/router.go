package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/movian/movian-api/internal/health"
	"github.com/movian/movian-api/internal/http/handler"
	"github.com/movian/movian-api/internal/http/middleware"
	"github.com/movian/movian-api/internal/http/response"
	"github.com/movian/movian-api/internal/security"
)

const jsonBodyLimit = 1 << 20

type Dependencies struct {
	AuthHandler                *handler.AuthHandler
	UserHandler                *handler.UserHandler
	AdminHandler               *handler.AdminHandler
	JWTManager                 *security.JWTManager
	CORSOrigins                []string
	AuthRateLimitRPM           int
	PasswordForgotRateLimitRPM int
	APIRateLimitRPM            int
	AvatarMaxBytes             int64
	GlobalRateLimiter          GlobalRateLimiterFunc
	AuthRateLimiter            AuthRateLimiterFunc
	ForgotRateLimiter          ForgotRateLimiterFunc
	Readiness                  *health.ProbeRunner
	EnableOTelHTTP             bool
	SecureTransport            bool
}

type GlobalRateLimiterFunc func(http.Handler) http.Handler
type AuthRateLimiterFunc func(http.Handler) http.Handler
type ForgotRateLimiterFunc func(http.Handler) http.Handler

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.SecurityHeaders(dep.SecureTransport))
	r.Use(middleware.CORS(dep.CORSOrigins))

	apiLimiter := (func(http.Handler) http.Handler)(dep.GlobalRateLimiter)
	if apiLimiter == nil {
		apiLimiter = middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute, "api").Middleware()
	}
	authLimiter := (func(http.Handler) http.Handler)(dep.AuthRateLimiter)
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute, "auth").Middleware()
	}
	forgotLimiter := (func(http.Handler) http.Handler)(dep.ForgotRateLimiter)
	if forgotLimiter == nil {
		forgotLimiter = middleware.NewRateLimiter(dep.PasswordForgotRateLimitRPM, time.Minute, "forgot").Middleware()
	}
	requireSession := middleware.RequireSession(dep.JWTManager)
	requireAdmin := middleware.RequireAdmin(dep.JWTManager)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ready, results := dep.Readiness.Ready(r.Context())
		if results == nil {
			results = []health.CheckResult{}
		}
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Body(w, r, http.StatusServiceUnavailable, false, map[string]any{
			"status":  "unready",
			"code":    "DEPENDENCY_UNREADY",
			"message": "Dependencies are not ready",
			"checks":  results,
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(apiLimiter)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.BodyLimit(jsonBodyLimit))
				r.With(authLimiter).Post("/register", dep.AuthHandler.Register)
				r.With(authLimiter).Get("/verify-email/{token}", dep.AuthHandler.VerifyEmail)
				r.With(authLimiter).Post("/login", dep.AuthHandler.Login)
				r.Post("/logout", dep.AuthHandler.Logout)
				r.With(forgotLimiter).Post("/forgot-password", dep.AuthHandler.ForgotPassword)
				r.With(authLimiter).Post("/reset-password/{token}", dep.AuthHandler.ResetPassword)

				r.With(requireSession).Get("/me", dep.UserHandler.Me)
				r.With(requireSession).Get("/profile", dep.UserHandler.Me)
				r.With(requireSession).Put("/profile", dep.UserHandler.UpdateProfile)
			})
			r.With(requireSession, middleware.BodyLimit(dep.AvatarMaxBytes+64<<10)).
				Put("/profile/avatar", dep.UserHandler.UploadAvatar)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.BodyLimit(jsonBodyLimit))
			r.With(authLimiter).Post("/login", dep.AdminHandler.Login)
			r.Post("/logout", dep.AdminHandler.Logout)
			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/session", dep.AdminHandler.Session)
				r.Get("/users", dep.AdminHandler.ListUsers)
				r.Put("/ban/{userId}", dep.AdminHandler.ToggleBan)
			})
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
