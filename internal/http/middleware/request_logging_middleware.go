package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/movian/movian-api/internal/security"
)

// StructuredRequestLogger writes one "http.request" line per request.
// Cookie values, bodies and query strings carry tokens and are never logged;
// only the names of the session lanes present are recorded.
func StructuredRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		slog.Log(r.Context(), accessLogLevel(status), "http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
			"request_id", chimiddleware.GetReqID(r.Context()),
			"client_ip", clientIPKey(r),
			"session_lanes", sessionLanes(r),
			"user_agent", r.UserAgent(),
		)
	})
}

// accessLogLevel keeps routine auth rejections visible without paging anyone.
func accessLogLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusTooManyRequests:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func sessionLanes(r *http.Request) string {
	_, userErr := r.Cookie(security.SessionCookieName)
	_, adminErr := r.Cookie(security.AdminCookieName)
	switch {
	case userErr == nil && adminErr == nil:
		return "user+admin"
	case userErr == nil:
		return "user"
	case adminErr == nil:
		return "admin"
	case r.Header.Get("Authorization") != "":
		return "bearer"
	default:
		return "none"
	}
}
