package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/movian/movian-api/internal/domain"
	"github.com/movian/movian-api/internal/http/response"
	"github.com/movian/movian-api/internal/observability"
	"github.com/movian/movian-api/internal/security"
)

type contextKey string

const (
	ClaimsContextKey      contextKey = "claims"
	AdminClaimsContextKey contextKey = "admin_claims"
)

// RequireSession is the user request gate. It accepts the token cookie or a
// bearer header carrying a session token and nothing else.
func RequireSession(jwtMgr *security.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := rawToken(r, security.SessionCookieName)
			if raw == "" {
				observability.RecordTokenValidation(r.Context(), "user", "missing")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated", nil)
				return
			}
			claims, err := jwtMgr.ValidateKind(raw, security.KindSession)
			if err != nil || claims.UserID == "" {
				observability.RecordTokenValidation(r.Context(), "user", "invalid")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated", nil)
				return
			}
			observability.RecordTokenValidation(r.Context(), "user", "valid")
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin guards every privileged route. A missing or unverifiable token
// is 401; a valid token that is not an admin session for an admin is 403.
func RequireAdmin(jwtMgr *security.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := rawToken(r, security.AdminCookieName)
			if raw == "" {
				observability.RecordTokenValidation(r.Context(), "admin", "missing")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Admin token missing", nil)
				return
			}
			claims, err := jwtMgr.Validate(raw)
			if err != nil || (claims.Kind != security.KindSession && claims.Kind != security.KindAdminSession) {
				observability.RecordTokenValidation(r.Context(), "admin", "invalid")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
				return
			}
			if claims.Kind != security.KindAdminSession || claims.Role != domain.RoleAdmin {
				observability.RecordTokenValidation(r.Context(), "admin", "forbidden")
				observability.EmitAudit(r, observability.AuditInput{
					EventName:   "admin.guard",
					ActorUserID: claims.UserID,
					Action:      "access",
					Outcome:     "rejected",
					Reason:      "not_admin",
				})
				response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "Not authorized", nil)
				return
			}
			observability.RecordTokenValidation(r.Context(), "admin", "valid")
			ctx := context.WithValue(r.Context(), AdminClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*security.Claims)
	return c, ok
}

func AdminClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(AdminClaimsContextKey).(*security.Claims)
	return c, ok
}

func rawToken(r *http.Request, cookieName string) string {
	if raw := security.GetCookie(r, cookieName); raw != "" {
		return raw
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
