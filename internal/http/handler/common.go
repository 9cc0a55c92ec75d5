package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/movian/movian-api/internal/http/response"
	"github.com/movian/movian-api/internal/observability"
	"github.com/movian/movian-api/internal/service"
)

// decodeJSON reads a single JSON object. Unknown fields are ignored so clients
// cannot smuggle extra attributes past the typed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			response.Error(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body is too large", nil)
			return false
		}
		if errors.Is(err, io.EOF) {
			response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Request body is required", nil)
			return false
		}
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", nil)
		return false
	}
	return true
}

// flowTracker records duration and outcome of one account flow request.
type flowTracker struct {
	r       *http.Request
	flow    string
	start   time.Time
	outcome string
}

func trackFlow(r *http.Request, flow string) *flowTracker {
	return &flowTracker{r: r, flow: flow, start: time.Now(), outcome: "failure"}
}

func (t *flowTracker) succeed() { t.outcome = "success" }

func (t *flowTracker) done() {
	ctx := t.r.Context()
	observability.RecordAuthFlow(ctx, t.flow, t.outcome)
	observability.RecordAuthRequestDuration(ctx, t.flow, t.outcome, time.Since(t.start))
}

func audit(r *http.Request, event, actorID, targetID, outcome, reason string) {
	observability.EmitAudit(r, observability.AuditInput{
		EventName:   event,
		ActorUserID: actorID,
		TargetType:  "user",
		TargetID:    targetID,
		Action:      event[strings.LastIndex(event, ".")+1:],
		Outcome:     outcome,
		Reason:      reason,
	})
}

// auditReason turns a service error into a short machine readable reason.
func auditReason(err error) string {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return "validation"
	case errors.Is(err, service.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, service.ErrEmailNotVerified):
		return "email_not_verified"
	case errors.Is(err, service.ErrAccountBanned):
		return "banned"
	case errors.Is(err, service.ErrEmailTaken), errors.Is(err, service.ErrUsernameTaken):
		return "conflict"
	case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrPendingNotFound):
		return "invalid_token"
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrAccountNotFound):
		return "not_found"
	case errors.Is(err, service.ErrEmailDelivery):
		return "email_delivery"
	default:
		return "internal"
	}
}

// throttleGate blocks a request while its identity or IP is cooling down.
// Backend errors fail open: the guard exists to slow guessing, not to gate
// availability.
type throttleGate struct {
	throttle service.LoginThrottle
	scope    service.ThrottleScope
}

func (g throttleGate) blocked(w http.ResponseWriter, r *http.Request, identity string) bool {
	ctx := r.Context()
	scope := string(g.scope)
	wait, err := g.throttle.Check(ctx, g.scope, identity, clientIP(r))
	if err != nil {
		slog.WarnContext(ctx, "auth throttle unavailable, allowing request", "scope", scope, "error", err)
		observability.RecordThrottleEvent(ctx, scope, "check", "backend_error")
		return false
	}
	if wait <= 0 {
		observability.RecordThrottleEvent(ctx, scope, "check", "allowed")
		return false
	}
	observability.RecordThrottleEvent(ctx, scope, "check", "blocked")
	seconds := int((wait + time.Second - 1) / time.Second)
	w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	response.Error(w, r, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS",
		fmt.Sprintf("Too many attempts. Try again in %d seconds.", seconds), nil)
	return true
}

func (g throttleGate) failed(r *http.Request, identity string) {
	ctx := r.Context()
	scope := string(g.scope)
	wait, err := g.throttle.RegisterFailure(ctx, g.scope, identity, clientIP(r))
	if err != nil {
		slog.WarnContext(ctx, "auth throttle failure not recorded", "scope", scope, "error", err)
		observability.RecordThrottleEvent(ctx, scope, "failure", "backend_error")
		return
	}
	observability.RecordThrottleEvent(ctx, scope, "failure", "recorded")
	if wait > 0 {
		observability.RecordThrottleCooldown(ctx, scope, wait)
	}
}

func (g throttleGate) reset(r *http.Request, identity string) {
	ctx := r.Context()
	if err := g.throttle.Reset(ctx, g.scope, identity, clientIP(r)); err != nil {
		slog.WarnContext(ctx, "auth throttle reset failed", "scope", string(g.scope), "error", err)
		return
	}
	observability.RecordThrottleEvent(ctx, string(g.scope), "reset", "ok")
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
