package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Envelope keys shared by every body this API writes.
const (
	keySuccess = "success"
	keyMessage = "message"
	keyCode    = "code"
	keyDetails = "details"
)

// JSON writes payload merged into a {success:true} envelope.
func JSON(w http.ResponseWriter, r *http.Request, status int, payload map[string]any) {
	Body(w, r, status, true, payload)
}

// Body writes payload with an explicit success flag, for answers such as an
// unready probe that carry data but are not a success.
func Body(w http.ResponseWriter, r *http.Request, status int, success bool, payload map[string]any) {
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body[keySuccess] = success
	write(w, r, status, body)
}

// Message is JSON with only a human readable message.
func Message(w http.ResponseWriter, r *http.Request, status int, message string) {
	JSON(w, r, status, map[string]any{keyMessage: message})
}

func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]string) {
	body := map[string]any{
		keySuccess: false,
		keyMessage: message,
		keyCode:    code,
	}
	if len(details) > 0 {
		body[keyDetails] = details
	}
	write(w, r, status, body)
}

func write(w http.ResponseWriter, r *http.Request, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.WarnContext(r.Context(), "response encode failed",
			"request_id", chimiddleware.GetReqID(r.Context()),
			"error", err,
		)
	}
}
