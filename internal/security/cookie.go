package security

import (
	"net/http"
	"strings"
	"time"
)

const (
	SessionCookieName = "token"
	AdminCookieName   = "admin_token"
)

// CookieManager writes the two independent session lanes. Setting or clearing
// one lane never touches the other.
type CookieManager struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

func NewCookieManager(domain string, secure bool, sameSite string) *CookieManager {
	return &CookieManager{Domain: domain, Secure: secure, SameSite: parseSameSite(sameSite)}
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return http.SameSiteDefaultMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (m *CookieManager) SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	m.set(w, SessionCookieName, token, ttl)
}

func (m *CookieManager) SetAdminCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	m.set(w, AdminCookieName, token, ttl)
}

func (m *CookieManager) ClearSessionCookie(w http.ResponseWriter) {
	m.clear(w, SessionCookieName)
}

func (m *CookieManager) ClearAdminCookie(w http.ResponseWriter) {
	m.clear(w, AdminCookieName)
}

// ClearAll expires both lanes; it is safe to call when neither is set.
func (m *CookieManager) ClearAll(w http.ResponseWriter) {
	m.clear(w, SessionCookieName)
	m.clear(w, AdminCookieName)
}

func (m *CookieManager) set(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   m.Domain,
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl).UTC(),
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: m.SameSite,
	})
}

func (m *CookieManager) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   m.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: m.SameSite,
	})
}

func GetCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
