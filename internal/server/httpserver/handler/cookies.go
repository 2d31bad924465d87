package handler

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/nguyendn/wwwhisper/pkg/token"
)

// Cookie names.
const (
	DefaultSessionCookie = "wwwhisper-sessionid"
	CSRFBindingCookie    = "wwwhisper-csrf"
)

const bindingBytes = 24

func (h *Handler) newCookie(name, value string, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cfg.CookieDomain,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		c.MaxAge = int(maxAge / time.Second)
		c.Expires = time.Now().Add(maxAge)
	}
	return c
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, tok string) {
	http.SetCookie(w, h.newCookie(h.cfg.CookieName, tok, h.cfg.CookieMaxAge))
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	c := h.newCookie(h.cfg.CookieName, "", 0)
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	http.SetCookie(w, c)
}

// sessionToken returns the session cookie value, or "".
func (h *Handler) sessionToken(r *http.Request) string {
	c, err := r.Cookie(h.cfg.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// anonBinding returns the anonymous CSRF binding cookie value, or "".
func anonBinding(r *http.Request) string {
	c, err := r.Cookie(CSRFBindingCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// ensureAnonBinding returns the anonymous binding, creating the cookie when
// the visitor has none.
func (h *Handler) ensureAnonBinding(w http.ResponseWriter, r *http.Request) (string, error) {
	if b := anonBinding(r); b != "" {
		return b, nil
	}
	raw, err := token.GenerateBytes(bindingBytes)
	if err != nil {
		return "", err
	}
	b := base64.RawURLEncoding.EncodeToString(raw)
	http.SetCookie(w, h.newCookie(CSRFBindingCookie, b, 0))
	return b, nil
}
