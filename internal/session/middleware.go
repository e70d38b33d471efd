package session

import (
	"net/http"
	"strings"

	"github.com/noah-isme/storefront/internal/common"
	"github.com/noah-isme/storefront/internal/obs"
)

// DefaultCookie is the cookie carrying the session token for browser clients.
const DefaultCookie = "sid"

// Middleware resolves the visitor session from the request.
type Middleware struct {
	Tokens *Tokens
	Cookie string
}

// Require rejects requests without a valid session and stores the session ID on the context.
func (m Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, ok := m.resolve(r)
		if !ok {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid session", nil)
			return
		}
		ctx := common.WithSessionID(r.Context(), sid)
		obs.TagSession(ctx, sid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) resolve(r *http.Request) (string, bool) {
	if m.Tokens == nil {
		return "", false
	}
	token := ExtractToken(r, m.cookieName())
	if token == "" {
		return "", false
	}
	sid, err := m.Tokens.Parse(token)
	if err != nil {
		return "", false
	}
	return sid, true
}

func (m Middleware) cookieName() string {
	if strings.TrimSpace(m.Cookie) == "" {
		return DefaultCookie
	}
	return m.Cookie
}

// ExtractToken reads a bearer token, falling back to the session cookie.
func ExtractToken(r *http.Request, cookie string) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if cookie != "" {
		if c, err := r.Cookie(cookie); err == nil {
			if value := strings.TrimSpace(c.Value); value != "" {
				return value
			}
		}
	}
	return ""
}
