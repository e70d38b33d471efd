package session

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront/internal/common"
)

// CookieOptions controls the cookies written for browser clients.
type CookieOptions struct {
	Name       string
	CSRFHeader string
	Domain     string
	Secure     bool
	SameSite   http.SameSite
}

// Handler exposes session issuance over HTTP.
type Handler struct {
	Tokens  *Tokens
	Cookies CookieOptions
	Logger  zerolog.Logger
}

type createResponse struct {
	Token
	CSRFToken string `json:"csrfToken"`
	Resumed   bool   `json:"resumed"`
}

// Create issues a session token. A still-valid token presented by the caller is renewed for the
// same session so the visitor keeps the cart.
func (h Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Tokens == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "sessions are not configured", nil)
		return
	}
	var (
		tok     Token
		err     error
		resumed bool
	)
	if sid, parseErr := h.Tokens.Parse(ExtractToken(r, h.cookieName())); parseErr == nil {
		tok, err = h.Tokens.Renew(sid)
		resumed = true
	} else {
		tok, err = h.Tokens.Issue()
	}
	if err != nil {
		h.Logger.Error().Err(err).Msg("session_issue_failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not create session", nil)
		return
	}

	csrf := uuid.NewString()
	maxAge := int(time.Until(tok.ExpiresAt).Seconds())
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName(),
		Value:    tok.Value,
		Path:     "/",
		Domain:   h.Cookies.Domain,
		MaxAge:   maxAge,
		Secure:   h.Cookies.Secure,
		HttpOnly: true,
		SameSite: h.sameSite(),
	})
	http.SetCookie(w, &http.Cookie{
		Name:     h.csrfName(),
		Value:    csrf,
		Path:     "/",
		Domain:   h.Cookies.Domain,
		MaxAge:   maxAge,
		Secure:   h.Cookies.Secure,
		SameSite: h.sameSite(),
	})

	status := http.StatusCreated
	if resumed {
		status = http.StatusOK
	}
	common.Data(w, status, createResponse{Token: tok, CSRFToken: csrf, Resumed: resumed})
}

func (h Handler) cookieName() string {
	if h.Cookies.Name == "" {
		return DefaultCookie
	}
	return h.Cookies.Name
}

func (h Handler) csrfName() string {
	if h.Cookies.CSRFHeader == "" {
		return "X-CSRF-Token"
	}
	return h.Cookies.CSRFHeader
}

func (h Handler) sameSite() http.SameSite {
	if h.Cookies.SameSite == http.SameSiteDefaultMode {
		return http.SameSiteLaxMode
	}
	return h.Cookies.SameSite
}
