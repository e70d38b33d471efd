package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront/internal/common"
)

func newTokens(t *testing.T) *Tokens {
	t.Helper()
	tokens, err := NewTokens(Config{Secret: "test-secret", Issuer: "storefront", Audience: "web", TTL: time.Hour})
	require.NoError(t, err)
	return tokens
}

func TestIssueAndParse(t *testing.T) {
	tokens := newTokens(t)
	tok, err := tokens.Issue()
	require.NoError(t, err)
	require.NotEmpty(t, tok.SessionID)

	sid, err := tokens.Parse(tok.Value)
	require.NoError(t, err)
	require.Equal(t, tok.SessionID, sid)
}

func TestParseRejectsForeignAndExpiredTokens(t *testing.T) {
	tokens := newTokens(t)
	tok, err := tokens.Issue()
	require.NoError(t, err)

	other, err := NewTokens(Config{Secret: "other-secret", Issuer: "storefront", Audience: "web"})
	require.NoError(t, err)
	_, err = other.Parse(tok.Value)
	require.ErrorIs(t, err, ErrInvalidToken)

	tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = tokens.Parse(tok.Value)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.Parse("")
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = tokens.Parse("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsNonUUIDSubject(t *testing.T) {
	tokens := newTokens(t)
	now := time.Now()
	raw, err := jwt.NewBuilder().Subject("admin").Issuer("storefront").Audience([]string{"web"}).
		IssuedAt(now).Expiration(now.Add(time.Minute)).Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(raw, jwt.WithKey(jwa.HS256, []byte("test-secret")))
	require.NoError(t, err)

	_, err = tokens.Parse(string(signed))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenValidatorIssuerMismatch(t *testing.T) {
	now := time.Now()
	token, _ := jwt.NewBuilder().
		Issuer("other").
		Audience([]string{"web"}).
		Subject("sub").
		IssuedAt(now).
		Expiration(now.Add(time.Minute)).
		Build()

	validator := TokenValidator{Issuer: "storefront", Audience: "web", Algorithm: jwa.HS256}
	if err := validator.Validate(token, jwa.HS256, now); err == nil {
		t.Fatal("expected issuer mismatch error")
	}
	if err := validator.Validate(token, jwa.HS512, now); err == nil {
		t.Fatal("expected algorithm mismatch error")
	}
}

func TestMiddlewareRequire(t *testing.T) {
	tokens := newTokens(t)
	tok, err := tokens.Issue()
	require.NoError(t, err)

	var seen string
	handler := Middleware{Tokens: tokens}.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = common.SessionID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, tok.SessionID, seen)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookie, Value: tok.Value})
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestCreateIssuesAndResumes(t *testing.T) {
	tokens := newTokens(t)
	h := Handler{Tokens: tokens}

	rr := httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/api/v1/session", nil))
	require.Equal(t, http.StatusCreated, rr.Code)

	var body struct {
		Data createResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.Value)
	require.NotEmpty(t, body.Data.CSRFToken)
	require.False(t, body.Data.Resumed)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 2)
	require.Equal(t, DefaultCookie, cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session", nil)
	req.Header.Set("Authorization", "Bearer "+body.Data.Value)
	rr = httptest.NewRecorder()
	h.Create(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resumed struct {
		Data createResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resumed))
	require.True(t, resumed.Data.Resumed)
	require.Equal(t, body.Data.SessionID, resumed.Data.SessionID)
}
