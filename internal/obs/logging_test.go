package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestRequestLoggerCarriesSessionAndRoute(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "info")

	router := chi.NewRouter()
	router.Use(RequestLogger{Logger: logger}.Middleware)
	router.Get("/api/v1/cart/{id}", func(w http.ResponseWriter, r *http.Request) {
		TagSession(r.Context(), "sess-1")
		w.WriteHeader(http.StatusAccepted)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/cart/42", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "http_request", entry["message"])
	require.Equal(t, "sess-1", entry["session_id"])
	require.Equal(t, "/api/v1/cart/{id}", entry["route"])
	require.EqualValues(t, 202, entry["status"])
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "nonsense")
	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}
