package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront/internal/config"
	"github.com/noah-isme/storefront/internal/orderapi"
	"github.com/noah-isme/storefront/internal/resilience"
)

type harness struct {
	router http.Handler
	orders *atomic.Int32
	mr     *miniredis.Miniredis
}

func fakeOrderAPI(t *testing.T, orders *atomic.Int32) *httptest.Server {
	t.Helper()
	reply := func(w http.ResponseWriter, status int, message string, data any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "message": message, "data": data})
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/vouchers/validate":
			var req orderapi.VoucherRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Code != "SAVE200" {
				reply(w, 0, "Invalid voucher", nil)
				return
			}
			reply(w, 1, "", map[string]any{"amount": 200})
		case "/orders":
			if r.Method == http.MethodPost {
				orders.Add(1)
				reply(w, 1, "Order placed", map[string]any{"orderId": "ORD-42"})
				return
			}
			reply(w, 1, "", []orderapi.Order{{ID: "ORD-42", Phone: r.URL.Query().Get("phone")}})
		case "/menu":
			reply(w, 1, "", []orderapi.MenuCategory{{ID: "c1", Name: "Pizza"}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newHarness(t *testing.T) harness {
	t.Helper()
	mr := miniredis.RunT(t)
	orders := &atomic.Int32{}
	api := fakeOrderAPI(t, orders)

	cfg, err := config.LoadForTests(map[string]string{
		"APP_ENV":            "test",
		"REDIS_URL":          "redis://" + mr.Addr(),
		"SESSION_SECRET":     "test-secret-test-secret-test-secret",
		"ORDER_API_BASE_URL": api.URL,
	})
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	a, err := New(Dependencies{
		Config: cfg,
		Logger: zerolog.Nop(),
		Redis:  client,
		OrderAPI: orderapi.New(orderapi.Config{
			BaseURL: cfg.OrderAPIBaseURL,
			Timeout: time.Second,
			Breaker: resilience.NewBreaker(100, 1, time.Minute),
			Logger:  zerolog.Nop(),
		}),
		HealthTimeouts: HealthTimeouts{Redis: time.Second, OrderAPI: time.Second},
	})
	require.NoError(t, err)
	return harness{router: a.Router, orders: orders, mr: mr}
}

func (h harness) do(t *testing.T, method, path, token, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func (h harness) newSession(t *testing.T) (string, *httptest.ResponseRecorder) {
	t.Helper()
	rr := h.do(t, http.MethodPost, "/api/v1/session", "", "", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	var body struct {
		Data struct {
			SessionID string `json:"sessionId"`
			Token     string `json:"token"`
			CSRFToken string `json:"csrfToken"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.Token)
	return body.Data.Token, rr
}

func TestCartToCheckoutFlow(t *testing.T) {
	h := newHarness(t)
	token, _ := h.newSession(t)

	rr := h.do(t, http.MethodPut, "/api/v1/cart/address", token, `{"city":"Lahore","outlet":"LHR-01","addressType":"delivery","taxRate":15,"phone":"03001234567"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	item := `{"productId":"p1","name":"Fajita","price":1000,"quantity":2}`
	rr = h.do(t, http.MethodPost, "/api/v1/cart/items", token, item, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"finalTotal":2034`)

	rr = h.do(t, http.MethodPut, "/api/v1/cart/voucher", token, `{"code":"NOPE"}`, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), "Invalid voucher")

	rr = h.do(t, http.MethodPut, "/api/v1/cart/voucher", token, `{"code":"SAVE200"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"finalTotal":1834`)

	checkoutBody := `{"customerName":"Ayesha","phone":"03001234567","address":"House 1"}`
	idem := map[string]string{"Idempotency-Key": "order-1"}
	rr = h.do(t, http.MethodPost, "/api/v1/checkout", token, checkoutBody, idem)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), `"orderId":"ORD-42"`)

	rr = h.do(t, http.MethodPost, "/api/v1/checkout", token, checkoutBody, idem)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.EqualValues(t, 1, h.orders.Load())

	rr = h.do(t, http.MethodGet, "/api/v1/cart", token, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"itemCount":0`)

	rr = h.do(t, http.MethodGet, "/api/v1/orders", token, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"phone":"03001234567"`)
}

func TestCartRequiresSession(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, http.MethodGet, "/api/v1/cart", "", "", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = h.do(t, http.MethodGet, "/api/v1/cart", "not-a-token", "", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCookieSessionNeedsCSRF(t *testing.T) {
	h := newHarness(t)
	_, created := h.newSession(t)
	cookies := created.Result().Cookies()

	build := func(withCSRF bool) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"productId":"p1","price":100}`))
		for _, c := range cookies {
			req.AddCookie(c)
			if withCSRF && c.Name == csrfHeader {
				req.Header.Set(csrfHeader, c.Value)
			}
		}
		return req
	}

	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, build(false))
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	h.router.ServeHTTP(rr, build(true))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCartSurvivesRestart(t *testing.T) {
	h := newHarness(t)
	token, _ := h.newSession(t)
	rr := h.do(t, http.MethodPost, "/api/v1/cart/items", token, `{"productId":"p1","price":100,"quantity":3}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	// a second instance over the same Redis sees the cart
	cfg, err := config.LoadForTests(map[string]string{
		"REDIS_URL":          "redis://" + h.mr.Addr(),
		"SESSION_SECRET":     "test-secret-test-secret-test-secret",
		"ORDER_API_BASE_URL": "http://127.0.0.1:1",
	})
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: h.mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	other, err := New(Dependencies{Config: cfg, Logger: zerolog.Nop(), Redis: client, OrderAPI: orderapi.New(orderapi.Config{BaseURL: cfg.OrderAPIBaseURL})})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	out := httptest.NewRecorder()
	other.Router.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code)
	require.Contains(t, out.Body.String(), `"itemCount":3`)
}

func TestHealthAndMenu(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, http.MethodGet, "/health/ready", "", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = h.do(t, http.MethodGet, "/api/v1/menu?outlet=LHR-01", "", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"Pizza"`)
	require.True(t, h.mr.Exists("menu:LHR-01"))
}
