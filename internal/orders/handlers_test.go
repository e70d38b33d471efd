package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront/internal/address"
	"github.com/noah-isme/storefront/internal/cart"
	"github.com/noah-isme/storefront/internal/common"
	"github.com/noah-isme/storefront/internal/orderapi"
)

type fakeHistory struct {
	phones []string
}

func (f *fakeHistory) Orders(_ context.Context, phone string) ([]orderapi.Order, error) {
	f.phones = append(f.phones, phone)
	out := make([]orderapi.Order, 0, 25)
	for i := 0; i < 25; i++ {
		out = append(out, orderapi.Order{ID: fmt.Sprintf("ORD-%d", i), Phone: phone})
	}
	return out, nil
}

func (f *fakeHistory) Order(_ context.Context, id string) (orderapi.Order, error) {
	if id == "missing" {
		return orderapi.Order{}, &orderapi.RejectedError{Operation: "order", Message: "Order not found"}
	}
	return orderapi.Order{ID: id, Status: "preparing"}, nil
}

type fakeAddresses struct{ phone string }

func (f fakeAddresses) Snapshot(context.Context, string) (cart.Snapshot, address.Context, error) {
	return cart.Snapshot{}, address.Context{Phone: f.phone}, nil
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(common.WithSessionID(req.Context(), "s1")))
		})
	})
	r.Get("/orders", h.List)
	r.Get("/orders/{id}", h.Get)
	return r
}

func TestListDefaultsToSessionPhone(t *testing.T) {
	api := &fakeHistory{}
	r := newRouter(&Handler{API: api, Addresses: fakeAddresses{phone: "03001234567"}})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders?page=3&limit=10", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []string{"03001234567"}, api.phones)

	var body struct {
		Data       []orderapi.Order  `json:"data"`
		Pagination common.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data, 5)
	require.Equal(t, "ORD-20", body.Data[0].ID)
	require.Equal(t, 25, body.Pagination.TotalItems)
}

func TestListRequiresPhone(t *testing.T) {
	r := newRouter(&Handler{API: &fakeHistory{}, Addresses: fakeAddresses{}})
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders?page=9", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetOrder(t *testing.T) {
	r := newRouter(&Handler{API: &fakeHistory{}})
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/ORD-7", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"preparing"`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/missing", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "Order not found")
}
