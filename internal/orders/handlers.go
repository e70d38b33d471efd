package orders

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront/internal/address"
	"github.com/noah-isme/storefront/internal/cart"
	"github.com/noah-isme/storefront/internal/common"
	"github.com/noah-isme/storefront/internal/orderapi"
)

const defaultPerPage = 10

// History reads placed orders from the order API.
type History interface {
	Orders(ctx context.Context, phone string) ([]orderapi.Order, error)
	Order(ctx context.Context, orderID string) (orderapi.Order, error)
}

// AddressSource returns the address context of a session.
type AddressSource interface {
	Snapshot(ctx context.Context, sessionID string) (cart.Snapshot, address.Context, error)
}

// Handler exposes order history and status.
type Handler struct {
	API       History
	Addresses AddressSource
}

// List handles GET /api/v1/orders. The phone defaults to the one stored with the session.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.API == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "orders not configured", nil)
		return
	}
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if phone == "" && h.Addresses != nil {
		if sid, ok := common.SessionID(r.Context()); ok {
			if _, addr, err := h.Addresses.Snapshot(r.Context(), sid); err == nil {
				phone = addr.Phone
			}
		}
	}
	if phone == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "phone is required", nil)
		return
	}

	all, err := h.API.Orders(r.Context(), phone)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page, perPage := common.ParsePagination(r, defaultPerPage)
	start := (page - 1) * perPage
	if start > len(all) {
		start = len(all)
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": all[start:end],
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: len(all),
		},
	})
}

// Get handles GET /api/v1/orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.API == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "orders not configured", nil)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "order id is required", nil)
		return
	}
	order, err := h.API.Order(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, order)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, orderapi.ErrRejected) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", orderapi.RejectionMessage(err), nil)
		return
	}
	zerolog.Ctx(r.Context()).Warn().Err(err).Msg("orders_upstream_failed")
	common.WriteAppError(w, common.UpstreamUnavailable(err))
}
