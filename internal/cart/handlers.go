package cart

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront/internal/address"
	"github.com/noah-isme/storefront/internal/common"
	"github.com/noah-isme/storefront/internal/orderapi"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc *Service
}

type lineRef struct {
	ProductID   string   `json:"productId"`
	Options     []Option `json:"options"`
	AllVariants bool     `json:"allVariants"`
}

type voucherRequest struct {
	Code string `json:"code"`
}

// Routes mounts the cart endpoints. voucherGuard, when set, wraps only the voucher apply route.
func (h *Handler) Routes(r chi.Router, voucherGuard func(http.Handler) http.Handler) {
	r.Get("/", h.Get)
	r.Delete("/", h.Clear)
	r.Post("/items", h.Add)
	r.Post("/items/increment", h.Increment)
	r.Post("/items/decrement", h.Decrement)
	r.Post("/items/remove", h.Remove)
	r.Put("/address", h.ChangeAddress)
	r.Get("/suggestions", h.Suggestions)
	r.Delete("/voucher", h.RemoveVoucher)
	if voucherGuard != nil {
		r.With(voucherGuard).Put("/voucher", h.ApplyVoucher)
	} else {
		r.Put("/voucher", h.ApplyVoucher)
	}
}

// Get returns the cart with its totals.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Cart(r.Context(), sid)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

// Add adds a product configuration, merging with an identical line.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	var line Line
	if err := json.NewDecoder(r.Body).Decode(&line); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart line", nil)
		return
	}
	res, err := h.Svc.AddToCart(r.Context(), sid, line)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, res)
}

// Increment adds one unit to a line.
func (h *Handler) Increment(w http.ResponseWriter, r *http.Request) {
	sid, ref, ok := h.lineRef(w, r)
	if !ok {
		return
	}
	res, err := h.Svc.IncrementQuantity(r.Context(), sid, ref.ProductID, ref.Options)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, res)
}

// Decrement removes one unit from a line with more than one unit.
func (h *Handler) Decrement(w http.ResponseWriter, r *http.Request) {
	sid, ref, ok := h.lineRef(w, r)
	if !ok {
		return
	}
	res, err := h.Svc.DecrementQuantity(r.Context(), sid, ref.ProductID, ref.Options)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, res)
}

// Remove deletes one line, or every variant of a product when allVariants is set.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	sid, ref, ok := h.lineRef(w, r)
	if !ok {
		return
	}
	var (
		res Result
		err error
	)
	if ref.AllVariants {
		res, err = h.Svc.RemoveProduct(r.Context(), sid, ref.ProductID)
	} else {
		res, err = h.Svc.RemoveLine(r.Context(), sid, ref.ProductID, ref.Options)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, res)
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	res, err := h.Svc.ClearCart(r.Context(), sid)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, res)
}

// ApplyVoucher validates and applies a voucher code.
func (h *Handler) ApplyVoucher(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload voucherRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid voucher payload", nil)
		return
	}
	res, err := h.Svc.ApplyVoucher(r.Context(), sid, payload.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, res)
}

// RemoveVoucher drops the applied voucher.
func (h *Handler) RemoveVoucher(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	res, err := h.Svc.RemoveVoucher(r.Context(), sid)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, res)
}

// ChangeAddress updates the delivery or pickup selection.
func (h *Handler) ChangeAddress(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload address.Context
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid address payload", nil)
		return
	}
	res, err := h.Svc.ChangeAddress(r.Context(), sid, payload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, res)
}

// Suggestions lists add-on products not yet in the cart.
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	products, err := h.Svc.Suggestions(r.Context(), sid)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, products)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return "", false
	}
	sid, ok := common.SessionID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
		return "", false
	}
	return sid, true
}

func (h *Handler) lineRef(w http.ResponseWriter, r *http.Request) (string, lineRef, bool) {
	sid, ok := h.session(w, r)
	if !ok {
		return "", lineRef{}, false
	}
	var ref lineRef
	if err := json.NewDecoder(r.Body).Decode(&ref); err != nil || ref.ProductID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "productId is required", nil)
		return "", lineRef{}, false
	}
	return sid, ref, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	if common.WriteAppError(w, err) {
		return
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrLineNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "Add something to your cart first.", nil)
	case errors.Is(err, ErrStaleResponse):
		common.JSONError(w, http.StatusConflict, "STALE", "Your cart changed while we were checking. Please try again.", nil)
	case errors.Is(err, ErrBusy):
		common.JSONError(w, http.StatusConflict, "CART_BUSY", "Your cart is being updated. Please try again.", nil)
	case errors.Is(err, orderapi.ErrRejected):
		common.JSONError(w, http.StatusUnprocessableEntity, "REJECTED", orderapi.RejectionMessage(err), nil)
	case errors.Is(err, orderapi.ErrUnavailable), errors.Is(err, orderapi.ErrNotConfigured):
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("cart_upstream_failed")
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "The service is temporarily unavailable. Please try again.", nil)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("cart_request_failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to process cart request", nil)
	}
}
