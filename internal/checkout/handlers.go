package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront/internal/cart"
	"github.com/noah-isme/storefront/internal/common"
)

type Handler struct {
	Svc *Service
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	sid, ok := common.SessionID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
		return
	}
	var payload Request
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	out, err := h.Svc.Submit(r.Context(), sid, payload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusCreated, out)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	if appErr, ok := common.AsAppError(err); ok && appErr.HTTPStatus >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("code", appErr.Code).Msg("checkout_failed")
	}
	if common.WriteAppError(w, err) {
		return
	}
	if errors.Is(err, cart.ErrNoSession) {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
		return
	}
	if errors.Is(err, cart.ErrBusy) {
		common.JSONError(w, http.StatusConflict, "CART_BUSY", "Your cart is being updated. Please try again.", nil)
		return
	}
	zerolog.Ctx(r.Context()).Error().Err(err).Msg("checkout_failed")
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to place order", nil)
}
