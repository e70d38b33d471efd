package menu

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront/internal/common"
	"github.com/noah-isme/storefront/internal/orderapi"
)

// Handler exposes public menu endpoints.
type Handler struct {
	Svc *Service
}

// Menu handles GET /api/v1/menu?outlet=.
func (h *Handler) Menu(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "menu service not configured", nil)
		return
	}
	categories, err := h.Svc.Menu(r.Context(), r.URL.Query().Get("outlet"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, categories)
}

// Options handles GET /api/v1/menu/products/{id}/options.
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "menu service not configured", nil)
		return
	}
	groups, err := h.Svc.ProductOptions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, groups)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "product id is required", nil)
	case errors.Is(err, orderapi.ErrRejected):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", orderapi.RejectionMessage(err), nil)
	default:
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("menu_upstream_failed")
		common.WriteAppError(w, common.UpstreamUnavailable(err))
	}
}
