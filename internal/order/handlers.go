package order

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/vaxcart-api/internal/common"
	"github.com/noah-isme/vaxcart-api/internal/obs"
)

// Handler serves the authenticated user's order history.
type Handler struct {
	Svc *Service
}

// List handles GET /orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	meta := common.Pagination{Page: page, PerPage: perPage}
	res, err := h.Svc.List(r.Context(), userID, perPage, meta.Offset())
	if err != nil {
		writeError(w, r, err)
		return
	}
	meta.TotalItems = int(res.Total)
	w.Header().Set("X-Total-Count", strconv.FormatInt(res.Total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       res.Orders,
		"pagination": meta,
	})
}

// Get handles GET /orders/{orderId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	out, err := h.Svc.Get(r.Context(), userID, chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, ErrInvalidUser):
		common.JSONError(w, http.StatusBadRequest, "INVALID_USER", "user id is not valid", nil)
	default:
		obs.Logger(r.Context()).Error().Err(err).Msg("order lookup failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load orders", nil)
	}
}
