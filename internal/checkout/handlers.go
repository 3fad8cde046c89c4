package checkout

import (
	"errors"
	"net/http"

	"github.com/noah-isme/vaxcart-api/internal/cart"
	"github.com/noah-isme/vaxcart-api/internal/common"
	"github.com/noah-isme/vaxcart-api/internal/lock"
	"github.com/noah-isme/vaxcart-api/internal/obs"
)

// Handler exposes checkout over HTTP.
type Handler struct {
	Svc *Service
}

// Checkout handles POST /checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var in Input
	if err := common.DecodeAndValidate(w, r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.Svc.Checkout(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *StockError
	switch {
	case errors.As(err, &stockErr):
		common.JSONError(w, http.StatusConflict, "OUT_OF_STOCK", "some vaccines are no longer available",
			map[string]any{"lines": stockErr.Lines})
	case errors.Is(err, ErrPromotionInvalid):
		common.JSONError(w, http.StatusConflict, "PROMOTION_INVALID", err.Error(), nil)
	case errors.Is(err, ErrInvalidUser):
		common.JSONError(w, http.StatusBadRequest, "INVALID_USER", "user id is not valid", nil)
	case errors.Is(err, cart.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "CART_NOT_FOUND", "cart not found", nil)
	case errors.Is(err, cart.ErrEmpty):
		common.JSONError(w, http.StatusBadRequest, "CART_EMPTY", "cart is empty", nil)
	case errors.Is(err, lock.ErrNotAcquired):
		common.JSONError(w, http.StatusConflict, "CART_BUSY", "cart is being updated, retry shortly", nil)
	default:
		if _, ok := common.AsAppError(err); !ok {
			obs.Logger(r.Context()).Error().Err(err).Msg("checkout failed")
		}
		common.WriteError(w, err)
	}
}
