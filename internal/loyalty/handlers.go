package loyalty

import (
	"errors"
	"net/http"

	"github.com/noah-isme/vaxcart-api/internal/common"
	"github.com/noah-isme/vaxcart-api/internal/obs"
)

// Handler exposes the caller's loyalty standing.
type Handler struct {
	Svc *Service
}

type accountView struct {
	Account
	Standing Standing `json:"standing"`
}

// Me handles GET /loyalty/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	acct, err := h.Svc.Account(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrInvalidUser) {
			common.JSONError(w, http.StatusBadRequest, "INVALID_USER", "user id is not valid", nil)
			return
		}
		obs.Logger(r.Context()).Error().Err(err).Msg("loyalty lookup failed")
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": accountView{Account: acct, Standing: acct.Standing()}})
}
