package order

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/vaxcart-api/internal/common"
)

// AdminHandler lets operators inspect any order.
type AdminHandler struct {
	Svc *Service
}

// Get handles GET /admin/orders/{id}.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.GetAny(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}
