package cart

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/vaxcart-api/internal/catalog"
	"github.com/noah-isme/vaxcart-api/internal/common"
	"github.com/noah-isme/vaxcart-api/internal/lock"
	"github.com/noah-isme/vaxcart-api/internal/obs"
	"github.com/noah-isme/vaxcart-api/internal/promotion"
)

// PointsSource reports a user's redeemable loyalty balance.
type PointsSource interface {
	Balance(ctx context.Context, userID string) (int64, error)
}

// Handler wires cart services to HTTP.
type Handler struct {
	Svc      *Service
	Points   PointsSource
	Currency string
}

type lineView struct {
	LineItem
	Subtotal int64 `json:"subtotal"`
}

type cartView struct {
	ID            string     `json:"id"`
	Items         []lineView `json:"items"`
	PromotionCode string     `json:"promotionCode,omitempty"`
	RedeemPoints  bool       `json:"redeemPoints"`
	Quote
	Currency  string    `json:"currency"`
	UndoToken string    `json:"undoToken,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type addItemRequest struct {
	VaccineID string `json:"vaccineId" validate:"required,uuid"`
	Qty       int    `json:"qty" validate:"min=1,max=50"`
}

type setQuantityRequest struct {
	Qty *int `json:"qty" validate:"required,min=0,max=50"`
}

type undoRequest struct {
	Token string `json:"token" validate:"required,uuid"`
}

type promotionRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type redeemRequest struct {
	Redeem *bool `json:"redeem" validate:"required"`
}

// Create handles POST /carts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Create(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, c, "")
}

// Get handles GET /carts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, c, "")
}

// AddItem handles POST /carts/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := common.DecodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.Svc.AddItem(r.Context(), chi.URLParam(r, "id"), req.VaccineID, req.Qty)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, c, "")
}

// SetQuantity handles PATCH /carts/{id}/items/{vaccineId}.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if err := common.DecodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, token, err := h.Svc.SetQuantity(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "vaccineId"), *req.Qty)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, c, token)
}

// Undo handles POST /carts/{id}/items/undo.
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	var req undoRequest
	if err := common.DecodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.Svc.Undo(r.Context(), chi.URLParam(r, "id"), req.Token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, c, "")
}

// ApplyPromotion handles POST /carts/{id}/promotion.
func (h *Handler) ApplyPromotion(w http.ResponseWriter, r *http.Request) {
	var req promotionRequest
	if err := common.DecodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.Svc.ApplyPromotion(r.Context(), chi.URLParam(r, "id"), req.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, c, "")
}

// ClearPromotion handles DELETE /carts/{id}/promotion.
func (h *Handler) ClearPromotion(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.ClearPromotion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, c, "")
}

// SetRedeemPoints handles PUT /carts/{id}/redeem-points.
func (h *Handler) SetRedeemPoints(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := common.DecodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.Svc.SetRedeemPoints(r.Context(), chi.URLParam(r, "id"), *req.Redeem)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, c, "")
}

// Delete handles DELETE /carts/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, c Cart, undoToken string) {
	q, err := h.Svc.Price(r.Context(), c, h.points(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	obs.Inc(obs.CartQuotesTotal, "ok")
	view := cartView{
		ID:            c.ID,
		Items:         make([]lineView, 0, len(c.Items)),
		PromotionCode: c.PromotionCode,
		RedeemPoints:  c.RedeemPoints,
		Quote:         q,
		Currency:      h.Currency,
		UndoToken:     undoToken,
		UpdatedAt:     c.UpdatedAt,
	}
	for _, it := range c.Items {
		view.Items = append(view.Items, lineView{LineItem: it, Subtotal: it.Subtotal()})
	}
	common.JSON(w, status, map[string]any{"data": view})
}

// points is zero for anonymous callers or when the balance cannot be read.
func (h *Handler) points(r *http.Request) int64 {
	userID, ok := common.UserID(r.Context())
	if !ok || h.Points == nil {
		return 0
	}
	balance, err := h.Points.Balance(r.Context(), userID)
	if err != nil {
		obs.Logger(r.Context()).Warn().Err(err).Str("user_id", userID).Msg("loyalty balance unavailable for cart quote")
		return 0
	}
	return balance
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "CART_NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrLineNotFound):
		common.JSONError(w, http.StatusNotFound, "LINE_NOT_FOUND", "vaccine is not in the cart", nil)
	case errors.Is(err, catalog.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "VACCINE_NOT_FOUND", "vaccine not found", nil)
	case errors.Is(err, ErrInvalidLineItem):
		common.JSONError(w, http.StatusBadRequest, "INVALID_LINE_ITEM", err.Error(), nil)
	case errors.Is(err, ErrOutOfStock), errors.Is(err, ErrInsufficientStock):
		common.JSONError(w, http.StatusConflict, "OUT_OF_STOCK", err.Error(), nil)
	case errors.Is(err, ErrUndoExpired):
		common.JSONError(w, http.StatusGone, "UNDO_EXPIRED", "undo window has passed", nil)
	case errors.Is(err, promotion.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "PROMOTION_NOT_FOUND", "promotion not found", nil)
	case errors.Is(err, promotion.ErrInactive), errors.Is(err, promotion.ErrNotStarted),
		errors.Is(err, promotion.ErrExpired), errors.Is(err, promotion.ErrMinQuantityUnmet),
		errors.Is(err, promotion.ErrUnsupportedType):
		common.JSONError(w, http.StatusUnprocessableEntity, "PROMOTION_NOT_APPLICABLE", err.Error(), nil)
	case errors.Is(err, lock.ErrNotAcquired):
		common.JSONError(w, http.StatusConflict, "CART_BUSY", "cart is being updated, retry shortly", nil)
	default:
		if _, ok := common.AsAppError(err); !ok {
			obs.Logger(r.Context()).Error().Err(err).Msg("cart request failed")
		}
		common.WriteError(w, err)
	}
}
