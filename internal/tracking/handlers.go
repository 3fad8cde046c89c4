package tracking

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/vaxcart-api/internal/common"
	"github.com/noah-isme/vaxcart-api/internal/db"
	dbgen "github.com/noah-isme/vaxcart-api/internal/db/gen"
)

// View is the client shape of a delivery.
type View struct {
	Status         Status      `json:"status"`
	Progress       int         `json:"progress"`
	Courier        *string     `json:"courier,omitempty"`
	TrackingNumber *string     `json:"trackingNumber,omitempty"`
	LastEventAt    *time.Time  `json:"lastEventAt,omitempty"`
	Events         []EventView `json:"events,omitempty"`
}

// EventView is one accepted status change.
type EventView struct {
	Status      Status    `json:"status"`
	Description *string   `json:"description,omitempty"`
	Location    *string   `json:"location,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// NewView renders a delivery row and its events.
func NewView(d dbgen.Delivery, evs []dbgen.DeliveryEvent) View {
	status := Status(d.Status)
	v := View{
		Status:         status,
		Progress:       status.Progress(),
		Courier:        db.TextPtr(d.Courier),
		TrackingNumber: db.TextPtr(d.TrackingNumber),
		LastEventAt:    db.TimePtr(d.LastEventAt),
	}
	for _, ev := range evs {
		ev := ev
		view := EventView{
			Status:      Status(ev.Status),
			Description: db.TextPtr(ev.Description),
			Location:    db.TextPtr(ev.Location),
		}
		if ev.OccurredAt.Valid {
			view.OccurredAt = ev.OccurredAt.Time
		}
		v.Events = append(v.Events, view)
	}
	return v
}

// AdminHandler exposes operator actions on deliveries.
type AdminHandler struct {
	Svc *Service
}

type assignRequest struct {
	Courier        string `json:"courier" validate:"required,max=64"`
	TrackingNumber string `json:"trackingNumber" validate:"required,max=128"`
}

// AssignCourier handles POST /admin/orders/{id}/delivery.
func (h AdminHandler) AssignCourier(w http.ResponseWriter, r *http.Request) {
	orderID, err := db.UUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "DELIVERY_NOT_FOUND", "delivery not found", nil)
		return
	}
	var req assignRequest
	if err := common.DecodeAndValidate(w, r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	d, err := h.Svc.AssignCourier(r.Context(), orderID, req.Courier, req.TrackingNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": NewView(d, nil)})
}
