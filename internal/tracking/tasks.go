package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/vaxcart-api/internal/db"
)

// Task types and the queue they run on.
const (
	TypePollDelivery = "tracking:poll_delivery"
	TypePollOpen     = "tracking:poll_open"
	QueueTracking    = "tracking"
)

type pollPayload struct {
	OrderID string `json:"orderId"`
}

// NewPollDeliveryTask builds a task that polls one order's courier.
func NewPollDeliveryTask(orderID string) (*asynq.Task, error) {
	payload, err := json.Marshal(pollPayload{OrderID: orderID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePollDelivery, payload), nil
}

// NewPollOpenTask builds the periodic task that fans out per-delivery polls.
func NewPollOpenTask() *asynq.Task {
	return asynq.NewTask(TypePollOpen, nil)
}

// Worker adapts the tracking service to asynq handlers.
type Worker struct {
	Svc       *Service
	BatchSize int32
}

// Register mounts the tracking handlers on mux.
func (w Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypePollDelivery, w.HandlePollDelivery)
	mux.HandleFunc(TypePollOpen, w.HandlePollOpen)
}

// HandlePollDelivery polls one delivery. Missing or untracked deliveries and
// parcels unknown to the courier are dropped without retry. Other courier
// rejections are logged and retried.
func (w Worker) HandlePollDelivery(ctx context.Context, t *asynq.Task) error {
	var p pollPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	orderID, err := db.UUID(p.OrderID)
	if err != nil {
		return fmt.Errorf("order id %q: %v: %w", p.OrderID, err, asynq.SkipRetry)
	}
	d, err := w.Svc.Poll(ctx, orderID)
	var rejected *RejectedError
	switch {
	case errors.Is(err, ErrDeliveryNotFound), errors.Is(err, ErrNotTrackable):
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case errors.As(err, &rejected):
		w.Svc.Logger.Warn().Err(err).Str("order_id", p.OrderID).Int("status", rejected.Status).Msg("courier rejected poll")
		if rejected.Status == http.StatusNotFound {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	case err != nil:
		return err
	}
	w.Svc.Logger.Debug().Str("order_id", p.OrderID).Str("status", d.Status).Msg("delivery polled")
	return nil
}

// HandlePollOpen schedules a poll for each open delivery.
func (w Worker) HandlePollOpen(ctx context.Context, _ *asynq.Task) error {
	batch := w.BatchSize
	if batch <= 0 {
		batch = 100
	}
	n, err := w.Svc.ScheduleOpen(ctx, batch)
	if err != nil {
		return err
	}
	w.Svc.Logger.Info().Int("scheduled", n).Msg("delivery polls scheduled")
	return nil
}
