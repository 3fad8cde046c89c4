package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/vaxcart-api/internal/db"
	dbgen "github.com/noah-isme/vaxcart-api/internal/db/gen"
	"github.com/noah-isme/vaxcart-api/internal/events"
	"github.com/noah-isme/vaxcart-api/internal/obs"
)

// orderDelivered is the order status written when its delivery completes.
const orderDelivered = "DELIVERED"

var (
	// ErrDeliveryNotFound is returned when no delivery matches the lookup.
	ErrDeliveryNotFound = errors.New("delivery not found")
	// ErrNotTrackable is returned when a delivery has no courier assigned yet.
	ErrNotTrackable = errors.New("delivery has no courier assigned")
	// ErrDeliveryClosed is returned when reassigning a delivered parcel.
	ErrDeliveryClosed = errors.New("delivery already completed")
)

// Sources label where a status update came from.
const (
	SourceWebhook = "webhook"
	SourcePoll    = "poll"
)

type queryProvider interface {
	GetDeliveryByOrder(ctx context.Context, orderID pgtype.UUID) (dbgen.Delivery, error)
	GetDeliveryByTracking(ctx context.Context, arg dbgen.GetDeliveryByTrackingParams) (dbgen.Delivery, error)
	AssignCourier(ctx context.Context, arg dbgen.AssignCourierParams) (dbgen.Delivery, error)
	ListTrackableDeliveries(ctx context.Context, limit int32) ([]dbgen.Delivery, error)
	ListDeliveryEvents(ctx context.Context, deliveryID pgtype.UUID) ([]dbgen.DeliveryEvent, error)
}

// TxStore is the query surface used inside an update transaction.
type TxStore interface {
	GetDeliveryForUpdate(ctx context.Context, id pgtype.UUID) (dbgen.Delivery, error)
	InsertDeliveryEvent(ctx context.Context, arg dbgen.InsertDeliveryEventParams) (dbgen.DeliveryEvent, error)
	UpdateDeliveryStatus(ctx context.Context, arg dbgen.UpdateDeliveryStatusParams) (dbgen.Delivery, error)
	UpdateOrderStatus(ctx context.Context, arg dbgen.UpdateOrderStatusParams) error
	events.EventStore
}

// TxRunner runs fn inside a database transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(TxStore) error) error
}

// PgxTx runs tracking transactions on a pgx pool.
type PgxTx struct {
	Pool db.Beginner
}

func (p PgxTx) InTx(ctx context.Context, fn func(TxStore) error) error {
	return db.RunInTx(ctx, p.Pool, func(q *dbgen.Queries) error { return fn(q) })
}

// Enqueuer schedules background tasks; *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Service owns delivery state. Status only changes through Apply.
type Service struct {
	Q        queryProvider
	Tx       TxRunner
	Bus      *events.Bus
	Provider Provider
	Queue    Enqueuer
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Update is an external status report for a delivery.
type Update struct {
	Status      Status
	Description string
	Location    string
	OccurredAt  time.Time
	Raw         []byte
	Source      string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// ByOrder loads the delivery for an order.
func (s *Service) ByOrder(ctx context.Context, orderID pgtype.UUID) (dbgen.Delivery, error) {
	d, err := s.Q.GetDeliveryByOrder(ctx, orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return dbgen.Delivery{}, ErrDeliveryNotFound
	}
	return d, err
}

// Timeline returns the order's delivery with its accepted events, oldest first.
func (s *Service) Timeline(ctx context.Context, orderID pgtype.UUID) (View, error) {
	d, err := s.ByOrder(ctx, orderID)
	if err != nil {
		return View{}, err
	}
	evs, err := s.Q.ListDeliveryEvents(ctx, d.ID)
	if err != nil {
		return View{}, fmt.Errorf("list delivery events: %w", err)
	}
	return NewView(d, evs), nil
}

// ByTracking loads the delivery a courier refers to by tracking number.
func (s *Service) ByTracking(ctx context.Context, courier, number string) (dbgen.Delivery, error) {
	d, err := s.Q.GetDeliveryByTracking(ctx, dbgen.GetDeliveryByTrackingParams{
		Courier:        db.Text(normaliseLabel(courier)),
		TrackingNumber: db.Text(strings.TrimSpace(number)),
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return dbgen.Delivery{}, ErrDeliveryNotFound
	}
	return d, err
}

// Apply moves the delivery to u.Status. Repeating the current status is a
// no-op and reports changed=false; moving backwards fails with
// ErrInvalidTransition. The event row, the delivery row, the order status and
// the domain event are written in one transaction.
func (s *Service) Apply(ctx context.Context, deliveryID pgtype.UUID, u Update) (dbgen.Delivery, bool, error) {
	if !u.Status.Valid() {
		return dbgen.Delivery{}, false, fmt.Errorf("status %q: %w", u.Status, ErrInvalidTransition)
	}
	occurredAt := u.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}
	var (
		out     dbgen.Delivery
		changed bool
		emitted *dbgen.DomainEvent
	)
	err := s.Tx.InTx(ctx, func(q TxStore) error {
		current, err := q.GetDeliveryForUpdate(ctx, deliveryID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDeliveryNotFound
		}
		if err != nil {
			return fmt.Errorf("lock delivery: %w", err)
		}
		from := Status(current.Status)
		if err := CanTransition(from, u.Status); err != nil {
			return err
		}
		if from == u.Status {
			out = current
			return nil
		}
		if _, err := q.InsertDeliveryEvent(ctx, dbgen.InsertDeliveryEventParams{
			DeliveryID:  current.ID,
			Status:      string(u.Status),
			Description: db.Text(u.Description),
			Location:    db.Text(u.Location),
			OccurredAt:  db.Timestamptz(occurredAt),
			RawPayload:  rawOrEmpty(u.Raw),
		}); err != nil {
			return fmt.Errorf("insert delivery event: %w", err)
		}
		updated, err := q.UpdateDeliveryStatus(ctx, dbgen.UpdateDeliveryStatusParams{
			ID:          current.ID,
			Status:      string(u.Status),
			LastEventAt: db.Timestamptz(occurredAt),
		})
		if err != nil {
			return fmt.Errorf("update delivery: %w", err)
		}
		if u.Status == Delivered {
			if err := q.UpdateOrderStatus(ctx, dbgen.UpdateOrderStatusParams{ID: current.OrderID, Status: orderDelivered}); err != nil {
				return fmt.Errorf("update order status: %w", err)
			}
		}
		if topic, ok := topicFor(u.Status); ok && s.Bus != nil {
			ev, err := s.Bus.Persist(ctx, q, topic, current.OrderID, map[string]any{
				"orderId":    db.UUIDString(current.OrderID),
				"deliveryId": db.UUIDString(current.ID),
				"from":       string(from),
				"status":     string(u.Status),
				"progress":   u.Status.Progress(),
				"source":     u.Source,
			})
			if err != nil {
				return err
			}
			emitted = &ev
		}
		out, changed = updated, true
		return nil
	})
	if err != nil {
		return dbgen.Delivery{}, false, err
	}
	if changed {
		obs.Inc(obs.DeliveryTransitionsTotal, sourceLabel(u.Source), string(u.Status))
		if emitted != nil {
			if err := s.Bus.Dispatch(ctx, *emitted); err != nil {
				s.Logger.Warn().Err(err).Str("topic", emitted.Topic).Msg("event dispatch failed")
			}
		}
	}
	return out, changed, nil
}

// AssignCourier records the courier and tracking number for an order's
// delivery and schedules a poll for it.
func (s *Service) AssignCourier(ctx context.Context, orderID pgtype.UUID, courier, number string) (dbgen.Delivery, error) {
	current, err := s.ByOrder(ctx, orderID)
	if err != nil {
		return dbgen.Delivery{}, err
	}
	if Status(current.Status).Terminal() {
		return dbgen.Delivery{}, ErrDeliveryClosed
	}
	d, err := s.Q.AssignCourier(ctx, dbgen.AssignCourierParams{
		OrderID:        orderID,
		Courier:        db.Text(normaliseLabel(courier)),
		TrackingNumber: db.Text(strings.TrimSpace(number)),
	})
	if err != nil {
		return dbgen.Delivery{}, fmt.Errorf("assign courier: %w", err)
	}
	if s.Queue != nil {
		if err := s.enqueuePoll(ctx, db.UUIDString(orderID)); err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
			s.Logger.Warn().Err(err).Str("order_id", db.UUIDString(orderID)).Msg("schedule delivery poll failed")
		}
	}
	return d, nil
}

// Poll asks the courier for the parcel's scans and applies every one that
// moves the delivery forward.
func (s *Service) Poll(ctx context.Context, orderID pgtype.UUID) (dbgen.Delivery, error) {
	if s.Provider == nil {
		return dbgen.Delivery{}, errors.New("tracking: provider not configured")
	}
	d, err := s.ByOrder(ctx, orderID)
	if err != nil {
		return dbgen.Delivery{}, err
	}
	if !d.Courier.Valid || !d.TrackingNumber.Valid {
		return d, ErrNotTrackable
	}
	if Status(d.Status).Terminal() {
		return d, nil
	}
	scans, err := s.Provider.Track(ctx, TrackReq{Courier: d.Courier.String, TrackingNumber: d.TrackingNumber.String})
	if err != nil {
		return d, err
	}
	for _, scan := range scans {
		status, ok := MapExternal(scan.Status)
		if !ok || status.Rank() <= Status(d.Status).Rank() {
			continue
		}
		next, changed, err := s.Apply(ctx, d.ID, Update{
			Status:      status,
			Description: scan.Description,
			Location:    scan.Location,
			OccurredAt:  scan.OccurredAt,
			Source:      SourcePoll,
		})
		if errors.Is(err, ErrInvalidTransition) {
			// A webhook moved the delivery further meanwhile.
			continue
		}
		if err != nil {
			return d, err
		}
		if changed {
			d = next
		}
	}
	return d, nil
}

// ScheduleOpen enqueues a poll for every open delivery with a courier.
func (s *Service) ScheduleOpen(ctx context.Context, limit int32) (int, error) {
	if s.Queue == nil {
		return 0, errors.New("tracking: queue not configured")
	}
	deliveries, err := s.Q.ListTrackableDeliveries(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list trackable deliveries: %w", err)
	}
	scheduled := 0
	for _, d := range deliveries {
		err := s.enqueuePoll(ctx, db.UUIDString(d.OrderID))
		if errors.Is(err, asynq.ErrDuplicateTask) {
			continue
		}
		if err != nil {
			return scheduled, err
		}
		scheduled++
	}
	return scheduled, nil
}

// pollUniqueWindow collapses polls for the same order, whether queued by a
// courier assignment or by the periodic sweep.
const pollUniqueWindow = time.Minute

func (s *Service) enqueuePoll(ctx context.Context, orderID string) error {
	task, err := NewPollDeliveryTask(orderID)
	if err != nil {
		return err
	}
	_, err = s.Queue.EnqueueContext(ctx, task,
		asynq.Queue(QueueTracking),
		asynq.MaxRetry(5),
		asynq.Unique(pollUniqueWindow),
	)
	return err
}

func topicFor(status Status) (string, bool) {
	switch status {
	case Dispatched:
		return events.TopicDeliveryDispatched, true
	case InTransit:
		return events.TopicDeliveryInTransit, true
	case Nearby:
		return events.TopicDeliveryNearby, true
	case Delivered:
		return events.TopicDeliveryDelivered, true
	}
	return "", false
}

func sourceLabel(source string) string {
	if source == "" {
		return "unknown"
	}
	return source
}

func rawOrEmpty(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}
