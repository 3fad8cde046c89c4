package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	dbgen "github.com/noah-isme/vaxcart-api/internal/db/gen"
)

// memStore is an in-memory stand-in for both the pool queries and the
// transaction queries.
type memStore struct {
	mu          sync.Mutex
	deliveries  map[uuid.UUID]dbgen.Delivery
	events      []dbgen.DeliveryEvent
	orderStatus map[uuid.UUID]string
	domain      []dbgen.DomainEvent
	failInsert  error
}

func newMemStore() *memStore {
	return &memStore{
		deliveries:  map[uuid.UUID]dbgen.Delivery{},
		orderStatus: map[uuid.UUID]string{},
	}
}

func pgUUID(id uuid.UUID) pgtype.UUID { return pgtype.UUID{Bytes: id, Valid: true} }

func (m *memStore) addDelivery(status Status, courier, number string) dbgen.Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	orderID := uuid.New()
	d := dbgen.Delivery{ID: pgUUID(uuid.New()), OrderID: pgUUID(orderID), Status: string(status)}
	if courier != "" {
		d.Courier = pgtype.Text{String: courier, Valid: true}
		d.TrackingNumber = pgtype.Text{String: number, Valid: true}
	}
	m.deliveries[uuid.UUID(d.ID.Bytes)] = d
	m.orderStatus[orderID] = "CONFIRMED"
	return d
}

func (m *memStore) get(id pgtype.UUID) dbgen.Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deliveries[uuid.UUID(id.Bytes)]
}

func (m *memStore) GetDeliveryByOrder(_ context.Context, orderID pgtype.UUID) (dbgen.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.deliveries {
		if d.OrderID == orderID {
			return d, nil
		}
	}
	return dbgen.Delivery{}, pgx.ErrNoRows
}

func (m *memStore) GetDeliveryByTracking(_ context.Context, arg dbgen.GetDeliveryByTrackingParams) (dbgen.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.deliveries {
		if d.Courier == arg.Courier && d.TrackingNumber == arg.TrackingNumber {
			return d, nil
		}
	}
	return dbgen.Delivery{}, pgx.ErrNoRows
}

func (m *memStore) AssignCourier(_ context.Context, arg dbgen.AssignCourierParams) (dbgen.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, d := range m.deliveries {
		if d.OrderID == arg.OrderID {
			d.Courier, d.TrackingNumber = arg.Courier, arg.TrackingNumber
			m.deliveries[id] = d
			return d, nil
		}
	}
	return dbgen.Delivery{}, pgx.ErrNoRows
}

func (m *memStore) ListTrackableDeliveries(_ context.Context, limit int32) ([]dbgen.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []dbgen.Delivery
	for _, d := range m.deliveries {
		if d.Courier.Valid && d.Status != string(Delivered) && int32(len(out)) < limit {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memStore) ListDeliveryEvents(_ context.Context, deliveryID pgtype.UUID) ([]dbgen.DeliveryEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []dbgen.DeliveryEvent
	for _, ev := range m.events {
		if ev.DeliveryID == deliveryID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memStore) GetDeliveryForUpdate(_ context.Context, id pgtype.UUID) (dbgen.Delivery, error) {
	d, ok := m.deliveries[uuid.UUID(id.Bytes)]
	if !ok {
		return dbgen.Delivery{}, pgx.ErrNoRows
	}
	return d, nil
}

func (m *memStore) InsertDeliveryEvent(_ context.Context, arg dbgen.InsertDeliveryEventParams) (dbgen.DeliveryEvent, error) {
	if m.failInsert != nil {
		return dbgen.DeliveryEvent{}, m.failInsert
	}
	ev := dbgen.DeliveryEvent{
		ID:          pgUUID(uuid.New()),
		DeliveryID:  arg.DeliveryID,
		Status:      arg.Status,
		Description: arg.Description,
		Location:    arg.Location,
		OccurredAt:  arg.OccurredAt,
		RawPayload:  arg.RawPayload,
	}
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *memStore) UpdateDeliveryStatus(_ context.Context, arg dbgen.UpdateDeliveryStatusParams) (dbgen.Delivery, error) {
	d := m.deliveries[uuid.UUID(arg.ID.Bytes)]
	d.Status = arg.Status
	d.LastEventAt = arg.LastEventAt
	m.deliveries[uuid.UUID(arg.ID.Bytes)] = d
	return d, nil
}

func (m *memStore) UpdateOrderStatus(_ context.Context, arg dbgen.UpdateOrderStatusParams) error {
	m.orderStatus[uuid.UUID(arg.ID.Bytes)] = arg.Status
	return nil
}

func (m *memStore) InsertDomainEvent(_ context.Context, arg dbgen.InsertDomainEventParams) (dbgen.DomainEvent, error) {
	ev := dbgen.DomainEvent{
		ID:          pgUUID(uuid.New()),
		Topic:       arg.Topic,
		AggregateID: arg.AggregateID,
		Payload:     arg.Payload,
		OccurredAt:  pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}
	m.domain = append(m.domain, ev)
	return ev, nil
}

// InTx serialises transactions and restores state when fn fails.
func (m *memStore) InTx(_ context.Context, fn func(TxStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	deliveries := make(map[uuid.UUID]dbgen.Delivery, len(m.deliveries))
	for k, v := range m.deliveries {
		deliveries[k] = v
	}
	nEvents, nDomain := len(m.events), len(m.domain)
	if err := fn(m); err != nil {
		m.deliveries = deliveries
		m.events = m.events[:nEvents]
		m.domain = m.domain[:nDomain]
		return err
	}
	return nil
}

type captureQueue struct {
	mu     sync.Mutex
	tasks  []*asynq.Task
	unique map[string]bool
	err    error
}

// EnqueueContext rejects a second unique task with the same type and payload
// the way asynq does while the first one is still queued.
func (c *captureQueue) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	for _, opt := range opts {
		if opt.Type() != asynq.UniqueOpt {
			continue
		}
		key := task.Type() + ":" + string(task.Payload())
		if c.unique[key] {
			return nil, asynq.ErrDuplicateTask
		}
		if c.unique == nil {
			c.unique = map[string]bool{}
		}
		c.unique[key] = true
	}
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{ID: uuid.NewString(), Type: task.Type()}, nil
}

type stubProvider struct {
	events []TrackEvent
	err    error
	calls  int
}

func (s *stubProvider) Track(context.Context, TrackReq) ([]TrackEvent, error) {
	s.calls++
	return s.events, s.err
}
