package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	dbgen "github.com/noah-isme/vaxcart-api/internal/db/gen"
	"github.com/noah-isme/vaxcart-api/internal/events"
)

type captureNotifier struct {
	topics []string
}

func (c *captureNotifier) Notify(_ context.Context, ev dbgen.DomainEvent) error {
	c.topics = append(c.topics, ev.Topic)
	return nil
}

func newTestService(store *memStore) (*Service, *captureNotifier, *captureQueue) {
	notifier := &captureNotifier{}
	queue := &captureQueue{}
	return &Service{
		Q:      store,
		Tx:     store,
		Bus:    &events.Bus{Notifiers: []events.Notifier{notifier}},
		Queue:  queue,
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) },
	}, notifier, queue
}

func TestApplyWalksForward(t *testing.T) {
	store := newMemStore()
	svc, notifier, _ := newTestService(store)
	d := store.addDelivery(Preparing, "mock", "TRK-1")
	ctx := context.Background()

	for _, status := range []Status{Dispatched, InTransit, Nearby, Delivered} {
		got, changed, err := svc.Apply(ctx, d.ID, Update{Status: status, Source: SourceWebhook})
		require.NoError(t, err)
		require.True(t, changed)
		require.Equal(t, string(status), got.Status)
	}
	require.Len(t, store.events, 4)
	require.Equal(t, "DELIVERED", store.orderStatus[uuid.UUID(d.OrderID.Bytes)])
	require.Equal(t, []string{
		events.TopicDeliveryDispatched,
		events.TopicDeliveryInTransit,
		events.TopicDeliveryNearby,
		events.TopicDeliveryDelivered,
	}, notifier.topics)
	require.Len(t, store.domain, 4)
}

func TestApplySameStatusIsNoop(t *testing.T) {
	store := newMemStore()
	svc, notifier, _ := newTestService(store)
	d := store.addDelivery(Nearby, "mock", "TRK-2")

	got, changed, err := svc.Apply(context.Background(), d.ID, Update{Status: Nearby})
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, string(Nearby), got.Status)
	require.Empty(t, store.events)
	require.Empty(t, notifier.topics)
}

func TestApplyRejectsBackwards(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	d := store.addDelivery(Nearby, "mock", "TRK-3")

	_, _, err := svc.Apply(context.Background(), d.ID, Update{Status: Dispatched})
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, _, err = svc.Apply(context.Background(), d.ID, Update{Status: "LOST"})
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, string(Nearby), store.get(d.ID).Status)
}

func TestApplyRollsBackOnFailure(t *testing.T) {
	store := newMemStore()
	svc, notifier, _ := newTestService(store)
	d := store.addDelivery(Preparing, "mock", "TRK-4")
	store.failInsert = errors.New("disk full")

	_, _, err := svc.Apply(context.Background(), d.ID, Update{Status: Dispatched})
	require.Error(t, err)
	require.Equal(t, string(Preparing), store.get(d.ID).Status)
	require.Empty(t, notifier.topics)
}

func TestApplyUnknownDelivery(t *testing.T) {
	svc, _, _ := newTestService(newMemStore())
	_, _, err := svc.Apply(context.Background(), pgUUID(uuid.New()), Update{Status: Dispatched})
	require.ErrorIs(t, err, ErrDeliveryNotFound)
}

func TestAssignCourierSchedulesPoll(t *testing.T) {
	store := newMemStore()
	svc, _, queue := newTestService(store)
	d := store.addDelivery(Preparing, "", "")

	got, err := svc.AssignCourier(context.Background(), d.OrderID, " Mock ", " TRK-5 ")
	require.NoError(t, err)
	require.Equal(t, "mock", got.Courier.String)
	require.Equal(t, "TRK-5", got.TrackingNumber.String)
	require.Len(t, queue.tasks, 1)
	require.Equal(t, TypePollDelivery, queue.tasks[0].Type())

	var payload pollPayload
	require.NoError(t, json.Unmarshal(queue.tasks[0].Payload(), &payload))
	require.Equal(t, uuid.UUID(d.OrderID.Bytes).String(), payload.OrderID)

	// a reassignment and the sweep collapse into the queued poll
	_, err = svc.AssignCourier(context.Background(), d.OrderID, "mock", "TRK-6")
	require.NoError(t, err)
	n, err := svc.ScheduleOpen(context.Background(), 10)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Len(t, queue.tasks, 1)
}

func TestAssignCourierRejectsDelivered(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	d := store.addDelivery(Delivered, "mock", "TRK-6")
	_, err := svc.AssignCourier(context.Background(), d.OrderID, "mock", "TRK-7")
	require.ErrorIs(t, err, ErrDeliveryClosed)

	_, err = svc.AssignCourier(context.Background(), pgUUID(uuid.New()), "mock", "TRK-7")
	require.ErrorIs(t, err, ErrDeliveryNotFound)
}

func TestPollAppliesForwardScans(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	d := store.addDelivery(Dispatched, "mock", "TRK-8")
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.Provider = &stubProvider{events: []TrackEvent{
		{Status: "picked_up", OccurredAt: base},
		{Status: "label_created", OccurredAt: base.Add(time.Minute)},
		{Status: "in_transit", OccurredAt: base.Add(time.Hour)},
		{Status: "out_for_delivery", OccurredAt: base.Add(2 * time.Hour)},
	}}

	got, err := svc.Poll(context.Background(), d.OrderID)
	require.NoError(t, err)
	require.Equal(t, string(Nearby), got.Status)
	require.Len(t, store.events, 2)
	require.Equal(t, base.Add(2*time.Hour), store.get(d.ID).LastEventAt.Time)
}

func TestPollRequiresCourier(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	provider := &stubProvider{}
	svc.Provider = provider
	d := store.addDelivery(Preparing, "", "")

	_, err := svc.Poll(context.Background(), d.OrderID)
	require.ErrorIs(t, err, ErrNotTrackable)
	require.Zero(t, provider.calls)
}

func TestScheduleOpen(t *testing.T) {
	store := newMemStore()
	svc, _, queue := newTestService(store)
	store.addDelivery(Dispatched, "mock", "A")
	store.addDelivery(InTransit, "mock", "B")
	store.addDelivery(Delivered, "mock", "C")
	store.addDelivery(Preparing, "", "")

	n, err := svc.ScheduleOpen(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, queue.tasks, 2)

	queue.err = asynq.ErrDuplicateTask
	n, err = svc.ScheduleOpen(context.Background(), 10)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestTimeline(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	d := store.addDelivery(Preparing, "mock", "TRK-9")
	_, _, err := svc.Apply(context.Background(), d.ID, Update{Status: InTransit, Location: "Santiago"})
	require.NoError(t, err)

	view, err := svc.Timeline(context.Background(), d.OrderID)
	require.NoError(t, err)
	require.Equal(t, InTransit, view.Status)
	require.Equal(t, 50, view.Progress)
	require.Len(t, view.Events, 1)
	require.Equal(t, "Santiago", *view.Events[0].Location)
}

func TestWorkerHandlers(t *testing.T) {
	store := newMemStore()
	svc, _, queue := newTestService(store)
	svc.Provider = MockProvider{}
	d := store.addDelivery(Preparing, "mock", "TRK-10")
	w := Worker{Svc: svc, BatchSize: 5}

	task, err := NewPollDeliveryTask(uuid.UUID(d.OrderID.Bytes).String())
	require.NoError(t, err)
	require.NoError(t, w.HandlePollDelivery(context.Background(), task))
	require.Equal(t, string(InTransit), store.get(d.ID).Status)

	bad := asynq.NewTask(TypePollDelivery, []byte(`{"orderId":"nope"}`))
	require.ErrorIs(t, w.HandlePollDelivery(context.Background(), bad), asynq.SkipRetry)

	missing, err := NewPollDeliveryTask(uuid.NewString())
	require.NoError(t, err)
	require.ErrorIs(t, w.HandlePollDelivery(context.Background(), missing), asynq.SkipRetry)

	require.NoError(t, w.HandlePollOpen(context.Background(), NewPollOpenTask()))
	require.Len(t, queue.tasks, 1)
}

func TestWorkerCourierRejections(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	provider := &stubProvider{}
	svc.Provider = provider
	d := store.addDelivery(Dispatched, "mock", "TRK-11")
	w := Worker{Svc: svc}
	task, err := NewPollDeliveryTask(uuid.UUID(d.OrderID.Bytes).String())
	require.NoError(t, err)

	provider.err = &RejectedError{Status: http.StatusNotFound}
	require.ErrorIs(t, w.HandlePollDelivery(context.Background(), task), asynq.SkipRetry)

	provider.err = &RejectedError{Status: http.StatusUnauthorized}
	err = w.HandlePollDelivery(context.Background(), task)
	require.ErrorIs(t, err, ErrTrackingRejected)
	require.NotErrorIs(t, err, asynq.SkipRetry)
	require.Equal(t, string(Dispatched), store.get(d.ID).Status)
	require.Equal(t, 2, provider.calls)
}
