package order

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vaxcart-api/internal/common"
	"github.com/noah-isme/vaxcart-api/internal/db"
	dbgen "github.com/noah-isme/vaxcart-api/internal/db/gen"
	"github.com/noah-isme/vaxcart-api/internal/tracking"
)

type fakeOrders struct {
	orders []dbgen.Order
	items  map[uuid.UUID][]dbgen.OrderItem
	dels   fakeDeliveries
}

func (f *fakeOrders) ListOrdersByUser(_ context.Context, arg dbgen.ListOrdersByUserParams) ([]dbgen.ListOrdersByUserRow, error) {
	var mine []dbgen.Order
	for _, o := range f.orders {
		if o.UserID == arg.UserID {
			mine = append(mine, o)
		}
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].CreatedAt.Time.After(mine[j].CreatedAt.Time) })
	start := int(arg.Offset)
	if start > len(mine) {
		start = len(mine)
	}
	end := start + int(arg.Limit)
	if end > len(mine) {
		end = len(mine)
	}
	out := make([]dbgen.ListOrdersByUserRow, 0, end-start)
	for _, o := range mine[start:end] {
		row := dbgen.ListOrdersByUserRow{Order: o}
		if d, ok := f.dels[uuid.UUID(o.ID.Bytes)]; ok {
			row.DeliveryStatus = db.Text(d.Status)
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeOrders) CountOrdersByUser(_ context.Context, userID pgtype.UUID) (int64, error) {
	var n int64
	for _, o := range f.orders {
		if o.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeOrders) GetOrderForUser(_ context.Context, arg dbgen.GetOrderForUserParams) (dbgen.Order, error) {
	for _, o := range f.orders {
		if o.ID == arg.ID && o.UserID == arg.UserID {
			return o, nil
		}
	}
	return dbgen.Order{}, pgx.ErrNoRows
}

func (f *fakeOrders) GetOrderByID(_ context.Context, id pgtype.UUID) (dbgen.Order, error) {
	for _, o := range f.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return dbgen.Order{}, pgx.ErrNoRows
}

func (f *fakeOrders) ListOrderItems(_ context.Context, orderID pgtype.UUID) ([]dbgen.OrderItem, error) {
	return f.items[uuid.UUID(orderID.Bytes)], nil
}

type fakeDeliveries map[uuid.UUID]dbgen.Delivery

func (f fakeDeliveries) ByOrder(_ context.Context, orderID pgtype.UUID) (dbgen.Delivery, error) {
	d, ok := f[uuid.UUID(orderID.Bytes)]
	if !ok {
		return dbgen.Delivery{}, tracking.ErrDeliveryNotFound
	}
	return d, nil
}

func (f fakeDeliveries) Timeline(ctx context.Context, orderID pgtype.UUID) (tracking.View, error) {
	d, err := f.ByOrder(ctx, orderID)
	if err != nil {
		return tracking.View{}, err
	}
	return tracking.NewView(d, nil), nil
}

type countingDeliveries struct {
	fakeDeliveries
	calls int
}

func (c *countingDeliveries) Timeline(ctx context.Context, orderID pgtype.UUID) (tracking.View, error) {
	c.calls++
	return c.fakeDeliveries.Timeline(ctx, orderID)
}

type fixture struct {
	svc    *Service
	orders *fakeOrders
	dels   fakeDeliveries
	user   uuid.UUID
	base   time.Time
}

func newFixture() *fixture {
	dels := fakeDeliveries{}
	f := &fixture{
		orders: &fakeOrders{items: map[uuid.UUID][]dbgen.OrderItem{}, dels: dels},
		dels:   dels,
		user:   uuid.New(),
		base:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = &Service{Q: f.orders, Deliveries: f.dels}
	return f
}

func (f *fixture) addOrder(owner uuid.UUID, minutes int, total int64) uuid.UUID {
	id := uuid.New()
	f.orders.orders = append(f.orders.orders, dbgen.Order{
		ID:        pgtype.UUID{Bytes: id, Valid: true},
		UserID:    pgtype.UUID{Bytes: owner, Valid: true},
		Status:    "CONFIRMED",
		Subtotal:  total,
		Total:     total,
		Currency:  "DOP",
		CreatedAt: db.Timestamptz(f.base.Add(time.Duration(minutes) * time.Minute)),
	})
	return id
}

func TestListPagesNewestFirst(t *testing.T) {
	f := newFixture()
	first := f.addOrder(f.user, 0, 1000)
	second := f.addOrder(f.user, 10, 2000)
	third := f.addOrder(f.user, 20, 3000)
	f.addOrder(uuid.New(), 30, 9999)
	f.dels[third] = dbgen.Delivery{Status: string(tracking.InTransit)}
	lookups := &countingDeliveries{fakeDeliveries: f.dels}
	f.svc.Deliveries = lookups

	page, err := f.svc.List(context.Background(), f.user.String(), 2, 0)
	require.NoError(t, err)
	require.Zero(t, lookups.calls)
	require.Equal(t, int64(3), page.Total)
	got := []string{page.Orders[0].ID, page.Orders[1].ID}
	if diff := cmp.Diff([]string{third.String(), second.String()}, got); diff != "" {
		t.Fatalf("order ids mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, tracking.InTransit, page.Orders[0].DeliveryStatus)
	require.Empty(t, page.Orders[1].DeliveryStatus)

	page, err = f.svc.List(context.Background(), f.user.String(), 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	require.Equal(t, first.String(), page.Orders[0].ID)
}

func TestGetIncludesItemsAndTimeline(t *testing.T) {
	f := newFixture()
	id := f.addOrder(f.user, 0, 5100)
	vaccine := uuid.New()
	f.orders.items[id] = []dbgen.OrderItem{{
		OrderID:   pgtype.UUID{Bytes: id, Valid: true},
		VaccineID: pgtype.UUID{Bytes: vaccine, Valid: true},
		Name:      "Influenza",
		DoseLabel: "1 dose",
		Qty:       2,
		UnitPrice: 2550,
		Subtotal:  5100,
	}}
	f.dels[id] = dbgen.Delivery{Status: string(tracking.Dispatched), Courier: db.Text("fastvax"), TrackingNumber: db.Text("FV-1")}

	out, err := f.svc.Get(context.Background(), f.user.String(), id.String())
	require.NoError(t, err)
	want := []Item{{VaccineID: vaccine.String(), Name: "Influenza", DoseLabel: "1 dose", Qty: 2, UnitPrice: 2550, Subtotal: 5100}}
	if diff := cmp.Diff(want, out.Items); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
	require.NotNil(t, out.Delivery)
	require.Equal(t, tracking.Dispatched, out.Delivery.Status)
	require.Equal(t, 25, out.Delivery.Progress)
	require.Equal(t, "FV-1", *out.Delivery.TrackingNumber)
	require.Equal(t, tracking.Dispatched, out.DeliveryStatus)
}

func TestGetHidesOtherUsersOrders(t *testing.T) {
	f := newFixture()
	theirs := f.addOrder(uuid.New(), 0, 1000)

	_, err := f.svc.Get(context.Background(), f.user.String(), theirs.String())
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Get(context.Background(), f.user.String(), "garbage")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Get(context.Background(), "garbage", theirs.String())
	require.ErrorIs(t, err, ErrInvalidUser)

	out, err := f.svc.GetAny(context.Background(), theirs.String())
	require.NoError(t, err)
	require.Nil(t, out.Delivery)
}

func TestHandlers(t *testing.T) {
	f := newFixture()
	id := f.addOrder(f.user, 0, 7518)
	h := &Handler{Svc: f.svc}
	r := chi.NewRouter()
	r.Get("/orders", h.List)
	r.Get("/orders/{orderId}", h.Get)

	authed := func(req *http.Request) *http.Request {
		return req.WithContext(common.WithPrincipal(req.Context(), common.Principal{UserID: f.user.String()}))
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/orders?page=1&per_page=5", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-Total-Count"))
	var list struct {
		Data       []Summary         `json:"data"`
		Pagination common.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	require.Equal(t, int64(7518), list.Data[0].Pricing.Total)
	require.Equal(t, common.Pagination{Page: 1, PerPage: 5, TotalItems: 1}, list.Pagination)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/orders/"+id.String(), nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), id.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/orders/"+uuid.NewString(), nil)))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
