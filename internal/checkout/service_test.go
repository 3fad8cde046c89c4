package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vaxcart-api/internal/cart"
	"github.com/noah-isme/vaxcart-api/internal/catalog"
	"github.com/noah-isme/vaxcart-api/internal/common"
	dbgen "github.com/noah-isme/vaxcart-api/internal/db/gen"
	"github.com/noah-isme/vaxcart-api/internal/events"
	"github.com/noah-isme/vaxcart-api/internal/inventory"
	"github.com/noah-isme/vaxcart-api/internal/lock"
	"github.com/noah-isme/vaxcart-api/internal/pricing"
	"github.com/noah-isme/vaxcart-api/internal/promotion"
)

type fakeCatalog map[string]catalog.Item

func (f fakeCatalog) GetForCart(_ context.Context, id string) (catalog.Item, error) {
	item, ok := f[id]
	if !ok {
		return catalog.Item{}, catalog.ErrNotFound
	}
	return item, nil
}

func (f fakeCatalog) GetManyForCheckout(_ context.Context, ids []string) (map[string]catalog.Item, error) {
	out := map[string]catalog.Item{}
	for _, id := range ids {
		if item, ok := f[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

func (f fakeCatalog) put(id, name string, price int64, stock int) {
	rec := inventory.Record{VaccineID: id, StockLevel: stock, LowStockThreshold: 2, IsAvailable: true}
	label := inventory.Classify(rec)
	f[id] = catalog.Item{ID: id, Name: name, DoseLabel: "1 dose", Price: price, Stock: rec, Availability: label, CanAddToCart: label.CanAddToCart()}
}

type fakePromotions map[string]promotion.Promotion

func (f fakePromotions) ByCode(_ context.Context, code string) (promotion.Promotion, error) {
	p, ok := f[promotion.NormalizeCode(code)]
	if !ok {
		return promotion.Promotion{}, promotion.ErrNotFound
	}
	return p, nil
}

type memTx struct {
	accounts map[uuid.UUID]dbgen.LoyaltyAccount
	orders   []dbgen.CreateOrderParams
	items    []dbgen.CreateOrderItemParams
	delivery []dbgen.CreateDeliveryParams
	domain   []dbgen.InsertDomainEventParams
	failOn   string
}

func newMemTx() *memTx {
	return &memTx{accounts: map[uuid.UUID]dbgen.LoyaltyAccount{}}
}

func (m *memTx) InTx(_ context.Context, fn func(TxStore) error) error {
	snapshot := *m
	accounts := make(map[uuid.UUID]dbgen.LoyaltyAccount, len(m.accounts))
	for k, v := range m.accounts {
		accounts[k] = v
	}
	if err := fn(m); err != nil {
		*m = snapshot
		m.accounts = accounts
		return err
	}
	return nil
}

func (m *memTx) fail(op string) error {
	if m.failOn == op {
		return fmt.Errorf("%s failed", op)
	}
	return nil
}

func (m *memTx) GetLoyaltyAccountForUpdate(_ context.Context, id pgtype.UUID) (dbgen.LoyaltyAccount, error) {
	row, ok := m.accounts[uuid.UUID(id.Bytes)]
	if !ok {
		return dbgen.LoyaltyAccount{}, pgx.ErrNoRows
	}
	return row, nil
}

func (m *memTx) UpsertLoyaltyAccount(_ context.Context, arg dbgen.UpsertLoyaltyAccountParams) (dbgen.LoyaltyAccount, error) {
	if err := m.fail("loyalty"); err != nil {
		return dbgen.LoyaltyAccount{}, err
	}
	row := dbgen.LoyaltyAccount{UserID: arg.UserID, Points: arg.Points, TotalSpent: arg.TotalSpent, OrdersCount: arg.OrdersCount}
	m.accounts[uuid.UUID(arg.UserID.Bytes)] = row
	return row, nil
}

func (m *memTx) CreateOrder(_ context.Context, arg dbgen.CreateOrderParams) (dbgen.Order, error) {
	m.orders = append(m.orders, arg)
	return dbgen.Order{ID: pgtype.UUID{Bytes: uuid.New(), Valid: true}, UserID: arg.UserID, Status: arg.Status, Currency: arg.Currency, Total: arg.Total}, nil
}

func (m *memTx) CreateOrderItem(_ context.Context, arg dbgen.CreateOrderItemParams) (dbgen.OrderItem, error) {
	m.items = append(m.items, arg)
	return dbgen.OrderItem{OrderID: arg.OrderID, Qty: arg.Qty}, nil
}

func (m *memTx) CreateDelivery(_ context.Context, arg dbgen.CreateDeliveryParams) (dbgen.Delivery, error) {
	m.delivery = append(m.delivery, arg)
	return dbgen.Delivery{ID: pgtype.UUID{Bytes: uuid.New(), Valid: true}, OrderID: arg.OrderID, Status: arg.Status}, nil
}

func (m *memTx) InsertDomainEvent(_ context.Context, arg dbgen.InsertDomainEventParams) (dbgen.DomainEvent, error) {
	m.domain = append(m.domain, arg)
	return dbgen.DomainEvent{ID: pgtype.UUID{Bytes: uuid.New(), Valid: true}, Topic: arg.Topic, AggregateID: arg.AggregateID, Payload: arg.Payload}, nil
}

type topics []string

func (t *topics) Notify(_ context.Context, ev dbgen.DomainEvent) error {
	*t = append(*t, ev.Topic)
	return nil
}

type fixture struct {
	carts  *cart.Service
	cat    fakeCatalog
	promo  fakePromotions
	tx     *memTx
	svc    *Service
	topics *topics
	user   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{cat: fakeCatalog{}, promo: fakePromotions{}, tx: newMemTx(), topics: &topics{}, user: uuid.New()}
	f.carts = &cart.Service{
		Store:      &cart.Store{R: rdb, TTL: time.Hour, UndoTTL: 30 * time.Second},
		Locker:     lock.Locker{R: rdb, RetryBackoff: time.Millisecond},
		Catalog:    f.cat,
		Promotions: f.promo,
		Policy:     pricing.DefaultPolicy(),
		LockTTL:    time.Second,
	}
	f.svc = &Service{
		Carts:    f.carts,
		Catalog:  f.cat,
		Tx:       f.tx,
		Bus:      &events.Bus{Notifiers: []events.Notifier{f.topics}},
		Currency: "DOP",
		Logger:   zerolog.Nop(),
	}
	return f
}

func (f *fixture) cartWith(t *testing.T, lines map[string]int) string {
	t.Helper()
	ctx := context.Background()
	c, err := f.carts.Create(ctx)
	require.NoError(t, err)
	for id, qty := range lines {
		_, err := f.carts.AddItem(ctx, c.ID, id, qty)
		require.NoError(t, err)
	}
	return c.ID
}

func TestCheckoutPlacesOrderAndSettlesPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hpv := uuid.NewString()
	f.cat.put(hpv, "HPV", 10_000, 20)
	f.tx.accounts[f.user] = dbgen.LoyaltyAccount{UserID: pgtype.UUID{Bytes: f.user, Valid: true}, Points: 600, TotalSpent: 1000, OrdersCount: 1}
	f.promo["BONUS"] = promotion.Promotion{Code: "BONUS", DiscountType: promotion.Points, DiscountValue: 150, Active: true}

	cartID := f.cartWith(t, map[string]int{hpv: 2})
	_, err := f.carts.ApplyPromotion(ctx, cartID, "bonus")
	require.NoError(t, err)
	_, err = f.carts.SetRedeemPoints(ctx, cartID, true)
	require.NoError(t, err)

	out, err := f.svc.Checkout(ctx, f.user.String(), Input{CartID: cartID})
	require.NoError(t, err)

	// subtotal 20000, points capped at 10% = 2000 but only 600 available
	require.Equal(t, pricing.Summary{
		Subtotal:       20_000,
		PointsDiscount: 600,
		PointsRedeemed: 600,
		Taxes:          3492,
		Shipping:       0,
		Total:          22_892,
	}, out.Pricing)
	require.Equal(t, int64(150), out.BonusPoints)
	require.Equal(t, "CONFIRMED", out.Status)
	require.Equal(t, "PREPARING", string(out.Delivery.Status))
	require.Equal(t, int64(150), out.Loyalty.Points)
	require.Equal(t, int64(23_892), out.Loyalty.TotalSpent)
	require.Equal(t, 2, out.Loyalty.OrdersCount)

	require.Len(t, f.tx.orders, 1)
	require.Equal(t, "BONUS", f.tx.orders[0].PromotionCode.String)
	require.Len(t, f.tx.items, 1)
	require.Equal(t, int32(2), f.tx.items[0].Qty)
	require.Len(t, f.tx.delivery, 1)
	require.Equal(t, []string{events.TopicOrderCreated}, []string(*f.topics))

	_, err = f.carts.Get(ctx, cartID)
	require.ErrorIs(t, err, cart.ErrNotFound)
}

func TestCheckoutUsesCurrentCatalogPrice(t *testing.T) {
	f := newFixture(t)
	flu := uuid.NewString()
	f.cat.put(flu, "Influenza", 2550, 40)
	cartID := f.cartWith(t, map[string]int{flu: 2})
	f.cat.put(flu, "Influenza", 3000, 40)

	out, err := f.svc.Checkout(context.Background(), f.user.String(), Input{CartID: cartID})
	require.NoError(t, err)
	require.Equal(t, int64(6000), out.Pricing.Subtotal)
	require.Equal(t, int64(3000), f.tx.items[0].UnitPrice)
}

func TestCheckoutRejectsStockShortfall(t *testing.T) {
	f := newFixture(t)
	a, b := uuid.NewString(), uuid.NewString()
	f.cat.put(a, "MMR", 4000, 10)
	f.cat.put(b, "Tdap", 3500, 10)
	cartID := f.cartWith(t, map[string]int{a: 3, b: 1})
	f.cat.put(a, "MMR", 4000, 2)
	delete(f.cat, b)

	_, err := f.svc.Checkout(context.Background(), f.user.String(), Input{CartID: cartID})
	require.ErrorIs(t, err, ErrOutOfStock)
	var stockErr *StockError
	require.True(t, errors.As(err, &stockErr))
	require.Len(t, stockErr.Lines, 2)
	require.Empty(t, f.tx.orders)

	_, err = f.carts.Get(context.Background(), cartID)
	require.NoError(t, err, "cart survives a failed checkout")
}

func TestCheckoutRejectsLapsedPromotion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flu := uuid.NewString()
	f.cat.put(flu, "Influenza", 2550, 40)
	f.promo["SAVE10"] = promotion.Promotion{Code: "SAVE10", DiscountType: promotion.Percentage, DiscountValue: 1000, Active: true}
	cartID := f.cartWith(t, map[string]int{flu: 1})
	_, err := f.carts.ApplyPromotion(ctx, cartID, "SAVE10")
	require.NoError(t, err)
	delete(f.promo, "SAVE10")

	_, err = f.svc.Checkout(ctx, f.user.String(), Input{CartID: cartID})
	require.ErrorIs(t, err, ErrPromotionInvalid)
}

func TestCheckoutRollsBackOnWriteFailure(t *testing.T) {
	f := newFixture(t)
	flu := uuid.NewString()
	f.cat.put(flu, "Influenza", 2550, 40)
	cartID := f.cartWith(t, map[string]int{flu: 1})
	f.tx.failOn = "loyalty"

	_, err := f.svc.Checkout(context.Background(), f.user.String(), Input{CartID: cartID})
	require.Error(t, err)
	require.Empty(t, f.tx.orders)
	require.Empty(t, *f.topics)
	_, err = f.carts.Get(context.Background(), cartID)
	require.NoError(t, err)
}

func TestCheckoutInputErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, "not-a-uuid", Input{CartID: uuid.NewString()})
	require.ErrorIs(t, err, ErrInvalidUser)

	_, err = f.svc.Checkout(ctx, f.user.String(), Input{CartID: uuid.NewString()})
	require.ErrorIs(t, err, cart.ErrNotFound)

	empty := f.cartWith(t, nil)
	_, err = f.svc.Checkout(ctx, f.user.String(), Input{CartID: empty})
	require.ErrorIs(t, err, cart.ErrEmpty)
}

func TestCheckoutHandler(t *testing.T) {
	f := newFixture(t)
	flu := uuid.NewString()
	f.cat.put(flu, "Influenza", 2550, 40)
	cartID := f.cartWith(t, map[string]int{flu: 2})
	h := &Handler{Svc: f.svc}

	call := func(body string, authed bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		if authed {
			req = req.WithContext(common.WithPrincipal(req.Context(), common.Principal{UserID: f.user.String()}))
		}
		rec := httptest.NewRecorder()
		h.Checkout(rec, req)
		return rec
	}

	require.Equal(t, http.StatusUnauthorized, call(`{"cartId":"`+cartID+`"}`, false).Code)
	require.Equal(t, http.StatusBadRequest, call(`{"cartId":"nope"}`, true).Code)
	require.Equal(t, http.StatusNotFound, call(`{"cartId":"`+uuid.NewString()+`"}`, true).Code)

	rec := call(`{"cartId":"`+cartID+`"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body struct {
		Data struct {
			OrderID string          `json:"orderId"`
			Pricing pricing.Summary `json:"pricing"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.OrderID)
	require.Equal(t, int64(7518), body.Data.Pricing.Total)
}

func TestCheckoutHandlerStockConflict(t *testing.T) {
	f := newFixture(t)
	flu := uuid.NewString()
	f.cat.put(flu, "Influenza", 2550, 40)
	cartID := f.cartWith(t, map[string]int{flu: 5})
	f.cat.put(flu, "Influenza", 2550, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewBufferString(`{"cartId":"`+cartID+`"}`))
	req = req.WithContext(common.WithPrincipal(req.Context(), common.Principal{UserID: f.user.String()}))
	rec := httptest.NewRecorder()
	(&Handler{Svc: f.svc}).Checkout(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"OUT_OF_STOCK"`)
	require.Contains(t, rec.Body.String(), `"availability":"OUT_OF_STOCK"`)
}
