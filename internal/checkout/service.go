package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/vaxcart-api/internal/cart"
	"github.com/noah-isme/vaxcart-api/internal/catalog"
	"github.com/noah-isme/vaxcart-api/internal/db"
	dbgen "github.com/noah-isme/vaxcart-api/internal/db/gen"
	"github.com/noah-isme/vaxcart-api/internal/events"
	"github.com/noah-isme/vaxcart-api/internal/inventory"
	"github.com/noah-isme/vaxcart-api/internal/loyalty"
	"github.com/noah-isme/vaxcart-api/internal/obs"
	"github.com/noah-isme/vaxcart-api/internal/pricing"
	"github.com/noah-isme/vaxcart-api/internal/tracking"
)

const orderStatusConfirmed = "CONFIRMED"

var (
	// ErrInvalidUser is returned when the caller id is not a UUID.
	ErrInvalidUser = errors.New("invalid user id")
	// ErrOutOfStock is returned when a cart line can no longer be fulfilled.
	ErrOutOfStock = errors.New("cart lines are out of stock")
	// ErrPromotionInvalid is returned when the applied promotion has lapsed.
	ErrPromotionInvalid = errors.New("applied promotion is no longer valid")
)

// UnavailableLine describes a cart line that failed the stock check.
type UnavailableLine struct {
	VaccineID    string          `json:"vaccineId"`
	Name         string          `json:"name"`
	Requested    int             `json:"requested"`
	Available    int             `json:"available"`
	Availability inventory.Label `json:"availability"`
}

// StockError lists every line that failed the stock check.
type StockError struct {
	Lines []UnavailableLine
}

func (e *StockError) Error() string {
	names := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		names = append(names, l.Name)
	}
	return fmt.Sprintf("%s: %s", ErrOutOfStock, strings.Join(names, ", "))
}

func (e *StockError) Unwrap() error { return ErrOutOfStock }

// Carts is the cart surface checkout needs.
type Carts interface {
	Consume(ctx context.Context, id string, fn func(context.Context, cart.Cart) error) error
	Price(ctx context.Context, c cart.Cart, availablePoints int64) (cart.Quote, error)
}

// Catalog refreshes prices and stock for the cart's vaccines.
type Catalog interface {
	GetManyForCheckout(ctx context.Context, vaccineIDs []string) (map[string]catalog.Item, error)
}

// TxStore is the query surface used inside the checkout transaction.
type TxStore interface {
	GetLoyaltyAccountForUpdate(ctx context.Context, userID pgtype.UUID) (dbgen.LoyaltyAccount, error)
	UpsertLoyaltyAccount(ctx context.Context, arg dbgen.UpsertLoyaltyAccountParams) (dbgen.LoyaltyAccount, error)
	CreateOrder(ctx context.Context, arg dbgen.CreateOrderParams) (dbgen.Order, error)
	CreateOrderItem(ctx context.Context, arg dbgen.CreateOrderItemParams) (dbgen.OrderItem, error)
	CreateDelivery(ctx context.Context, arg dbgen.CreateDeliveryParams) (dbgen.Delivery, error)
	events.EventStore
}

// TxRunner runs fn inside a database transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(TxStore) error) error
}

// PgxTx runs checkout transactions on a pgx pool.
type PgxTx struct {
	Pool db.Beginner
}

func (p PgxTx) InTx(ctx context.Context, fn func(TxStore) error) error {
	return db.RunInTx(ctx, p.Pool, func(q *dbgen.Queries) error { return fn(q) })
}

// Service turns a cart into a confirmed order.
type Service struct {
	Carts    Carts
	Catalog  Catalog
	Tx       TxRunner
	Bus      *events.Bus
	Currency string
	Logger   zerolog.Logger
}

// Input is the checkout request.
type Input struct {
	CartID string `json:"cartId" validate:"required,uuid"`
}

// Output is the confirmed order summary.
type Output struct {
	OrderID     string           `json:"orderId"`
	Status      string           `json:"status"`
	Currency    string           `json:"currency"`
	Pricing     pricing.Summary  `json:"pricing"`
	BonusPoints int64            `json:"bonusPoints"`
	Delivery    tracking.View    `json:"delivery"`
	Loyalty     loyalty.Account  `json:"loyalty"`
	Standing    loyalty.Standing `json:"standing"`
}

// Checkout validates stock, prices the cart with fresh catalog data and the
// caller's points, and writes the order, its items, the delivery and the
// loyalty settlement in one transaction. The cart is deleted afterwards.
func (s *Service) Checkout(ctx context.Context, userID string, in Input) (Output, error) {
	uid, err := db.UUID(userID)
	if err != nil {
		obs.Inc(obs.CheckoutTotal, "invalid_user")
		return Output{}, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	var (
		out       Output
		committed bool
		emitted   dbgen.DomainEvent
	)
	err = s.Carts.Consume(ctx, in.CartID, func(ctx context.Context, c cart.Cart) error {
		if len(c.Items) == 0 {
			return cart.ErrEmpty
		}
		refreshed, err := s.refresh(ctx, c)
		if err != nil {
			return err
		}
		err = s.Tx.InTx(ctx, func(q TxStore) error {
			o, ev, err := s.placeOrder(ctx, q, uid, refreshed)
			if err != nil {
				return err
			}
			out, emitted = o, ev
			return nil
		})
		if err != nil {
			return err
		}
		committed = true
		return nil
	})
	if err != nil && !committed {
		obs.Inc(obs.CheckoutTotal, outcome(err))
		return Output{}, err
	}
	if err != nil {
		// The order is durable; only the cart cleanup failed and the cart expires on its own.
		s.Logger.Warn().Err(err).Str("order_id", out.OrderID).Msg("cart cleanup after checkout failed")
	}
	obs.Inc(obs.CheckoutTotal, "ok")
	if s.Bus != nil {
		if err := s.Bus.Dispatch(ctx, emitted); err != nil {
			s.Logger.Warn().Err(err).Str("order_id", out.OrderID).Msg("event dispatch failed")
		}
	}
	return out, nil
}

// refresh replaces each line's price and name with current catalog data and
// rejects lines that stock can no longer cover.
func (s *Service) refresh(ctx context.Context, c cart.Cart) (cart.Cart, error) {
	ids := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.VaccineID)
	}
	items, err := s.Catalog.GetManyForCheckout(ctx, ids)
	if err != nil {
		return cart.Cart{}, err
	}
	var missing []UnavailableLine
	lines := make([]cart.LineItem, 0, len(c.Items))
	for _, it := range c.Items {
		item, ok := items[it.VaccineID]
		if !ok {
			missing = append(missing, UnavailableLine{VaccineID: it.VaccineID, Name: it.Name, Requested: it.Qty, Availability: inventory.OutOfStock})
			continue
		}
		if !item.Stock.Covers(it.Qty) {
			missing = append(missing, UnavailableLine{
				VaccineID:    it.VaccineID,
				Name:         item.Name,
				Requested:    it.Qty,
				Available:    item.Stock.StockLevel,
				Availability: item.Availability,
			})
			continue
		}
		line, err := cart.NewLineItem(item.ID, item.Name, item.DoseLabel, it.Qty, item.Price)
		if err != nil {
			return cart.Cart{}, err
		}
		lines = append(lines, line)
	}
	if len(missing) > 0 {
		return cart.Cart{}, &StockError{Lines: missing}
	}
	c.Items = lines
	return c, nil
}

func (s *Service) placeOrder(ctx context.Context, q TxStore, uid pgtype.UUID, c cart.Cart) (Output, dbgen.DomainEvent, error) {
	acct, err := lockAccount(ctx, q, uid)
	if err != nil {
		return Output{}, dbgen.DomainEvent{}, err
	}
	quote, err := s.Carts.Price(ctx, c, acct.Points)
	if err != nil {
		return Output{}, dbgen.DomainEvent{}, err
	}
	if quote.PromotionError != "" {
		return Output{}, dbgen.DomainEvent{}, fmt.Errorf("%w: %s", ErrPromotionInvalid, quote.PromotionError)
	}
	sum := quote.Summary
	order, err := q.CreateOrder(ctx, dbgen.CreateOrderParams{
		UserID:            uid,
		Status:            orderStatusConfirmed,
		PromotionCode:     db.Text(promotionCode(quote)),
		Subtotal:          sum.Subtotal,
		PromotionDiscount: sum.PromotionDiscount,
		PointsRedeemed:    sum.PointsRedeemed,
		PointsDiscount:    sum.PointsDiscount,
		BonusPoints:       quote.BonusPoints,
		Taxes:             sum.Taxes,
		Shipping:          sum.Shipping,
		Total:             sum.Total,
		Currency:          s.Currency,
	})
	if err != nil {
		return Output{}, dbgen.DomainEvent{}, fmt.Errorf("create order: %w", err)
	}
	for _, it := range c.Items {
		vid, err := db.UUID(it.VaccineID)
		if err != nil {
			return Output{}, dbgen.DomainEvent{}, fmt.Errorf("vaccine id %q: %w", it.VaccineID, err)
		}
		if _, err := q.CreateOrderItem(ctx, dbgen.CreateOrderItemParams{
			OrderID:   order.ID,
			VaccineID: vid,
			Name:      it.Name,
			DoseLabel: it.DoseLabel,
			Qty:       int32(it.Qty),
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal(),
		}); err != nil {
			return Output{}, dbgen.DomainEvent{}, fmt.Errorf("create order item: %w", err)
		}
	}
	delivery, err := q.CreateDelivery(ctx, dbgen.CreateDeliveryParams{OrderID: order.ID, Status: string(tracking.Preparing)})
	if err != nil {
		return Output{}, dbgen.DomainEvent{}, fmt.Errorf("create delivery: %w", err)
	}
	next := acct.Apply(loyalty.Settlement{Redeemed: sum.PointsRedeemed, Bonus: quote.BonusPoints, Spent: sum.Total})
	saved, err := q.UpsertLoyaltyAccount(ctx, dbgen.UpsertLoyaltyAccountParams{
		UserID:      uid,
		Points:      next.Points,
		TotalSpent:  next.TotalSpent,
		OrdersCount: int32(next.OrdersCount),
	})
	if err != nil {
		return Output{}, dbgen.DomainEvent{}, fmt.Errorf("update loyalty account: %w", err)
	}
	orderID := db.UUIDString(order.ID)
	var ev dbgen.DomainEvent
	if s.Bus != nil {
		ev, err = s.Bus.Persist(ctx, q, events.TopicOrderCreated, order.ID, map[string]any{
			"orderId":        orderID,
			"userId":         db.UUIDString(uid),
			"total":          sum.Total,
			"currency":       s.Currency,
			"pointsRedeemed": sum.PointsRedeemed,
			"bonusPoints":    quote.BonusPoints,
		})
		if err != nil {
			return Output{}, dbgen.DomainEvent{}, err
		}
	}
	account := loyalty.FromModel(saved)
	return Output{
		OrderID:     orderID,
		Status:      order.Status,
		Currency:    order.Currency,
		Pricing:     sum,
		BonusPoints: quote.BonusPoints,
		Delivery:    tracking.NewView(delivery, nil),
		Loyalty:     account,
		Standing:    account.Standing(),
	}, ev, nil
}

func lockAccount(ctx context.Context, q TxStore, uid pgtype.UUID) (loyalty.Account, error) {
	row, err := q.GetLoyaltyAccountForUpdate(ctx, uid)
	if errors.Is(err, pgx.ErrNoRows) {
		return loyalty.Account{UserID: db.UUIDString(uid)}, nil
	}
	if err != nil {
		return loyalty.Account{}, fmt.Errorf("lock loyalty account: %w", err)
	}
	return loyalty.FromModel(row), nil
}

func promotionCode(q cart.Quote) string {
	if q.Promotion == nil {
		return ""
	}
	return q.Promotion.Code
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, ErrPromotionInvalid):
		return "promotion_invalid"
	case errors.Is(err, cart.ErrNotFound), errors.Is(err, cart.ErrEmpty):
		return "invalid_cart"
	default:
		return "error"
	}
}
