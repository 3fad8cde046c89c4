package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/vaxcart-api/internal/db"
	dbgen "github.com/noah-isme/vaxcart-api/internal/db/gen"
	"github.com/noah-isme/vaxcart-api/internal/pricing"
	"github.com/noah-isme/vaxcart-api/internal/tracking"
)

var (
	// ErrNotFound is returned when the order does not exist or belongs to someone else.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidUser is returned when the caller id is not a UUID.
	ErrInvalidUser = errors.New("invalid user id")
)

// Querier is the read surface over orders.
type Querier interface {
	ListOrdersByUser(ctx context.Context, arg dbgen.ListOrdersByUserParams) ([]dbgen.ListOrdersByUserRow, error)
	CountOrdersByUser(ctx context.Context, userID pgtype.UUID) (int64, error)
	GetOrderForUser(ctx context.Context, arg dbgen.GetOrderForUserParams) (dbgen.Order, error)
	GetOrderByID(ctx context.Context, id pgtype.UUID) (dbgen.Order, error)
	ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]dbgen.OrderItem, error)
}

// Deliveries resolves the delivery attached to an order.
type Deliveries interface {
	Timeline(ctx context.Context, orderID pgtype.UUID) (tracking.View, error)
}

// Service reads order history.
type Service struct {
	Q          Querier
	Deliveries Deliveries
}

// Summary is an order as shown in the history list.
type Summary struct {
	ID             string          `json:"id"`
	Status         string          `json:"status"`
	Currency       string          `json:"currency"`
	PromotionCode  *string         `json:"promotionCode,omitempty"`
	Pricing        pricing.Summary `json:"pricing"`
	BonusPoints    int64           `json:"bonusPoints"`
	DeliveryStatus tracking.Status `json:"deliveryStatus,omitempty"`
	CreatedAt      *time.Time      `json:"createdAt,omitempty"`
}

// Item is one purchased line.
type Item struct {
	VaccineID string `json:"vaccineId"`
	Name      string `json:"name"`
	DoseLabel string `json:"doseLabel"`
	Qty       int    `json:"qty"`
	UnitPrice int64  `json:"unitPrice"`
	Subtotal  int64  `json:"subtotal"`
}

// Detail is a single order with its lines and delivery timeline.
type Detail struct {
	Summary
	Items    []Item         `json:"items"`
	Delivery *tracking.View `json:"delivery,omitempty"`
}

// Page is one page of a user's order history, newest first.
type Page struct {
	Orders []Summary
	Total  int64
}

// List returns a page of the user's orders. The delivery status comes from
// the same query.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) (Page, error) {
	uid, err := db.UUID(userID)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	total, err := s.Q.CountOrdersByUser(ctx, uid)
	if err != nil {
		return Page{}, fmt.Errorf("count orders: %w", err)
	}
	rows, err := s.Q.ListOrdersByUser(ctx, dbgen.ListOrdersByUserParams{UserID: uid, Limit: int32(limit), Offset: int32(offset)})
	if err != nil {
		return Page{}, fmt.Errorf("list orders: %w", err)
	}
	page := Page{Orders: make([]Summary, 0, len(rows)), Total: total}
	for _, row := range rows {
		sum := toSummary(row.Order)
		if row.DeliveryStatus.Valid {
			sum.DeliveryStatus = tracking.Status(row.DeliveryStatus.String)
		}
		page.Orders = append(page.Orders, sum)
	}
	return page, nil
}

// Get loads one of the user's orders.
func (s *Service) Get(ctx context.Context, userID, orderID string) (Detail, error) {
	uid, err := db.UUID(userID)
	if err != nil {
		return Detail{}, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	oid, err := db.UUID(orderID)
	if err != nil {
		return Detail{}, ErrNotFound
	}
	row, err := s.Q.GetOrderForUser(ctx, dbgen.GetOrderForUserParams{ID: oid, UserID: uid})
	if errors.Is(err, pgx.ErrNoRows) {
		return Detail{}, ErrNotFound
	}
	if err != nil {
		return Detail{}, fmt.Errorf("load order: %w", err)
	}
	return s.detail(ctx, row)
}

// GetAny loads an order regardless of owner.
func (s *Service) GetAny(ctx context.Context, orderID string) (Detail, error) {
	oid, err := db.UUID(orderID)
	if err != nil {
		return Detail{}, ErrNotFound
	}
	row, err := s.Q.GetOrderByID(ctx, oid)
	if errors.Is(err, pgx.ErrNoRows) {
		return Detail{}, ErrNotFound
	}
	if err != nil {
		return Detail{}, fmt.Errorf("load order: %w", err)
	}
	return s.detail(ctx, row)
}

func (s *Service) detail(ctx context.Context, row dbgen.Order) (Detail, error) {
	items, err := s.Q.ListOrderItems(ctx, row.ID)
	if err != nil {
		return Detail{}, fmt.Errorf("list order items: %w", err)
	}
	out := Detail{Summary: toSummary(row), Items: make([]Item, 0, len(items))}
	for _, it := range items {
		out.Items = append(out.Items, Item{
			VaccineID: db.UUIDString(it.VaccineID),
			Name:      it.Name,
			DoseLabel: it.DoseLabel,
			Qty:       int(it.Qty),
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}
	if s.Deliveries == nil {
		return out, nil
	}
	view, err := s.Deliveries.Timeline(ctx, row.ID)
	switch {
	case err == nil:
		out.Delivery = &view
		out.DeliveryStatus = view.Status
	case !errors.Is(err, tracking.ErrDeliveryNotFound):
		return Detail{}, err
	}
	return out, nil
}

func toSummary(o dbgen.Order) Summary {
	return Summary{
		ID:            db.UUIDString(o.ID),
		Status:        o.Status,
		Currency:      o.Currency,
		PromotionCode: db.TextPtr(o.PromotionCode),
		Pricing: pricing.Summary{
			Subtotal:          o.Subtotal,
			PromotionDiscount: o.PromotionDiscount,
			PointsDiscount:    o.PointsDiscount,
			PointsRedeemed:    o.PointsRedeemed,
			Taxes:             o.Taxes,
			Shipping:          o.Shipping,
			Total:             o.Total,
		},
		BonusPoints: o.BonusPoints,
		CreatedAt:   db.TimePtr(o.CreatedAt),
	}
}
