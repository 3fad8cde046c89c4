package dbgen

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Vaccine struct {
	ID           pgtype.UUID        `json:"id"`
	Slug         string             `json:"slug"`
	Name         string             `json:"name"`
	Manufacturer string             `json:"manufacturer"`
	Description  pgtype.Text        `json:"description"`
	DoseLabel    string             `json:"dose_label"`
	Price        int64              `json:"price"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
}

type Inventory struct {
	VaccineID         pgtype.UUID        `json:"vaccine_id"`
	StockLevel        int32              `json:"stock_level"`
	LowStockThreshold int32              `json:"low_stock_threshold"`
	IsAvailable       bool               `json:"is_available"`
	UpdatedAt         pgtype.Timestamptz `json:"updated_at"`
}

type LoyaltyAccount struct {
	UserID      pgtype.UUID        `json:"user_id"`
	Points      int64              `json:"points"`
	TotalSpent  int64              `json:"total_spent"`
	OrdersCount int32              `json:"orders_count"`
	UpdatedAt   pgtype.Timestamptz `json:"updated_at"`
}

type Promotion struct {
	ID            pgtype.UUID        `json:"id"`
	Code          string             `json:"code"`
	Title         string             `json:"title"`
	DiscountType  string             `json:"discount_type"`
	DiscountValue int64              `json:"discount_value"`
	ValidFrom     pgtype.Timestamptz `json:"valid_from"`
	ValidTo       pgtype.Timestamptz `json:"valid_to"`
	MinQuantity   pgtype.Int4        `json:"min_quantity"`
	Active        bool               `json:"active"`
}

type Order struct {
	ID                pgtype.UUID        `json:"id"`
	UserID            pgtype.UUID        `json:"user_id"`
	Status            string             `json:"status"`
	PromotionCode     pgtype.Text        `json:"promotion_code"`
	Subtotal          int64              `json:"subtotal"`
	PromotionDiscount int64              `json:"promotion_discount"`
	PointsRedeemed    int64              `json:"points_redeemed"`
	PointsDiscount    int64              `json:"points_discount"`
	BonusPoints       int64              `json:"bonus_points"`
	Taxes             int64              `json:"taxes"`
	Shipping          int64              `json:"shipping"`
	Total             int64              `json:"total"`
	Currency          string             `json:"currency"`
	CreatedAt         pgtype.Timestamptz `json:"created_at"`
	UpdatedAt         pgtype.Timestamptz `json:"updated_at"`
}

type OrderItem struct {
	ID        pgtype.UUID `json:"id"`
	OrderID   pgtype.UUID `json:"order_id"`
	VaccineID pgtype.UUID `json:"vaccine_id"`
	Name      string      `json:"name"`
	DoseLabel string      `json:"dose_label"`
	Qty       int32       `json:"qty"`
	UnitPrice int64       `json:"unit_price"`
	Subtotal  int64       `json:"subtotal"`
}

type Delivery struct {
	ID             pgtype.UUID        `json:"id"`
	OrderID        pgtype.UUID        `json:"order_id"`
	Courier        pgtype.Text        `json:"courier"`
	TrackingNumber pgtype.Text        `json:"tracking_number"`
	Status         string             `json:"status"`
	LastEventAt    pgtype.Timestamptz `json:"last_event_at"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
	UpdatedAt      pgtype.Timestamptz `json:"updated_at"`
}

type DeliveryEvent struct {
	ID          pgtype.UUID        `json:"id"`
	DeliveryID  pgtype.UUID        `json:"delivery_id"`
	Status      string             `json:"status"`
	Description pgtype.Text        `json:"description"`
	Location    pgtype.Text        `json:"location"`
	OccurredAt  pgtype.Timestamptz `json:"occurred_at"`
	RawPayload  []byte             `json:"raw_payload"`
}

type DomainEvent struct {
	ID          pgtype.UUID        `json:"id"`
	Topic       string             `json:"topic"`
	AggregateID pgtype.UUID        `json:"aggregate_id"`
	Payload     []byte             `json:"payload"`
	OccurredAt  pgtype.Timestamptz `json:"occurred_at"`
}
