package dbgen

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, user_id, status, promotion_code, subtotal, promotion_discount, points_redeemed, points_discount,
       bonus_points, taxes, shipping, total, currency, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Status,
		&i.PromotionCode,
		&i.Subtotal,
		&i.PromotionDiscount,
		&i.PointsRedeemed,
		&i.PointsDiscount,
		&i.BonusPoints,
		&i.Taxes,
		&i.Shipping,
		&i.Total,
		&i.Currency,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (user_id, status, promotion_code, subtotal, promotion_discount, points_redeemed, points_discount,
                    bonus_points, taxes, shipping, total, currency)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	UserID            pgtype.UUID `json:"user_id"`
	Status            string      `json:"status"`
	PromotionCode     pgtype.Text `json:"promotion_code"`
	Subtotal          int64       `json:"subtotal"`
	PromotionDiscount int64       `json:"promotion_discount"`
	PointsRedeemed    int64       `json:"points_redeemed"`
	PointsDiscount    int64       `json:"points_discount"`
	BonusPoints       int64       `json:"bonus_points"`
	Taxes             int64       `json:"taxes"`
	Shipping          int64       `json:"shipping"`
	Total             int64       `json:"total"`
	Currency          string      `json:"currency"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.UserID,
		arg.Status,
		arg.PromotionCode,
		arg.Subtotal,
		arg.PromotionDiscount,
		arg.PointsRedeemed,
		arg.PointsDiscount,
		arg.BonusPoints,
		arg.Taxes,
		arg.Shipping,
		arg.Total,
		arg.Currency,
	))
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, vaccine_id, name, dose_label, qty, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, order_id, vaccine_id, name, dose_label, qty, unit_price, subtotal`

type CreateOrderItemParams struct {
	OrderID   pgtype.UUID `json:"order_id"`
	VaccineID pgtype.UUID `json:"vaccine_id"`
	Name      string      `json:"name"`
	DoseLabel string      `json:"dose_label"`
	Qty       int32       `json:"qty"`
	UnitPrice int64       `json:"unit_price"`
	Subtotal  int64       `json:"subtotal"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.VaccineID,
		arg.Name,
		arg.DoseLabel,
		arg.Qty,
		arg.UnitPrice,
		arg.Subtotal,
	)
	var i OrderItem
	err := row.Scan(&i.ID, &i.OrderID, &i.VaccineID, &i.Name, &i.DoseLabel, &i.Qty, &i.UnitPrice, &i.Subtotal)
	return i, err
}

const listOrdersByUser = `-- name: ListOrdersByUser :many
SELECT o.id, o.user_id, o.status, o.promotion_code, o.subtotal, o.promotion_discount, o.points_redeemed,
       o.points_discount, o.bonus_points, o.taxes, o.shipping, o.total, o.currency, o.created_at, o.updated_at,
       d.status AS delivery_status
FROM orders o
LEFT JOIN deliveries d ON d.order_id = o.id
WHERE o.user_id = $1
ORDER BY o.created_at DESC, o.id DESC
LIMIT $2 OFFSET $3`

type ListOrdersByUserParams struct {
	UserID pgtype.UUID `json:"user_id"`
	Limit  int32       `json:"limit"`
	Offset int32       `json:"offset"`
}

type ListOrdersByUserRow struct {
	Order          Order       `json:"order"`
	DeliveryStatus pgtype.Text `json:"delivery_status"`
}

func (q *Queries) ListOrdersByUser(ctx context.Context, arg ListOrdersByUserParams) ([]ListOrdersByUserRow, error) {
	rows, err := q.db.Query(ctx, listOrdersByUser, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListOrdersByUserRow{}
	for rows.Next() {
		var i ListOrdersByUserRow
		if err := rows.Scan(
			&i.Order.ID,
			&i.Order.UserID,
			&i.Order.Status,
			&i.Order.PromotionCode,
			&i.Order.Subtotal,
			&i.Order.PromotionDiscount,
			&i.Order.PointsRedeemed,
			&i.Order.PointsDiscount,
			&i.Order.BonusPoints,
			&i.Order.Taxes,
			&i.Order.Shipping,
			&i.Order.Total,
			&i.Order.Currency,
			&i.Order.CreatedAt,
			&i.Order.UpdatedAt,
			&i.DeliveryStatus,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countOrdersByUser = `-- name: CountOrdersByUser :one
SELECT COUNT(*) FROM orders WHERE user_id = $1`

func (q *Queries) CountOrdersByUser(ctx context.Context, userID pgtype.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countOrdersByUser, userID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getOrderForUser = `-- name: GetOrderForUser :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND user_id = $2`

type GetOrderForUserParams struct {
	ID     pgtype.UUID `json:"id"`
	UserID pgtype.UUID `json:"user_id"`
}

func (q *Queries) GetOrderForUser(ctx context.Context, arg GetOrderForUserParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUser, arg.ID, arg.UserID))
}

const getOrderByID = `-- name: GetOrderByID :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1`

func (q *Queries) GetOrderByID(ctx context.Context, id pgtype.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByID, id))
}

const listOrderItems = `-- name: ListOrderItems :many
SELECT id, order_id, vaccine_id, name, dose_label, qty, unit_price, subtotal
FROM order_items
WHERE order_id = $1
ORDER BY name ASC, id ASC`

func (q *Queries) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(&i.ID, &i.OrderID, &i.VaccineID, &i.Name, &i.DoseLabel, &i.Qty, &i.UnitPrice, &i.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateOrderStatus = `-- name: UpdateOrderStatus :exec
UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`

type UpdateOrderStatusParams struct {
	ID     pgtype.UUID `json:"id"`
	Status string      `json:"status"`
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) error {
	_, err := q.db.Exec(ctx, updateOrderStatus, arg.ID, arg.Status)
	return err
}
