package dbgen

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getLoyaltyAccount = `-- name: GetLoyaltyAccount :one
SELECT user_id, points, total_spent, orders_count, updated_at
FROM loyalty_accounts
WHERE user_id = $1`

func (q *Queries) GetLoyaltyAccount(ctx context.Context, userID pgtype.UUID) (LoyaltyAccount, error) {
	row := q.db.QueryRow(ctx, getLoyaltyAccount, userID)
	var i LoyaltyAccount
	err := row.Scan(&i.UserID, &i.Points, &i.TotalSpent, &i.OrdersCount, &i.UpdatedAt)
	return i, err
}

const getLoyaltyAccountForUpdate = `-- name: GetLoyaltyAccountForUpdate :one
SELECT user_id, points, total_spent, orders_count, updated_at
FROM loyalty_accounts
WHERE user_id = $1
FOR UPDATE`

func (q *Queries) GetLoyaltyAccountForUpdate(ctx context.Context, userID pgtype.UUID) (LoyaltyAccount, error) {
	row := q.db.QueryRow(ctx, getLoyaltyAccountForUpdate, userID)
	var i LoyaltyAccount
	err := row.Scan(&i.UserID, &i.Points, &i.TotalSpent, &i.OrdersCount, &i.UpdatedAt)
	return i, err
}

const upsertLoyaltyAccount = `-- name: UpsertLoyaltyAccount :one
INSERT INTO loyalty_accounts (user_id, points, total_spent, orders_count, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (user_id) DO UPDATE
SET points = EXCLUDED.points,
    total_spent = EXCLUDED.total_spent,
    orders_count = EXCLUDED.orders_count,
    updated_at = now()
RETURNING user_id, points, total_spent, orders_count, updated_at`

type UpsertLoyaltyAccountParams struct {
	UserID      pgtype.UUID `json:"user_id"`
	Points      int64       `json:"points"`
	TotalSpent  int64       `json:"total_spent"`
	OrdersCount int32       `json:"orders_count"`
}

func (q *Queries) UpsertLoyaltyAccount(ctx context.Context, arg UpsertLoyaltyAccountParams) (LoyaltyAccount, error) {
	row := q.db.QueryRow(ctx, upsertLoyaltyAccount, arg.UserID, arg.Points, arg.TotalSpent, arg.OrdersCount)
	var i LoyaltyAccount
	err := row.Scan(&i.UserID, &i.Points, &i.TotalSpent, &i.OrdersCount, &i.UpdatedAt)
	return i, err
}
