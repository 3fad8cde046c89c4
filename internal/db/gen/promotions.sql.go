package dbgen

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getPromotionByCode = `-- name: GetPromotionByCode :one
SELECT id, code, title, discount_type, discount_value, valid_from, valid_to, min_quantity, active
FROM promotions
WHERE code = $1`

func (q *Queries) GetPromotionByCode(ctx context.Context, code string) (Promotion, error) {
	row := q.db.QueryRow(ctx, getPromotionByCode, code)
	var i Promotion
	err := row.Scan(
		&i.ID,
		&i.Code,
		&i.Title,
		&i.DiscountType,
		&i.DiscountValue,
		&i.ValidFrom,
		&i.ValidTo,
		&i.MinQuantity,
		&i.Active,
	)
	return i, err
}

const upsertPromotion = `-- name: UpsertPromotion :exec
INSERT INTO promotions (code, title, discount_type, discount_value, valid_from, valid_to, min_quantity, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (code) DO UPDATE
SET title = EXCLUDED.title,
    discount_type = EXCLUDED.discount_type,
    discount_value = EXCLUDED.discount_value,
    valid_from = EXCLUDED.valid_from,
    valid_to = EXCLUDED.valid_to,
    min_quantity = EXCLUDED.min_quantity,
    active = EXCLUDED.active`

type UpsertPromotionParams struct {
	Code          string             `json:"code"`
	Title         string             `json:"title"`
	DiscountType  string             `json:"discount_type"`
	DiscountValue int64              `json:"discount_value"`
	ValidFrom     pgtype.Timestamptz `json:"valid_from"`
	ValidTo       pgtype.Timestamptz `json:"valid_to"`
	MinQuantity   pgtype.Int4        `json:"min_quantity"`
	Active        bool               `json:"active"`
}

func (q *Queries) UpsertPromotion(ctx context.Context, arg UpsertPromotionParams) error {
	_, err := q.db.Exec(ctx, upsertPromotion,
		arg.Code,
		arg.Title,
		arg.DiscountType,
		arg.DiscountValue,
		arg.ValidFrom,
		arg.ValidTo,
		arg.MinQuantity,
		arg.Active,
	)
	return err
}
