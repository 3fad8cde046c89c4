package dbgen

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// VaccineStockRow is a vaccine joined with its inventory record.
type VaccineStockRow struct {
	ID                pgtype.UUID        `json:"id"`
	Slug              string             `json:"slug"`
	Name              string             `json:"name"`
	Manufacturer      string             `json:"manufacturer"`
	Description       pgtype.Text        `json:"description"`
	DoseLabel         string             `json:"dose_label"`
	Price             int64              `json:"price"`
	CreatedAt         pgtype.Timestamptz `json:"created_at"`
	StockLevel        int32              `json:"stock_level"`
	LowStockThreshold int32              `json:"low_stock_threshold"`
	IsAvailable       bool               `json:"is_available"`
}

const vaccineStockColumns = `v.id, v.slug, v.name, v.manufacturer, v.description, v.dose_label, v.price, v.created_at,
       COALESCE(i.stock_level, 0), COALESCE(i.low_stock_threshold, 0), COALESCE(i.is_available, FALSE)`

func scanVaccineStock(row interface{ Scan(...interface{}) error }) (VaccineStockRow, error) {
	var i VaccineStockRow
	err := row.Scan(
		&i.ID,
		&i.Slug,
		&i.Name,
		&i.Manufacturer,
		&i.Description,
		&i.DoseLabel,
		&i.Price,
		&i.CreatedAt,
		&i.StockLevel,
		&i.LowStockThreshold,
		&i.IsAvailable,
	)
	return i, err
}

const listVaccines = `-- name: ListVaccines :many
SELECT ` + vaccineStockColumns + `
FROM vaccines v
LEFT JOIN inventory i ON i.vaccine_id = v.id
WHERE ($1::text IS NULL OR v.name ILIKE '%' || $1 || '%' OR v.manufacturer ILIKE '%' || $1 || '%')
  AND (NOT $2::boolean OR (i.is_available AND i.stock_level > 0))
ORDER BY v.name ASC, v.id ASC
LIMIT $3 OFFSET $4`

type ListVaccinesParams struct {
	Search      pgtype.Text `json:"search"`
	InStockOnly bool        `json:"in_stock_only"`
	Limit       int32       `json:"limit"`
	Offset      int32       `json:"offset"`
}

func (q *Queries) ListVaccines(ctx context.Context, arg ListVaccinesParams) ([]VaccineStockRow, error) {
	rows, err := q.db.Query(ctx, listVaccines, arg.Search, arg.InStockOnly, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []VaccineStockRow{}
	for rows.Next() {
		i, err := scanVaccineStock(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countVaccines = `-- name: CountVaccines :one
SELECT COUNT(*)
FROM vaccines v
LEFT JOIN inventory i ON i.vaccine_id = v.id
WHERE ($1::text IS NULL OR v.name ILIKE '%' || $1 || '%' OR v.manufacturer ILIKE '%' || $1 || '%')
  AND (NOT $2::boolean OR (i.is_available AND i.stock_level > 0))`

type CountVaccinesParams struct {
	Search      pgtype.Text `json:"search"`
	InStockOnly bool        `json:"in_stock_only"`
}

func (q *Queries) CountVaccines(ctx context.Context, arg CountVaccinesParams) (int64, error) {
	row := q.db.QueryRow(ctx, countVaccines, arg.Search, arg.InStockOnly)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getVaccineBySlug = `-- name: GetVaccineBySlug :one
SELECT ` + vaccineStockColumns + `
FROM vaccines v
LEFT JOIN inventory i ON i.vaccine_id = v.id
WHERE v.slug = $1`

func (q *Queries) GetVaccineBySlug(ctx context.Context, slug string) (VaccineStockRow, error) {
	return scanVaccineStock(q.db.QueryRow(ctx, getVaccineBySlug, slug))
}

const getVaccineByID = `-- name: GetVaccineByID :one
SELECT ` + vaccineStockColumns + `
FROM vaccines v
LEFT JOIN inventory i ON i.vaccine_id = v.id
WHERE v.id = $1`

func (q *Queries) GetVaccineByID(ctx context.Context, id pgtype.UUID) (VaccineStockRow, error) {
	return scanVaccineStock(q.db.QueryRow(ctx, getVaccineByID, id))
}

const getVaccinesByIDs = `-- name: GetVaccinesByIDs :many
SELECT ` + vaccineStockColumns + `
FROM vaccines v
LEFT JOIN inventory i ON i.vaccine_id = v.id
WHERE v.id = ANY($1::uuid[])`

func (q *Queries) GetVaccinesByIDs(ctx context.Context, ids []pgtype.UUID) ([]VaccineStockRow, error) {
	rows, err := q.db.Query(ctx, getVaccinesByIDs, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []VaccineStockRow{}
	for rows.Next() {
		i, err := scanVaccineStock(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertVaccine = `-- name: UpsertVaccine :one
INSERT INTO vaccines (slug, name, manufacturer, description, dose_label, price)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (slug) DO UPDATE
SET name = EXCLUDED.name,
    manufacturer = EXCLUDED.manufacturer,
    description = EXCLUDED.description,
    dose_label = EXCLUDED.dose_label,
    price = EXCLUDED.price
RETURNING id, slug, name, manufacturer, description, dose_label, price, created_at`

type UpsertVaccineParams struct {
	Slug         string      `json:"slug"`
	Name         string      `json:"name"`
	Manufacturer string      `json:"manufacturer"`
	Description  pgtype.Text `json:"description"`
	DoseLabel    string      `json:"dose_label"`
	Price        int64       `json:"price"`
}

func (q *Queries) UpsertVaccine(ctx context.Context, arg UpsertVaccineParams) (Vaccine, error) {
	row := q.db.QueryRow(ctx, upsertVaccine,
		arg.Slug,
		arg.Name,
		arg.Manufacturer,
		arg.Description,
		arg.DoseLabel,
		arg.Price,
	)
	var i Vaccine
	err := row.Scan(
		&i.ID,
		&i.Slug,
		&i.Name,
		&i.Manufacturer,
		&i.Description,
		&i.DoseLabel,
		&i.Price,
		&i.CreatedAt,
	)
	return i, err
}

const upsertInventory = `-- name: UpsertInventory :exec
INSERT INTO inventory (vaccine_id, stock_level, low_stock_threshold, is_available, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (vaccine_id) DO UPDATE
SET stock_level = EXCLUDED.stock_level,
    low_stock_threshold = EXCLUDED.low_stock_threshold,
    is_available = EXCLUDED.is_available,
    updated_at = now()`

type UpsertInventoryParams struct {
	VaccineID         pgtype.UUID `json:"vaccine_id"`
	StockLevel        int32       `json:"stock_level"`
	LowStockThreshold int32       `json:"low_stock_threshold"`
	IsAvailable       bool        `json:"is_available"`
}

func (q *Queries) UpsertInventory(ctx context.Context, arg UpsertInventoryParams) error {
	_, err := q.db.Exec(ctx, upsertInventory, arg.VaccineID, arg.StockLevel, arg.LowStockThreshold, arg.IsAvailable)
	return err
}
