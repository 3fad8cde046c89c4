package dbgen

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const deliveryColumns = `id, order_id, courier, tracking_number, status, last_event_at, created_at, updated_at`

func scanDelivery(row interface{ Scan(...interface{}) error }) (Delivery, error) {
	var i Delivery
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.Courier,
		&i.TrackingNumber,
		&i.Status,
		&i.LastEventAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createDelivery = `-- name: CreateDelivery :one
INSERT INTO deliveries (order_id, status)
VALUES ($1, $2)
RETURNING ` + deliveryColumns

type CreateDeliveryParams struct {
	OrderID pgtype.UUID `json:"order_id"`
	Status  string      `json:"status"`
}

func (q *Queries) CreateDelivery(ctx context.Context, arg CreateDeliveryParams) (Delivery, error) {
	return scanDelivery(q.db.QueryRow(ctx, createDelivery, arg.OrderID, arg.Status))
}

const getDeliveryByOrder = `-- name: GetDeliveryByOrder :one
SELECT ` + deliveryColumns + ` FROM deliveries WHERE order_id = $1`

func (q *Queries) GetDeliveryByOrder(ctx context.Context, orderID pgtype.UUID) (Delivery, error) {
	return scanDelivery(q.db.QueryRow(ctx, getDeliveryByOrder, orderID))
}

const getDeliveryForUpdate = `-- name: GetDeliveryForUpdate :one
SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1 FOR UPDATE`

func (q *Queries) GetDeliveryForUpdate(ctx context.Context, id pgtype.UUID) (Delivery, error) {
	return scanDelivery(q.db.QueryRow(ctx, getDeliveryForUpdate, id))
}

const getDeliveryByTracking = `-- name: GetDeliveryByTracking :one
SELECT ` + deliveryColumns + ` FROM deliveries WHERE courier = $1 AND tracking_number = $2`

type GetDeliveryByTrackingParams struct {
	Courier        pgtype.Text `json:"courier"`
	TrackingNumber pgtype.Text `json:"tracking_number"`
}

func (q *Queries) GetDeliveryByTracking(ctx context.Context, arg GetDeliveryByTrackingParams) (Delivery, error) {
	return scanDelivery(q.db.QueryRow(ctx, getDeliveryByTracking, arg.Courier, arg.TrackingNumber))
}

const assignCourier = `-- name: AssignCourier :one
UPDATE deliveries
SET courier = $2, tracking_number = $3, updated_at = now()
WHERE order_id = $1
RETURNING ` + deliveryColumns

type AssignCourierParams struct {
	OrderID        pgtype.UUID `json:"order_id"`
	Courier        pgtype.Text `json:"courier"`
	TrackingNumber pgtype.Text `json:"tracking_number"`
}

func (q *Queries) AssignCourier(ctx context.Context, arg AssignCourierParams) (Delivery, error) {
	return scanDelivery(q.db.QueryRow(ctx, assignCourier, arg.OrderID, arg.Courier, arg.TrackingNumber))
}

const updateDeliveryStatus = `-- name: UpdateDeliveryStatus :one
UPDATE deliveries
SET status = $2, last_event_at = $3, updated_at = now()
WHERE id = $1
RETURNING ` + deliveryColumns

type UpdateDeliveryStatusParams struct {
	ID          pgtype.UUID        `json:"id"`
	Status      string             `json:"status"`
	LastEventAt pgtype.Timestamptz `json:"last_event_at"`
}

func (q *Queries) UpdateDeliveryStatus(ctx context.Context, arg UpdateDeliveryStatusParams) (Delivery, error) {
	return scanDelivery(q.db.QueryRow(ctx, updateDeliveryStatus, arg.ID, arg.Status, arg.LastEventAt))
}

const listTrackableDeliveries = `-- name: ListTrackableDeliveries :many
SELECT ` + deliveryColumns + `
FROM deliveries
WHERE courier IS NOT NULL AND tracking_number IS NOT NULL AND status <> 'DELIVERED'
ORDER BY updated_at ASC
LIMIT $1`

func (q *Queries) ListTrackableDeliveries(ctx context.Context, limit int32) ([]Delivery, error) {
	rows, err := q.db.Query(ctx, listTrackableDeliveries, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Delivery{}
	for rows.Next() {
		i, err := scanDelivery(rows)
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

const insertDeliveryEvent = `-- name: InsertDeliveryEvent :one
INSERT INTO delivery_events (delivery_id, status, description, location, occurred_at, raw_payload)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, delivery_id, status, description, location, occurred_at, raw_payload`

type InsertDeliveryEventParams struct {
	DeliveryID  pgtype.UUID        `json:"delivery_id"`
	Status      string             `json:"status"`
	Description pgtype.Text        `json:"description"`
	Location    pgtype.Text        `json:"location"`
	OccurredAt  pgtype.Timestamptz `json:"occurred_at"`
	RawPayload  []byte             `json:"raw_payload"`
}

func (q *Queries) InsertDeliveryEvent(ctx context.Context, arg InsertDeliveryEventParams) (DeliveryEvent, error) {
	row := q.db.QueryRow(ctx, insertDeliveryEvent,
		arg.DeliveryID,
		arg.Status,
		arg.Description,
		arg.Location,
		arg.OccurredAt,
		arg.RawPayload,
	)
	var i DeliveryEvent
	err := row.Scan(&i.ID, &i.DeliveryID, &i.Status, &i.Description, &i.Location, &i.OccurredAt, &i.RawPayload)
	return i, err
}

const listDeliveryEvents = `-- name: ListDeliveryEvents :many
SELECT id, delivery_id, status, description, location, occurred_at, raw_payload
FROM delivery_events
WHERE delivery_id = $1
ORDER BY occurred_at ASC, id ASC`

func (q *Queries) ListDeliveryEvents(ctx context.Context, deliveryID pgtype.UUID) ([]DeliveryEvent, error) {
	rows, err := q.db.Query(ctx, listDeliveryEvents, deliveryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []DeliveryEvent{}
	for rows.Next() {
		var i DeliveryEvent
		if err := rows.Scan(&i.ID, &i.DeliveryID, &i.Status, &i.Description, &i.Location, &i.OccurredAt, &i.RawPayload); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
