package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const listOrders = `-- name: ListOrders :many
SELECT o.id, o.user_uuid, o.status, o.total, o.created_at, o.started_at, o.ready_at, o.delivered_at, o.updated_at,
       u.first_name, u.last_name, u.faculty_id
FROM orders o
LEFT JOIN users u ON u.id = o.user_uuid
ORDER BY o.created_at DESC, o.id DESC
`

type ListOrdersRow struct {
	ID          int64              `json:"id"`
	UserUuid    pgtype.UUID        `json:"user_uuid"`
	Status      string             `json:"status"`
	Total       pgtype.Numeric     `json:"total"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
	StartedAt   pgtype.Timestamptz `json:"started_at"`
	ReadyAt     pgtype.Timestamptz `json:"ready_at"`
	DeliveredAt pgtype.Timestamptz `json:"delivered_at"`
	UpdatedAt   pgtype.Timestamptz `json:"updated_at"`
	FirstName   pgtype.Text        `json:"first_name"`
	LastName    pgtype.Text        `json:"last_name"`
	FacultyID   pgtype.Int8        `json:"faculty_id"`
}

func (q *Queries) ListOrders(ctx context.Context) ([]ListOrdersRow, error) {
	rows, err := q.db.Query(ctx, listOrders)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListOrdersRow
	for rows.Next() {
		var i ListOrdersRow
		if err := rows.Scan(
			&i.ID,
			&i.UserUuid,
			&i.Status,
			&i.Total,
			&i.CreatedAt,
			&i.StartedAt,
			&i.ReadyAt,
			&i.DeliveredAt,
			&i.UpdatedAt,
			&i.FirstName,
			&i.LastName,
			&i.FacultyID,
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

const listOrderDetails = `-- name: ListOrderDetails :many
SELECT od.id, od.order_id, od.product_id, od.variant_option_id, od.quantity, od.unit_price, od.subtotal,
       p.name AS product_name, vo.name AS variant_name
FROM order_details od
JOIN products p ON p.id = od.product_id
LEFT JOIN variant_options vo ON vo.id = od.variant_option_id
WHERE od.order_id = ANY($1::bigint[])
ORDER BY od.order_id, od.id
`

type ListOrderDetailsRow struct {
	ID              int64          `json:"id"`
	OrderID         int64          `json:"order_id"`
	ProductID       int64          `json:"product_id"`
	VariantOptionID pgtype.Int8    `json:"variant_option_id"`
	Quantity        int32          `json:"quantity"`
	UnitPrice       pgtype.Numeric `json:"unit_price"`
	Subtotal        pgtype.Numeric `json:"subtotal"`
	ProductName     string         `json:"product_name"`
	VariantName     pgtype.Text    `json:"variant_name"`
}

func (q *Queries) ListOrderDetails(ctx context.Context, orderIds []int64) ([]ListOrderDetailsRow, error) {
	rows, err := q.db.Query(ctx, listOrderDetails, orderIds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListOrderDetailsRow
	for rows.Next() {
		var i ListOrderDetailsRow
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.ProductID,
			&i.VariantOptionID,
			&i.Quantity,
			&i.UnitPrice,
			&i.Subtotal,
			&i.ProductName,
			&i.VariantName,
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

const listOrderDetailIngredients = `-- name: ListOrderDetailIngredients :many
SELECT odi.order_detail_id, io.name, io.extra_price
FROM order_detail_ingredients odi
JOIN ingredient_options io ON io.id = odi.ingredient_option_id
WHERE odi.order_detail_id = ANY($1::bigint[])
ORDER BY odi.order_detail_id, io.id
`

type ListOrderDetailIngredientsRow struct {
	OrderDetailID int64          `json:"order_detail_id"`
	Name          string         `json:"name"`
	ExtraPrice    pgtype.Numeric `json:"extra_price"`
}

func (q *Queries) ListOrderDetailIngredients(ctx context.Context, detailIds []int64) ([]ListOrderDetailIngredientsRow, error) {
	rows, err := q.db.Query(ctx, listOrderDetailIngredients, detailIds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListOrderDetailIngredientsRow
	for rows.Next() {
		var i ListOrderDetailIngredientsRow
		if err := rows.Scan(&i.OrderDetailID, &i.Name, &i.ExtraPrice); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Timestamps are stamped on entering a stage and only while still NULL.
const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders SET
    status       = $2::text,
    started_at   = CASE WHEN $2::text = 'EnPreparacion' THEN COALESCE(started_at, now()) ELSE started_at END,
    ready_at     = CASE WHEN $2::text = 'Listo' THEN COALESCE(ready_at, now()) ELSE ready_at END,
    delivered_at = CASE WHEN $2::text = 'Entregado' THEN COALESCE(delivered_at, now()) ELSE delivered_at END,
    updated_at   = now()
WHERE id = $1
RETURNING id, user_uuid, status, total, created_at, started_at, ready_at, delivered_at, updated_at
`

type UpdateOrderStatusParams struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status)
	var i Order
	err := row.Scan(
		&i.ID,
		&i.UserUuid,
		&i.Status,
		&i.Total,
		&i.CreatedAt,
		&i.StartedAt,
		&i.ReadyAt,
		&i.DeliveredAt,
		&i.UpdatedAt,
	)
	return i, err
}

const deleteAllOrders = `-- name: DeleteAllOrders :execrows
DELETE FROM orders
`

func (q *Queries) DeleteAllOrders(ctx context.Context) (int64, error) {
	result, err := q.db.Exec(ctx, deleteAllOrders)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (user_uuid, status, total)
VALUES ($1, $2, $3)
RETURNING id, user_uuid, status, total, created_at, started_at, ready_at, delivered_at, updated_at
`

type CreateOrderParams struct {
	UserUuid pgtype.UUID    `json:"user_uuid"`
	Status   string         `json:"status"`
	Total    pgtype.Numeric `json:"total"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder, arg.UserUuid, arg.Status, arg.Total)
	var i Order
	err := row.Scan(
		&i.ID,
		&i.UserUuid,
		&i.Status,
		&i.Total,
		&i.CreatedAt,
		&i.StartedAt,
		&i.ReadyAt,
		&i.DeliveredAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrderDetail = `-- name: CreateOrderDetail :one
INSERT INTO order_details (order_id, product_id, variant_option_id, quantity, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_id, product_id, variant_option_id, quantity, unit_price, subtotal
`

type CreateOrderDetailParams struct {
	OrderID         int64          `json:"order_id"`
	ProductID       int64          `json:"product_id"`
	VariantOptionID pgtype.Int8    `json:"variant_option_id"`
	Quantity        int32          `json:"quantity"`
	UnitPrice       pgtype.Numeric `json:"unit_price"`
	Subtotal        pgtype.Numeric `json:"subtotal"`
}

func (q *Queries) CreateOrderDetail(ctx context.Context, arg CreateOrderDetailParams) (OrderDetail, error) {
	row := q.db.QueryRow(ctx, createOrderDetail,
		arg.OrderID,
		arg.ProductID,
		arg.VariantOptionID,
		arg.Quantity,
		arg.UnitPrice,
		arg.Subtotal,
	)
	var i OrderDetail
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.VariantOptionID,
		&i.Quantity,
		&i.UnitPrice,
		&i.Subtotal,
	)
	return i, err
}

const createOrderDetailIngredient = `-- name: CreateOrderDetailIngredient :exec
INSERT INTO order_detail_ingredients (order_detail_id, ingredient_option_id)
VALUES ($1, $2)
`

type CreateOrderDetailIngredientParams struct {
	OrderDetailID      int64 `json:"order_detail_id"`
	IngredientOptionID int64 `json:"ingredient_option_id"`
}

func (q *Queries) CreateOrderDetailIngredient(ctx context.Context, arg CreateOrderDetailIngredientParams) error {
	_, err := q.db.Exec(ctx, createOrderDetailIngredient, arg.OrderDetailID, arg.IngredientOptionID)
	return err
}
