package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, total, status, payment_status, payment_method, amount_tendered, change_amount,
	customer_name, table_number, beeper_number, order_type, is_test, created_at, updated_at, closed_at`

func scanOrder(row scanner) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.Total,
		&i.Status,
		&i.PaymentStatus,
		&i.PaymentMethod,
		&i.AmountTendered,
		&i.ChangeAmount,
		&i.CustomerName,
		&i.TableNumber,
		&i.BeeperNumber,
		&i.OrderType,
		&i.IsTest,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.ClosedAt,
	)
	return i, err
}

const orderItemColumns = `id, order_id, menu_item_id, name, price, item_type, quantity, selected_flavors, unit_price, line_total`

func scanOrderItem(row scanner) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.MenuItemID,
		&i.Name,
		&i.Price,
		&i.ItemType,
		&i.Quantity,
		&i.SelectedFlavors,
		&i.UnitPrice,
		&i.LineTotal,
	)
	return i, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (total, status, payment_status, payment_method, amount_tendered, change_amount,
	customer_name, table_number, beeper_number, order_type, is_test)
VALUES ($1, 'new', $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	Total          pgtype.Numeric
	PaymentStatus  string
	PaymentMethod  string
	AmountTendered pgtype.Numeric
	ChangeAmount   pgtype.Numeric
	CustomerName   string
	TableNumber    pgtype.Text
	BeeperNumber   pgtype.Text
	OrderType      string
	IsTest         bool
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.Total,
		arg.PaymentStatus,
		arg.PaymentMethod,
		arg.AmountTendered,
		arg.ChangeAmount,
		arg.CustomerName,
		arg.TableNumber,
		arg.BeeperNumber,
		arg.OrderType,
		arg.IsTest,
	)
	return scanOrder(row)
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, menu_item_id, name, price, item_type, quantity, selected_flavors, unit_price, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + orderItemColumns

type CreateOrderItemParams struct {
	OrderID         uuid.UUID
	MenuItemID      uuid.UUID
	Name            string
	Price           pgtype.Numeric
	ItemType        string
	Quantity        int32
	SelectedFlavors []string
	UnitPrice       pgtype.Numeric
	LineTotal       pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	flavors := arg.SelectedFlavors
	if flavors == nil {
		flavors = []string{}
	}
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.MenuItemID,
		arg.Name,
		arg.Price,
		arg.ItemType,
		arg.Quantity,
		flavors,
		arg.UnitPrice,
		arg.LineTotal,
	)
	return scanOrderItem(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR NO KEY UPDATE`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY id`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listOrderItemsByOrders = `-- name: ListOrderItemsByOrders :many
SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY order_id, id`

func (q *Queries) ListOrderItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrders, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listActiveOrders = `-- name: ListActiveOrders :many
SELECT ` + orderColumns + ` FROM orders
WHERE status <> 'closed' AND created_at >= $1
ORDER BY created_at DESC`

func (q *Queries) ListActiveOrders(ctx context.Context, since time.Time) ([]Order, error) {
	return q.listOrders(ctx, listActiveOrders, since)
}

const listOrdersBetween = `-- name: ListOrdersBetween :many
SELECT ` + orderColumns + ` FROM orders
WHERE created_at >= $1 AND created_at <= $2
ORDER BY created_at DESC`

type ListOrdersBetweenParams struct {
	From time.Time
	To   time.Time
}

func (q *Queries) ListOrdersBetween(ctx context.Context, arg ListOrdersBetweenParams) ([]Order, error) {
	return q.listOrders(ctx, listOrdersBetween, arg.From, arg.To)
}

func (q *Queries) listOrders(ctx context.Context, sql string, args ...interface{}) ([]Order, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID         uuid.UUID
	Status     string
	FromStatus string
}

// UpdateOrderStatus only applies when the row is still in FromStatus, so a
// concurrent change surfaces as pgx.ErrNoRows.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.FromStatus))
}

const markOrderPaid = `-- name: MarkOrderPaid :one
UPDATE orders
SET payment_status = 'paid', payment_method = $2, amount_tendered = $3, change_amount = $4, updated_at = now()
WHERE id = $1 AND payment_status = 'pending'
RETURNING ` + orderColumns

type MarkOrderPaidParams struct {
	ID             uuid.UUID
	PaymentMethod  string
	AmountTendered pgtype.Numeric
	ChangeAmount   pgtype.Numeric
}

func (q *Queries) MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, markOrderPaid, arg.ID, arg.PaymentMethod, arg.AmountTendered, arg.ChangeAmount))
}

const closeOpenOrders = `-- name: CloseOpenOrders :execrows
UPDATE orders SET status = 'closed', closed_at = now(), updated_at = now()
WHERE status <> 'closed'`

func (q *Queries) CloseOpenOrders(ctx context.Context) (int64, error) {
	tag, err := q.db.Exec(ctx, closeOpenOrders)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
