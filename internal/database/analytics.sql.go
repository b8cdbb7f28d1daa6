package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Analytics queries count every non-test order that was not cancelled or voided.

type AnalyticsRangeParams struct {
	From time.Time
	To   time.Time
}

const getSalesSummary = `-- name: GetSalesSummary :one
SELECT COUNT(*) AS order_count, COALESCE(SUM(total), 0)::numeric(14,2) AS total_sales
FROM orders
WHERE NOT is_test AND status NOT IN ('cancelled', 'voided')
  AND created_at >= $1 AND created_at < $2`

type GetSalesSummaryRow struct {
	OrderCount int64
	TotalSales pgtype.Numeric
}

func (q *Queries) GetSalesSummary(ctx context.Context, arg AnalyticsRangeParams) (GetSalesSummaryRow, error) {
	var i GetSalesSummaryRow
	err := q.db.QueryRow(ctx, getSalesSummary, arg.From, arg.To).Scan(&i.OrderCount, &i.TotalSales)
	return i, err
}

const getTopItems = `-- name: GetTopItems :many
SELECT oi.name, SUM(oi.quantity)::bigint AS quantity, SUM(oi.line_total)::numeric(14,2) AS revenue
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE NOT o.is_test AND o.status NOT IN ('cancelled', 'voided')
  AND o.created_at >= $1 AND o.created_at < $2
GROUP BY oi.name
ORDER BY quantity DESC, oi.name
LIMIT $3`

type GetTopItemsParams struct {
	From  time.Time
	To    time.Time
	Limit int32
}

type GetTopItemsRow struct {
	Name     string
	Quantity int64
	Revenue  pgtype.Numeric
}

func (q *Queries) GetTopItems(ctx context.Context, arg GetTopItemsParams) ([]GetTopItemsRow, error) {
	rows, err := q.db.Query(ctx, getTopItems, arg.From, arg.To, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetTopItemsRow
	for rows.Next() {
		var i GetTopItemsRow
		if err := rows.Scan(&i.Name, &i.Quantity, &i.Revenue); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getPaymentBreakdown = `-- name: GetPaymentBreakdown :many
SELECT payment_method, COUNT(*) AS order_count, COALESCE(SUM(total), 0)::numeric(14,2) AS total
FROM orders
WHERE NOT is_test AND status NOT IN ('cancelled', 'voided')
  AND created_at >= $1 AND created_at < $2
GROUP BY payment_method
ORDER BY total DESC`

type GetPaymentBreakdownRow struct {
	PaymentMethod string
	OrderCount    int64
	Total         pgtype.Numeric
}

func (q *Queries) GetPaymentBreakdown(ctx context.Context, arg AnalyticsRangeParams) ([]GetPaymentBreakdownRow, error) {
	rows, err := q.db.Query(ctx, getPaymentBreakdown, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetPaymentBreakdownRow
	for rows.Next() {
		var i GetPaymentBreakdownRow
		if err := rows.Scan(&i.PaymentMethod, &i.OrderCount, &i.Total); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getHourlySales = `-- name: GetHourlySales :many
SELECT EXTRACT(HOUR FROM created_at)::int AS hour, COUNT(*) AS order_count,
	COALESCE(SUM(total), 0)::numeric(14,2) AS total
FROM orders
WHERE NOT is_test AND status NOT IN ('cancelled', 'voided')
  AND created_at >= $1 AND created_at < $2
GROUP BY hour
ORDER BY hour`

type GetHourlySalesRow struct {
	Hour       int32
	OrderCount int64
	Total      pgtype.Numeric
}

func (q *Queries) GetHourlySales(ctx context.Context, arg AnalyticsRangeParams) ([]GetHourlySalesRow, error) {
	rows, err := q.db.Query(ctx, getHourlySales, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetHourlySalesRow
	for rows.Next() {
		var i GetHourlySalesRow
		if err := rows.Scan(&i.Hour, &i.OrderCount, &i.Total); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
