package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const sessionColumns = `id, status, opened_at, closed_at, total_orders, total_sales`

func scanSession(row scanner) (Session, error) {
	var i Session
	err := row.Scan(
		&i.ID,
		&i.Status,
		&i.OpenedAt,
		&i.ClosedAt,
		&i.TotalOrders,
		&i.TotalSales,
	)
	return i, err
}

const getOpenSession = `-- name: GetOpenSession :one
SELECT ` + sessionColumns + ` FROM sessions WHERE status = 'OPEN' LIMIT 1`

func (q *Queries) GetOpenSession(ctx context.Context) (Session, error) {
	return scanSession(q.db.QueryRow(ctx, getOpenSession))
}

const getOpenSessionForUpdate = `-- name: GetOpenSessionForUpdate :one
SELECT ` + sessionColumns + ` FROM sessions WHERE status = 'OPEN' LIMIT 1 FOR UPDATE`

func (q *Queries) GetOpenSessionForUpdate(ctx context.Context) (Session, error) {
	return scanSession(q.db.QueryRow(ctx, getOpenSessionForUpdate))
}

const getSession = `-- name: GetSession :one
SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

func (q *Queries) GetSession(ctx context.Context, id uuid.UUID) (Session, error) {
	return scanSession(q.db.QueryRow(ctx, getSession, id))
}

const createSession = `-- name: CreateSession :one
INSERT INTO sessions (status) VALUES ('OPEN')
RETURNING ` + sessionColumns

func (q *Queries) CreateSession(ctx context.Context) (Session, error) {
	return scanSession(q.db.QueryRow(ctx, createSession))
}

const incrementSessionCounters = `-- name: IncrementSessionCounters :one
UPDATE sessions
SET total_orders = total_orders + 1, total_sales = total_sales + $2
WHERE id = $1 AND status = 'OPEN'
RETURNING ` + sessionColumns

type IncrementSessionCountersParams struct {
	ID    uuid.UUID
	Sales pgtype.Numeric
}

func (q *Queries) IncrementSessionCounters(ctx context.Context, arg IncrementSessionCountersParams) (Session, error) {
	return scanSession(q.db.QueryRow(ctx, incrementSessionCounters, arg.ID, arg.Sales))
}

const aggregateSessionOrders = `-- name: AggregateSessionOrders :one
SELECT COUNT(*)::int AS total_orders, COALESCE(SUM(total), 0)::numeric(14,2) AS total_sales
FROM orders
WHERE NOT is_test AND status <> 'closed' AND created_at >= $1`

type AggregateSessionOrdersRow struct {
	TotalOrders int32
	TotalSales  pgtype.Numeric
}

func (q *Queries) AggregateSessionOrders(ctx context.Context, since time.Time) (AggregateSessionOrdersRow, error) {
	var i AggregateSessionOrdersRow
	err := q.db.QueryRow(ctx, aggregateSessionOrders, since).Scan(&i.TotalOrders, &i.TotalSales)
	return i, err
}

const closeSession = `-- name: CloseSession :one
UPDATE sessions
SET status = 'CLOSED', closed_at = now(), total_orders = $2, total_sales = $3
WHERE id = $1 AND status = 'OPEN'
RETURNING ` + sessionColumns

type CloseSessionParams struct {
	ID          uuid.UUID
	TotalOrders int32
	TotalSales  pgtype.Numeric
}

func (q *Queries) CloseSession(ctx context.Context, arg CloseSessionParams) (Session, error) {
	return scanSession(q.db.QueryRow(ctx, closeSession, arg.ID, arg.TotalOrders, arg.TotalSales))
}

const listClosedSessions = `-- name: ListClosedSessions :many
SELECT ` + sessionColumns + ` FROM sessions
WHERE status = 'CLOSED'
ORDER BY closed_at DESC
LIMIT $1 OFFSET $2`

type ListClosedSessionsParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListClosedSessions(ctx context.Context, arg ListClosedSessionsParams) ([]Session, error) {
	rows, err := q.db.Query(ctx, listClosedSessions, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Session
	for rows.Next() {
		i, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const countClosedSessions = `-- name: CountClosedSessions :one
SELECT COUNT(*) FROM sessions WHERE status = 'CLOSED'`

func (q *Queries) CountClosedSessions(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countClosedSessions).Scan(&count)
	return count, err
}
