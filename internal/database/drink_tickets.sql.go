package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const drinkTicketColumns = `id, order_id, customer_name, table_number, beeper_number, items, status, created_at, completed_at`

func scanDrinkTicket(row scanner) (DrinkTicket, error) {
	var i DrinkTicket
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.CustomerName,
		&i.TableNumber,
		&i.BeeperNumber,
		&i.Items,
		&i.Status,
		&i.CreatedAt,
		&i.CompletedAt,
	)
	return i, err
}

const createDrinkTicket = `-- name: CreateDrinkTicket :one
INSERT INTO drink_tickets (order_id, customer_name, table_number, beeper_number, items)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (order_id) DO NOTHING
RETURNING ` + drinkTicketColumns

type CreateDrinkTicketParams struct {
	OrderID      uuid.UUID
	CustomerName string
	TableNumber  pgtype.Text
	BeeperNumber pgtype.Text
	Items        []byte
}

// CreateDrinkTicket returns pgx.ErrNoRows when the order already has a ticket.
func (q *Queries) CreateDrinkTicket(ctx context.Context, arg CreateDrinkTicketParams) (DrinkTicket, error) {
	row := q.db.QueryRow(ctx, createDrinkTicket,
		arg.OrderID,
		arg.CustomerName,
		arg.TableNumber,
		arg.BeeperNumber,
		arg.Items,
	)
	return scanDrinkTicket(row)
}

const listPendingDrinkTickets = `-- name: ListPendingDrinkTickets :many
SELECT ` + drinkTicketColumns + ` FROM drink_tickets
WHERE status = 'pending'
ORDER BY created_at`

func (q *Queries) ListPendingDrinkTickets(ctx context.Context) ([]DrinkTicket, error) {
	rows, err := q.db.Query(ctx, listPendingDrinkTickets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DrinkTicket
	for rows.Next() {
		i, err := scanDrinkTicket(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getDrinkTicket = `-- name: GetDrinkTicket :one
SELECT ` + drinkTicketColumns + ` FROM drink_tickets WHERE id = $1`

func (q *Queries) GetDrinkTicket(ctx context.Context, id uuid.UUID) (DrinkTicket, error) {
	return scanDrinkTicket(q.db.QueryRow(ctx, getDrinkTicket, id))
}

const completeDrinkTicket = `-- name: CompleteDrinkTicket :one
UPDATE drink_tickets SET status = 'completed', completed_at = now()
WHERE id = $1 AND status = 'pending'
RETURNING ` + drinkTicketColumns

func (q *Queries) CompleteDrinkTicket(ctx context.Context, id uuid.UUID) (DrinkTicket, error) {
	return scanDrinkTicket(q.db.QueryRow(ctx, completeDrinkTicket, id))
}
