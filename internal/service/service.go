// Package service holds the transactional business logic: order admission
// and pricing, the order lifecycle, the session ledger and analytics.
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kopibar/pos/internal/appstate"
	"github.com/kopibar/pos/internal/catalog"
	"github.com/kopibar/pos/internal/database"
	"github.com/shopspring/decimal"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DB runs single statements and begins transactions. Satisfied by *pgxpool.Pool.
type DB interface {
	database.DBTX
	TxBeginner
}

// StateReader exposes the current maintenance / test-mode toggles.
// Satisfied by *appstate.Store.
type StateReader interface {
	Snapshot() appstate.State
}

// OrderDetail is an order with its line items.
type OrderDetail struct {
	Order database.Order
	Items []database.OrderItem
}

// MenuItemFromRow decodes a stored menu item into its catalog form.
func MenuItemFromRow(row database.MenuItem) (catalog.MenuItem, error) {
	item := catalog.MenuItem{
		ID:         row.ID,
		Name:       row.Name,
		Price:      numericToDecimal(row.Price),
		Category:   row.Category,
		Type:       row.Type,
		Emoji:      row.Emoji,
		MaxFlavors: int(row.MaxFlavors),
		Available:  row.IsAvailable,
	}
	if len(row.Flavors) > 0 {
		if err := item.Flavors.UnmarshalJSON(row.Flavors); err != nil {
			return catalog.MenuItem{}, fmt.Errorf("menu item %s flavors: %w", row.ID, err)
		}
	}
	return item, nil
}

// groupItems attaches items to their orders, keeping the order of orders.
func groupItems(orders []database.Order, items []database.OrderItem) []OrderDetail {
	byOrder := make(map[uuid.UUID][]database.OrderItem, len(orders))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	out := make([]OrderDetail, len(orders))
	for i, o := range orders {
		out[i] = OrderDetail{Order: o, Items: byOrder[o.ID]}
	}
	return out
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
