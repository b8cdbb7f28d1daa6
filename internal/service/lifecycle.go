package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kopibar/pos/internal/database"
	"github.com/kopibar/pos/internal/enum"
	"github.com/kopibar/pos/internal/orderstate"
	"github.com/shopspring/decimal"
)

// StatusResult is the outcome of a status change. Ticket is set when the
// change surfaced a new drink ticket.
type StatusResult struct {
	OrderDetail
	Ticket *database.DrinkTicket
}

// UpdateStatus moves an order to next. Moving a drink-bearing order to ready
// also creates its drink ticket in the same transaction.
func (s *OrderService) UpdateStatus(ctx context.Context, id uuid.UUID, next string) (*StatusResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetOrderForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := orderstate.ValidateTransition(orderstate.Order{
		Status:        current.Status,
		PaymentStatus: current.PaymentStatus,
		PaymentMethod: current.PaymentMethod,
	}, next); err != nil {
		return nil, err
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:         id,
		Status:     next,
		FromStatus: current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	items, err := store.ListOrderItemsByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	result := &StatusResult{OrderDetail: OrderDetail{Order: updated, Items: items}}

	types := make([]string, len(items))
	for i, it := range items {
		types[i] = it.ItemType
	}
	if orderstate.NeedsDrinkTicket(next, types) {
		raw, err := ticketItems(items)
		if err != nil {
			return nil, fmt.Errorf("encode ticket items: %w", err)
		}
		ticket, err := store.CreateDrinkTicket(ctx, database.CreateDrinkTicketParams{
			OrderID:      updated.ID,
			CustomerName: updated.CustomerName,
			TableNumber:  updated.TableNumber,
			BeeperNumber: updated.BeeperNumber,
			Items:        raw,
		})
		switch {
		case err == nil:
			result.Ticket = &ticket
		case errors.Is(err, pgx.ErrNoRows):
			// ticket already exists for this order
		default:
			return nil, fmt.Errorf("create drink ticket: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return result, nil
}

// MarkPaidRequest records how a pending order was settled.
type MarkPaidRequest struct {
	PaymentMethod  string
	AmountTendered string
}

// MarkPaid performs the pending → paid transition.
func (s *OrderService) MarkPaid(ctx context.Context, id uuid.UUID, req MarkPaidRequest) (*OrderDetail, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetOrderForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if current.Status == enum.OrderStatusCancelled || current.Status == enum.OrderStatusVoided {
		return nil, fmt.Errorf("%w: order is %s", orderstate.ErrInvalidTransition, current.Status)
	}
	if err := orderstate.ValidateMarkPaid(orderstate.Order{
		Status:        current.Status,
		PaymentStatus: current.PaymentStatus,
		PaymentMethod: current.PaymentMethod,
	}, req.PaymentMethod); err != nil {
		return nil, err
	}

	params := database.MarkOrderPaidParams{ID: id, PaymentMethod: req.PaymentMethod}
	if req.PaymentMethod == enum.PaymentMethodCash && req.AmountTendered != "" {
		tendered, err := decimal.NewFromString(req.AmountTendered)
		if err != nil || tendered.IsNegative() {
			return nil, ErrInvalidAmount
		}
		total := numericToDecimal(current.Total)
		if tendered.LessThan(total) {
			return nil, ErrInsufficientTender
		}
		params.AmountTendered = decimalToNumeric(tendered)
		params.ChangeAmount = decimalToNumeric(tendered.Sub(total))
	}

	updated, err := store.MarkOrderPaid(ctx, params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, orderstate.ErrAlreadyPaid
		}
		return nil, fmt.Errorf("mark order paid: %w", err)
	}

	items, err := store.ListOrderItemsByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderDetail{Order: updated, Items: items}, nil
}
