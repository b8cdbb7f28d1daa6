package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kopibar/pos/internal/catalog"
	"github.com/kopibar/pos/internal/database"
	"github.com/kopibar/pos/internal/enum"
	"github.com/kopibar/pos/internal/orderstate"
	"github.com/kopibar/pos/internal/pricing"
	"github.com/shopspring/decimal"
)

// Errors returned by the order service.
var (
	ErrEmptyItems          = errors.New("items are required")
	ErrInvalidOrderType    = errors.New("invalid order_type")
	ErrInvalidQuantity     = errors.New("quantity must be > 0")
	ErrInvalidMenuItemID   = errors.New("invalid menu_item_id")
	ErrMenuItemNotFound    = errors.New("menu item not found")
	ErrMenuItemUnavailable = errors.New("menu item is not available")
	ErrInvalidAmount       = errors.New("invalid amount_tendered")
	ErrInsufficientTender  = errors.New("amount_tendered is less than total")
	ErrStoreClosed         = errors.New("store is closed")
	ErrMaintenance         = errors.New("store is under maintenance")
	ErrOrderNotFound       = errors.New("order not found")
	ErrStatusConflict      = errors.New("order status changed, please retry")
)

// OrderStore defines the DB methods needed by the order service.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetOpenSession(ctx context.Context) (database.Session, error)
	IncrementSessionCounters(ctx context.Context, arg database.IncrementSessionCountersParams) (database.Session, error)
	ListMenuItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]database.MenuItem, error)
	GetSetting(ctx context.Context, key string) (database.Setting, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListOrderItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) ([]database.OrderItem, error)
	ListActiveOrders(ctx context.Context, since time.Time) ([]database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error)
	CreateDrinkTicket(ctx context.Context, arg database.CreateDrinkTicketParams) (database.DrinkTicket, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the input for creating an order. Client-side prices
// and totals are not part of it: the server reprices from the stored menu.
type CreateOrderRequest struct {
	CustomerName   string
	TableNumber    string
	BeeperNumber   string
	OrderType      string
	PaymentMethod  string
	AmountTendered string
	Items          []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single line in the order.
type CreateOrderItemRequest struct {
	MenuItemID      string
	Quantity        int32
	SelectedFlavors []string
}

// OrderService handles order admission and the order lifecycle.
type OrderService struct {
	db       DB
	newStore NewOrderStore
	state    StateReader
	now      func() time.Time
}

// NewOrderService creates a new OrderService.
func NewOrderService(db DB, newStore NewOrderStore, state StateReader) *OrderService {
	return &OrderService{db: db, newStore: newStore, state: state, now: time.Now}
}

// CreateOrder prices the order from the stored menu and inserts it with its
// items. The session counters are bumped in the same transaction unless the
// order is a test order.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderDetail, error) {
	st := s.state.Snapshot()
	if st.Maintenance {
		return nil, ErrMaintenance
	}

	// --- Validate request shape ---
	orderType := req.OrderType
	if orderType == "" {
		orderType = enum.OrderTypeDineIn
	}
	if orderType != enum.OrderTypeDineIn && orderType != enum.OrderTypeTakeOut {
		return nil, ErrInvalidOrderType
	}
	if !orderstate.IsValidPaymentMethod(req.PaymentMethod) {
		return nil, orderstate.ErrInvalidPaymentMethod
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	ids := make([]uuid.UUID, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		id, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidMenuItemID)
		}
		ids[i] = id
	}

	var tendered *decimal.Decimal
	if req.AmountTendered != "" {
		d, err := decimal.NewFromString(req.AmountTendered)
		if err != nil || d.IsNegative() {
			return nil, ErrInvalidAmount
		}
		tendered = &d
	}

	// --- Begin transaction ---
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	session, err := store.GetOpenSession(ctx)
	sessionOpen := err == nil
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get open session: %w", err)
	}
	if !sessionOpen && !st.TestMode {
		return nil, ErrStoreClosed
	}

	// --- Load menu snapshot and price ---
	rows, err := store.ListMenuItemsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	menu := make(map[uuid.UUID]catalog.MenuItem, len(rows))
	for _, row := range rows {
		item, err := MenuItemFromRow(row)
		if err != nil {
			return nil, err
		}
		menu[item.ID] = item
	}

	addons, err := loadAddons(ctx, store)
	if err != nil {
		return nil, err
	}

	lines := make([]pricing.Line, len(req.Items))
	for i, item := range req.Items {
		mi, ok := menu[ids[i]]
		if !ok {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrMenuItemNotFound)
		}
		if !mi.Available {
			return nil, fmt.Errorf("item[%d] %s: %w", i, mi.Name, ErrMenuItemUnavailable)
		}
		if err := catalog.CheckLimits(mi, addons, item.SelectedFlavors); err != nil {
			return nil, fmt.Errorf("item[%d] %s: %w", i, mi.Name, err)
		}
		lines[i] = pricing.Line{Item: mi, Quantity: int(item.Quantity), Selected: item.SelectedFlavors}
	}
	quote := pricing.OrderTotal(lines, addons)

	// --- Payment ---
	params := database.CreateOrderParams{
		Total:         decimalToNumeric(quote.Total),
		PaymentStatus: orderstate.InitialPaymentStatus(req.PaymentMethod),
		PaymentMethod: req.PaymentMethod,
		CustomerName:  customerName(req.CustomerName),
		TableNumber:   textOrNull(strings.TrimSpace(req.TableNumber)),
		BeeperNumber:  textOrNull(strings.TrimSpace(req.BeeperNumber)),
		OrderType:     orderType,
		IsTest:        st.TestMode,
	}
	if req.PaymentMethod == enum.PaymentMethodCash && tendered != nil {
		if tendered.LessThan(quote.Total) {
			return nil, ErrInsufficientTender
		}
		params.AmountTendered = decimalToNumeric(*tendered)
		params.ChangeAmount = decimalToNumeric(tendered.Sub(quote.Total))
	}

	// --- Insert order + items ---
	order, err := store.CreateOrder(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items := make([]database.OrderItem, 0, len(quote.Lines))
	for _, lq := range quote.Lines {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:         order.ID,
			MenuItemID:      lq.Line.Item.ID,
			Name:            lq.Line.Item.Name,
			Price:           decimalToNumeric(lq.Line.Item.Price),
			ItemType:        lq.Line.Item.Type,
			Quantity:        int32(lq.Line.Quantity),
			SelectedFlavors: lq.Line.Selected,
			UnitPrice:       decimalToNumeric(lq.UnitPrice),
			LineTotal:       decimalToNumeric(lq.Total),
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}

	// --- Session ledger ---
	if !st.TestMode {
		if _, err := store.IncrementSessionCounters(ctx, database.IncrementSessionCountersParams{
			ID:    session.ID,
			Sales: order.Total,
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrStoreClosed
			}
			return nil, fmt.Errorf("increment session counters: %w", err)
		}
	}

	// --- Commit ---
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderDetail{Order: order, Items: items}, nil
}

// GetOrder returns one order with its items.
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*OrderDetail, error) {
	store := s.newStore(s.db)
	order, err := store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	items, err := store.ListOrderItemsByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return &OrderDetail{Order: order, Items: items}, nil
}

// ListActive returns every non-closed order created within window, newest first.
func (s *OrderService) ListActive(ctx context.Context, window time.Duration) ([]OrderDetail, error) {
	store := s.newStore(s.db)
	orders, err := store.ListActiveOrders(ctx, s.now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	if len(orders) == 0 {
		return []OrderDetail{}, nil
	}
	ids := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := store.ListOrderItemsByOrders(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return groupItems(orders, items), nil
}

// GlobalAddons returns the stored global add-on catalog.
func (s *OrderService) GlobalAddons(ctx context.Context) ([]catalog.GlobalAddonSection, error) {
	return loadAddons(ctx, s.newStore(s.db))
}

type settingGetter interface {
	GetSetting(ctx context.Context, key string) (database.Setting, error)
}

func loadAddons(ctx context.Context, store settingGetter) ([]catalog.GlobalAddonSection, error) {
	setting, err := store.GetSetting(ctx, enum.SettingGlobalAddons)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get global addons: %w", err)
	}
	return catalog.DecodeAddons(setting.Value)
}

func customerName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return enum.DefaultCustomerName
	}
	return s
}

// TicketItem is one drink line on a drink ticket.
type TicketItem struct {
	Name            string   `json:"name"`
	Quantity        int32    `json:"quantity"`
	SelectedFlavors []string `json:"selected_flavors"`
}

func ticketItems(items []database.OrderItem) ([]byte, error) {
	var out []TicketItem
	for _, it := range items {
		if it.ItemType != enum.ItemTypeDrink {
			continue
		}
		flavors := it.SelectedFlavors
		if flavors == nil {
			flavors = []string{}
		}
		out = append(out, TicketItem{Name: it.Name, Quantity: it.Quantity, SelectedFlavors: flavors})
	}
	return json.Marshal(out)
}
