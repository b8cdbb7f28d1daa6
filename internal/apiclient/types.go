package apiclient

import (
	"encoding/json"
	"time"

	"github.com/kopibar/pos/internal/catalog"
	"github.com/shopspring/decimal"
)

// User is the authenticated operator.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// Tokens is the result of a login or refresh.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Order mirrors the server's order representation. ID is a string so that
// provisional local identifiers fit alongside server UUIDs.
type Order struct {
	ID             string           `json:"id"`
	Total          decimal.Decimal  `json:"total"`
	Status         string           `json:"status"`
	PaymentStatus  string           `json:"payment_status"`
	PaymentMethod  string           `json:"payment_method"`
	AmountTendered *decimal.Decimal `json:"amount_tendered"`
	ChangeAmount   *decimal.Decimal `json:"change_amount"`
	CustomerName   string           `json:"customer_name"`
	TableNumber    *string          `json:"table_number"`
	BeeperNumber   *string          `json:"beeper_number"`
	OrderType      string           `json:"order_type"`
	IsTest         bool             `json:"is_test"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	ClosedAt       *time.Time       `json:"closed_at"`
	Items          []OrderItem      `json:"items"`
}

type OrderItem struct {
	ID              string          `json:"id,omitempty"`
	MenuItemID      string          `json:"menu_item_id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	ItemType        string          `json:"item_type"`
	Quantity        int             `json:"quantity"`
	SelectedFlavors []string        `json:"selected_flavors"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	LineTotal       decimal.Decimal `json:"line_total"`
}

// CreateOrderRequest is the body of POST /orders. The server reprices every
// line from its own menu.
type CreateOrderRequest struct {
	CustomerName   string            `json:"customer_name,omitempty"`
	TableNumber    string            `json:"table_number,omitempty"`
	BeeperNumber   string            `json:"beeper_number,omitempty"`
	OrderType      string            `json:"order_type"`
	PaymentMethod  string            `json:"payment_method"`
	AmountTendered string            `json:"amount_tendered,omitempty"`
	Items          []CreateOrderItem `json:"items"`
}

type CreateOrderItem struct {
	MenuItemID      string   `json:"menu_item_id"`
	Quantity        int      `json:"quantity"`
	SelectedFlavors []string `json:"selected_flavors"`
}

type MarkPaidRequest struct {
	PaymentMethod  string `json:"payment_method"`
	AmountTendered string `json:"amount_tendered,omitempty"`
}

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

// MenuItemInput is the body of POST /menu and PUT /menu/{id}.
type MenuItemInput struct {
	Name        string          `json:"name"`
	Price       string          `json:"price"`
	Category    string          `json:"category"`
	Type        string          `json:"type"`
	Emoji       string          `json:"emoji"`
	Flavors     catalog.Flavors `json:"flavors"`
	MaxFlavors  int             `json:"max_flavors"`
	IsAvailable *bool           `json:"is_available,omitempty"`
}

type Session struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	OpenedAt    time.Time       `json:"opened_at"`
	ClosedAt    *time.Time      `json:"closed_at"`
	TotalOrders int             `json:"total_orders"`
	TotalSales  decimal.Decimal `json:"total_sales"`
}

type CloseSummary struct {
	Date         string          `json:"date"`
	TotalOrders  int             `json:"total_orders"`
	TotalSales   decimal.Decimal `json:"total_sales"`
	ClosedOrders int             `json:"closed_orders"`
	Session      Session         `json:"session"`
}

type StoreStatus struct {
	Status      string   `json:"status"`
	Maintenance bool     `json:"maintenance"`
	IsTest      bool     `json:"is_test"`
	Session     *Session `json:"session"`
}

type HistoryPage struct {
	Sessions []Session `json:"sessions"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
	Total    int       `json:"total"`
}

type SessionDetail struct {
	Session Session `json:"session"`
	Orders  []Order `json:"orders"`
}

type AppState struct {
	Maintenance bool `json:"maintenance"`
	TestMode    bool `json:"is_test"`
}

type DrinkTicket struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"order_id"`
	CustomerName string          `json:"customer_name"`
	TableNumber  *string         `json:"table_number"`
	BeeperNumber *string         `json:"beeper_number"`
	Items        json.RawMessage `json:"items"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

type Analytics struct {
	Range          string             `json:"range"`
	From           time.Time          `json:"from"`
	To             time.Time          `json:"to"`
	OrderCount     int                `json:"order_count"`
	TotalSales     decimal.Decimal    `json:"total_sales"`
	AverageTicket  decimal.Decimal    `json:"average_ticket"`
	TopItems       []TopItem          `json:"top_items"`
	PaymentMethods []PaymentBreakdown `json:"payment_methods"`
	Hourly         []HourlySales      `json:"hourly"`
}

type TopItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type PaymentBreakdown struct {
	PaymentMethod string          `json:"payment_method"`
	OrderCount    int             `json:"order_count"`
	Total         decimal.Decimal `json:"total"`
}

type HourlySales struct {
	Hour       int             `json:"hour"`
	OrderCount int             `json:"order_count"`
	Total      decimal.Decimal `json:"total"`
}

// Event is one realtime message.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
