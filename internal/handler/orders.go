package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kopibar/pos/internal/catalog"
	"github.com/kopibar/pos/internal/database"
	"github.com/kopibar/pos/internal/enum"
	"github.com/kopibar/pos/internal/middleware"
	"github.com/kopibar/pos/internal/orderstate"
	"github.com/kopibar/pos/internal/service"
	"github.com/shopspring/decimal"
)

// Broadcaster pushes realtime events to connected terminals.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	Broadcast(eventType string, payload interface{})
}

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderDetail, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*service.OrderDetail, error)
	ListActive(ctx context.Context, window time.Duration) ([]service.OrderDetail, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, next string) (*service.StatusResult, error)
	MarkPaid(ctx context.Context, id uuid.UUID, req service.MarkPaidRequest) (*service.OrderDetail, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc          OrderServicer
	hub          Broadcaster
	analytics    AnalyticsInvalidator
	activeWindow time.Duration
}

// NewOrderHandler creates a new OrderHandler. activeWindow is the default
// look-back of the active order list.
func NewOrderHandler(svc OrderServicer, hub Broadcaster, analytics AnalyticsInvalidator, activeWindow time.Duration) *OrderHandler {
	return &OrderHandler{svc: svc, hub: hub, analytics: analytics, activeWindow: activeWindow}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders behind Authenticate.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	counter := middleware.RequireRole(enum.UserRoleAdmin, enum.UserRoleCashier)

	r.With(counter).Post("/", h.Create)
	r.Get("/", h.ListActive)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.With(counter).Patch("/{id}/pay", h.MarkPaid)
}

// --- Request / Response types ---

type createOrderRequest struct {
	CustomerName   string                   `json:"customer_name"`
	TableNumber    string                   `json:"table_number"`
	BeeperNumber   string                   `json:"beeper_number"`
	OrderType      string                   `json:"order_type"`
	PaymentMethod  string                   `json:"payment_method"`
	AmountTendered string                   `json:"amount_tendered"`
	Items          []createOrderItemRequest `json:"items"`
}

// Name, price and change_amount may be sent by clients for their optimistic
// view; the server ignores them and reprices from the stored menu.
type createOrderItemRequest struct {
	MenuItemID      string   `json:"menu_item_id"`
	Quantity        int32    `json:"quantity"`
	SelectedFlavors []string `json:"selected_flavors"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type markPaidRequest struct {
	PaymentMethod  string `json:"payment_method"`
	AmountTendered string `json:"amount_tendered"`
}

type orderResponse struct {
	ID             uuid.UUID           `json:"id"`
	Total          string              `json:"total"`
	Status         string              `json:"status"`
	PaymentStatus  string              `json:"payment_status"`
	PaymentMethod  string              `json:"payment_method"`
	AmountTendered *string             `json:"amount_tendered"`
	ChangeAmount   *string             `json:"change_amount"`
	CustomerName   string              `json:"customer_name"`
	TableNumber    *string             `json:"table_number"`
	BeeperNumber   *string             `json:"beeper_number"`
	OrderType      string              `json:"order_type"`
	IsTest         bool                `json:"is_test"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	ClosedAt       *time.Time          `json:"closed_at"`
	Items          []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	ID              uuid.UUID `json:"id"`
	MenuItemID      uuid.UUID `json:"menu_item_id"`
	Name            string    `json:"name"`
	Price           string    `json:"price"`
	ItemType        string    `json:"item_type"`
	Quantity        int32     `json:"quantity"`
	SelectedFlavors []string  `json:"selected_flavors"`
	UnitPrice       string    `json:"unit_price"`
	LineTotal       string    `json:"line_total"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.PaymentMethod == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payment_method is required"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}
	for i, item := range req.Items {
		if item.MenuItemID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "menu_item_id is required"),
			})
			return
		}
		if item.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "quantity must be > 0"),
			})
			return
		}
	}

	svcItems := make([]service.CreateOrderItemRequest, len(req.Items))
	for i, item := range req.Items {
		svcItems[i] = service.CreateOrderItemRequest{
			MenuItemID:      item.MenuItemID,
			Quantity:        item.Quantity,
			SelectedFlavors: item.SelectedFlavors,
		}
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		CustomerName:   req.CustomerName,
		TableNumber:    req.TableNumber,
		BeeperNumber:   req.BeeperNumber,
		OrderType:      req.OrderType,
		PaymentMethod:  req.PaymentMethod,
		AmountTendered: req.AmountTendered,
		Items:          svcItems,
	})
	if err != nil {
		writeOrderError(w, "create order", err)
		return
	}

	h.analytics.Invalidate(r.Context())
	resp := toOrderResponse(*result)
	h.hub.Broadcast(enum.EventOrderNew, resp)
	writeJSON(w, http.StatusCreated, resp)
}

// ListActive handles GET /orders?window_hours=N.
func (h *OrderHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	window := h.activeWindow
	if s := r.URL.Query().Get("window_hours"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "window_hours must be a positive integer"})
			return
		}
		window = time.Duration(v) * time.Hour
	}

	orders, err := h.svc.ListActive(r.Context(), window)
	if err != nil {
		writeOrderError(w, "list active orders", err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	result, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		writeOrderError(w, "get order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(*result))
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	result, err := h.svc.UpdateStatus(r.Context(), orderID, req.Status)
	if err != nil {
		writeOrderError(w, "update order status", err)
		return
	}
	if s := result.Order.Status; s == enum.OrderStatusCancelled || s == enum.OrderStatusVoided {
		h.analytics.Invalidate(r.Context())
	}

	resp := toOrderResponse(result.OrderDetail)
	h.hub.Broadcast(enum.EventOrderUpdate, resp)
	if result.Ticket != nil {
		h.hub.Broadcast(enum.EventTicketNew, toDrinkTicketResponse(*result.Ticket))
	}
	writeJSON(w, http.StatusOK, resp)
}

// MarkPaid handles PATCH /orders/{id}/pay.
func (h *OrderHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req markPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.PaymentMethod == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payment_method is required"})
		return
	}

	result, err := h.svc.MarkPaid(r.Context(), orderID, service.MarkPaidRequest{
		PaymentMethod:  req.PaymentMethod,
		AmountTendered: req.AmountTendered,
	})
	if err != nil {
		writeOrderError(w, "mark order paid", err)
		return
	}
	h.analytics.Invalidate(r.Context())

	resp := toOrderResponse(*result)
	h.hub.Broadcast(enum.EventOrderUpdate, resp)
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func formatItemError(idx int, msg string) string {
	return "items[" + strconv.Itoa(idx) + "]: " + msg
}

// isValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidOrderType) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidMenuItemID) ||
		errors.Is(err, service.ErrMenuItemNotFound) ||
		errors.Is(err, service.ErrMenuItemUnavailable) ||
		errors.Is(err, service.ErrInvalidAmount) ||
		errors.Is(err, service.ErrInsufficientTender) ||
		errors.Is(err, catalog.ErrTooManySelections) ||
		errors.Is(err, orderstate.ErrInvalidStatus) ||
		errors.Is(err, orderstate.ErrInvalidPaymentMethod)
}

// isConflictError reports lifecycle rule violations against the order's
// current state.
func isConflictError(err error) bool {
	return errors.Is(err, orderstate.ErrInvalidTransition) ||
		errors.Is(err, orderstate.ErrPaymentRequired) ||
		errors.Is(err, orderstate.ErrCloseNotAllowed) ||
		errors.Is(err, orderstate.ErrAlreadyPaid) ||
		errors.Is(err, service.ErrStatusConflict)
}

func writeOrderError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrStoreClosed), errors.Is(err, service.ErrMaintenance):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case isConflictError(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func toOrderResponse(d service.OrderDetail) orderResponse {
	o := d.Order
	resp := orderResponse{
		ID:            o.ID,
		Total:         numericToString(o.Total),
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		PaymentMethod: o.PaymentMethod,
		CustomerName:  o.CustomerName,
		OrderType:     o.OrderType,
		IsTest:        o.IsTest,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		TableNumber:   textPtr(o.TableNumber),
		BeeperNumber:  textPtr(o.BeeperNumber),
	}
	if o.AmountTendered.Valid {
		s := numericToString(o.AmountTendered)
		resp.AmountTendered = &s
	}
	if o.ChangeAmount.Valid {
		s := numericToString(o.ChangeAmount)
		resp.ChangeAmount = &s
	}
	if o.ClosedAt.Valid {
		resp.ClosedAt = &o.ClosedAt.Time
	}

	resp.Items = make([]orderItemResponse, len(d.Items))
	for i, it := range d.Items {
		resp.Items[i] = toOrderItemResponse(it)
	}
	return resp
}

func toOrderItemResponse(it database.OrderItem) orderItemResponse {
	flavors := it.SelectedFlavors
	if flavors == nil {
		flavors = []string{}
	}
	return orderItemResponse{
		ID:              it.ID,
		MenuItemID:      it.MenuItemID,
		Name:            it.Name,
		Price:           numericToString(it.Price),
		ItemType:        it.ItemType,
		Quantity:        it.Quantity,
		SelectedFlavors: flavors,
		UnitPrice:       numericToString(it.UnitPrice),
		LineTotal:       numericToString(it.LineTotal),
	}
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
