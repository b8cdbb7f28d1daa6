package orderstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kopibar/pos/internal/apiclient"
	"github.com/kopibar/pos/internal/catalog"
	"github.com/kopibar/pos/internal/enum"
	"github.com/kopibar/pos/internal/orderstate"
	"github.com/kopibar/pos/internal/pricing"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrUnknownItem     = errors.New("unknown menu item")
	ErrUnavailableItem = errors.New("menu item is not available")
	ErrInvalidQuantity = errors.New("quantity must be > 0")
)

// CartLine is one composed line before checkout.
type CartLine struct {
	Item     catalog.MenuItem
	Quantity int
	Selected []string
}

// Cart composes an order against a menu snapshot. Selection limits are
// enforced here; pricing trusts whatever the cart lets through.
type Cart struct {
	menu   map[string]catalog.MenuItem
	addons []catalog.GlobalAddonSection
	lines  []CartLine
}

func NewCart(menu []catalog.MenuItem, addons []catalog.GlobalAddonSection) *Cart {
	c := &Cart{}
	c.SetMenu(menu, addons)
	return c
}

// SetMenu swaps the menu snapshot, e.g. after a menu:update event. Lines
// already in the cart keep the item they were composed with.
func (c *Cart) SetMenu(menu []catalog.MenuItem, addons []catalog.GlobalAddonSection) {
	c.menu = make(map[string]catalog.MenuItem, len(menu))
	for _, m := range menu {
		c.menu[m.ID.String()] = m
	}
	c.addons = addons
}

// Add validates and appends a line.
func (c *Cart) Add(menuItemID string, quantity int, selected []string) error {
	item, ok := c.menu[menuItemID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, menuItemID)
	}
	if !item.Available {
		return fmt.Errorf("%w: %s", ErrUnavailableItem, item.Name)
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if err := catalog.ValidateSelection(item, c.addons, selected); err != nil {
		return err
	}
	c.lines = append(c.lines, CartLine{
		Item:     item,
		Quantity: quantity,
		Selected: append([]string(nil), selected...),
	})
	return nil
}

// Remove drops line i; out-of-range indexes are ignored.
func (c *Cart) Remove(i int) {
	if i < 0 || i >= len(c.lines) {
		return
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}

func (c *Cart) Clear() { c.lines = nil }

func (c *Cart) Lines() []CartLine {
	return append([]CartLine(nil), c.lines...)
}

func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

func (c *Cart) quote() pricing.Quote {
	lines := make([]pricing.Line, len(c.lines))
	for i, l := range c.lines {
		lines[i] = pricing.Line{Item: l.Item, Quantity: l.Quantity, Selected: l.Selected}
	}
	return pricing.OrderTotal(lines, c.addons)
}

// Total is the client-side price of the cart.
func (c *Cart) Total() decimal.Decimal {
	return c.quote().Total
}

// Details are the checkout fields that are not lines.
type Details struct {
	CustomerName   string
	TableNumber    string
	BeeperNumber   string
	OrderType      string
	PaymentMethod  string
	AmountTendered string
}

// Draft is a checkout ready to submit: the request body and the order the
// operator sees until the server confirms it.
type Draft struct {
	Request apiclient.CreateOrderRequest
	Preview apiclient.Order
}

// Checkout builds a Draft from the cart. The cart is left untouched.
func (c *Cart) Checkout(d Details) (Draft, error) {
	if c.IsEmpty() {
		return Draft{}, ErrEmptyCart
	}
	if !orderstate.IsValidPaymentMethod(d.PaymentMethod) {
		return Draft{}, orderstate.ErrInvalidPaymentMethod
	}
	orderType := d.OrderType
	if orderType == "" {
		orderType = enum.OrderTypeDineIn
	}

	q := c.quote()

	req := apiclient.CreateOrderRequest{
		CustomerName:   d.CustomerName,
		TableNumber:    d.TableNumber,
		BeeperNumber:   d.BeeperNumber,
		OrderType:      orderType,
		PaymentMethod:  d.PaymentMethod,
		AmountTendered: d.AmountTendered,
		Items:          make([]apiclient.CreateOrderItem, len(c.lines)),
	}
	preview := apiclient.Order{
		Total:         q.Total,
		Status:        enum.OrderStatusNew,
		PaymentStatus: orderstate.InitialPaymentStatus(d.PaymentMethod),
		PaymentMethod: d.PaymentMethod,
		CustomerName:  previewCustomer(d.CustomerName),
		TableNumber:   optional(d.TableNumber),
		BeeperNumber:  optional(d.BeeperNumber),
		OrderType:     orderType,
		Items:         make([]apiclient.OrderItem, len(c.lines)),
	}

	for i, l := range c.lines {
		selected := l.Selected
		if selected == nil {
			selected = []string{}
		}
		req.Items[i] = apiclient.CreateOrderItem{
			MenuItemID:      l.Item.ID.String(),
			Quantity:        l.Quantity,
			SelectedFlavors: selected,
		}
		preview.Items[i] = apiclient.OrderItem{
			MenuItemID:      l.Item.ID.String(),
			Name:            l.Item.Name,
			Price:           l.Item.Price,
			ItemType:        l.Item.Type,
			Quantity:        l.Quantity,
			SelectedFlavors: selected,
			UnitPrice:       q.Lines[i].UnitPrice,
			LineTotal:       q.Lines[i].Total,
		}
	}

	return Draft{Request: req, Preview: preview}, nil
}

func previewCustomer(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return enum.DefaultCustomerName
	}
	return s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
