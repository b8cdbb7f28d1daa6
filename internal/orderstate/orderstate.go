// Package orderstate defines the legal order statuses, the transitions
// between them and how payment status couples to completion.
package orderstate

import (
	"errors"
	"fmt"

	"github.com/kopibar/pos/internal/enum"
)

var (
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrPaymentRequired      = errors.New("order must be paid before completion")
	ErrCloseNotAllowed      = errors.New("orders are closed by close-day only")
	ErrAlreadyPaid          = errors.New("order is already paid")
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")
)

// allowedTransitions defines the individual user-driven transitions.
// closed is absent on purpose: it is only reached through close-day.
var allowedTransitions = map[string][]string{
	enum.OrderStatusNew:       {enum.OrderStatusPreparing, enum.OrderStatusCancelled, enum.OrderStatusVoided},
	enum.OrderStatusPreparing: {enum.OrderStatusReady, enum.OrderStatusCancelled, enum.OrderStatusVoided},
	enum.OrderStatusReady:     {enum.OrderStatusCompleted, enum.OrderStatusCancelled, enum.OrderStatusVoided},
}

// IsValidStatus reports whether s is a known order status.
func IsValidStatus(s string) bool {
	switch s {
	case enum.OrderStatusNew, enum.OrderStatusPreparing, enum.OrderStatusReady,
		enum.OrderStatusCompleted, enum.OrderStatusCancelled,
		enum.OrderStatusVoided, enum.OrderStatusClosed:
		return true
	}
	return false
}

// IsValidPaymentMethod reports whether m is an accepted payment method.
func IsValidPaymentMethod(m string) bool {
	switch m {
	case enum.PaymentMethodCash, enum.PaymentMethodGCash,
		enum.PaymentMethodBankTransfer, enum.PaymentMethodPayLater:
		return true
	}
	return false
}

// IsPreSettled reports whether the method is verified outside the till and
// therefore never blocks completion.
func IsPreSettled(method string) bool {
	return method == enum.PaymentMethodGCash || method == enum.PaymentMethodBankTransfer
}

// InitialPaymentStatus is pending for Pay Later and paid for every other method.
func InitialPaymentStatus(method string) string {
	if method == enum.PaymentMethodPayLater {
		return enum.PaymentStatusPending
	}
	return enum.PaymentStatusPaid
}

// Order is the slice of an order the state machine needs.
type Order struct {
	Status        string
	PaymentStatus string
	PaymentMethod string
}

// ValidateTransition checks whether o may move to next.
func ValidateTransition(o Order, next string) error {
	if !IsValidStatus(next) {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, next)
	}
	if next == enum.OrderStatusClosed {
		return ErrCloseNotAllowed
	}
	allowed, ok := allowedTransitions[o.Status]
	if !ok {
		return fmt.Errorf("%w: cannot transition from %s", ErrInvalidTransition, o.Status)
	}
	found := false
	for _, s := range allowed {
		if s == next {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, o.Status, next)
	}
	if next == enum.OrderStatusCompleted && !CanComplete(o) {
		return ErrPaymentRequired
	}
	return nil
}

// CanComplete reports whether payment allows completion.
func CanComplete(o Order) bool {
	return o.PaymentStatus == enum.PaymentStatusPaid || IsPreSettled(o.PaymentMethod)
}

// ValidateMarkPaid checks the pending → paid transition. The new method must
// be a settling method, so Pay Later is rejected.
func ValidateMarkPaid(o Order, method string) error {
	if o.PaymentStatus == enum.PaymentStatusPaid {
		return ErrAlreadyPaid
	}
	if !IsValidPaymentMethod(method) || method == enum.PaymentMethodPayLater {
		return ErrInvalidPaymentMethod
	}
	return nil
}

// NeedsDrinkTicket reports whether moving to next should surface a drink
// ticket for an order containing the given item types.
func NeedsDrinkTicket(next string, itemTypes []string) bool {
	if next != enum.OrderStatusReady {
		return false
	}
	for _, t := range itemTypes {
		if t == enum.ItemTypeDrink {
			return true
		}
	}
	return false
}
