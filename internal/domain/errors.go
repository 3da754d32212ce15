package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                 = errors.New("not found")
	ErrInvalidInput             = errors.New("invalid input")
	ErrStaleCatalog             = errors.New("item is no longer purchasable")
	ErrInvalidPromoCode         = errors.New("invalid promo code")
	ErrPromoMinimumNotMet       = errors.New("promo code minimum subtotal not met")
	ErrPaymentSignatureMismatch = errors.New("payment signature mismatch")
	ErrSyncFailure              = errors.New("cart sync failed")

	ErrEmptyCart         = errors.New("cart is empty, nothing to order")
	ErrInvalidAddress    = fmt.Errorf("invalid address: %w", ErrInvalidInput)
	ErrOrderNotDeletable = errors.New("only delivered orders can be deleted")
	ErrIllegalTransition = errors.New("illegal transition of order status")
	ErrConcurrentUpdate  = errors.New("concurrent update, retry")
	ErrDuplicateOrder    = errors.New("order for this idempotency key already exists")
)

// FieldError reports a single invalid field of an address.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid address: %s %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidAddress
}
