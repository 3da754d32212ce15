package repository

import (
	"context"
	"fmt"

	"github.com/vali024/valix-shop/internal/domain"
)

var (
	ErrCartNotFound = fmt.Errorf("cart: %w", domain.ErrNotFound)
	// ErrVersionConflict is returned when the stored address book moved past the caller's version.
	ErrVersionConflict = fmt.Errorf("address book changed: %w", domain.ErrConcurrentUpdate)
)

// CartRepository stores the server copy of each user's cart.
// PutCart replaces the whole document; the last write wins.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.CartDocument, error)
	PutCart(ctx context.Context, cart *domain.CartDocument) error
	ClearCart(ctx context.Context, userID string) error
}

// AddressRepository stores one versioned address book per user.
type AddressRepository interface {
	// GetAddresses returns an empty book with version 0 for unknown users.
	GetAddresses(ctx context.Context, userID string) (*domain.AddressBook, error)
	// SaveAddresses writes book if the stored version still equals book.Version
	// and bumps book.Version on success.
	SaveAddresses(ctx context.Context, book *domain.AddressBook) error
}
