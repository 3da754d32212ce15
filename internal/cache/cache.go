package cache

import (
	"context"
	"errors"

	"github.com/vali024/valix-shop/internal/domain"
)

// CartCache holds server-side cart documents keyed by user.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.CartDocument, error)
	Set(ctx context.Context, userID string, cart *domain.CartDocument) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
