package orderstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vali024/valix-shop/internal/domain"
)

var (
	ErrOrderNotFound = fmt.Errorf("order: %w", domain.ErrNotFound)
	// ErrStatusChanged means the row no longer has the status the caller read.
	ErrStatusChanged = fmt.Errorf("order status changed: %w", domain.ErrConcurrentUpdate)
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	SSLMode           string
	MigrationsDirPath string
}

type Repository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error)
	// UpdateOrderStatus moves the order from -> to only if it is still in from.
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error
	// UpdatePayment stores payment and status together, conditional on from like UpdateOrderStatus.
	UpdatePayment(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus, payment domain.Payment) error
	// DeleteOrder hard-deletes a delivered order and returns domain.ErrOrderNotDeletable otherwise.
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	ListOrders(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
}
