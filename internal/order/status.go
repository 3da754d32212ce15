package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vali024/valix-shop/internal/domain"
)

// UpdateStatus applies an operator status change. Moves reserved for payment
// verification are rejected with ErrIllegalTransition.
func (a *Assembler) UpdateStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	if _, ok := domain.ParseOrderStatus(string(next)); !ok {
		return nil, fmt.Errorf("order status %q: %w", next, domain.ErrInvalidInput)
	}

	o, err := a.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	prev := o.Status
	if !prev.OperatorCanTransition(next) {
		return nil, fmt.Errorf("%s -> %s: %w", prev, next, domain.ErrIllegalTransition)
	}

	if err := a.repo.UpdateOrderStatus(ctx, id, prev, next); err != nil {
		return nil, err
	}
	o.Status = next

	a.publish(ctx, domain.NewOrderEvent(domain.OrderEventStatusChanged, o, prev))
	a.log.Info("order status changed",
		zap.String("order_id", id.String()),
		zap.String("from", prev.String()),
		zap.String("to", next.String()))
	return o, nil
}

// DeleteOrder removes a delivered order. Any other status leaves the record
// untouched and returns ErrOrderNotDeletable.
func (a *Assembler) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	o, err := a.repo.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if o.Status != domain.OrderStatusDelivered {
		return fmt.Errorf("order is %s: %w", o.Status, domain.ErrOrderNotDeletable)
	}

	if err := a.repo.DeleteOrder(ctx, id); err != nil {
		return err
	}

	a.publish(ctx, domain.NewOrderEvent(domain.OrderEventDeleted, o, o.Status))
	a.log.Info("order deleted", zap.String("order_id", id.String()))
	return nil
}
