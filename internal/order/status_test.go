package order

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vali024/valix-shop/internal/domain"
)

func seedOrder(t *testing.T, f *fixture, status domain.OrderStatus, method domain.PaymentMethod) *domain.Order {
	t.Helper()
	o := &domain.Order{
		ID:      uuid.New(),
		UserID:  "u1",
		Status:  status,
		Address: validAddress(),
		Payment: domain.Payment{Method: method, Status: domain.PaymentStatusInitiated},
	}
	f.repo.put(o)
	return o
}

func TestUpdateStatus_FollowsLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o := seedOrder(t, f, domain.OrderStatusConfirmed, domain.PaymentCOD)

	for _, next := range []domain.OrderStatus{
		domain.OrderStatusPacking,
		domain.OrderStatusOutForDelivery,
		domain.OrderStatusDelivered,
	} {
		got, err := f.assembler.UpdateStatus(ctx, o.ID, next)
		require.NoError(t, err, next)
		assert.Equal(t, next, got.Status)
	}

	assert.Equal(t, domain.OrderStatusDelivered, f.repo.get(o.ID).Status)
	assert.Len(t, f.publisher.types(), 3)
}

func TestUpdateStatus_RejectsIllegalMoves(t *testing.T) {
	tests := []struct {
		name string
		from domain.OrderStatus
		to   domain.OrderStatus
	}{
		{"skip packing", domain.OrderStatusConfirmed, domain.OrderStatusDelivered},
		{"leave terminal", domain.OrderStatusDelivered, domain.OrderStatusPacking},
		{"reopen cancelled", domain.OrderStatusCancelled, domain.OrderStatusConfirmed},
		{"confirm without payment", domain.OrderStatusAwaitingPayment, domain.OrderStatusConfirmed},
		{"fail payment by hand", domain.OrderStatusAwaitingPayment, domain.OrderStatusPaymentFailed},
		{"cancel in transit", domain.OrderStatusOutForDelivery, domain.OrderStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			o := seedOrder(t, f, tt.from, domain.PaymentOnline)

			_, err := f.assembler.UpdateStatus(context.Background(), o.ID, tt.to)

			assert.ErrorIs(t, err, domain.ErrIllegalTransition)
			assert.Equal(t, tt.from, f.repo.get(o.ID).Status)
			assert.Empty(t, f.publisher.types())
		})
	}
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	f := newFixture()
	o := seedOrder(t, f, domain.OrderStatusConfirmed, domain.PaymentCOD)

	_, err := f.assembler.UpdateStatus(context.Background(), o.ID, "shipped")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdateStatus_UnknownOrder(t *testing.T) {
	f := newFixture()

	_, err := f.assembler.UpdateStatus(context.Background(), uuid.New(), domain.OrderStatusPacking)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteOrder(t *testing.T) {
	t.Run("delivered order is removed", func(t *testing.T) {
		f := newFixture()
		o := seedOrder(t, f, domain.OrderStatusDelivered, domain.PaymentCOD)

		require.NoError(t, f.assembler.DeleteOrder(context.Background(), o.ID))
		assert.Nil(t, f.repo.get(o.ID))
		assert.Equal(t, []domain.OrderEventType{domain.OrderEventDeleted}, f.publisher.types())
	})

	t.Run("non-delivered order is kept", func(t *testing.T) {
		f := newFixture()
		o := seedOrder(t, f, domain.OrderStatusPacking, domain.PaymentCOD)

		err := f.assembler.DeleteOrder(context.Background(), o.ID)

		assert.ErrorIs(t, err, domain.ErrOrderNotDeletable)
		stored := f.repo.get(o.ID)
		require.NotNil(t, stored)
		assert.Equal(t, domain.OrderStatusPacking, stored.Status)
	})
}
