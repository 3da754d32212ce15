package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_Transitions(t *testing.T) {
	allowed := []struct{ from, to OrderStatus }{
		{OrderStatusPending, OrderStatusConfirmed},
		{OrderStatusPending, OrderStatusAwaitingPayment},
		{OrderStatusPending, OrderStatusCancelled},
		{OrderStatusPending, OrderStatusPaymentFailed},
		{OrderStatusAwaitingPayment, OrderStatusConfirmed},
		{OrderStatusAwaitingPayment, OrderStatusPaymentFailed},
		{OrderStatusConfirmed, OrderStatusPacking},
		{OrderStatusConfirmed, OrderStatusCancelled},
		{OrderStatusPacking, OrderStatusOutForDelivery},
		{OrderStatusOutForDelivery, OrderStatusDelivered},
	}
	for _, tt := range allowed {
		assert.True(t, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}

	denied := []struct{ from, to OrderStatus }{
		{OrderStatusConfirmed, OrderStatusPaymentFailed},
		{OrderStatusPacking, OrderStatusCancelled},
		{OrderStatusConfirmed, OrderStatusDelivered},
		{OrderStatusDelivered, OrderStatusPending},
		{OrderStatusCancelled, OrderStatusConfirmed},
		{OrderStatusPaymentFailed, OrderStatusConfirmed},
		{OrderStatusOutForDelivery, OrderStatusPacking},
	}
	for _, tt := range denied {
		assert.False(t, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestOrderStatus_OperatorTransitions(t *testing.T) {
	assert.True(t, OrderStatusConfirmed.OperatorCanTransition(OrderStatusPacking))
	assert.True(t, OrderStatusPending.OperatorCanTransition(OrderStatusCancelled))
	assert.False(t, OrderStatusPending.OperatorCanTransition(OrderStatusPaymentFailed))
	assert.False(t, OrderStatusAwaitingPayment.OperatorCanTransition(OrderStatusConfirmed))
	assert.True(t, OrderStatusAwaitingPayment.OperatorCanTransition(OrderStatusCancelled))
}

func TestOrderStatus_Terminal(t *testing.T) {
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.True(t, OrderStatusPaymentFailed.IsTerminal())
	assert.False(t, OrderStatusConfirmed.IsTerminal())
}

func TestParseOrderStatus(t *testing.T) {
	st, ok := ParseOrderStatus("out-for-delivery")
	assert.True(t, ok)
	assert.Equal(t, OrderStatusOutForDelivery, st)

	_, ok = ParseOrderStatus("shipped")
	assert.False(t, ok)
}
