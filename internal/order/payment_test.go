package order

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vali024/valix-shop/internal/domain"
)

func TestSignAndVerify(t *testing.T) {
	secret := []byte("secret")
	sig := Sign(secret, "gw_order_1", "pay_1")

	assert.Len(t, sig, 64)
	assert.True(t, VerifySignature(secret, "gw_order_1", "pay_1", sig))
	assert.False(t, VerifySignature(secret, "gw_order_1", "pay_2", sig))
	assert.False(t, VerifySignature([]byte("other"), "gw_order_1", "pay_1", sig))
	assert.False(t, VerifySignature(secret, "gw_order_1", "pay_1", "not-hex"))
	assert.False(t, VerifySignature(secret, "gw_order_1", "pay_1", ""))
}

func confirmation(orderID uuid.UUID, sig string) PaymentConfirmation {
	return PaymentConfirmation{
		OrderID:          orderID,
		GatewayOrderID:   "gw_order_1",
		GatewayPaymentID: "pay_1",
		Signature:        sig,
	}
}

func TestVerifyPayment_ValidSignatureConfirms(t *testing.T) {
	f := newFixture()
	o := seedOrder(t, f, domain.OrderStatusAwaitingPayment, domain.PaymentOnline)

	got, err := f.assembler.VerifyPayment(context.Background(),
		confirmation(o.ID, Sign([]byte("secret"), "gw_order_1", "pay_1")))

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, got.Status)
	assert.Equal(t, domain.PaymentStatusCompleted, got.Payment.Status)
	assert.Equal(t, "pay_1", got.Payment.TransactionID)

	stored := f.repo.get(o.ID)
	assert.Equal(t, domain.OrderStatusConfirmed, stored.Status)
	assert.Equal(t, []domain.OrderEventType{domain.OrderEventStatusChanged}, f.publisher.types())
}

func TestVerifyPayment_MismatchFailsPayment(t *testing.T) {
	f := newFixture()
	o := seedOrder(t, f, domain.OrderStatusAwaitingPayment, domain.PaymentOnline)

	got, err := f.assembler.VerifyPayment(context.Background(),
		confirmation(o.ID, Sign([]byte("wrong"), "gw_order_1", "pay_1")))

	assert.ErrorIs(t, err, domain.ErrPaymentSignatureMismatch)
	require.NotNil(t, got)
	assert.Equal(t, domain.OrderStatusPaymentFailed, got.Status)
	assert.Equal(t, domain.PaymentStatusFailed, f.repo.get(o.ID).Payment.Status)
}

func TestVerifyPayment_RedeliveryIsNoop(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o := seedOrder(t, f, domain.OrderStatusAwaitingPayment, domain.PaymentOnline)
	c := confirmation(o.ID, Sign([]byte("secret"), "gw_order_1", "pay_1"))

	_, err := f.assembler.VerifyPayment(ctx, c)
	require.NoError(t, err)

	got, err := f.assembler.VerifyPayment(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, got.Status)
	assert.Len(t, f.publisher.types(), 1)
}

func TestVerifyPayment_ForgedSignatureCannotFailConfirmedOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o := seedOrder(t, f, domain.OrderStatusAwaitingPayment, domain.PaymentOnline)
	_, err := f.assembler.VerifyPayment(ctx, confirmation(o.ID, Sign([]byte("secret"), "gw_order_1", "pay_1")))
	require.NoError(t, err)

	_, err = f.assembler.VerifyPayment(ctx, confirmation(o.ID, "deadbeef"))

	assert.ErrorIs(t, err, domain.ErrPaymentSignatureMismatch)
	assert.Equal(t, domain.OrderStatusConfirmed, f.repo.get(o.ID).Status)
}

func TestVerifyPayment_RejectsCODOrders(t *testing.T) {
	f := newFixture()
	o := seedOrder(t, f, domain.OrderStatusConfirmed, domain.PaymentCOD)

	_, err := f.assembler.VerifyPayment(context.Background(),
		confirmation(o.ID, Sign([]byte("secret"), "gw_order_1", "pay_1")))

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
