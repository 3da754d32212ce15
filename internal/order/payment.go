package order

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vali024/valix-shop/internal/domain"
)

// PaymentConfirmation is what the payment gateway reports after checkout.
type PaymentConfirmation struct {
	OrderID          uuid.UUID `json:"order_id"`
	GatewayOrderID   string    `json:"gateway_order_id"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
	Signature        string    `json:"signature"`
}

// Sign returns the hex HMAC-SHA256 of "gatewayOrderID|gatewayPaymentID".
func Sign(secret []byte, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time.
func VerifySignature(secret []byte, gatewayOrderID, gatewayPaymentID, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hmac.Equal(got, mac.Sum(nil))
}

// VerifyPayment checks a gateway confirmation. A valid signature confirms the
// order and completes its payment. An invalid one fails the payment and
// returns ErrPaymentSignatureMismatch. Redelivery of an already applied
// confirmation returns the order unchanged.
func (a *Assembler) VerifyPayment(ctx context.Context, c PaymentConfirmation) (*domain.Order, error) {
	o, err := a.repo.GetOrder(ctx, c.OrderID)
	if err != nil {
		return nil, err
	}

	if o.Payment.Method != domain.PaymentOnline {
		return nil, fmt.Errorf("order %s is not paid online: %w", o.ID, domain.ErrInvalidInput)
	}

	valid := len(a.secret) > 0 &&
		VerifySignature(a.secret, c.GatewayOrderID, c.GatewayPaymentID, c.Signature) &&
		(o.Payment.GatewayOrderID == "" || o.Payment.GatewayOrderID == c.GatewayOrderID)

	if valid && o.Status == domain.OrderStatusConfirmed &&
		o.Payment.Status == domain.PaymentStatusCompleted &&
		o.Payment.TransactionID == c.GatewayPaymentID {
		return o, nil
	}

	prev := o.Status
	if !valid {
		a.log.Warn("payment signature mismatch",
			zap.String("order_id", o.ID.String()),
			zap.String("gateway_order_id", c.GatewayOrderID))

		if !prev.CanTransitionTo(domain.OrderStatusPaymentFailed) {
			return nil, domain.ErrPaymentSignatureMismatch
		}
		payment := o.Payment
		payment.Status = domain.PaymentStatusFailed
		if payment.GatewayOrderID == "" {
			payment.GatewayOrderID = c.GatewayOrderID
		}
		if err := a.repo.UpdatePayment(ctx, o.ID, prev, domain.OrderStatusPaymentFailed, payment); err != nil {
			return nil, err
		}
		o.Status = domain.OrderStatusPaymentFailed
		o.Payment = payment
		a.publish(ctx, domain.NewOrderEvent(domain.OrderEventStatusChanged, o, prev))
		return o, domain.ErrPaymentSignatureMismatch
	}

	if !prev.CanTransitionTo(domain.OrderStatusConfirmed) {
		return nil, fmt.Errorf("%s -> %s: %w", prev, domain.OrderStatusConfirmed, domain.ErrIllegalTransition)
	}

	payment := domain.Payment{
		Method:         domain.PaymentOnline,
		Status:         domain.PaymentStatusCompleted,
		TransactionID:  c.GatewayPaymentID,
		GatewayOrderID: c.GatewayOrderID,
	}
	if err := a.repo.UpdatePayment(ctx, o.ID, prev, domain.OrderStatusConfirmed, payment); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatusConfirmed
	o.Payment = payment

	a.publish(ctx, domain.NewOrderEvent(domain.OrderEventStatusChanged, o, prev))
	a.log.Info("payment verified",
		zap.String("order_id", o.ID.String()),
		zap.String("transaction_id", c.GatewayPaymentID))
	return o, nil
}
