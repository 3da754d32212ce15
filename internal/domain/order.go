package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	OrderStatusConfirmed       OrderStatus = "confirmed"
	OrderStatusPacking         OrderStatus = "packing"
	OrderStatusOutForDelivery  OrderStatus = "out-for-delivery"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusPaymentFailed   OrderStatus = "payment_failed"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:         {OrderStatusAwaitingPayment, OrderStatusConfirmed, OrderStatusCancelled, OrderStatusPaymentFailed},
	OrderStatusAwaitingPayment: {OrderStatusConfirmed, OrderStatusCancelled, OrderStatusPaymentFailed},
	OrderStatusConfirmed:       {OrderStatusPacking, OrderStatusCancelled},
	OrderStatusPacking:         {OrderStatusOutForDelivery},
	OrderStatusOutForDelivery:  {OrderStatusDelivered},
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(s)
	switch st {
	case OrderStatusPending, OrderStatusAwaitingPayment, OrderStatusConfirmed, OrderStatusPacking,
		OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCancelled, OrderStatusPaymentFailed:
		return st, true
	}
	return "", false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusPaymentFailed
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OperatorCanTransition excludes the moves reserved for payment verification.
func (s OrderStatus) OperatorCanTransition(next OrderStatus) bool {
	if !s.CanTransitionTo(next) {
		return false
	}
	if next == OrderStatusPaymentFailed {
		return false
	}
	if s == OrderStatusAwaitingPayment && next == OrderStatusConfirmed {
		return false
	}
	return true
}

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "COD"
	PaymentOnline PaymentMethod = "Online"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentOnline
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusInitiated PaymentStatus = "initiated"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

type Payment struct {
	Method         PaymentMethod `json:"method"`
	Status         PaymentStatus `json:"status"`
	TransactionID  string        `json:"transaction_id,omitempty"`
	GatewayOrderID string        `json:"gateway_order_id,omitempty"`
}

// OrderItem is copied from the catalog at placement time.
type OrderItem struct {
	ItemID      string          `json:"item_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	MarketPrice decimal.Decimal `json:"market_price"`
	Quantity    int             `json:"quantity"`
	Variant     Variant         `json:"variant"`
	Image       string          `json:"image,omitempty"`
}

type Order struct {
	ID             uuid.UUID       `json:"id"`
	UserID         string          `json:"user_id"`
	Items          []OrderItem     `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	SGST           decimal.Decimal `json:"sgst"`
	CGST           decimal.Decimal `json:"cgst"`
	DeliveryFee    decimal.Decimal `json:"delivery_fee"`
	Discount       decimal.Decimal `json:"discount"`
	PromoCode      string          `json:"promo_code,omitempty"`
	Savings        decimal.Decimal `json:"savings"`
	Amount         decimal.Decimal `json:"amount"`
	Address        Address         `json:"address"`
	Payment        Payment         `json:"payment"`
	Status         OrderStatus     `json:"status"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Customer aggregates orders sharing an address email and phone.
type Customer struct {
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	City           string    `json:"city"`
	Zipcode        string    `json:"zipcode"`
	OrderCount     int       `json:"order_count"`
	FirstOrderDate time.Time `json:"first_order_date"`
	LastOrderDate  time.Time `json:"last_order_date"`
}

type OrderEventType string

const (
	OrderEventPlaced        OrderEventType = "order.placed"
	OrderEventStatusChanged OrderEventType = "order.status_changed"
	OrderEventDeleted       OrderEventType = "order.deleted"
)

type OrderEvent struct {
	Type       OrderEventType  `json:"type"`
	OrderID    uuid.UUID       `json:"order_id"`
	UserID     string          `json:"user_id"`
	Status     OrderStatus     `json:"status"`
	PrevStatus OrderStatus     `json:"prev_status,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func NewOrderEvent(t OrderEventType, o *Order, prev OrderStatus) OrderEvent {
	return OrderEvent{
		Type:       t,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     o.Status,
		PrevStatus: prev,
		Amount:     o.Amount,
		OccurredAt: time.Now().UTC(),
	}
}
