package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vali024/valix-shop/internal/cart"
	"github.com/vali024/valix-shop/internal/domain"
	"github.com/vali024/valix-shop/internal/order"
)

type OrderService interface {
	PlaceOrder(ctx context.Context, session order.CartSession, req order.PlaceOrderRequest) (*domain.Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]*domain.Order, error)
	GetUserOrder(ctx context.Context, userID string, id uuid.UUID) (*domain.Order, error)
	VerifyPayment(ctx context.Context, c order.PaymentConfirmation) (*domain.Order, error)
}

type OrdersHandler struct {
	orders   OrderService
	sessions sessions
	timeout  time.Duration
}

func NewOrdersHandler(orders OrderService, carts CartOpener, locker order.Locker, timeout time.Duration) *OrdersHandler {
	if locker == nil {
		locker = order.NewKeyedLocker()
	}
	timeout = orDefault(timeout)
	return &OrdersHandler{
		orders:   orders,
		sessions: sessions{carts: carts, locker: locker},
		timeout:  timeout,
	}
}

type PlaceOrderRequestDTO struct {
	AddressID      string               `json:"address_id,omitempty"`
	Address        *domain.Address      `json:"address,omitempty"`
	PaymentMethod  domain.PaymentMethod `json:"payment_method"`
	IdempotencyKey string               `json:"idempotency_key,omitempty"`
}

type VerifyPaymentRequestDTO struct {
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Signature        string `json:"signature"`
}

// POST /api/v1/orders
// The cart session must have been logged in through /cart/login first.
func (h *OrdersHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req PlaceOrderRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	var placed *domain.Order
	err := h.sessions.with(ctx, func(e *cart.Engine) error {
		var err error
		placed, err = h.orders.PlaceOrder(ctx, e, order.PlaceOrderRequest{
			Address:        req.Address,
			AddressID:      req.AddressID,
			PaymentMethod:  req.PaymentMethod,
			IdempotencyKey: req.IdempotencyKey,
		})
		return err
	})
	if errors.Is(err, errForeignSession) {
		respondError(w, http.StatusForbidden, "forbidden", err.Error())
		return
	}
	if err != nil {
		handleDomainError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusCreated, placed)
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListUserOrders(ctx, getUserID(ctx))
	if err != nil {
		handleDomainError(ctx, w, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	o, err := h.orders.GetUserOrder(ctx, getUserID(ctx), id)
	if err != nil {
		handleDomainError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// POST /api/v1/orders/{order_id}/verify-payment
func (h *OrdersHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req VerifyPaymentRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if _, err := h.orders.GetUserOrder(ctx, getUserID(ctx), id); err != nil {
		handleDomainError(ctx, w, err)
		return
	}

	o, err := h.orders.VerifyPayment(ctx, order.PaymentConfirmation{
		OrderID:          id,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
	})
	if err != nil {
		handleDomainError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
