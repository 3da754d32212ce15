package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vali024/valix-shop/internal/catalog"
	"github.com/vali024/valix-shop/internal/domain"
	"github.com/vali024/valix-shop/internal/orderstore"
	"github.com/vali024/valix-shop/internal/pricing"
)

// CartSession is the part of a cart engine the assembler needs.
type CartSession interface {
	UserID() string
	Snapshot() domain.Cart
	// Reset drops the session lines and promo without touching the server cart.
	Reset(ctx context.Context) error
}

// CartClearer deletes the server copy of a user's cart.
type CartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

type Publisher interface {
	Publish(ctx context.Context, evt domain.OrderEvent) error
}

// AddressSource resolves saved addresses.
type AddressSource interface {
	Get(ctx context.Context, userID, addressID string) (domain.Address, error)
	Default(ctx context.Context, userID string) (domain.Address, error)
}

type PlaceOrderRequest struct {
	// Address takes precedence over AddressID. With neither, the user's default is used.
	Address        *domain.Address
	AddressID      string
	PaymentMethod  domain.PaymentMethod
	IdempotencyKey string
}

type Config struct {
	Rules         *pricing.Rules // nil means pricing.DefaultRules
	PaymentSecret string
	LockTimeout   time.Duration
}

type Assembler struct {
	repo      orderstore.Repository
	catalog   catalog.Catalog
	carts     CartClearer
	addresses AddressSource
	locker    Locker
	publisher Publisher
	rules     pricing.Rules
	secret    []byte
	lockWait  time.Duration
	log       *zap.Logger
}

func NewAssembler(
	repo orderstore.Repository,
	c catalog.Catalog,
	carts CartClearer,
	addresses AddressSource,
	locker Locker,
	publisher Publisher,
	cfg Config,
	log *zap.Logger,
) *Assembler {
	if log == nil {
		log = zap.NewNop()
	}
	rules := pricing.DefaultRules
	if cfg.Rules != nil {
		rules = *cfg.Rules
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 10 * time.Second
	}
	if locker == nil {
		locker = NewKeyedLocker()
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Assembler{
		repo:      repo,
		catalog:   c,
		carts:     carts,
		addresses: addresses,
		locker:    locker,
		publisher: publisher,
		rules:     rules,
		secret:    []byte(cfg.PaymentSecret),
		lockWait:  cfg.LockTimeout,
		log:       log,
	}
}

// PlaceOrder turns the session cart into an order. Prices come from the
// catalog at this moment; lines that are no longer purchasable are left out.
// Placement is serialized per user and the session cart is emptied only after
// the order is stored.
func (a *Assembler) PlaceOrder(ctx context.Context, session CartSession, req PlaceOrderRequest) (*domain.Order, error) {
	userID := session.UserID()
	if userID == "" {
		return nil, fmt.Errorf("login required: %w", domain.ErrInvalidInput)
	}

	cart := session.Snapshot()
	if cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	address, err := a.resolveAddress(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	if !req.PaymentMethod.Valid() {
		return nil, fmt.Errorf("payment method %q: %w", req.PaymentMethod, domain.ErrInvalidInput)
	}

	lockCtx, cancel := context.WithTimeout(ctx, a.lockWait)
	defer cancel()
	unlock, err := a.locker.Lock(lockCtx, placementLockKey(userID))
	if err != nil {
		return nil, fmt.Errorf("acquire placement lock: %w", err)
	}
	defer unlock()

	if req.IdempotencyKey != "" {
		existing, err := a.repo.GetOrderByIdempotencyKey(ctx, userID, req.IdempotencyKey)
		if err == nil {
			a.log.Info("duplicate order request",
				zap.String("user_id", userID),
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.String("order_id", existing.ID.String()))
			return existing, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
	}

	order, err := a.assemble(ctx, userID, cart, address, req)
	if err != nil {
		return nil, err
	}

	if err := a.repo.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, domain.ErrDuplicateOrder) && req.IdempotencyKey != "" {
			return a.repo.GetOrderByIdempotencyKey(ctx, userID, req.IdempotencyKey)
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	a.clearCarts(ctx, session, userID)
	a.publish(ctx, domain.NewOrderEvent(domain.OrderEventPlaced, order, ""))

	a.log.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID),
		zap.String("status", order.Status.String()),
		zap.String("amount", order.Amount.StringFixed(2)),
		zap.Int("items", len(order.Items)))
	return order, nil
}

func (a *Assembler) assemble(ctx context.Context, userID string, cart domain.Cart, address domain.Address, req PlaceOrderRequest) (*domain.Order, error) {
	items, err := catalog.Resolve(ctx, a.catalog, cart.Lines.ItemIDs())
	if err != nil {
		return nil, fmt.Errorf("resolve catalog: %w", err)
	}

	lines := make(domain.Lines, len(cart.Lines))
	orderItems := make([]domain.OrderItem, 0, len(cart.Lines))
	for _, k := range cart.Lines.Keys() {
		item := items[k.ItemID]
		if !item.Purchasable(k.Variant) {
			a.log.Info("line excluded from order",
				zap.String("user_id", userID),
				zap.String("line", k.String()),
				zap.Error(domain.ErrStaleCatalog))
			continue
		}
		qty := cart.Lines[k]
		price, _ := item.Price(k.Variant)
		lines[k] = qty
		orderItems = append(orderItems, domain.OrderItem{
			ItemID:      k.ItemID,
			Name:        item.Name,
			Price:       price,
			MarketPrice: item.MarketPrice(k.Variant),
			Quantity:    qty,
			Variant:     k.Variant,
			Image:       item.Image,
		})
	}
	if len(orderItems) == 0 {
		return nil, domain.ErrEmptyCart
	}

	totals := a.rules.ComputeTotals(domain.Cart{Lines: lines, PromoCode: cart.PromoCode}, items)

	order := &domain.Order{
		ID:             uuid.New(),
		UserID:         userID,
		Items:          orderItems,
		Subtotal:       totals.Subtotal,
		SGST:           totals.SGST,
		CGST:           totals.CGST,
		DeliveryFee:    totals.DeliveryFee,
		Discount:       totals.Discount,
		PromoCode:      totals.PromoCode,
		Savings:        totals.Savings,
		Amount:         totals.FinalAmount,
		Address:        address,
		IdempotencyKey: req.IdempotencyKey,
		Payment:        domain.Payment{Method: req.PaymentMethod},
	}

	switch req.PaymentMethod {
	case domain.PaymentCOD:
		order.Status = domain.OrderStatusConfirmed
		order.Payment.Status = domain.PaymentStatusPending
	case domain.PaymentOnline:
		order.Status = domain.OrderStatusAwaitingPayment
		order.Payment.Status = domain.PaymentStatusInitiated
	}
	return order, nil
}

func (a *Assembler) resolveAddress(ctx context.Context, userID string, req PlaceOrderRequest) (domain.Address, error) {
	var (
		addr domain.Address
		err  error
	)
	switch {
	case req.Address != nil:
		addr = *req.Address
	case a.addresses == nil:
		return addr, fmt.Errorf("no address given: %w", domain.ErrInvalidAddress)
	case req.AddressID != "":
		addr, err = a.addresses.Get(ctx, userID, req.AddressID)
	default:
		addr, err = a.addresses.Default(ctx, userID)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return addr, fmt.Errorf("address not found: %w", domain.ErrInvalidAddress)
	}
	if err != nil {
		return addr, fmt.Errorf("load address: %w", err)
	}

	if err := addr.Validate(); err != nil {
		return addr, err
	}
	return addr, nil
}

// clearCarts empties the server cart and the session. The order is already
// stored, so failures are logged and not returned.
func (a *Assembler) clearCarts(ctx context.Context, session CartSession, userID string) {
	if a.carts != nil {
		err := a.carts.ClearCart(ctx, userID)
		if err != nil {
			err = a.carts.ClearCart(ctx, userID)
		}
		if err != nil {
			a.log.Error("clear cart after order failed",
				zap.String("user_id", userID),
				zap.Error(fmt.Errorf("%w: %w", domain.ErrSyncFailure, err)))
		}
	}
	if err := session.Reset(ctx); err != nil {
		a.log.Error("reset session after order failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (a *Assembler) publish(ctx context.Context, evt domain.OrderEvent) {
	if err := a.publisher.Publish(ctx, evt); err != nil {
		a.log.Warn("publish order event failed",
			zap.String("event_type", string(evt.Type)),
			zap.String("order_id", evt.OrderID.String()),
			zap.Error(err))
	}
}

func (a *Assembler) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return a.repo.GetOrder(ctx, id)
}

// GetUserOrder hides orders of other users behind ErrNotFound.
func (a *Assembler) GetUserOrder(ctx context.Context, userID string, id uuid.UUID) (*domain.Order, error) {
	o, err := a.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, orderstore.ErrOrderNotFound
	}
	return o, nil
}

// ListUserOrders returns the user's orders, newest first.
func (a *Assembler) ListUserOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	return a.repo.ListOrdersByUserID(ctx, userID)
}

func (a *Assembler) ListOrders(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error) {
	if status != "" {
		if _, ok := domain.ParseOrderStatus(string(status)); !ok {
			return nil, fmt.Errorf("order status %q: %w", status, domain.ErrInvalidInput)
		}
	}
	return a.repo.ListOrders(ctx, status)
}

func (a *Assembler) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return a.repo.ListCustomers(ctx)
}

func placementLockKey(userID string) string {
	return fmt.Sprintf("lock:order:place:%s", userID)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.OrderEvent) error { return nil }
