package order

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vali024/valix-shop/internal/catalog"
	"github.com/vali024/valix-shop/internal/domain"
	"github.com/vali024/valix-shop/internal/orderstore"
)

var errBoom = errors.New("boom")

// mockRepository is an in-memory orderstore.Repository.
type mockRepository struct {
	m         sync.RWMutex
	orders    map[uuid.UUID]*domain.Order
	createErr error
	creates   int
}

func newMockRepository() *mockRepository {
	return &mockRepository{orders: map[uuid.UUID]*domain.Order{}}
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	return &c
}

func (m *mockRepository) CreateOrder(_ context.Context, o *domain.Order) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.orders {
		if o.IdempotencyKey != "" && existing.UserID == o.UserID && existing.IdempotencyKey == o.IdempotencyKey {
			return domain.ErrDuplicateOrder
		}
	}
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *mockRepository) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, orderstore.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *mockRepository) GetOrderByIdempotencyKey(_ context.Context, userID, key string) (*domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	for _, o := range m.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			return cloneOrder(o), nil
		}
	}
	return nil, orderstore.ErrOrderNotFound
}

func (m *mockRepository) UpdateOrderStatus(_ context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	m.m.Lock()
	defer m.m.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return orderstore.ErrOrderNotFound
	}
	if o.Status != from {
		return orderstore.ErrStatusChanged
	}
	o.Status = to
	return nil
}

func (m *mockRepository) UpdatePayment(_ context.Context, id uuid.UUID, from, to domain.OrderStatus, p domain.Payment) error {
	m.m.Lock()
	defer m.m.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return orderstore.ErrOrderNotFound
	}
	if o.Status != from {
		return orderstore.ErrStatusChanged
	}
	o.Status = to
	o.Payment = p
	return nil
}

func (m *mockRepository) DeleteOrder(_ context.Context, id uuid.UUID) error {
	m.m.Lock()
	defer m.m.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return orderstore.ErrOrderNotFound
	}
	if o.Status != domain.OrderStatusDelivered {
		return domain.ErrOrderNotDeletable
	}
	delete(m.orders, id)
	return nil
}

func (m *mockRepository) ListOrdersByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockRepository) ListOrders(_ context.Context, status domain.OrderStatus) ([]*domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if status == "" || o.Status == status {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (m *mockRepository) ListCustomers(context.Context) ([]domain.Customer, error) {
	return nil, nil
}

func (m *mockRepository) get(id uuid.UUID) *domain.Order {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.orders[id]
}

func (m *mockRepository) put(o *domain.Order) {
	m.m.Lock()
	defer m.m.Unlock()
	m.orders[o.ID] = cloneOrder(o)
}

func (m *mockRepository) count() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return len(m.orders)
}

type mockSession struct {
	m      sync.Mutex
	userID string
	cart   domain.Cart
	resets int
}

func (s *mockSession) UserID() string { return s.userID }

func (s *mockSession) Snapshot() domain.Cart {
	s.m.Lock()
	defer s.m.Unlock()
	return s.cart.Clone()
}

func (s *mockSession) Reset(context.Context) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.cart = domain.NewCart()
	s.resets++
	return nil
}

type mockClearer struct {
	m     sync.Mutex
	calls int
	fails int // number of calls that fail before succeeding
}

func (c *mockClearer) ClearCart(context.Context, string) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.calls++
	if c.fails > 0 {
		c.fails--
		return errBoom
	}
	return nil
}

type mockPublisher struct {
	m      sync.Mutex
	events []domain.OrderEvent
	err    error
}

func (p *mockPublisher) Publish(_ context.Context, evt domain.OrderEvent) error {
	p.m.Lock()
	defer p.m.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *mockPublisher) types() []domain.OrderEventType {
	p.m.Lock()
	defer p.m.Unlock()
	var out []domain.OrderEventType
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type mockAddresses struct {
	byID map[string]domain.Address
	def  *domain.Address
}

func (a *mockAddresses) Get(_ context.Context, _ string, id string) (domain.Address, error) {
	addr, ok := a.byID[id]
	if !ok {
		return domain.Address{}, domain.ErrNotFound
	}
	return addr, nil
}

func (a *mockAddresses) Default(context.Context, string) (domain.Address, error) {
	if a.def == nil {
		return domain.Address{}, domain.ErrNotFound
	}
	return *a.def, nil
}

type stubCatalog map[string]*domain.Item

func (s stubCatalog) GetItem(_ context.Context, id string) (*domain.Item, error) {
	if it, ok := s[id]; ok {
		return it, nil
	}
	return nil, catalog.ErrItemNotFound
}

func testItem(id string, price, market int64, status domain.StockStatus) *domain.Item {
	return &domain.Item{
		ID:           id,
		Name:         "Item " + id,
		Image:        id + ".png",
		Status:       status,
		Prices:       map[domain.Variant]decimal.Decimal{domain.VariantG250: decimal.NewFromInt(price)},
		MarketPrices: map[domain.Variant]decimal.Decimal{domain.VariantG250: decimal.NewFromInt(market)},
	}
}

func validAddress() domain.Address {
	return domain.Address{
		ID: "addr-1", FirstName: "Asha", LastName: "Rao", Email: "asha@example.com", Phone: "9876543210",
		Street: "1 Main St", City: "Pune", State: "MH", Country: "IN", Zipcode: "411001", IsDefault: true,
	}
}
