package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vali024/valix-shop/internal/cache"
	"github.com/vali024/valix-shop/internal/catalog"
	"github.com/vali024/valix-shop/internal/domain"
	"github.com/vali024/valix-shop/internal/repository"
)

type mockRepository struct {
	m     sync.RWMutex
	carts map[string]*domain.CartDocument
	gets  int
	err   error
	delay time.Duration
}

func newMockRepository() *mockRepository {
	return &mockRepository{carts: map[string]*domain.CartDocument{}}
}

func (m *mockRepository) GetCart(_ context.Context, userID string) (*domain.CartDocument, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.m.Lock()
	defer m.m.Unlock()
	m.gets++
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return c, nil
}

func (m *mockRepository) PutCart(_ context.Context, c *domain.CartDocument) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.carts[c.UserID] = c
	return nil
}

func (m *mockRepository) ClearCart(_ context.Context, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.carts, userID)
	return nil
}

func (m *mockRepository) getCount() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.gets
}

type mockCache struct {
	m     sync.RWMutex
	carts map[string]*domain.CartDocument
	err   error
}

func newMockCache() *mockCache {
	return &mockCache{carts: map[string]*domain.CartDocument{}}
}

func (m *mockCache) Get(_ context.Context, userID string) (*domain.CartDocument, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return c, nil
}

func (m *mockCache) Set(_ context.Context, userID string, c *domain.CartDocument) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[userID] = c
	return m.err
}

func (m *mockCache) Delete(_ context.Context, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, userID)
	return m.err
}

func (m *mockCache) getCart(userID string) *domain.CartDocument {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.carts[userID]
}

// mockWriter records every write it receives.
type mockWriter struct {
	m       sync.Mutex
	writes  []domain.Lines // nil entry means clear
	err     error
	gate    chan struct{}
	started chan struct{}
}

func newGatedWriter() *mockWriter {
	return &mockWriter{gate: make(chan struct{}), started: make(chan struct{}, 16)}
}

func (w *mockWriter) wait() {
	if w.started != nil {
		w.started <- struct{}{}
	}
	if w.gate != nil {
		<-w.gate
	}
}

func (w *mockWriter) PutCart(_ context.Context, _ string, lines domain.Lines) error {
	w.wait()
	w.m.Lock()
	defer w.m.Unlock()
	w.writes = append(w.writes, lines.Clone())
	return w.err
}

func (w *mockWriter) ClearCart(context.Context, string) error {
	w.wait()
	w.m.Lock()
	defer w.m.Unlock()
	w.writes = append(w.writes, nil)
	return w.err
}

func (w *mockWriter) getWrites() []domain.Lines {
	w.m.Lock()
	defer w.m.Unlock()
	return append([]domain.Lines(nil), w.writes...)
}

type mockCatalog struct {
	m     sync.RWMutex
	items map[string]*domain.Item
	err   error
}

func (c *mockCatalog) GetItem(_ context.Context, id string) (*domain.Item, error) {
	c.m.RLock()
	defer c.m.RUnlock()
	if c.err != nil {
		return nil, c.err
	}
	it, ok := c.items[id]
	if !ok {
		return nil, catalog.ErrItemNotFound
	}
	return it, nil
}

func (c *mockCatalog) setStatus(id string, s domain.StockStatus) {
	c.m.Lock()
	defer c.m.Unlock()
	c.items[id].Status = s
}

func newMockCatalog() *mockCatalog {
	item := func(id string, price, market int64) *domain.Item {
		return &domain.Item{
			ID:     id,
			Name:   id,
			Status: domain.StatusInStock,
			Prices: map[domain.Variant]decimal.Decimal{
				domain.VariantG250: decimal.NewFromInt(price),
				domain.VariantG500: decimal.NewFromInt(price * 2),
			},
			MarketPrices: map[domain.Variant]decimal.Decimal{
				domain.VariantG250: decimal.NewFromInt(market),
			},
			QuantityOptions: map[domain.Variant]bool{domain.VariantG250: true, domain.VariantG500: true},
		}
	}
	return &mockCatalog{items: map[string]*domain.Item{
		"itemA": item("itemA", 100, 120),
		"itemB": item("itemB", 250, 250),
		"itemC": item("itemC", 500, 550),
	}}
}

type memoryStore struct {
	m        sync.Mutex
	sessions map[string]cache.SessionState
	err      error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: map[string]cache.SessionState{}}
}

func (s *memoryStore) Load(_ context.Context, id string) (cache.SessionState, error) {
	s.m.Lock()
	defer s.m.Unlock()
	st, ok := s.sessions[id]
	if !ok {
		return cache.SessionState{Cart: domain.NewCart()}, nil
	}
	return cache.SessionState{Cart: st.Cart.Clone(), UserID: st.UserID}, nil
}

func (s *memoryStore) Save(_ context.Context, id string, st cache.SessionState) error {
	s.m.Lock()
	defer s.m.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sessions[id] = cache.SessionState{Cart: st.Cart.Clone(), UserID: st.UserID}
	return nil
}

func (s *memoryStore) Delete(_ context.Context, id string) error {
	s.m.Lock()
	defer s.m.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *memoryStore) exists(id string) bool {
	s.m.Lock()
	defer s.m.Unlock()
	_, ok := s.sessions[id]
	return ok
}

type mockServer struct {
	m     sync.Mutex
	carts map[string]domain.Lines
	err   error
}

func (s *mockServer) GetCart(_ context.Context, userID string) (domain.Lines, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.carts[userID].Clone(), nil
}

func (s *mockServer) PutCart(_ context.Context, userID string, lines domain.Lines) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.carts[userID] = lines.Clone()
	return nil
}

func (s *mockServer) ClearCart(_ context.Context, userID string) error {
	s.m.Lock()
	defer s.m.Unlock()
	delete(s.carts, userID)
	return nil
}

func (s *mockServer) get(userID string) (domain.Lines, bool) {
	s.m.Lock()
	defer s.m.Unlock()
	l, ok := s.carts[userID]
	return l.Clone(), ok
}

var errBoom = errors.New("boom")
