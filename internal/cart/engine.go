package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vali024/valix-shop/internal/cache"
	"github.com/vali024/valix-shop/internal/catalog"
	"github.com/vali024/valix-shop/internal/domain"
	"github.com/vali024/valix-shop/internal/pricing"
)

// MergePolicy decides how the session cart and the server cart combine at login.
type MergePolicy int

const (
	// ServerWins replaces the session lines with the server lines.
	ServerWins MergePolicy = iota
	// Union keeps lines from both sides and sums quantities of shared keys.
	Union
)

func ParseMergePolicy(s string) (MergePolicy, error) {
	switch s {
	case "", "server-wins":
		return ServerWins, nil
	case "union":
		return Union, nil
	}
	return ServerWins, fmt.Errorf("merge policy %q: %w", s, domain.ErrInvalidInput)
}

func (p MergePolicy) String() string {
	if p == Union {
		return "union"
	}
	return "server-wins"
}

// SessionStore persists the per-session snapshot.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (cache.SessionState, error)
	Save(ctx context.Context, sessionID string, st cache.SessionState) error
	Delete(ctx context.Context, sessionID string) error
}

// ServerCarts reads the server copy of a user's cart.
type ServerCarts interface {
	GetCart(ctx context.Context, userID string) (domain.Lines, error)
}

// Pusher sends snapshots to the server without blocking the caller.
type Pusher interface {
	Push(userID string, lines domain.Lines)
	PushClear(userID string)
	Flush(ctx context.Context, userID string) error
}

// Options configures a Manager. A nil Rules means pricing.DefaultRules.
type Options struct {
	Policy MergePolicy
	Rules  *pricing.Rules
}

// Manager opens engines for sessions. It holds the dependencies shared by all of them.
type Manager struct {
	catalog catalog.Catalog
	store   SessionStore
	server  ServerCarts
	pusher  Pusher
	policy  MergePolicy
	rules   pricing.Rules
	log     *zap.Logger
}

func NewManager(c catalog.Catalog, store SessionStore, server ServerCarts, pusher Pusher, opts Options, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	rules := pricing.DefaultRules
	if opts.Rules != nil {
		rules = *opts.Rules
	}
	return &Manager{
		catalog: c,
		store:   store,
		server:  server,
		pusher:  pusher,
		policy:  opts.Policy,
		rules:   rules,
		log:     log,
	}
}

// Open loads the engine for a session. Unknown sessions start empty and anonymous.
func (m *Manager) Open(ctx context.Context, sessionID string) (*Engine, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required: %w", domain.ErrInvalidInput)
	}
	st, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &Engine{m: m, sessionID: sessionID, state: st}, nil
}

// Engine is one session's cart. It is not safe for concurrent use.
type Engine struct {
	m         *Manager
	sessionID string
	state     cache.SessionState
}

func (e *Engine) SessionID() string { return e.sessionID }

// UserID is empty for anonymous sessions.
func (e *Engine) UserID() string { return e.state.UserID }

func (e *Engine) Authenticated() bool { return e.state.UserID != "" }

func (e *Engine) Lines() domain.Lines { return e.state.Cart.Lines.Clone() }

func (e *Engine) Snapshot() domain.Cart { return e.state.Cart.Clone() }

// AddLine adds one unit. Items that are unknown or not purchasable are refused
// with added == false and no error.
func (e *Engine) AddLine(ctx context.Context, itemID string, v domain.Variant) (bool, error) {
	key := domain.NewLineKey(itemID, v)
	if key.ItemID == "" || !key.Variant.Valid() {
		return false, fmt.Errorf("line %q: %w", key, domain.ErrInvalidInput)
	}

	item, err := e.m.catalog.GetItem(ctx, key.ItemID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get item: %w", err)
	}
	if !item.Purchasable(key.Variant) {
		e.m.log.Debug("add refused, item not purchasable",
			zap.String("item_id", key.ItemID), zap.String("variant", string(key.Variant)))
		return false, nil
	}

	e.state.Cart.Lines.Add(key)
	if err := e.persist(ctx); err != nil {
		return false, err
	}
	e.push()
	return true, nil
}

// RemoveLine removes one unit. Removing an absent line does nothing.
func (e *Engine) RemoveLine(ctx context.Context, itemID string, v domain.Variant) error {
	key := domain.NewLineKey(itemID, v)
	if _, ok := e.state.Cart.Lines[key]; !ok {
		return nil
	}

	e.state.Cart.Lines.Remove(key)
	if err := e.persist(ctx); err != nil {
		return err
	}
	e.push()
	return nil
}

// Clear empties the lines and the promo code. It is idempotent.
func (e *Engine) Clear(ctx context.Context) error {
	e.state.Cart = domain.NewCart()

	if !e.Authenticated() {
		if err := e.m.store.Delete(ctx, e.sessionID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	}

	if err := e.persist(ctx); err != nil {
		return err
	}
	e.m.pusher.PushClear(e.state.UserID)
	return nil
}

// Reset drops the session lines and promo without touching the server cart.
func (e *Engine) Reset(ctx context.Context) error {
	e.state.Cart = domain.NewCart()
	return e.persist(ctx)
}

// Totals prices the cart against the current catalog. A promo code that no
// longer qualifies is removed from the session.
func (e *Engine) Totals(ctx context.Context) (pricing.Totals, error) {
	items, err := e.resolve(ctx, e.state.Cart.Lines)
	if err != nil {
		return pricing.Totals{}, err
	}

	t := e.m.rules.ComputeTotals(e.state.Cart, items)
	if t.PromoDropped {
		e.m.log.Info("promo code dropped", zap.String("code", e.state.Cart.PromoCode),
			zap.String("subtotal", t.Subtotal.StringFixed(2)))
		e.state.Cart.PromoCode = ""
		if err := e.persist(ctx); err != nil {
			return t, err
		}
	}
	return t, nil
}

func (e *Engine) Subtotal(ctx context.Context) (decimal.Decimal, error) {
	t, err := e.Totals(ctx)
	return t.Subtotal, err
}

func (e *Engine) TotalSavings(ctx context.Context) (decimal.Decimal, error) {
	t, err := e.Totals(ctx)
	return t.Savings, err
}

func (e *Engine) FinalAmount(ctx context.Context) (decimal.Decimal, error) {
	t, err := e.Totals(ctx)
	return t.FinalAmount, err
}

// ApplyPromoCode stores the normalized code if the current subtotal qualifies.
// On failure any previously applied code is removed as well.
func (e *Engine) ApplyPromoCode(ctx context.Context, code string) (domain.Promo, error) {
	items, err := e.resolve(ctx, e.state.Cart.Lines)
	if err != nil {
		return domain.Promo{}, err
	}
	base := e.state.Cart.Clone()
	base.PromoCode = ""
	subtotal := e.m.rules.ComputeTotals(base, items).Subtotal

	p, err := pricing.ValidatePromo(code, subtotal)
	if err != nil {
		e.state.Cart.PromoCode = ""
		if perr := e.persist(ctx); perr != nil {
			return domain.Promo{}, perr
		}
		return domain.Promo{}, err
	}

	e.state.Cart.PromoCode = p.Code
	if err := e.persist(ctx); err != nil {
		return domain.Promo{}, err
	}
	return p, nil
}

func (e *Engine) RemovePromoCode(ctx context.Context) error {
	if e.state.Cart.PromoCode == "" {
		return nil
	}
	e.state.Cart.PromoCode = ""
	return e.persist(ctx)
}

// Login binds the session to userID and merges in the server cart. If the
// server cart cannot be read the session keeps its own lines. A session
// already bound to userID is left as it is.
func (e *Engine) Login(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("user id is required: %w", domain.ErrInvalidInput)
	}
	if e.state.UserID == userID {
		return nil
	}

	server, err := e.m.server.GetCart(ctx, userID)
	if err != nil {
		e.m.log.Warn("login merge skipped",
			zap.String("user_id", userID),
			zap.Error(fmt.Errorf("%w: %w", domain.ErrSyncFailure, err)))
		e.state.UserID = userID
		return e.persist(ctx)
	}

	var merged domain.Lines
	switch e.m.policy {
	case Union:
		merged = e.state.Cart.Lines.Clone()
		for k, q := range server {
			merged[k] += q
		}
	default:
		merged = server.Clone()
	}

	if _, err := e.prune(ctx, merged); err != nil {
		return err
	}

	e.state.UserID = userID
	e.state.Cart.Lines = merged
	if err := e.persist(ctx); err != nil {
		return err
	}
	if !sameLines(merged, server) {
		e.push()
	}
	return nil
}

// Reconcile drops lines the catalog no longer sells and returns their keys.
func (e *Engine) Reconcile(ctx context.Context) ([]domain.LineKey, error) {
	removed, err := e.prune(ctx, e.state.Cart.Lines)
	if err != nil || len(removed) == 0 {
		return removed, err
	}
	if err := e.persist(ctx); err != nil {
		return removed, err
	}
	e.push()
	return removed, nil
}

// Sync writes the current lines to the server and waits for the result.
func (e *Engine) Sync(ctx context.Context) error {
	if !e.Authenticated() {
		return nil
	}
	e.m.pusher.Push(e.state.UserID, e.state.Cart.Lines)
	return e.m.pusher.Flush(ctx, e.state.UserID)
}

func (e *Engine) prune(ctx context.Context, lines domain.Lines) ([]domain.LineKey, error) {
	items, err := e.resolve(ctx, lines)
	if err != nil {
		return nil, err
	}
	var removed []domain.LineKey
	for _, k := range lines.Keys() {
		if !items[k.ItemID].Purchasable(k.Variant) {
			delete(lines, k)
			removed = append(removed, k)
		}
	}
	return removed, nil
}

func (e *Engine) resolve(ctx context.Context, lines domain.Lines) (map[string]*domain.Item, error) {
	items, err := catalog.Resolve(ctx, e.m.catalog, lines.ItemIDs())
	if err != nil {
		return nil, fmt.Errorf("resolve catalog: %w", err)
	}
	return items, nil
}

func (e *Engine) persist(ctx context.Context) error {
	if err := e.m.store.Save(ctx, e.sessionID, e.state); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (e *Engine) push() {
	if e.Authenticated() {
		e.m.pusher.Push(e.state.UserID, e.state.Cart.Lines)
	}
}

func sameLines(a, b domain.Lines) bool {
	if len(a) != len(b) {
		return false
	}
	for k, q := range a {
		if b[k] != q {
			return false
		}
	}
	return true
}
