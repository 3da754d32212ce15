package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vali024/valix-shop/internal/cart"
	"github.com/vali024/valix-shop/internal/domain"
	"github.com/vali024/valix-shop/internal/order"
	"github.com/vali024/valix-shop/internal/pricing"
)

var errForeignSession = errors.New("session belongs to another user")

type CartOpener interface {
	Open(ctx context.Context, sessionID string) (*cart.Engine, error)
}

// sessions runs one request at a time per cart session.
type sessions struct {
	carts  CartOpener
	locker order.Locker
}

func (s sessions) with(ctx context.Context, fn func(e *cart.Engine) error) error {
	sessionID := getSessionID(ctx)
	unlock, err := s.locker.Lock(ctx, fmt.Sprintf("lock:session:%s", sessionID))
	if err != nil {
		return fmt.Errorf("acquire session lock: %w", err)
	}
	defer unlock()

	e, err := s.carts.Open(ctx, sessionID)
	if err != nil {
		return err
	}
	if e.Authenticated() && e.UserID() != getUserID(ctx) {
		return errForeignSession
	}
	return fn(e)
}

type CartHandler struct {
	sessions sessions
	timeout  time.Duration
}

func NewCartHandler(carts CartOpener, locker order.Locker, timeout time.Duration) *CartHandler {
	if locker == nil {
		locker = order.NewKeyedLocker()
	}
	timeout = orDefault(timeout)
	return &CartHandler{sessions: sessions{carts: carts, locker: locker}, timeout: timeout}
}

type CartLineDTO struct {
	ItemID   string         `json:"item_id"`
	Variant  domain.Variant `json:"variant"`
	Quantity int            `json:"quantity"`
}

type CartResponseDTO struct {
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id,omitempty"`
	Lines     []CartLineDTO  `json:"lines"`
	Totals    pricing.Totals `json:"totals"`
}

type AddItemRequestDTO struct {
	ItemID  string         `json:"item_id"`
	Variant domain.Variant `json:"variant"`
}

type AddItemResponseDTO struct {
	Added bool            `json:"added"`
	Cart  CartResponseDTO `json:"cart"`
}

type PromoRequestDTO struct {
	Code string `json:"code"`
}

type PromoResponseDTO struct {
	Promo domain.Promo    `json:"promo"`
	Cart  CartResponseDTO `json:"cart"`
}

type ReconcileResponseDTO struct {
	Removed []string        `json:"removed"`
	Cart    CartResponseDTO `json:"cart"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, func(ctx context.Context, e *cart.Engine) (interface{}, error) {
		return cartResponse(ctx, e)
	})
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ItemID == "" {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item_id is required")
		return
	}

	h.run(w, r, http.StatusOK, func(ctx context.Context, e *cart.Engine) (interface{}, error) {
		added, err := e.AddLine(ctx, req.ItemID, req.Variant)
		if err != nil {
			return nil, err
		}
		c, err := cartResponse(ctx, e)
		if err != nil {
			return nil, err
		}
		return AddItemResponseDTO{Added: added, Cart: c}, nil
	})
}

// DELETE /api/v1/cart/items/{item_id}/{variant}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "item_id")
	variant := domain.Variant(chi.URLParam(r, "variant"))

	h.run(w, r, http.StatusOK, func(ctx context.Context, e *cart.Engine) (interface{}, error) {
		if err := e.RemoveLine(ctx, itemID, variant); err != nil {
			return nil, err
		}
		return cartResponse(ctx, e)
	})
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, func(ctx context.Context, e *cart.Engine) (interface{}, error) {
		if err := e.Clear(ctx); err != nil {
			return nil, err
		}
		return cartResponse(ctx, e)
	})
}

// POST /api/v1/cart/promo
func (h *CartHandler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	var req PromoRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	h.run(w, r, http.StatusOK, func(ctx context.Context, e *cart.Engine) (interface{}, error) {
		p, err := e.ApplyPromoCode(ctx, req.Code)
		if err != nil {
			return nil, err
		}
		c, err := cartResponse(ctx, e)
		if err != nil {
			return nil, err
		}
		return PromoResponseDTO{Promo: p, Cart: c}, nil
	})
}

// DELETE /api/v1/cart/promo
func (h *CartHandler) RemovePromo(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, func(ctx context.Context, e *cart.Engine) (interface{}, error) {
		if err := e.RemovePromoCode(ctx); err != nil {
			return nil, err
		}
		return cartResponse(ctx, e)
	})
}

// POST /api/v1/cart/reconcile
func (h *CartHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, func(ctx context.Context, e *cart.Engine) (interface{}, error) {
		removed, err := e.Reconcile(ctx)
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(removed))
		for _, k := range removed {
			keys = append(keys, k.String())
		}
		c, err := cartResponse(ctx, e)
		if err != nil {
			return nil, err
		}
		return ReconcileResponseDTO{Removed: keys, Cart: c}, nil
	})
}

// POST /api/v1/cart/login
func (h *CartHandler) Login(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	h.run(w, r, http.StatusOK, func(ctx context.Context, e *cart.Engine) (interface{}, error) {
		if err := e.Login(ctx, userID); err != nil {
			return nil, err
		}
		return cartResponse(ctx, e)
	})
}

func (h *CartHandler) run(w http.ResponseWriter, r *http.Request, status int,
	fn func(ctx context.Context, e *cart.Engine) (interface{}, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var resp interface{}
	err := h.sessions.with(ctx, func(e *cart.Engine) error {
		var err error
		resp, err = fn(ctx, e)
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
	respondJSON(w, status, resp)
}

func cartResponse(ctx context.Context, e *cart.Engine) (CartResponseDTO, error) {
	totals, err := e.Totals(ctx)
	if err != nil {
		return CartResponseDTO{}, err
	}
	lines := e.Lines()
	dto := CartResponseDTO{
		SessionID: e.SessionID(),
		UserID:    e.UserID(),
		Lines:     make([]CartLineDTO, 0, len(lines)),
		Totals:    totals,
	}
	for _, k := range lines.Keys() {
		dto.Lines = append(dto.Lines, CartLineDTO{ItemID: k.ItemID, Variant: k.Variant, Quantity: lines[k]})
	}
	return dto, nil
}
