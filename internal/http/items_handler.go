package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vali024/valix-shop/internal/domain"
)

type ItemStore interface {
	ListItems(ctx context.Context) ([]*domain.Item, error)
	GetItem(ctx context.Context, id string) (*domain.Item, error)
}

type ItemHandler struct {
	items   ItemStore
	timeout time.Duration
}

func NewItemHandler(items ItemStore, timeout time.Duration) *ItemHandler {
	timeout = orDefault(timeout)
	return &ItemHandler{items: items, timeout: timeout}
}

// GET /api/v1/items
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	items, err := h.items.ListItems(ctx)
	if err != nil {
		handleDomainError(ctx, w, err)
		return
	}
	if items == nil {
		items = []*domain.Item{}
	}
	respondJSON(w, http.StatusOK, items)
}

// GET /api/v1/items/{item_id}
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	item, err := h.items.GetItem(ctx, chi.URLParam(r, "item_id"))
	if err != nil {
		handleDomainError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}
