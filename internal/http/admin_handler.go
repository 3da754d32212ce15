package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vali024/valix-shop/internal/domain"
)

type AdminService interface {
	ListOrders(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus) (*domain.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

// CatalogAdmin manages catalog records. Stock status changes feed straight
// into what carts and new orders may contain.
type CatalogAdmin interface {
	GetItem(ctx context.Context, id string) (*domain.Item, error)
	UpsertItem(ctx context.Context, item *domain.Item) error
	SetStatus(ctx context.Context, id string, status domain.StockStatus) error
	DeleteItem(ctx context.Context, id string) error
}

type AdminHandler struct {
	admin   AdminService
	items   CatalogAdmin
	timeout time.Duration
}

func NewAdminHandler(admin AdminService, items CatalogAdmin, timeout time.Duration) *AdminHandler {
	timeout = orDefault(timeout)
	return &AdminHandler{admin: admin, items: items, timeout: timeout}
}

type UpdateStatusRequestDTO struct {
	Status domain.OrderStatus `json:"status"`
}

type ItemRequestDTO struct {
	ID              string                             `json:"id"`
	Name            string                             `json:"name"`
	Description     string                             `json:"description"`
	Image           string                             `json:"image"`
	Category        string                             `json:"category"`
	Status          domain.StockStatus                 `json:"status"`
	Prices          map[domain.Variant]decimal.Decimal `json:"prices"`
	MarketPrices    map[domain.Variant]decimal.Decimal `json:"market_prices"`
	QuantityOptions map[domain.Variant]bool            `json:"quantity_options"`
}

func (d ItemRequestDTO) toItem() *domain.Item {
	status := d.Status
	if status == "" {
		status = domain.StatusInStock
	}
	return &domain.Item{
		ID:              d.ID,
		Name:            d.Name,
		Description:     d.Description,
		Image:           d.Image,
		Category:        d.Category,
		Status:          status,
		Prices:          d.Prices,
		MarketPrices:    d.MarketPrices,
		QuantityOptions: d.QuantityOptions,
	}
}

type ItemStatusRequestDTO struct {
	Status domain.StockStatus `json:"status"`
}

// GET /api/v1/admin/orders?status=
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.admin.ListOrders(ctx, domain.OrderStatus(r.URL.Query().Get("status")))
	if err != nil {
		handleDomainError(ctx, w, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

// GET /api/v1/admin/customers
func (h *AdminHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customers, err := h.admin.ListCustomers(ctx)
	if err != nil {
		handleDomainError(ctx, w, err)
		return
	}
	if customers == nil {
		customers = []domain.Customer{}
	}
	respondJSON(w, http.StatusOK, customers)
}

// PATCH /api/v1/admin/orders/{order_id}/status
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req UpdateStatusRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	o, err := h.admin.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		handleDomainError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// DELETE /api/v1/admin/orders/{order_id}
func (h *AdminHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	if err := h.admin.DeleteOrder(ctx, id); err != nil {
		handleDomainError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/admin/items
func (h *AdminHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	h.saveItem(ctx, w, req.toItem(), http.StatusCreated)
}

// PUT /api/v1/admin/items/{item_id}
func (h *AdminHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	req.ID = chi.URLParam(r, "item_id")
	if _, err := h.items.GetItem(ctx, req.ID); err != nil {
		handleDomainError(ctx, w, err)
		return
	}
	h.saveItem(ctx, w, req.toItem(), http.StatusOK)
}

func (h *AdminHandler) saveItem(ctx context.Context, w http.ResponseWriter, item *domain.Item, status int) {
	if err := h.items.UpsertItem(ctx, item); err != nil {
		handleDomainError(ctx, w, err)
		return
	}
	saved, err := h.items.GetItem(ctx, item.ID)
	if err != nil {
		handleDomainError(ctx, w, err)
		return
	}
	respondJSON(w, status, saved)
}

// PATCH /api/v1/admin/items/{item_id}/status
func (h *AdminHandler) SetItemStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ItemStatusRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	id := chi.URLParam(r, "item_id")
	if err := h.items.SetStatus(ctx, id, req.Status); err != nil {
		handleDomainError(ctx, w, err)
		return
	}
	item, err := h.items.GetItem(ctx, id)
	if err != nil {
		handleDomainError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// DELETE /api/v1/admin/items/{item_id}
func (h *AdminHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.items.DeleteItem(ctx, chi.URLParam(r, "item_id")); err != nil {
		handleDomainError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
