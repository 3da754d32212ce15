package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vali024/valix-shop/internal/domain"
)

type AddressService interface {
	List(ctx context.Context, userID string) ([]domain.Address, error)
	Add(ctx context.Context, userID string, addr domain.Address) (domain.Address, error)
	Update(ctx context.Context, userID string, addr domain.Address) (domain.Address, error)
	Delete(ctx context.Context, userID, addressID string) error
	SetDefault(ctx context.Context, userID, addressID string) error
}

type AddressHandler struct {
	addresses AddressService
	timeout   time.Duration
}

func NewAddressHandler(addresses AddressService, timeout time.Duration) *AddressHandler {
	timeout = orDefault(timeout)
	return &AddressHandler{addresses: addresses, timeout: timeout}
}

// GET /api/v1/addresses
func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	addrs, err := h.addresses.List(ctx, getUserID(ctx))
	if err != nil {
		handleDomainError(ctx, w, err)
		return
	}
	if addrs == nil {
		addrs = []domain.Address{}
	}
	respondJSON(w, http.StatusOK, addrs)
}

// POST /api/v1/addresses
func (h *AddressHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var addr domain.Address
	if err := decodeJSON(r, &addr); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	added, err := h.addresses.Add(ctx, getUserID(ctx), addr)
	if err != nil {
		handleDomainError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusCreated, added)
}

// PUT /api/v1/addresses/{address_id}
func (h *AddressHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var addr domain.Address
	if err := decodeJSON(r, &addr); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	addr.ID = chi.URLParam(r, "address_id")

	updated, err := h.addresses.Update(ctx, getUserID(ctx), addr)
	if err != nil {
		handleDomainError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// DELETE /api/v1/addresses/{address_id}
func (h *AddressHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.addresses.Delete(ctx, getUserID(ctx), chi.URLParam(r, "address_id")); err != nil {
		handleDomainError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/addresses/{address_id}/default
func (h *AddressHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.addresses.SetDefault(ctx, getUserID(ctx), chi.URLParam(r, "address_id")); err != nil {
		handleDomainError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
