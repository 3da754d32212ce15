package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vali024/valix-shop/internal/domain"
	"github.com/vali024/valix-shop/pkg/logger"
)

const defaultTimeout = 30 * time.Second

func orDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return defaultTimeout
	}
	return timeout
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleDomainError is the single place where domain errors become HTTP statuses.
func handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	var fe *domain.FieldError

	switch {
	case errors.As(err, &fe):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   fe.Error(),
			Code:    "invalid_address",
			Details: fe.Field,
		})
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidAddress):
		respondError(w, http.StatusUnprocessableEntity, "invalid_address", err.Error())
	case errors.Is(err, domain.ErrEmptyCart):
		respondError(w, http.StatusUnprocessableEntity, "empty_cart", err.Error())
	case errors.Is(err, domain.ErrInvalidPromoCode):
		respondError(w, http.StatusUnprocessableEntity, "invalid_promo_code", err.Error())
	case errors.Is(err, domain.ErrPromoMinimumNotMet):
		respondError(w, http.StatusUnprocessableEntity, "promo_minimum_not_met", err.Error())
	case errors.Is(err, domain.ErrStaleCatalog):
		respondError(w, http.StatusUnprocessableEntity, "stale_catalog", err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, domain.ErrOrderNotDeletable):
		respondError(w, http.StatusConflict, "order_not_deletable", err.Error())
	case errors.Is(err, domain.ErrIllegalTransition):
		respondError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, domain.ErrConcurrentUpdate):
		respondError(w, http.StatusConflict, "concurrent_update", err.Error())
	case errors.Is(err, domain.ErrDuplicateOrder):
		respondError(w, http.StatusConflict, "already_exists", err.Error())
	case errors.Is(err, domain.ErrPaymentSignatureMismatch):
		respondError(w, http.StatusPaymentRequired, "payment_signature_mismatch", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		logger.FromContext(ctx).Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
