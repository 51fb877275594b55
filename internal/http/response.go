package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/fjod/go_storefront/internal/identity"
	"github.com/fjod/go_storefront/internal/logger"
	"github.com/fjod/go_storefront/internal/notify"
	"github.com/fjod/go_storefront/internal/payment"
	"github.com/fjod/go_storefront/internal/repository"
	"github.com/fjod/go_storefront/internal/service"
	"github.com/fjod/go_storefront/internal/shipping"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// envelope is a success body; respondOK adds "success": true.
type envelope map[string]any

var validate = validator.New(validator.WithRequiredStructEnabled())

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// the status line is already written, so an encode error cannot be reported
	_ = json.NewEncoder(w).Encode(data)
}

func respondOK(w http.ResponseWriter, status int, body envelope) {
	if body == nil {
		body = envelope{}
	}
	body["success"] = true
	respondJSON(w, status, body)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{service.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
	{service.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{service.ErrProductUnavailable, http.StatusBadRequest, "product_unavailable"},
	{service.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
	{service.ErrUseFreeOrder, http.StatusBadRequest, "use_free_order"},
	{service.ErrInsufficientAllocation, http.StatusBadRequest, "insufficient_allocation"},
	{service.ErrPaymentMismatch, http.StatusBadRequest, "payment_mismatch"},
	{service.ErrSubscriptionInactive, http.StatusBadRequest, "subscription_inactive"},
	{service.ErrSubscriptionMismatch, http.StatusBadRequest, "subscription_mismatch"},
	{payment.ErrPaymentNotSucceeded, http.StatusBadRequest, "payment_not_succeeded"},
	{payment.ErrAmountMismatch, http.StatusBadRequest, "payment_mismatch"},
	{payment.ErrCustomerMismatch, http.StatusBadRequest, "payment_mismatch"},
	{shipping.ErrInvalidAddress, http.StatusBadRequest, "invalid_address"},
	{shipping.ErrUndeliverable, http.StatusBadRequest, "undeliverable_address"},
	{shipping.ErrUnsupported, http.StatusBadRequest, "unsupported_address"},

	{identity.ErrMissingToken, http.StatusUnauthorized, "unauthorized"},
	{identity.ErrInvalidToken, http.StatusUnauthorized, "unauthorized"},

	{service.ErrForbidden, http.StatusForbidden, "forbidden"},

	{repository.ErrCartNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrItemNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrProductNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrPlanNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrMembershipNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrPromotionNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrOrderNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrUserNotFound, http.StatusNotFound, "not_found"},
	{payment.ErrNotFound, http.StatusNotFound, "not_found"},

	{service.ErrOrderNotPending, http.StatusConflict, "order_not_pending"},
	{service.ErrIllegalTransition, http.StatusConflict, "illegal_transition"},
	{repository.ErrStatusConflict, http.StatusConflict, "conflict"},
	{repository.ErrUsageConflict, http.StatusConflict, "conflict"},
	{repository.ErrDuplicatePromotion, http.StatusConflict, "already_exists"},
	{repository.ErrDuplicateMembership, http.StatusConflict, "already_exists"},
	{repository.ErrDuplicatePayment, http.StatusConflict, "already_exists"},

	{payment.ErrUpstream, http.StatusBadGateway, "upstream_error"},
	{shipping.ErrUpstream, http.StatusBadGateway, "upstream_error"},
	{notify.ErrUnavailable, http.StatusBadGateway, "upstream_error"},

	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// respondServiceError maps domain errors onto the API error taxonomy. Client
// errors carry their message; anything unmapped is logged and hidden.
func respondServiceError(w http.ResponseWriter, r *http.Request, base *zap.Logger, err error) {
	var promoErr *service.PromotionError
	if errors.As(err, &promoErr) {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  promoErr.Message,
			Code:   "invalid_promotion",
			Reason: string(promoErr.Reason),
		})
		return
	}

	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		if m.status >= http.StatusInternalServerError {
			logger.FromContext(r.Context(), base).Error("upstream failure",
				zap.String("path", r.URL.Path), zap.Error(err))
		}
		respondError(w, m.status, m.code, err.Error())
		return
	}

	logger.FromContext(r.Context(), base).Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

// decodeJSON decodes and validates a request body.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: body exceeds %d bytes", service.ErrInvalidRequest, maxErr.Limit)
		}
		return fmt.Errorf("%w: invalid JSON body", service.ErrInvalidRequest)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", service.ErrInvalidRequest, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}
