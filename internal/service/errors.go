package service

import (
	"errors"

	"github.com/fjod/go_storefront/internal/pricing"
)

var (
	ErrInvalidRequest         = errors.New("invalid request")
	ErrInvalidQuantity        = errors.New("quantity must be between 1 and 99")
	ErrProductUnavailable     = errors.New("product is not available")
	ErrForbidden              = errors.New("resource belongs to another user")
	ErrEmptyCart              = errors.New("cart is empty, nothing to checkout")
	ErrUseFreeOrder           = errors.New("order total is zero, use the free order checkout")
	ErrInsufficientAllocation = errors.New("insufficient membership allocation")
	ErrOrderNotPending        = errors.New("order is not pending")
	ErrPaymentMismatch        = errors.New("payment does not belong to this order")
	ErrIllegalTransition      = errors.New("illegal order status transition")
	ErrSubscriptionInactive   = errors.New("subscription is not active")
	ErrSubscriptionMismatch   = errors.New("subscription does not match plan or customer")
	ErrInvalidPromotion       = errors.New("promotion cannot be applied")
)

// PromotionError explains why a code was rejected.
type PromotionError struct {
	Reason  pricing.Reason
	Message string
}

func (e *PromotionError) Error() string {
	return e.Message
}

func (e *PromotionError) Is(target error) bool {
	return target == ErrInvalidPromotion
}
