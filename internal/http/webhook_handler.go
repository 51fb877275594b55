package http

import (
	"context"
	"io"
	"net/http"

	"github.com/fjod/go_storefront/internal/identity"
	"github.com/fjod/go_storefront/internal/logger"
	"github.com/fjod/go_storefront/internal/payment"
	"go.uber.org/zap"
)

const (
	outcomeHandled  = "handled"
	outcomeIgnored  = "ignored"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

func readPayload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "failed to read body")
		return nil, false
	}
	return payload, true
}

// POST /api/webhook/clerk
func (h *handlers) clerkWebhook(w http.ResponseWriter, r *http.Request) {
	payload, ok := readPayload(w, r)
	if !ok {
		return
	}
	if err := h.ClerkWebhooks.Verify(payload, r.Header); err != nil {
		h.Metrics.WebhookEvent("clerk", "", outcomeRejected)
		respondError(w, http.StatusBadRequest, "invalid_signature", "invalid webhook signature")
		return
	}
	event, err := identity.ParseEvent(payload)
	if err != nil {
		h.Metrics.WebhookEvent("clerk", "", outcomeRejected)
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	handled, err := h.Users.HandleClerkEvent(r.Context(), event)
	if err != nil {
		h.Metrics.WebhookEvent("clerk", event.Type, outcomeFailed)
		respondServiceError(w, r, h.Logger, err)
		return
	}
	outcome := outcomeHandled
	if !handled {
		outcome = outcomeIgnored
	}
	h.Metrics.WebhookEvent("clerk", event.Type, outcome)
	respondOK(w, http.StatusOK, envelope{"handled": handled})
}

// POST /api/webhook/stripe. Failures answer 500 so the provider redelivers.
func (h *handlers) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, ok := readPayload(w, r)
	if !ok {
		return
	}
	event, err := h.StripeWebhooks.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.Metrics.WebhookEvent("stripe", "", outcomeRejected)
		respondError(w, http.StatusBadRequest, "invalid_signature", "invalid webhook signature")
		return
	}

	handled, err := h.dispatchStripe(r.Context(), event)
	if err != nil {
		h.Metrics.WebhookEvent("stripe", event.Type, outcomeFailed)
		logger.FromContext(r.Context(), h.Logger).Error("stripe webhook failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "webhook processing failed")
		return
	}
	outcome := outcomeHandled
	if !handled {
		outcome = outcomeIgnored
	}
	h.Metrics.WebhookEvent("stripe", event.Type, outcome)
	respondOK(w, http.StatusOK, envelope{"handled": handled})
}

func (h *handlers) dispatchStripe(ctx context.Context, event *payment.WebhookEvent) (bool, error) {
	switch event.Type {
	case payment.EventSubscriptionCreated, payment.EventSubscriptionUpdated, payment.EventSubscriptionDeleted:
		if event.Subscription == nil {
			return false, nil
		}
		return true, h.Memberships.SyncSubscription(ctx, event.Subscription)
	case payment.EventInvoicePaid:
		if event.SubscriptionID == "" {
			return false, nil
		}
		return true, h.Memberships.HandleInvoicePaid(ctx, event.SubscriptionID)
	case payment.EventPaymentSucceeded:
		if event.Intent == nil {
			return false, nil
		}
		return true, h.Checkout.HandlePaymentSucceeded(ctx, event.Intent)
	}
	return false, nil
}
