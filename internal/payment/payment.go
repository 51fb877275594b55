package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/pricing"
)

var (
	ErrPaymentNotSucceeded = errors.New("payment has not succeeded")
	ErrAmountMismatch      = errors.New("payment amount does not match order total")
	ErrCustomerMismatch    = errors.New("payment customer does not match user")
	ErrNotFound            = errors.New("payment resource not found")
	ErrUpstream            = errors.New("payment provider error")
	ErrInvalidSignature    = errors.New("invalid payment webhook signature")
)

const IntentStatusSucceeded = "succeeded"

// amountToleranceCents is the largest accepted difference between the charged
// amount and the order total.
const amountToleranceCents = 1

type Intent struct {
	ID           string
	ClientSecret string
	CustomerID   string
	AmountCents  int64
	Currency     string
	Status       string
	Metadata     map[string]string
}

type IntentRequest struct {
	AmountCents    int64
	Currency       string
	CustomerID     string
	OrderID        string
	UserID         string
	IdempotencyKey string
}

type Subscription struct {
	ID          string
	CustomerID  string
	Status      string
	PriceIDs    []string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Metadata    map[string]string
}

// Webhook event types handled by the storefront.
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventInvoicePaid         = "invoice.paid"
	EventPaymentSucceeded    = "payment_intent.succeeded"
	EventChargeRefunded      = "charge.refunded"
)

type WebhookEvent struct {
	ID             string
	Type           string
	Subscription   *Subscription
	SubscriptionID string
	BillingReason  string
	Intent         *Intent
}

type Gateway interface {
	CreateCustomer(ctx context.Context, userID, email, name string) (string, error)
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	GetPaymentIntent(ctx context.Context, id string) (*Intent, error)
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	Refund(ctx context.Context, paymentIntentID string) error
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// VerifyIntent is the checkout confirmation check: the intent must have
// succeeded, charged the order total to within one cent and belong to the
// user's customer.
func VerifyIntent(intent *Intent, expectedTotal float64, customerID string) error {
	if intent.Status != IntentStatusSucceeded {
		return fmt.Errorf("%w: status %s", ErrPaymentNotSucceeded, intent.Status)
	}
	expected := pricing.ToCents(expectedTotal)
	diff := intent.AmountCents - expected
	if diff < 0 {
		diff = -diff
	}
	if diff > amountToleranceCents {
		return fmt.Errorf("%w: charged %s, expected %s", ErrAmountMismatch,
			formatCents(intent.AmountCents), formatCents(expected))
	}
	if intent.CustomerID != customerID {
		return ErrCustomerMismatch
	}
	return nil
}

func formatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign, c = "-", -c
	}
	return fmt.Sprintf("%s$%d.%02d", sign, c/100, c%100)
}

// MembershipStatus maps a billing subscription status onto the membership lifecycle.
func MembershipStatus(status string) domain.MembershipStatus {
	switch status {
	case "trialing":
		return domain.MembershipStatusTrial
	case "active":
		return domain.MembershipStatusActive
	case "paused", "past_due":
		return domain.MembershipStatusPaused
	case "canceled":
		return domain.MembershipStatusCancelled
	default:
		return domain.MembershipStatusExpired
	}
}
