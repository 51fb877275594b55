package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

func TestVerifyIntent(t *testing.T) {
	ok := &Intent{ID: "pi_1", Status: IntentStatusSucceeded, AmountCents: 4502, CustomerID: "cus_1"}

	tests := []struct {
		name     string
		intent   *Intent
		expected float64
		customer string
		wantErr  error
	}{
		{"exact match", ok, 45.02, "cus_1", nil},
		{"one cent under is tolerated", &Intent{Status: IntentStatusSucceeded, AmountCents: 4501, CustomerID: "cus_1"}, 45.02, "cus_1", nil},
		{"one cent over is tolerated", &Intent{Status: IntentStatusSucceeded, AmountCents: 4503, CustomerID: "cus_1"}, 45.02, "cus_1", nil},
		{"two cents short", &Intent{Status: IntentStatusSucceeded, AmountCents: 4500, CustomerID: "cus_1"}, 45.02, "cus_1", ErrAmountMismatch},
		{"not succeeded", &Intent{Status: "requires_payment_method", AmountCents: 4502, CustomerID: "cus_1"}, 45.02, "cus_1", ErrPaymentNotSucceeded},
		{"other customer", ok, 45.02, "cus_2", ErrCustomerMismatch},
		{"user without customer", ok, 45.02, "", ErrCustomerMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyIntent(tt.intent, tt.expected, tt.customer)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifyIntent_AmountMessage(t *testing.T) {
	err := VerifyIntent(&Intent{Status: IntentStatusSucceeded, AmountCents: 4500, CustomerID: "cus_1"}, 45.02, "cus_1")
	require.ErrorIs(t, err, ErrAmountMismatch)
	assert.Contains(t, err.Error(), "$45.00")
	assert.Contains(t, err.Error(), "$45.02")
}

func TestMembershipStatus(t *testing.T) {
	assert.Equal(t, domain.MembershipStatusTrial, MembershipStatus("trialing"))
	assert.Equal(t, domain.MembershipStatusActive, MembershipStatus("active"))
	assert.Equal(t, domain.MembershipStatusPaused, MembershipStatus("paused"))
	assert.Equal(t, domain.MembershipStatusCancelled, MembershipStatus("canceled"))
	assert.Equal(t, domain.MembershipStatusExpired, MembershipStatus("incomplete_expired"))
	assert.Equal(t, domain.MembershipStatusExpired, MembershipStatus("unpaid"))
}

func newTestGateway(t *testing.T, handler http.HandlerFunc) *StripeGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewStripeGateway("sk_test_123", "whsec_test", &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestStripeGateway(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/customers":
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "ada@example.com", r.PostForm.Get("email"))
			assert.Equal(t, "user_1", r.PostForm.Get("metadata[user_id]"))
			writeJSON(w, 200, `{"id":"cus_123","object":"customer"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/v1/payment_intents":
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "4502", r.PostForm.Get("amount"))
			assert.Equal(t, "usd", r.PostForm.Get("currency"))
			assert.Equal(t, "order-1", r.PostForm.Get("metadata[order_id]"))
			assert.Equal(t, "order-1", r.Header.Get("Idempotency-Key"))
			writeJSON(w, 200, `{"id":"pi_1","object":"payment_intent","amount":4502,"currency":"usd",
				"status":"requires_payment_method","client_secret":"pi_1_secret","customer":"cus_123"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/payment_intents/pi_1":
			writeJSON(w, 200, `{"id":"pi_1","object":"payment_intent","amount":4502,"currency":"usd",
				"status":"succeeded","customer":"cus_123","metadata":{"order_id":"order-1"}}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/payment_intents/pi_missing":
			writeJSON(w, 404, `{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such payment_intent"}}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/subscriptions/sub_1":
			writeJSON(w, 200, `{"id":"sub_1","object":"subscription","status":"trialing","customer":"cus_123",
				"current_period_start":1767225600,"current_period_end":1769904000,
				"items":{"object":"list","data":[{"id":"si_1","object":"subscription_item","price":{"id":"price_basic","object":"price"}}]}}`)
		case r.Method == http.MethodPost && r.URL.Path == "/v1/refunds":
			assert.NoError(t, r.ParseForm())
			if r.PostForm.Get("payment_intent") == "pi_broken" {
				writeJSON(w, 400, `{"error":{"type":"invalid_request_error","code":"charge_already_refunded","message":"already refunded"}}`)
				return
			}
			writeJSON(w, 200, `{"id":"re_1","object":"refund","status":"succeeded"}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	customerID, err := g.CreateCustomer(ctx, "user_1", "ada@example.com", "Ada Lovelace")
	require.NoError(t, err)
	assert.Equal(t, "cus_123", customerID)

	intent, err := g.CreatePaymentIntent(ctx, IntentRequest{
		AmountCents:    4502,
		Currency:       "usd",
		CustomerID:     "cus_123",
		OrderID:        "order-1",
		UserID:         "user_1",
		IdempotencyKey: "order-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret", intent.ClientSecret)

	intent, err = g.GetPaymentIntent(ctx, "pi_1")
	require.NoError(t, err)
	assert.NoError(t, VerifyIntent(intent, 45.02, "cus_123"))
	assert.Equal(t, "order-1", intent.Metadata["order_id"])

	_, err = g.GetPaymentIntent(ctx, "pi_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	sub, err := g.GetSubscription(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "cus_123", sub.CustomerID)
	assert.Equal(t, []string{"price_basic"}, sub.PriceIDs)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), sub.PeriodStart)
	assert.Equal(t, domain.MembershipStatusTrial, MembershipStatus(sub.Status))

	require.NoError(t, g.Refund(ctx, "pi_1"))
	assert.ErrorIs(t, g.Refund(ctx, "pi_broken"), ErrUpstream)
}

func signedEvent(t *testing.T, secret string, event map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	return signed.Payload, signed.Header
}

func TestParseWebhook(t *testing.T) {
	g := NewStripeGateway("sk_test_123", "whsec_test", nil)

	t.Run("subscription update", func(t *testing.T) {
		payload, sig := signedEvent(t, "whsec_test", map[string]any{
			"id":          "evt_1",
			"object":      "event",
			"type":        "customer.subscription.updated",
			"api_version": "2020-08-27",
			"data": map[string]any{"object": map[string]any{
				"id":                   "sub_1",
				"object":               "subscription",
				"status":               "canceled",
				"customer":             "cus_123",
				"current_period_start": 1767225600,
				"current_period_end":   1769904000,
			}},
		})
		e, err := g.ParseWebhook(payload, sig)
		require.NoError(t, err)
		assert.Equal(t, EventSubscriptionUpdated, e.Type)
		require.NotNil(t, e.Subscription)
		assert.Equal(t, "sub_1", e.SubscriptionID)
		assert.Equal(t, "canceled", e.Subscription.Status)
	})

	t.Run("invoice paid", func(t *testing.T) {
		payload, sig := signedEvent(t, "whsec_test", map[string]any{
			"id":     "evt_2",
			"object": "event",
			"type":   "invoice.paid",
			"data": map[string]any{"object": map[string]any{
				"id":             "in_1",
				"object":         "invoice",
				"subscription":   "sub_1",
				"billing_reason": "subscription_cycle",
			}},
		})
		e, err := g.ParseWebhook(payload, sig)
		require.NoError(t, err)
		assert.Equal(t, "sub_1", e.SubscriptionID)
		assert.Equal(t, "subscription_cycle", e.BillingReason)
	})

	t.Run("bad signature", func(t *testing.T) {
		payload, _ := signedEvent(t, "whsec_test", map[string]any{"id": "evt_3", "object": "event", "type": "invoice.paid"})
		_, sig := signedEvent(t, "whsec_other", map[string]any{"id": "evt_3", "object": "event", "type": "invoice.paid"})
		_, err := g.ParseWebhook(payload, sig)
		assert.ErrorIs(t, err, ErrInvalidSignature)

		_, err = g.ParseWebhook(payload, "")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "$45.02", formatCents(4502))
	assert.Equal(t, "$0.05", formatCents(5))
	assert.True(t, strings.HasPrefix(formatCents(-150), "-$1.50"))
}
