package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/identity"
	"github.com/fjod/go_storefront/internal/payment"
	"github.com/fjod/go_storefront/internal/service"
	"github.com/golang-jwt/jwt/v5"
)

const (
	testToken  = "valid-token"
	testUserID = "user_1"
	testAPIKey = "admin-secret"
)

type fakeAuth struct{}

func (fakeAuth) Verify(raw string) (*identity.Claims, error) {
	switch raw {
	case "":
		return nil, identity.ErrMissingToken
	case testToken:
		return &identity.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: testUserID}}, nil
	}
	return nil, identity.ErrInvalidToken
}

type fakeClerk struct{ err error }

func (f fakeClerk) Verify([]byte, http.Header) error { return f.err }

type fakeStripe struct {
	event *payment.WebhookEvent
	err   error
}

func (f fakeStripe) ParseWebhook([]byte, string) (*payment.WebhookEvent, error) {
	return f.event, f.err
}

// fakeBackend implements every service API the router needs and records calls.
type fakeBackend struct {
	m     sync.RWMutex
	calls []string
	err   error

	promoErr      *service.PromotionError
	membershipErr error
	clerkHandled  bool
}

func (f *fakeBackend) record(format string, args ...any) error {
	f.m.Lock()
	defer f.m.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return f.err
}

func (f *fakeBackend) recorded() []string {
	f.m.RLock()
	defer f.m.RUnlock()
	return append([]string(nil), f.calls...)
}

func view(userID string) *service.CartView {
	return &service.CartView{UserID: userID, Items: []domain.CartItem{}}
}

func (f *fakeBackend) GetCart(_ context.Context, userID string) (*service.CartView, error) {
	if err := f.record("GetCart %s", userID); err != nil {
		return nil, err
	}
	return view(userID), nil
}

func (f *fakeBackend) AddItem(_ context.Context, userID, productID string, quantity int) (*service.CartView, error) {
	if err := f.record("AddItem %s %s %d", userID, productID, quantity); err != nil {
		return nil, err
	}
	return view(userID), nil
}

func (f *fakeBackend) UpdateQuantity(_ context.Context, userID, productID string, quantity int) (*service.CartView, error) {
	if err := f.record("UpdateQuantity %s %s %d", userID, productID, quantity); err != nil {
		return nil, err
	}
	return view(userID), nil
}

func (f *fakeBackend) RemoveItem(_ context.Context, userID, productID string) (*service.CartView, error) {
	if err := f.record("RemoveItem %s %s", userID, productID); err != nil {
		return nil, err
	}
	return view(userID), nil
}

func (f *fakeBackend) ClearCart(_ context.Context, userID string) (*service.CartView, error) {
	if err := f.record("ClearCart %s", userID); err != nil {
		return nil, err
	}
	return view(userID), nil
}

func (f *fakeBackend) ApplyPromotion(_ context.Context, userID, code string) (*service.CartView, error) {
	if err := f.record("ApplyPromotion %s %s", userID, code); err != nil {
		return nil, err
	}
	if f.promoErr != nil {
		return view(userID), f.promoErr
	}
	return view(userID), nil
}

func (f *fakeBackend) RemovePromotion(_ context.Context, userID string) (*service.CartView, error) {
	if err := f.record("RemovePromotion %s", userID); err != nil {
		return nil, err
	}
	return view(userID), nil
}

func (f *fakeBackend) ListCategories(context.Context) ([]domain.Category, error) {
	if err := f.record("ListCategories"); err != nil {
		return nil, err
	}
	return []domain.Category{{ID: "juice", Name: "Juice", Active: true}}, nil
}

func (f *fakeBackend) ListProducts(_ context.Context, categoryID string) ([]domain.Product, error) {
	if err := f.record("ListProducts %s", categoryID); err != nil {
		return nil, err
	}
	return []domain.Product{{ID: "p-1", CategoryID: categoryID, Active: true}}, nil
}

func (f *fakeBackend) CreatePendingOrder(_ context.Context, userID string, addr domain.Address) (*service.PendingOrder, error) {
	if err := f.record("CreatePendingOrder %s %s", userID, addr.ZIP); err != nil {
		return nil, err
	}
	return &service.PendingOrder{
		Order:        &domain.Order{ID: "order-1", UserID: userID, Status: domain.OrderStatusPending},
		ClientSecret: "pi_1_secret",
	}, nil
}

func (f *fakeBackend) ConfirmOrder(_ context.Context, userID, orderID, paymentIntentID string) (*domain.Order, error) {
	if err := f.record("ConfirmOrder %s %s %s", userID, orderID, paymentIntentID); err != nil {
		return nil, err
	}
	return &domain.Order{ID: orderID, UserID: userID, Status: domain.OrderStatusProcessing}, nil
}

func (f *fakeBackend) CreateFreeOrder(_ context.Context, userID string, addr domain.Address) (*domain.Order, error) {
	if err := f.record("CreateFreeOrder %s %s", userID, addr.ZIP); err != nil {
		return nil, err
	}
	return &domain.Order{ID: "order-free", UserID: userID, Status: domain.OrderStatusProcessing}, nil
}

func (f *fakeBackend) HandlePaymentSucceeded(_ context.Context, intent *payment.Intent) error {
	return f.record("HandlePaymentSucceeded %s", intent.ID)
}

func (f *fakeBackend) ListOrders(_ context.Context, userID string) ([]domain.Order, error) {
	if err := f.record("ListOrders %s", userID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *fakeBackend) GetOrder(_ context.Context, userID, orderID string) (*domain.Order, error) {
	if err := f.record("GetOrder %s %s", userID, orderID); err != nil {
		return nil, err
	}
	return &domain.Order{ID: orderID, UserID: userID}, nil
}

func (f *fakeBackend) ListAll(_ context.Context, status domain.OrderStatus, limit int64) ([]domain.Order, error) {
	if err := f.record("ListAll %s %d", status, limit); err != nil {
		return nil, err
	}
	return []domain.Order{{ID: "order-1", Status: status}}, nil
}

func (f *fakeBackend) UpdateStatus(_ context.Context, actor, orderID string, to domain.OrderStatus) (*domain.Order, error) {
	if err := f.record("UpdateStatus %s %s %s", actor, orderID, to); err != nil {
		return nil, err
	}
	return &domain.Order{ID: orderID, Status: to}, nil
}

func (f *fakeBackend) CleanupPendingOrders(_ context.Context, olderThan time.Duration, dryRun bool) (int64, error) {
	if err := f.record("CleanupPendingOrders %s %t", olderThan, dryRun); err != nil {
		return 0, err
	}
	return 3, nil
}

func (f *fakeBackend) ListPlans(context.Context) ([]domain.Membership, error) {
	if err := f.record("ListPlans"); err != nil {
		return nil, err
	}
	return []domain.Membership{{ID: "plan-basic", Name: "Basic", Active: true}}, nil
}

func (f *fakeBackend) GetUserMembership(_ context.Context, userID string) (*service.MembershipView, error) {
	if err := f.record("GetUserMembership %s", userID); err != nil {
		return nil, err
	}
	if f.membershipErr != nil {
		return nil, f.membershipErr
	}
	return &service.MembershipView{Membership: &domain.UserMembership{ID: "um-1", UserID: userID}, Active: true}, nil
}

func (f *fakeBackend) ActivateSubscription(_ context.Context, userID, planID, subscriptionID string) (*domain.UserMembership, error) {
	if err := f.record("ActivateSubscription %s %s %s", userID, planID, subscriptionID); err != nil {
		return nil, err
	}
	return &domain.UserMembership{ID: "um-1", UserID: userID, MembershipID: planID, StripeSubscriptionID: subscriptionID}, nil
}

func (f *fakeBackend) SyncSubscription(_ context.Context, sub *payment.Subscription) error {
	return f.record("SyncSubscription %s", sub.ID)
}

func (f *fakeBackend) HandleInvoicePaid(_ context.Context, subscriptionID string) error {
	return f.record("HandleInvoicePaid %s", subscriptionID)
}

func (f *fakeBackend) List(context.Context) ([]domain.Promotion, error) {
	if err := f.record("ListPromotions"); err != nil {
		return nil, err
	}
	return []domain.Promotion{}, nil
}

func (f *fakeBackend) Create(_ context.Context, p *domain.Promotion) (*domain.Promotion, error) {
	if err := f.record("CreatePromotion %s", p.Code); err != nil {
		return nil, err
	}
	p.ID = "promo-1"
	return p, nil
}

func (f *fakeBackend) HandleClerkEvent(_ context.Context, event *identity.Event) (bool, error) {
	if err := f.record("HandleClerkEvent %s", event.Type); err != nil {
		return false, err
	}
	return f.clerkHandled, nil
}
