package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/identity"
	"github.com/fjod/go_storefront/internal/payment"
	"github.com/fjod/go_storefront/internal/service"
	"github.com/fjod/go_storefront/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type CartAPI interface {
	GetCart(ctx context.Context, userID string) (*service.CartView, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) (*service.CartView, error)
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*service.CartView, error)
	RemoveItem(ctx context.Context, userID, productID string) (*service.CartView, error)
	ClearCart(ctx context.Context, userID string) (*service.CartView, error)
	ApplyPromotion(ctx context.Context, userID, code string) (*service.CartView, error)
	RemovePromotion(ctx context.Context, userID string) (*service.CartView, error)
}

type CatalogAPI interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListProducts(ctx context.Context, categoryID string) ([]domain.Product, error)
}

type CheckoutAPI interface {
	CreatePendingOrder(ctx context.Context, userID string, addr domain.Address) (*service.PendingOrder, error)
	ConfirmOrder(ctx context.Context, userID, orderID, paymentIntentID string) (*domain.Order, error)
	CreateFreeOrder(ctx context.Context, userID string, addr domain.Address) (*domain.Order, error)
	HandlePaymentSucceeded(ctx context.Context, intent *payment.Intent) error
}

type OrderAPI interface {
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error)
	ListAll(ctx context.Context, status domain.OrderStatus, limit int64) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, actor, orderID string, to domain.OrderStatus) (*domain.Order, error)
	CleanupPendingOrders(ctx context.Context, olderThan time.Duration, dryRun bool) (int64, error)
}

type MembershipAPI interface {
	ListPlans(ctx context.Context) ([]domain.Membership, error)
	GetUserMembership(ctx context.Context, userID string) (*service.MembershipView, error)
	ActivateSubscription(ctx context.Context, userID, planID, subscriptionID string) (*domain.UserMembership, error)
	SyncSubscription(ctx context.Context, sub *payment.Subscription) error
	HandleInvoicePaid(ctx context.Context, subscriptionID string) error
}

type PromotionAPI interface {
	List(ctx context.Context) ([]domain.Promotion, error)
	Create(ctx context.Context, p *domain.Promotion) (*domain.Promotion, error)
}

type UserAPI interface {
	HandleClerkEvent(ctx context.Context, event *identity.Event) (bool, error)
}

type ClerkWebhookVerifier interface {
	Verify(payload []byte, headers http.Header) error
}

type StripeWebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error)
}

type Deps struct {
	Cart        CartAPI
	Catalog     CatalogAPI
	Checkout    CheckoutAPI
	Orders      OrderAPI
	Memberships MembershipAPI
	Promotions  PromotionAPI
	Users       UserAPI

	Tokens         Authenticator
	ClerkWebhooks  ClerkWebhookVerifier
	StripeWebhooks StripeWebhookParser

	Metrics *telemetry.Metrics
	Logger  *zap.Logger

	AdminAPIKey     string
	RequestTimeout  time.Duration
	MaxBodyBytes    int64
	PendingOrderTTL time.Duration
}

type handlers struct {
	Deps
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 1 << 20 // 1MB
	}
	if d.PendingOrderTTL <= 0 {
		d.PendingOrderTTL = 24 * time.Hour
	}
	h := &handlers{d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(d.RequestTimeout))
	r.Use(MaxBodySize(d.MaxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	r.Route("/api/mobile", func(r chi.Router) {
		r.Use(Authenticate(d.Tokens))

		r.Get("/cart", h.getCart)
		r.Post("/cart", h.cartAction)
		r.Get("/products", h.listProducts)
		r.Get("/categories", h.listCategories)
		r.Get("/orders", h.listOrders)
		r.Post("/orders", h.createOrder)
		r.Get("/orders/{orderID}", h.getOrder)
		r.Get("/memberships", h.getMemberships)
		r.Post("/memberships", h.activateMembership)
		r.Post("/checkout/confirm-order", h.confirmOrder)
		r.Post("/checkout/create-free-order", h.createFreeOrder)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(RequireAPIKey(d.AdminAPIKey))

		r.Get("/cleanup/pending-orders", h.previewCleanup)
		r.Post("/cleanup/pending-orders", h.runCleanup)
		r.Get("/orders", h.adminListOrders)
		r.Patch("/orders/{orderID}/status", h.adminUpdateStatus)
		r.Get("/promotions", h.listPromotions)
		r.Post("/promotions", h.createPromotion)
	})

	r.Route("/api/webhook", func(r chi.Router) {
		r.Post("/clerk", h.clerkWebhook)
		r.Post("/stripe", h.stripeWebhook)
	})

	return otelhttp.NewHandler(r, "storefront-api")
}
