package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
)

var (
	ErrCartNotFound        = errors.New("cart not found")
	ErrItemNotFound        = errors.New("item not found in cart")
	ErrProductNotFound     = errors.New("product not found")
	ErrPlanNotFound        = errors.New("membership plan not found")
	ErrMembershipNotFound  = errors.New("membership not found")
	ErrDuplicateMembership = errors.New("membership already exists for subscription")
	ErrUsageConflict       = errors.New("membership usage changed concurrently")
	ErrPromotionNotFound   = errors.New("promotion not found")
	ErrDuplicatePromotion  = errors.New("promotion code already exists")
	ErrPromotionExhausted  = errors.New("promotion usage limit reached")
	ErrOrderNotFound       = errors.New("order not found")
	ErrDuplicatePayment    = errors.New("order already exists for payment intent")
	ErrStatusConflict      = errors.New("order status changed concurrently")
	ErrUserNotFound        = errors.New("user not found")
)

// CartRepository is the per-user cart document store.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	UpsertCart(ctx context.Context, cart *domain.Cart) error
	AddItem(ctx context.Context, userID string, item domain.CartItem) error
	UpdateItemQuantity(ctx context.Context, userID, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID string) error
	SetPromotionCode(ctx context.Context, userID, code string) error
	SavePricing(ctx context.Context, userID string, pricing *domain.CartPricing) error
	DeleteCart(ctx context.Context, userID string) error
}

type CatalogRepository interface {
	ListCategories(ctx context.Context, activeOnly bool) ([]domain.Category, error)
	ListProducts(ctx context.Context, categoryID string, activeOnly bool) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error)
	UpsertCategory(ctx context.Context, c *domain.Category) error
	UpsertProduct(ctx context.Context, p *domain.Product) error
}

type MembershipRepository interface {
	ListPlans(ctx context.Context, activeOnly bool) ([]domain.Membership, error)
	GetPlan(ctx context.Context, id string) (*domain.Membership, error)
	GetPlanByPriceID(ctx context.Context, priceID string) (*domain.Membership, error)
	UpsertPlan(ctx context.Context, m *domain.Membership) error

	GetMembership(ctx context.Context, id string) (*domain.UserMembership, error)
	GetUserMembership(ctx context.Context, userID string) (*domain.UserMembership, error)
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.UserMembership, error)
	CreateUserMembership(ctx context.Context, m *domain.UserMembership) error
	UpdateSubscriptionState(ctx context.Context, subscriptionID string, status domain.MembershipStatus, periodStart, periodEnd time.Time) error
	ResetUsage(ctx context.Context, subscriptionID string, periodStart, periodEnd time.Time, usage []domain.ProductUsage) error
	SetUsage(ctx context.Context, membershipID, categoryID string, expectedUsed, newUsed int) error
}

type PromotionRepository interface {
	List(ctx context.Context) ([]domain.Promotion, error)
	ListApplicable(ctx context.Context, code string) ([]domain.Promotion, error)
	GetByCode(ctx context.Context, code string) (*domain.Promotion, error)
	Create(ctx context.Context, p *domain.Promotion) error
	Upsert(ctx context.Context, p *domain.Promotion) error
	IncrementUsage(ctx context.Context, id string) error
}

// Transition describes a conditional order status change.
type Transition struct {
	From  domain.OrderStatus
	To    domain.OrderStatus
	Actor string
	At    time.Time
	Event *domain.OrderEvent
}

type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	List(ctx context.Context, status domain.OrderStatus, limit int64) ([]domain.Order, error)
	ApplyTransition(ctx context.Context, id string, t Transition) error
	CompleteConfirmation(ctx context.Context, id string, consumed []domain.ConsumedAllocation, event *domain.OrderEvent) error
	ListWithPendingEvents(ctx context.Context, limit int64) ([]domain.Order, error)
	RemovePendingEvent(ctx context.Context, orderID, eventID string) error
	CountStalePending(ctx context.Context, before time.Time) (int64, error)
	DeleteStalePending(ctx context.Context, before time.Time) (int64, error)
}

type UserRepository interface {
	Get(ctx context.Context, id string) (*domain.User, error)
	Upsert(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, id string) error
	SetStripeCustomerID(ctx context.Context, id, customerID string) error
}

var (
	_ CartRepository       = (*CartStore)(nil)
	_ CatalogRepository    = (*CatalogStore)(nil)
	_ MembershipRepository = (*MembershipStore)(nil)
	_ PromotionRepository  = (*PromotionStore)(nil)
	_ OrderRepository      = (*OrderStore)(nil)
	_ UserRepository       = (*UserStore)(nil)
)
