package service

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/pricing"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testUser = "user_1"

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	carts       *mockCartRepository
	cache       *mockCache
	catalog     *mockCatalog
	memberships *mockMembershipRepository
	promotions  *mockPromotionRepository
	orders      *mockOrderRepository
	users       *mockUserRepository
	gateway     *mockGateway
	addresses   *mockAddressValidator

	cartSvc       *CartService
	membershipSvc *MembershipService
	checkoutSvc   *CheckoutService
	orderSvc      *OrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		carts:       newMockCartRepository(),
		cache:       newMockCache(),
		catalog:     newMockCatalog(),
		memberships: newMockMembershipRepository(),
		promotions:  newMockPromotionRepository(),
		orders:      newMockOrderRepository(),
		users:       newMockUserRepository(),
		gateway:     newMockGateway(),
		addresses:   &mockAddressValidator{},
	}
	logger := zap.NewNop()
	clock := func() time.Time { return testNow }

	env.cartSvc = NewCartService(env.carts, env.cache, env.catalog, env.memberships, env.promotions,
		pricing.NewEngine(pricing.DefaultRules()), nil, logger)
	env.cartSvc.now = clock
	env.membershipSvc = NewMembershipService(env.memberships, env.users, env.gateway, logger)
	env.membershipSvc.now = clock
	env.checkoutSvc = NewCheckoutService(env.cartSvc, env.membershipSvc, env.orders, env.users, env.promotions,
		env.gateway, env.addresses, nil, logger, "usd")
	env.checkoutSvc.now = clock
	env.orderSvc = NewOrderService(env.orders, env.membershipSvc, env.gateway, nil, logger)
	env.orderSvc.now = clock

	ctx := context.Background()
	for _, c := range []domain.Category{
		{ID: "juice", Name: "Cold-pressed juice", Slug: "juice", Active: true},
		{ID: "tea", Name: "Loose leaf tea", Slug: "tea", Active: true},
	} {
		require.NoError(t, env.catalog.UpsertCategory(ctx, &c))
	}
	for _, p := range []domain.Product{
		{ID: "p-green", Name: "Green Detox", CategoryID: "juice", RegularPrice: 10, WeightGrams: 500, Active: true},
		{ID: "p-berry", Name: "Berry Blast", CategoryID: "juice", RegularPrice: 20, WeightGrams: 500, Active: true},
		{ID: "p-tea", Name: "Chamomile Calm", CategoryID: "tea", RegularPrice: 20, WeightGrams: 100, Active: true},
		{ID: "p-old", Name: "Retired Blend", CategoryID: "tea", RegularPrice: 5, Active: false},
	} {
		require.NoError(t, env.catalog.UpsertProduct(ctx, &p))
	}
	ends := testNow.Add(-time.Hour)
	for _, p := range []domain.Promotion{
		{ID: "promo-save10", Name: "Save 10%", Code: "SAVE10", Type: domain.PromotionTypePercentage, Value: 10, Active: true},
		{ID: "promo-old", Name: "Spring", Code: "SPRING", Type: domain.PromotionTypePercentage, Value: 20, Active: true, EndsAt: &ends},
	} {
		require.NoError(t, env.promotions.Create(ctx, &p))
	}
	require.NoError(t, env.users.Upsert(ctx, &domain.User{ID: testUser, Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}))
	return env
}

// withMembership gives testUser an active membership with the given juice
// allocation and returns its id.
func (env *testEnv) withMembership(t *testing.T, juiceAllocated, juiceUsed int) string {
	t.Helper()
	m := &domain.UserMembership{
		ID:                   "um-1",
		UserID:               testUser,
		MembershipID:         "plan-basic",
		Status:               domain.MembershipStatusActive,
		StripeSubscriptionID: "sub_1",
		StripeCustomerID:     "cus_" + testUser,
		CurrentPeriodStart:   testNow.Add(-24 * time.Hour),
		CurrentPeriodEnd:     testNow.Add(29 * 24 * time.Hour),
		ProductUsage: []domain.ProductUsage{
			{CategoryID: "juice", CategoryName: "Cold-pressed juice", Allocated: juiceAllocated, Used: juiceUsed},
		},
	}
	require.NoError(t, env.memberships.CreateUserMembership(context.Background(), m))
	return m.ID
}

func (env *testEnv) add(t *testing.T, productID string, qty int) *CartView {
	t.Helper()
	view, err := env.cartSvc.AddItem(context.Background(), testUser, productID, qty)
	require.NoError(t, err)
	return view
}

func testAddress() domain.Address {
	return domain.Address{Name: "Ada Lovelace", Line1: "350 Fifth Avenue", City: "New York", State: "NY", ZIP: "10118"}
}
