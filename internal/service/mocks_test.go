package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_storefront/internal/cache"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/payment"
	"github.com/fjod/go_storefront/internal/repository"
)

func cloneCart(c *domain.Cart) *domain.Cart {
	out := *c
	out.Items = slices.Clone(c.Items)
	return &out
}

type mockCartRepository struct {
	m           sync.RWMutex
	carts       map[string]*domain.Cart
	savedPrices int
	err         error
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{carts: map[string]*domain.Cart{}}
}

func (m *mockCartRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return cloneCart(c), nil
}

func (m *mockCartRepository) UpsertCart(_ context.Context, c *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[c.UserID] = cloneCart(c)
	return m.err
}

func (m *mockCartRepository) AddItem(_ context.Context, userID string, item domain.CartItem) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		c = &domain.Cart{ID: "cart-" + userID, UserID: userID}
		m.carts[userID] = c
	}
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			c.Items[i].Quantity = min(c.Items[i].Quantity+item.Quantity, domain.MaxItemQuantity)
			return nil
		}
	}
	c.Items = append(c.Items, item)
	return nil
}

func (m *mockCartRepository) UpdateItemQuantity(_ context.Context, userID, productID string, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if c, ok := m.carts[userID]; ok {
		for i := range c.Items {
			if c.Items[i].ProductID == productID {
				c.Items[i].Quantity = quantity
				return nil
			}
		}
	}
	return repository.ErrItemNotFound
}

func (m *mockCartRepository) RemoveItem(_ context.Context, userID, productID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return repository.ErrCartNotFound
	}
	c.Items = slices.DeleteFunc(c.Items, func(it domain.CartItem) bool { return it.ProductID == productID })
	return nil
}

func (m *mockCartRepository) SetPromotionCode(_ context.Context, userID, code string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return repository.ErrCartNotFound
	}
	c.PromotionCode = code
	return nil
}

func (m *mockCartRepository) SavePricing(_ context.Context, userID string, p *domain.CartPricing) error {
	m.m.Lock()
	defer m.m.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return repository.ErrCartNotFound
	}
	c.Pricing = p
	m.savedPrices++
	return nil
}

func (m *mockCartRepository) DeleteCart(_ context.Context, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.carts[userID]; !ok {
		return repository.ErrCartNotFound
	}
	delete(m.carts, userID)
	return nil
}

func (m *mockCartRepository) cart(userID string) *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.carts[userID]
}

type mockCache struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart
	err   error
}

func newMockCache() *mockCache {
	return &mockCache{carts: map[string]*domain.Cart{}}
}

func (m *mockCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cloneCart(c), nil
}

func (m *mockCache) Set(_ context.Context, userID string, c *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[userID] = cloneCart(c)
	return m.err
}

func (m *mockCache) Delete(_ context.Context, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, userID)
	return m.err
}

func (m *mockCache) has(userID string) bool {
	m.m.RLock()
	defer m.m.RUnlock()
	_, ok := m.carts[userID]
	return ok
}

type mockCatalog struct {
	m          sync.RWMutex
	categories map[string]*domain.Category
	products   map[string]*domain.Product
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{categories: map[string]*domain.Category{}, products: map[string]*domain.Product{}}
}

func (m *mockCatalog) ListCategories(_ context.Context, activeOnly bool) ([]domain.Category, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	out := []domain.Category{}
	for _, c := range m.categories {
		if !activeOnly || c.Active {
			out = append(out, *c)
		}
	}
	slices.SortFunc(out, func(a, b domain.Category) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *mockCatalog) ListProducts(_ context.Context, categoryID string, activeOnly bool) ([]domain.Product, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	out := []domain.Product{}
	for _, p := range m.products {
		if (categoryID == "" || p.CategoryID == categoryID) && (!activeOnly || p.Active) {
			out = append(out, *p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Product) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *mockCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockCatalog) GetProductsByIDs(_ context.Context, ids []string) (map[string]*domain.Product, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	out := make(map[string]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *mockCatalog) UpsertCategory(_ context.Context, c *domain.Category) error {
	m.m.Lock()
	defer m.m.Unlock()
	cp := *c
	m.categories[c.ID] = &cp
	return nil
}

func (m *mockCatalog) UpsertProduct(_ context.Context, p *domain.Product) error {
	m.m.Lock()
	defer m.m.Unlock()
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

type mockMembershipRepository struct {
	m           sync.RWMutex
	plans       map[string]*domain.Membership
	memberships map[string]*domain.UserMembership
	// conflicts makes the next SetUsage calls lose a race against another
	// writer that bumps used by one.
	conflicts int
	setErr    error
	setCalls  int
}

func newMockMembershipRepository() *mockMembershipRepository {
	return &mockMembershipRepository{plans: map[string]*domain.Membership{}, memberships: map[string]*domain.UserMembership{}}
}

func cloneMembership(m *domain.UserMembership) *domain.UserMembership {
	out := *m
	out.ProductUsage = slices.Clone(m.ProductUsage)
	return &out
}

func (m *mockMembershipRepository) ListPlans(_ context.Context, activeOnly bool) ([]domain.Membership, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	out := []domain.Membership{}
	for _, p := range m.plans {
		if !activeOnly || p.Active {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockMembershipRepository) GetPlan(_ context.Context, id string) (*domain.Membership, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, repository.ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockMembershipRepository) GetPlanByPriceID(_ context.Context, priceID string) (*domain.Membership, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	for _, p := range m.plans {
		if p.StripePriceID == priceID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPlanNotFound
}

func (m *mockMembershipRepository) UpsertPlan(_ context.Context, p *domain.Membership) error {
	m.m.Lock()
	defer m.m.Unlock()
	cp := *p
	m.plans[p.ID] = &cp
	return nil
}

func (m *mockMembershipRepository) GetMembership(_ context.Context, id string) (*domain.UserMembership, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	um, ok := m.memberships[id]
	if !ok {
		return nil, repository.ErrMembershipNotFound
	}
	return cloneMembership(um), nil
}

func (m *mockMembershipRepository) GetUserMembership(_ context.Context, userID string) (*domain.UserMembership, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	var newest *domain.UserMembership
	for _, um := range m.memberships {
		if um.UserID == userID && (newest == nil || um.CreatedAt.After(newest.CreatedAt)) {
			newest = um
		}
	}
	if newest == nil {
		return nil, repository.ErrMembershipNotFound
	}
	return cloneMembership(newest), nil
}

func (m *mockMembershipRepository) GetBySubscriptionID(_ context.Context, subscriptionID string) (*domain.UserMembership, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	for _, um := range m.memberships {
		if um.StripeSubscriptionID == subscriptionID {
			return cloneMembership(um), nil
		}
	}
	return nil, repository.ErrMembershipNotFound
}

func (m *mockMembershipRepository) CreateUserMembership(_ context.Context, um *domain.UserMembership) error {
	m.m.Lock()
	defer m.m.Unlock()
	for _, existing := range m.memberships {
		if existing.StripeSubscriptionID == um.StripeSubscriptionID {
			return repository.ErrDuplicateMembership
		}
	}
	um.CreatedAt = time.Now().UTC()
	m.memberships[um.ID] = cloneMembership(um)
	return nil
}

func (m *mockMembershipRepository) UpdateSubscriptionState(_ context.Context, subscriptionID string, status domain.MembershipStatus, start, end time.Time) error {
	m.m.Lock()
	defer m.m.Unlock()
	for _, um := range m.memberships {
		if um.StripeSubscriptionID == subscriptionID {
			um.Status = status
			um.CurrentPeriodStart = start
			um.CurrentPeriodEnd = end
			return nil
		}
	}
	return repository.ErrMembershipNotFound
}

func (m *mockMembershipRepository) ResetUsage(_ context.Context, subscriptionID string, start, end time.Time, usage []domain.ProductUsage) error {
	m.m.Lock()
	defer m.m.Unlock()
	for _, um := range m.memberships {
		if um.StripeSubscriptionID == subscriptionID {
			if um.CurrentPeriodStart.Before(start) {
				um.ProductUsage = slices.Clone(usage)
				um.CurrentPeriodStart = start
				um.CurrentPeriodEnd = end
			}
			return nil
		}
	}
	return repository.ErrMembershipNotFound
}

func (m *mockMembershipRepository) SetUsage(_ context.Context, membershipID, categoryID string, expectedUsed, newUsed int) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.setCalls++
	if m.setErr != nil {
		return m.setErr
	}
	um, ok := m.memberships[membershipID]
	if !ok {
		return repository.ErrUsageConflict
	}
	for i := range um.ProductUsage {
		u := &um.ProductUsage[i]
		if u.CategoryID != categoryID {
			continue
		}
		if m.conflicts > 0 {
			m.conflicts--
			u.Used = min(u.Used+1, u.Allocated)
			return repository.ErrUsageConflict
		}
		if u.Used != expectedUsed || newUsed > u.Allocated {
			return repository.ErrUsageConflict
		}
		u.Used = newUsed
		return nil
	}
	return repository.ErrUsageConflict
}

func (m *mockMembershipRepository) usage(membershipID, categoryID string) domain.ProductUsage {
	m.m.RLock()
	defer m.m.RUnlock()
	u, _ := m.memberships[membershipID].Usage(categoryID)
	return u
}

type mockPromotionRepository struct {
	m          sync.RWMutex
	promotions map[string]*domain.Promotion
}

func newMockPromotionRepository() *mockPromotionRepository {
	return &mockPromotionRepository{promotions: map[string]*domain.Promotion{}}
}

func (m *mockPromotionRepository) List(context.Context) ([]domain.Promotion, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	out := []domain.Promotion{}
	for _, p := range m.promotions {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b domain.Promotion) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *mockPromotionRepository) ListApplicable(_ context.Context, code string) ([]domain.Promotion, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	code = domain.NormalizeCode(code)
	out := []domain.Promotion{}
	for _, p := range m.promotions {
		if p.Code == "" || (code != "" && p.Code == code) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockPromotionRepository) GetByCode(_ context.Context, code string) (*domain.Promotion, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	for _, p := range m.promotions {
		if p.Code == domain.NormalizeCode(code) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPromotionNotFound
}

func (m *mockPromotionRepository) Create(_ context.Context, p *domain.Promotion) error {
	m.m.Lock()
	defer m.m.Unlock()
	p.Code = domain.NormalizeCode(p.Code)
	for _, existing := range m.promotions {
		if p.Code != "" && existing.Code == p.Code {
			return repository.ErrDuplicatePromotion
		}
	}
	cp := *p
	m.promotions[p.ID] = &cp
	return nil
}

func (m *mockPromotionRepository) Upsert(_ context.Context, p *domain.Promotion) error {
	m.m.Lock()
	defer m.m.Unlock()
	cp := *p
	cp.Code = domain.NormalizeCode(cp.Code)
	if existing, ok := m.promotions[p.ID]; ok {
		cp.UsageCount = existing.UsageCount
	}
	m.promotions[p.ID] = &cp
	return nil
}

func (m *mockPromotionRepository) IncrementUsage(_ context.Context, id string) error {
	m.m.Lock()
	defer m.m.Unlock()
	p, ok := m.promotions[id]
	if !ok {
		return repository.ErrPromotionNotFound
	}
	if p.UsageExhausted() {
		return repository.ErrPromotionExhausted
	}
	p.UsageCount++
	return nil
}

func (m *mockPromotionRepository) usageCount(id string) int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.promotions[id].UsageCount
}

type mockOrderRepository struct {
	m      sync.RWMutex
	orders map[string]*domain.Order
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: map[string]*domain.Order{}}
}

func cloneOrder(o *domain.Order) *domain.Order {
	out := *o
	out.Items = slices.Clone(o.Items)
	out.PendingEvents = slices.Clone(o.PendingEvents)
	out.StatusHistory = slices.Clone(o.StatusHistory)
	out.ConsumedAllocations = slices.Clone(o.ConsumedAllocations)
	return &out
}

func (m *mockOrderRepository) Create(_ context.Context, o *domain.Order) error {
	m.m.Lock()
	defer m.m.Unlock()
	if o.PaymentIntentID != "" {
		for _, existing := range m.orders {
			if existing.PaymentIntentID == o.PaymentIntentID {
				return repository.ErrDuplicatePayment
			}
		}
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.UpdatedAt = o.CreatedAt
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *mockOrderRepository) Get(_ context.Context, id string) (*domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *mockOrderRepository) GetByPaymentIntent(_ context.Context, paymentIntentID string) (*domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	for _, o := range m.orders {
		if o.PaymentIntentID == paymentIntentID {
			return cloneOrder(o), nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *mockOrderRepository) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	out := []domain.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *cloneOrder(o))
		}
	}
	return out, nil
}

func (m *mockOrderRepository) List(_ context.Context, status domain.OrderStatus, limit int64) ([]domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	out := []domain.Order{}
	for _, o := range m.orders {
		if (status == "" || o.Status == status) && int64(len(out)) < limit {
			out = append(out, *cloneOrder(o))
		}
	}
	return out, nil
}

func (m *mockOrderRepository) ApplyTransition(_ context.Context, id string, t repository.Transition) error {
	m.m.Lock()
	defer m.m.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if o.Status != t.From {
		return repository.ErrStatusConflict
	}
	o.Status = t.To
	o.UpdatedAt = t.At
	o.StatusHistory = append(o.StatusHistory, domain.StatusChange{From: t.From, To: t.To, Actor: t.Actor, ChangedAt: t.At})
	if t.Event != nil {
		o.PendingEvents = append(o.PendingEvents, *t.Event)
	}
	return nil
}

func (m *mockOrderRepository) CompleteConfirmation(_ context.Context, id string, consumed []domain.ConsumedAllocation, event *domain.OrderEvent) error {
	m.m.Lock()
	defer m.m.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if o.Status != domain.OrderStatusProcessing {
		return repository.ErrStatusConflict
	}
	if len(consumed) > 0 {
		o.ConsumedAllocations = slices.Clone(consumed)
	}
	if event != nil {
		o.PendingEvents = append(o.PendingEvents, *event)
	}
	return nil
}

func (m *mockOrderRepository) ListWithPendingEvents(_ context.Context, limit int64) ([]domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	out := []domain.Order{}
	for _, o := range m.orders {
		if len(o.PendingEvents) > 0 && int64(len(out)) < limit {
			out = append(out, *cloneOrder(o))
		}
	}
	return out, nil
}

func (m *mockOrderRepository) RemovePendingEvent(_ context.Context, orderID, eventID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.PendingEvents = slices.DeleteFunc(o.PendingEvents, func(e domain.OrderEvent) bool { return e.ID == eventID })
	return nil
}

func (m *mockOrderRepository) stale(before time.Time) []string {
	var ids []string
	for id, o := range m.orders {
		if o.Status == domain.OrderStatusPending && o.CreatedAt.Before(before) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (m *mockOrderRepository) CountStalePending(_ context.Context, before time.Time) (int64, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	return int64(len(m.stale(before))), nil
}

func (m *mockOrderRepository) DeleteStalePending(_ context.Context, before time.Time) (int64, error) {
	m.m.Lock()
	defer m.m.Unlock()
	ids := m.stale(before)
	for _, id := range ids {
		delete(m.orders, id)
	}
	return int64(len(ids)), nil
}

type mockUserRepository struct {
	m     sync.RWMutex
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: map[string]*domain.User{}}
}

func (m *mockUserRepository) Get(_ context.Context, id string) (*domain.User, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepository) Upsert(_ context.Context, u *domain.User) error {
	m.m.Lock()
	defer m.m.Unlock()
	cp := *u
	if existing, ok := m.users[u.ID]; ok && cp.StripeCustomerID == "" {
		cp.StripeCustomerID = existing.StripeCustomerID
	}
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserRepository) Delete(_ context.Context, id string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if _, ok := m.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepository) SetStripeCustomerID(_ context.Context, id, customerID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.StripeCustomerID = customerID
	return nil
}

type mockGateway struct {
	m             sync.RWMutex
	intents       map[string]*payment.Intent
	subscriptions map[string]*payment.Subscription
	customers     int
	refunds       []string
	err           error
}

func newMockGateway() *mockGateway {
	return &mockGateway{intents: map[string]*payment.Intent{}, subscriptions: map[string]*payment.Subscription{}}
}

func (g *mockGateway) CreateCustomer(_ context.Context, userID, _, _ string) (string, error) {
	g.m.Lock()
	defer g.m.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.customers++
	return "cus_" + userID, nil
}

func (g *mockGateway) CreatePaymentIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	g.m.Lock()
	defer g.m.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	id := fmt.Sprintf("pi_%d", len(g.intents)+1)
	in := &payment.Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		CustomerID:   req.CustomerID,
		AmountCents:  req.AmountCents,
		Currency:     req.Currency,
		Status:       "requires_payment_method",
		Metadata:     map[string]string{"order_id": req.OrderID, "user_id": req.UserID},
	}
	g.intents[id] = in
	cp := *in
	return &cp, nil
}

func (g *mockGateway) GetPaymentIntent(_ context.Context, id string) (*payment.Intent, error) {
	g.m.RLock()
	defer g.m.RUnlock()
	in, ok := g.intents[id]
	if !ok {
		return nil, payment.ErrNotFound
	}
	cp := *in
	return &cp, nil
}

func (g *mockGateway) GetSubscription(_ context.Context, id string) (*payment.Subscription, error) {
	g.m.RLock()
	defer g.m.RUnlock()
	sub, ok := g.subscriptions[id]
	if !ok {
		return nil, payment.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (g *mockGateway) Refund(_ context.Context, paymentIntentID string) error {
	g.m.Lock()
	defer g.m.Unlock()
	if g.err != nil {
		return g.err
	}
	g.refunds = append(g.refunds, paymentIntentID)
	return nil
}

func (g *mockGateway) ParseWebhook([]byte, string) (*payment.WebhookEvent, error) {
	return nil, payment.ErrInvalidSignature
}

// succeed marks an intent as paid, optionally for a different amount.
func (g *mockGateway) succeed(id string, amountCents int64) {
	g.m.Lock()
	defer g.m.Unlock()
	in := g.intents[id]
	in.Status = payment.IntentStatusSucceeded
	if amountCents > 0 {
		in.AmountCents = amountCents
	}
}

type mockAddressValidator struct {
	err   error
	calls int
}

func (v *mockAddressValidator) Validate(_ context.Context, addr domain.Address) (*domain.Address, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	out := addr
	out.Line1 = strings.ToUpper(addr.Line1)
	out.City = strings.ToUpper(addr.City)
	out.ZIPPlus4 = "0110"
	out.Country = "US"
	return &out, nil
}
