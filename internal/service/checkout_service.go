package service

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/payment"
	"github.com/fjod/go_storefront/internal/pricing"
	"github.com/fjod/go_storefront/internal/repository"
	"github.com/fjod/go_storefront/internal/shipping"
	"github.com/fjod/go_storefront/internal/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const actorCheckout = "checkout"

type PendingOrder struct {
	Order        *domain.Order `json:"order"`
	ClientSecret string        `json:"clientSecret"`
}

type CheckoutService struct {
	carts       *CartService
	memberships *MembershipService
	orders      repository.OrderRepository
	users       repository.UserRepository
	promotions  repository.PromotionRepository
	gateway     payment.Gateway
	addresses   shipping.Validator
	metrics     *telemetry.Metrics
	logger      *zap.Logger
	currency    string
	now         func() time.Time
}

func NewCheckoutService(
	carts *CartService,
	memberships *MembershipService,
	orders repository.OrderRepository,
	users repository.UserRepository,
	promotions repository.PromotionRepository,
	gateway payment.Gateway,
	addresses shipping.Validator,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
	currency string,
) *CheckoutService {
	return &CheckoutService{
		carts:       carts,
		memberships: memberships,
		orders:      orders,
		users:       users,
		promotions:  promotions,
		gateway:     gateway,
		addresses:   addresses,
		metrics:     metrics,
		logger:      logger,
		currency:    currency,
		now:         time.Now,
	}
}

// CreatePendingOrder prices the cart, standardizes the shipping address and
// opens a payment for the order total. The order stays pending until
// ConfirmOrder sees the payment succeed.
func (s *CheckoutService) CreatePendingOrder(ctx context.Context, userID string, addr domain.Address) (*PendingOrder, error) {
	view, err := s.carts.Quote(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(view.Pricing.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if view.Pricing.FinalTotal <= 0 {
		return nil, ErrUseFreeOrder
	}

	address, err := s.addresses.Validate(ctx, addr)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	order := s.newOrder(user, view, address)
	order.StripeCustomerID = customerID

	intent, err := s.gateway.CreatePaymentIntent(ctx, payment.IntentRequest{
		AmountCents:    pricing.ToCents(order.Pricing.FinalTotal),
		Currency:       s.currency,
		CustomerID:     customerID,
		OrderID:        order.ID,
		UserID:         userID,
		IdempotencyKey: "order-" + order.ID,
	})
	if err != nil {
		return nil, err
	}
	order.PaymentIntentID = intent.ID

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("pending order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.Float64("total", order.Pricing.FinalTotal))
	return &PendingOrder{Order: order, ClientSecret: intent.ClientSecret}, nil
}

// ConfirmOrder moves a pending order to processing once its payment has
// succeeded for the right amount and customer. Confirming an already confirmed
// order with the same payment returns it unchanged.
func (s *CheckoutService) ConfirmOrder(ctx context.Context, userID, orderID, paymentIntentID string) (*domain.Order, error) {
	if orderID == "" || paymentIntentID == "" {
		return nil, ErrInvalidRequest
	}
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrForbidden
	}
	if order.PaymentIntentID != paymentIntentID {
		return nil, ErrPaymentMismatch
	}
	if order.Status != domain.OrderStatusPending {
		if order.Status == domain.OrderStatusProcessing {
			return order, nil
		}
		return nil, ErrOrderNotPending
	}

	intent, err := s.gateway.GetPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return nil, err
	}
	if id := intent.Metadata["order_id"]; id != "" && id != order.ID {
		return nil, ErrPaymentMismatch
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := payment.VerifyIntent(intent, order.Pricing.FinalTotal, user.StripeCustomerID); err != nil {
		s.logger.Warn("payment verification failed",
			zap.String("order_id", order.ID),
			zap.String("payment_intent_id", paymentIntentID),
			zap.Error(err))
		return nil, err
	}

	return s.confirm(ctx, order)
}

// HandlePaymentSucceeded confirms the order behind a succeeded payment when the
// client never called ConfirmOrder. Payments for orders that are no longer
// pending are ignored.
func (s *CheckoutService) HandlePaymentSucceeded(ctx context.Context, intent *payment.Intent) error {
	order, err := s.orders.GetByPaymentIntent(ctx, intent.ID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		s.logger.Error("payment succeeded without an order",
			zap.String("payment_intent_id", intent.ID),
			zap.String("order_id", intent.Metadata["order_id"]),
			zap.Int64("amount_cents", intent.AmountCents))
		return nil
	}
	if err != nil {
		return err
	}
	if order.Status != domain.OrderStatusPending {
		return nil
	}
	if err := payment.VerifyIntent(intent, order.Pricing.FinalTotal, order.StripeCustomerID); err != nil {
		s.logger.Warn("payment webhook verification failed",
			zap.String("order_id", order.ID),
			zap.String("payment_intent_id", intent.ID),
			zap.Error(err))
		return nil
	}
	_, err = s.confirm(ctx, order)
	if errors.Is(err, ErrInsufficientAllocation) {
		return nil
	}
	return err
}

// confirm claims the pending order, then draws its free units from the
// membership. Only the caller that moved the order out of pending draws, so a
// confirmation retried for the same payment never consumes twice. When the
// membership no longer covers the order it is cancelled and the payment
// refunded.
func (s *CheckoutService) confirm(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	err := s.orders.ApplyTransition(ctx, order.ID, repository.Transition{
		From:  domain.OrderStatusPending,
		To:    domain.OrderStatusProcessing,
		Actor: actorCheckout,
		At:    s.now().UTC(),
	})
	if errors.Is(err, repository.ErrStatusConflict) {
		// lost the race against a concurrent confirmation
		return s.orders.Get(ctx, order.ID)
	}
	if err != nil {
		return nil, err
	}

	requested := order.Pricing.FreeUnitsByCategory()
	var consumed []domain.ConsumedAllocation
	if order.MembershipID != "" && len(requested) > 0 {
		consumed, err = s.memberships.ConsumeAllocations(ctx, order.MembershipID, requested)
		if err != nil {
			s.release(order.MembershipID, consumed)
			s.reopen(order)
			return nil, err
		}
		if !covers(consumed, requested) {
			s.release(order.MembershipID, consumed)
			s.cancelUncovered(ctx, order)
			return nil, ErrInsufficientAllocation
		}
	}

	event := newOrderEvent(order, domain.EventOrderConfirmed, domain.OrderStatusProcessing, s.now())
	if err := s.orders.CompleteConfirmation(ctx, order.ID, consumed, event); err != nil {
		s.logger.Error("failed to record order confirmation",
			zap.String("order_id", order.ID),
			zap.Any("consumed_allocations", consumed),
			zap.Error(err))
	}

	s.afterConfirm(ctx, order)
	s.metrics.OrderConfirmed("paid")
	s.logger.Info("order confirmed", zap.String("order_id", order.ID), zap.String("user_id", order.UserID))
	return s.orders.Get(ctx, order.ID)
}

// reopen hands a claimed order back to pending so the confirmation can be
// retried.
func (s *CheckoutService) reopen(order *domain.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.orders.ApplyTransition(ctx, order.ID, repository.Transition{
		From:  domain.OrderStatusProcessing,
		To:    domain.OrderStatusPending,
		Actor: actorCheckout,
		At:    s.now().UTC(),
	})
	if err != nil {
		s.logger.Error("failed to reopen order after allocation error",
			zap.String("order_id", order.ID), zap.Error(err))
	}
}

// cancelUncovered cancels a paid order whose free units are no longer
// available and refunds the payment.
func (s *CheckoutService) cancelUncovered(ctx context.Context, order *domain.Order) {
	err := s.orders.ApplyTransition(ctx, order.ID, repository.Transition{
		From:  domain.OrderStatusProcessing,
		To:    domain.OrderStatusCancelled,
		Actor: actorCheckout,
		At:    s.now().UTC(),
		Event: newOrderEvent(order, domain.EventOrderStatusChanged, domain.OrderStatusCancelled, s.now()),
	})
	if err != nil {
		s.logger.Error("failed to cancel order without allocations",
			zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	if err := s.gateway.Refund(ctx, order.PaymentIntentID); err != nil {
		s.logger.Error("failed to refund order without allocations",
			zap.String("order_id", order.ID),
			zap.String("payment_intent_id", order.PaymentIntentID),
			zap.Error(err))
		return
	}
	s.logger.Warn("order cancelled, membership allocations exhausted",
		zap.String("order_id", order.ID),
		zap.String("membership_id", order.MembershipID))
}

// CreateFreeOrder places an order fully covered by membership allocations and
// promotions. No payment is taken.
func (s *CheckoutService) CreateFreeOrder(ctx context.Context, userID string, addr domain.Address) (*domain.Order, error) {
	view, err := s.carts.Quote(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(view.Pricing.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if view.Pricing.FinalTotal > 0 {
		return nil, ErrInsufficientAllocation
	}

	address, err := s.addresses.Validate(ctx, addr)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	order := s.newOrder(user, view, address)
	requested := order.Pricing.FreeUnitsByCategory()

	var consumed []domain.ConsumedAllocation
	if order.MembershipID != "" {
		consumed, err = s.memberships.ConsumeAllocations(ctx, order.MembershipID, requested)
		if err != nil || !covers(consumed, requested) {
			s.release(order.MembershipID, consumed)
			if err != nil {
				return nil, err
			}
			return nil, ErrInsufficientAllocation
		}
	}

	now := s.now().UTC()
	order.Status = domain.OrderStatusProcessing
	order.ConsumedAllocations = consumed
	order.StatusHistory = []domain.StatusChange{{To: domain.OrderStatusProcessing, Actor: actorCheckout, ChangedAt: now}}
	order.PendingEvents = []domain.OrderEvent{*newOrderEvent(order, domain.EventOrderConfirmed, domain.OrderStatusProcessing, now)}
	if err := s.orders.Create(ctx, order); err != nil {
		s.release(order.MembershipID, consumed)
		return nil, err
	}

	s.afterConfirm(ctx, order)
	s.metrics.OrderConfirmed("free")
	s.logger.Info("free order created", zap.String("order_id", order.ID), zap.String("user_id", userID))
	return order, nil
}

// afterConfirm runs the side effects of a confirmed order. The customer has
// paid at this point, so failures are logged and never undo the order.
func (s *CheckoutService) afterConfirm(ctx context.Context, order *domain.Order) {
	if order.PromotionID != "" {
		if err := s.promotions.IncrementUsage(ctx, order.PromotionID); err != nil {
			s.logger.Warn("failed to record promotion usage",
				zap.String("order_id", order.ID),
				zap.String("promotion_id", order.PromotionID),
				zap.Error(err))
		}
	}
	s.carts.ClearAfterCheckout(ctx, order.UserID)
}

func (s *CheckoutService) newOrder(user *domain.User, view *CartView, address *domain.Address) *domain.Order {
	order := &domain.Order{
		ID:              uuid.NewString(),
		UserID:          user.ID,
		Email:           user.Email,
		Items:           domain.ItemsFromPricing(&view.Pricing),
		Pricing:         view.Pricing,
		ShippingAddress: *address,
		Status:          domain.OrderStatusPending,
	}
	if view.Membership != nil && len(view.Pricing.FreeUnitsByCategory()) > 0 {
		order.MembershipID = view.Membership.ID
	}
	if p := view.Pricing.AppliedPromotion; p != nil {
		order.PromotionID = p.ID
	}
	return order
}

func (s *CheckoutService) ensureCustomer(ctx context.Context, user *domain.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}
	id, err := s.gateway.CreateCustomer(ctx, user.ID, user.Email, user.FullName())
	if err != nil {
		return "", err
	}
	if err := s.users.SetStripeCustomerID(ctx, user.ID, id); err != nil {
		return "", err
	}
	user.StripeCustomerID = id
	return id, nil
}

func (s *CheckoutService) release(membershipID string, consumed []domain.ConsumedAllocation) {
	if len(consumed) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.memberships.ReleaseAllocations(ctx, membershipID, consumed); err != nil {
		s.logger.Error("failed to release membership allocations",
			zap.String("membership_id", membershipID), zap.Error(err))
	}
}

func newOrderEvent(order *domain.Order, eventType string, status domain.OrderStatus, at time.Time) *domain.OrderEvent {
	return &domain.OrderEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		OrderID:   order.ID,
		UserID:    order.UserID,
		Email:     order.Email,
		Status:    status,
		CreatedAt: at.UTC(),
	}
}

func covers(consumed []domain.ConsumedAllocation, requested map[string]int) bool {
	got := make(map[string]int, len(consumed))
	for _, c := range consumed {
		got[c.CategoryID] += c.Quantity
	}
	for id, n := range requested {
		if got[id] < n {
			return false
		}
	}
	return true
}
