package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/payment"
	"github.com/fjod/go_storefront/internal/repository"
	"github.com/fjod/go_storefront/internal/telemetry"
	"go.uber.org/zap"
)

const defaultAdminListLimit = 100

type OrderService struct {
	orders      repository.OrderRepository
	memberships *MembershipService
	gateway     payment.Gateway
	metrics     *telemetry.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewOrderService builds the order service. memberships may be nil when the
// caller never cancels or refunds orders.
func NewOrderService(orders repository.OrderRepository, memberships *MembershipService, gateway payment.Gateway,
	metrics *telemetry.Metrics, logger *zap.Logger) *OrderService {
	return &OrderService{
		orders:      orders,
		memberships: memberships,
		gateway:     gateway,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrForbidden
	}
	return order, nil
}

// ListAll is the admin listing, optionally filtered by status.
func (s *OrderService) ListAll(ctx context.Context, status domain.OrderStatus, limit int64) ([]domain.Order, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, status)
	}
	if limit <= 0 || limit > 500 {
		limit = defaultAdminListLimit
	}
	return s.orders.List(ctx, status, limit)
}

// UpdateStatus applies an admin status change. Refunding or cancelling an
// order that was paid refunds the payment first. Free units the order drew
// are handed back to the membership once it is cancelled or refunded.
func (s *OrderService) UpdateStatus(ctx context.Context, actor, orderID string, to domain.OrderStatus) (*domain.Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, to)
	}
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionTo(order.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, order.Status, to)
	}

	if needsRefund(order, to) {
		if err := s.gateway.Refund(ctx, order.PaymentIntentID); err != nil {
			return nil, err
		}
		s.logger.Info("order refunded",
			zap.String("order_id", order.ID),
			zap.String("payment_intent_id", order.PaymentIntentID))
	}

	now := s.now().UTC()
	err = s.orders.ApplyTransition(ctx, order.ID, repository.Transition{
		From:  order.Status,
		To:    to,
		Actor: actor,
		At:    now,
		Event: newOrderEvent(order, domain.EventOrderStatusChanged, to, now),
	})
	if err != nil {
		return nil, err
	}
	if to.IsTerminal() {
		s.releaseAllocations(ctx, order)
	}

	s.logger.Info("order status changed",
		zap.String("order_id", order.ID),
		zap.String("from", order.Status.String()),
		zap.String("to", to.String()),
		zap.String("actor", actor))
	return s.orders.Get(ctx, order.ID)
}

func (s *OrderService) releaseAllocations(ctx context.Context, order *domain.Order) {
	if order.MembershipID == "" || len(order.ConsumedAllocations) == 0 {
		return
	}
	if s.memberships == nil {
		s.logger.Error("no membership service to release allocations", zap.String("order_id", order.ID))
		return
	}
	if err := s.memberships.ReleaseAllocations(ctx, order.MembershipID, order.ConsumedAllocations); err != nil {
		s.logger.Error("failed to release membership allocations",
			zap.String("order_id", order.ID),
			zap.String("membership_id", order.MembershipID),
			zap.Any("consumed_allocations", order.ConsumedAllocations),
			zap.Error(err))
		return
	}
	s.logger.Info("membership allocations released",
		zap.String("order_id", order.ID),
		zap.String("membership_id", order.MembershipID))
}

func needsRefund(order *domain.Order, to domain.OrderStatus) bool {
	if order.PaymentIntentID == "" || order.Status == domain.OrderStatusPending {
		return false
	}
	return to == domain.OrderStatusRefunded || to == domain.OrderStatusCancelled
}

// CleanupPendingOrders removes orders left pending for longer than olderThan.
// With dryRun set it only counts them.
func (s *OrderService) CleanupPendingOrders(ctx context.Context, olderThan time.Duration, dryRun bool) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("%w: age must be positive", ErrInvalidRequest)
	}
	before := s.now().UTC().Add(-olderThan)

	if dryRun {
		return s.orders.CountStalePending(ctx, before)
	}
	n, err := s.orders.DeleteStalePending(ctx, before)
	if err != nil {
		return 0, err
	}
	s.metrics.PendingOrdersCleaned(n)
	if n > 0 {
		s.logger.Info("pending orders cleaned", zap.Int64("deleted", n), zap.Time("before", before))
	}
	return n, nil
}
