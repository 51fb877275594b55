package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/payment"
	"github.com/fjod/go_storefront/internal/pricing"
	"github.com/fjod/go_storefront/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxUsageRetries bounds the optimistic retry loop of a single category write.
const maxUsageRetries = 5

type MembershipView struct {
	Membership  *domain.UserMembership `json:"membership"`
	Plan        *domain.Membership     `json:"plan,omitempty"`
	Active      bool                   `json:"active"`
	Allocations []pricing.Allocation   `json:"allocations"`
}

type MembershipService struct {
	repo    repository.MembershipRepository
	users   repository.UserRepository
	gateway payment.Gateway
	logger  *zap.Logger
	now     func() time.Time
}

func NewMembershipService(repo repository.MembershipRepository, users repository.UserRepository,
	gateway payment.Gateway, logger *zap.Logger) *MembershipService {
	return &MembershipService{
		repo:    repo,
		users:   users,
		gateway: gateway,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *MembershipService) ListPlans(ctx context.Context) ([]domain.Membership, error) {
	return s.repo.ListPlans(ctx, true)
}

func (s *MembershipService) GetUserMembership(ctx context.Context, userID string) (*MembershipView, error) {
	m, err := s.repo.GetUserMembership(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	view := &MembershipView{
		Membership:  m,
		Active:      m.IsActive(now),
		Allocations: pricing.Report(m, now),
	}
	plan, err := s.repo.GetPlan(ctx, m.MembershipID)
	switch {
	case err == nil:
		view.Plan = plan
	case !errors.Is(err, repository.ErrPlanNotFound):
		return nil, err
	}
	return view, nil
}

// ActivateSubscription records a membership for a subscription the client has
// just completed with the billing provider. The subscription is verified with
// the provider; activating the same subscription twice returns the existing
// membership.
func (s *MembershipService) ActivateSubscription(ctx context.Context, userID, planID, subscriptionID string) (*domain.UserMembership, error) {
	if planID == "" || subscriptionID == "" {
		return nil, ErrInvalidRequest
	}

	existing, err := s.repo.GetBySubscriptionID(ctx, subscriptionID)
	switch {
	case err == nil:
		if existing.UserID != userID {
			return nil, ErrForbidden
		}
		return existing, nil
	case !errors.Is(err, repository.ErrMembershipNotFound):
		return nil, err
	}

	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	sub, err := s.gateway.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	status := payment.MembershipStatus(sub.Status)
	if status != domain.MembershipStatusActive && status != domain.MembershipStatusTrial {
		return nil, fmt.Errorf("%w: %s", ErrSubscriptionInactive, sub.Status)
	}
	if !slices.Contains(sub.PriceIDs, plan.StripePriceID) {
		return nil, fmt.Errorf("%w: plan price not on subscription", ErrSubscriptionMismatch)
	}
	switch {
	case user.StripeCustomerID == sub.CustomerID:
	case user.StripeCustomerID == "" && sub.Metadata["user_id"] == userID:
		if err := s.users.SetStripeCustomerID(ctx, userID, sub.CustomerID); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: customer", ErrSubscriptionMismatch)
	}

	m := newUserMembership(userID, plan, sub)
	if err := s.repo.CreateUserMembership(ctx, m); err != nil {
		if errors.Is(err, repository.ErrDuplicateMembership) {
			return s.repo.GetBySubscriptionID(ctx, subscriptionID)
		}
		return nil, err
	}

	s.logger.Info("membership activated",
		zap.String("user_id", userID),
		zap.String("plan_id", plan.ID),
		zap.String("subscription_id", subscriptionID),
		zap.String("status", m.Status.String()))
	return m, nil
}

func newUserMembership(userID string, plan *domain.Membership, sub *payment.Subscription) *domain.UserMembership {
	return &domain.UserMembership{
		ID:                   uuid.NewString(),
		UserID:               userID,
		MembershipID:         plan.ID,
		Status:               payment.MembershipStatus(sub.Status),
		StripeSubscriptionID: sub.ID,
		StripeCustomerID:     sub.CustomerID,
		CurrentPeriodStart:   sub.PeriodStart,
		CurrentPeriodEnd:     sub.PeriodEnd,
		ProductUsage:         domain.UsageFromPlan(plan),
	}
}

// SyncSubscription applies a subscription lifecycle webhook. Subscriptions
// created outside the app are adopted when they carry a user_id and a known
// plan price.
func (s *MembershipService) SyncSubscription(ctx context.Context, sub *payment.Subscription) error {
	status := payment.MembershipStatus(sub.Status)
	err := s.repo.UpdateSubscriptionState(ctx, sub.ID, status, sub.PeriodStart, sub.PeriodEnd)
	if err == nil {
		s.logger.Info("subscription synced",
			zap.String("subscription_id", sub.ID),
			zap.String("status", status.String()))
		return nil
	}
	if !errors.Is(err, repository.ErrMembershipNotFound) {
		return err
	}

	userID := sub.Metadata["user_id"]
	if userID == "" || (status != domain.MembershipStatusActive && status != domain.MembershipStatusTrial) {
		s.logger.Info("ignoring subscription without membership", zap.String("subscription_id", sub.ID))
		return nil
	}
	plan, err := s.planForSubscription(ctx, sub)
	if err != nil {
		return err
	}
	err = s.repo.CreateUserMembership(ctx, newUserMembership(userID, plan, sub))
	if err != nil && !errors.Is(err, repository.ErrDuplicateMembership) {
		return err
	}
	return nil
}

func (s *MembershipService) planForSubscription(ctx context.Context, sub *payment.Subscription) (*domain.Membership, error) {
	for _, priceID := range sub.PriceIDs {
		plan, err := s.repo.GetPlanByPriceID(ctx, priceID)
		if err == nil {
			return plan, nil
		}
		if !errors.Is(err, repository.ErrPlanNotFound) {
			return nil, err
		}
	}
	return nil, repository.ErrPlanNotFound
}

// HandleInvoicePaid starts a new allocation period when the subscription's
// billing period has moved on. Replays of the same invoice are no-ops.
func (s *MembershipService) HandleInvoicePaid(ctx context.Context, subscriptionID string) error {
	if subscriptionID == "" {
		return nil
	}
	m, err := s.repo.GetBySubscriptionID(ctx, subscriptionID)
	if errors.Is(err, repository.ErrMembershipNotFound) {
		s.logger.Info("invoice for unknown subscription", zap.String("subscription_id", subscriptionID))
		return nil
	}
	if err != nil {
		return err
	}

	sub, err := s.gateway.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	plan, err := s.repo.GetPlan(ctx, m.MembershipID)
	if err != nil {
		return err
	}

	if sub.PeriodStart.After(m.CurrentPeriodStart) {
		if err := s.repo.ResetUsage(ctx, subscriptionID, sub.PeriodStart, sub.PeriodEnd, domain.UsageFromPlan(plan)); err != nil {
			return err
		}
		s.logger.Info("membership period reset",
			zap.String("subscription_id", subscriptionID),
			zap.Time("period_start", sub.PeriodStart))
	}
	return s.repo.UpdateSubscriptionState(ctx, subscriptionID, payment.MembershipStatus(sub.Status), sub.PeriodStart, sub.PeriodEnd)
}

// ConsumeAllocations draws units from the membership, one conditional write
// per category. A write that loses a race re-reads the membership and tries
// again. The result holds what was actually drawn, which is less than
// requested when the allocation ran out in the meantime.
func (s *MembershipService) ConsumeAllocations(ctx context.Context, membershipID string, requested map[string]int) ([]domain.ConsumedAllocation, error) {
	return s.adjust(ctx, membershipID, requested, func(u domain.ProductUsage, n int) (int, int) {
		return pricing.ConsumeUsage(u, n)
	})
}

// ReleaseAllocations returns previously consumed units.
func (s *MembershipService) ReleaseAllocations(ctx context.Context, membershipID string, consumed []domain.ConsumedAllocation) error {
	requested := make(map[string]int, len(consumed))
	for _, c := range consumed {
		requested[c.CategoryID] += c.Quantity
	}
	_, err := s.adjust(ctx, membershipID, requested, func(u domain.ProductUsage, n int) (int, int) {
		released := min(n, u.Used)
		return u.Used - released, released
	})
	return err
}

func (s *MembershipService) adjust(ctx context.Context, membershipID string, requested map[string]int,
	next func(domain.ProductUsage, int) (int, int)) ([]domain.ConsumedAllocation, error) {
	categories := make([]string, 0, len(requested))
	for id, n := range requested {
		if n > 0 {
			categories = append(categories, id)
		}
	}
	if len(categories) == 0 {
		return nil, nil
	}
	sort.Strings(categories)

	m, err := s.repo.GetMembership(ctx, membershipID)
	if err != nil {
		return nil, err
	}

	var out []domain.ConsumedAllocation
	for _, categoryID := range categories {
		applied := 0
		for attempt := 0; ; attempt++ {
			u, ok := m.Usage(categoryID)
			if !ok {
				break
			}
			newUsed, n := next(u, requested[categoryID])
			if n == 0 {
				break
			}
			err := s.repo.SetUsage(ctx, m.ID, categoryID, u.Used, newUsed)
			if err == nil {
				applied = n
				break
			}
			if !errors.Is(err, repository.ErrUsageConflict) || attempt+1 >= maxUsageRetries {
				return out, err
			}
			if m, err = s.repo.GetMembership(ctx, membershipID); err != nil {
				return out, err
			}
		}

		if applied < requested[categoryID] {
			s.logger.Warn("membership allocation short",
				zap.String("membership_id", membershipID),
				zap.String("category_id", categoryID),
				zap.Int("requested", requested[categoryID]),
				zap.Int("applied", applied))
		}
		if applied > 0 {
			out = append(out, domain.ConsumedAllocation{CategoryID: categoryID, Quantity: applied})
		}
	}
	return out, nil
}
