package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MembershipStore struct {
	plans *mongo.Collection
	users *mongo.Collection
}

func NewMembershipStore(db *mongo.Database) *MembershipStore {
	return &MembershipStore{
		plans: db.Collection(collectionMemberships),
		users: db.Collection(collectionUserMemberships),
	}
}

func (s *MembershipStore) ListPlans(ctx context.Context, activeOnly bool) ([]domain.Membership, error) {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}
	cur, err := s.plans.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "price", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list membership plans: %w", err)
	}
	plans := []domain.Membership{}
	if err := cur.All(ctx, &plans); err != nil {
		return nil, fmt.Errorf("failed to decode membership plans: %w", err)
	}
	return plans, nil
}

func (s *MembershipStore) GetPlan(ctx context.Context, id string) (*domain.Membership, error) {
	return s.findPlan(ctx, bson.M{"_id": id})
}

func (s *MembershipStore) GetPlanByPriceID(ctx context.Context, priceID string) (*domain.Membership, error) {
	return s.findPlan(ctx, bson.M{"stripe_price_id": priceID})
}

func (s *MembershipStore) findPlan(ctx context.Context, filter bson.M) (*domain.Membership, error) {
	var plan domain.Membership
	if err := s.plans.FindOne(ctx, filter).Decode(&plan); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to get membership plan: %w", err)
	}
	return &plan, nil
}

func (s *MembershipStore) UpsertPlan(ctx context.Context, m *domain.Membership) error {
	if _, err := s.plans.ReplaceOne(ctx, bson.M{"_id": m.ID}, m, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to upsert membership plan: %w", err)
	}
	return nil
}

func (s *MembershipStore) GetMembership(ctx context.Context, id string) (*domain.UserMembership, error) {
	return s.findUserMembership(ctx, bson.M{"_id": id})
}

// GetUserMembership returns the user's most recent membership.
func (s *MembershipStore) GetUserMembership(ctx context.Context, userID string) (*domain.UserMembership, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return s.findUserMembership(ctx, bson.M{"user_id": userID}, opts)
}

func (s *MembershipStore) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.UserMembership, error) {
	return s.findUserMembership(ctx, bson.M{"stripe_subscription_id": subscriptionID})
}

func (s *MembershipStore) findUserMembership(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*domain.UserMembership, error) {
	var m domain.UserMembership
	if err := s.users.FindOne(ctx, filter, opts...).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get user membership: %w", err)
	}
	return &m, nil
}

func (s *MembershipStore) CreateUserMembership(ctx context.Context, m *domain.UserMembership) error {
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	if _, err := s.users.InsertOne(ctx, m); err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateMembership
		}
		return fmt.Errorf("failed to create user membership: %w", err)
	}
	return nil
}

func (s *MembershipStore) UpdateSubscriptionState(ctx context.Context, subscriptionID string, status domain.MembershipStatus, periodStart, periodEnd time.Time) error {
	update := bson.M{"$set": bson.M{
		"status":               status,
		"current_period_start": periodStart,
		"current_period_end":   periodEnd,
		"updated_at":           time.Now().UTC(),
	}}
	result, err := s.users.UpdateOne(ctx, bson.M{"stripe_subscription_id": subscriptionID}, update)
	if err != nil {
		return fmt.Errorf("failed to update subscription state: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// ResetUsage starts a new billing period with fresh allocations. A period that
// was already reset is left untouched.
func (s *MembershipStore) ResetUsage(ctx context.Context, subscriptionID string, periodStart, periodEnd time.Time, usage []domain.ProductUsage) error {
	filter := bson.M{
		"stripe_subscription_id": subscriptionID,
		"current_period_start":   bson.M{"$lt": periodStart},
	}
	update := bson.M{"$set": bson.M{
		"product_usage":        usage,
		"current_period_start": periodStart,
		"current_period_end":   periodEnd,
		"updated_at":           time.Now().UTC(),
	}}
	result, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to reset membership usage: %w", err)
	}
	if result.MatchedCount == 0 {
		if _, err := s.GetBySubscriptionID(ctx, subscriptionID); err != nil {
			return err
		}
	}
	return nil
}

// SetUsage moves one category's used counter from expectedUsed to newUsed.
// The write only matches while the counter still holds expectedUsed and
// newUsed fits the allocation, otherwise ErrUsageConflict is returned.
func (s *MembershipStore) SetUsage(ctx context.Context, membershipID, categoryID string, expectedUsed, newUsed int) error {
	filter := bson.M{
		"_id": membershipID,
		"product_usage": bson.M{"$elemMatch": bson.M{
			"category_id": categoryID,
			"used":        expectedUsed,
			"allocated":   bson.M{"$gte": newUsed},
		}},
	}
	update := bson.M{"$set": bson.M{
		"product_usage.$.used": newUsed,
		"updated_at":           time.Now().UTC(),
	}}

	result, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update membership usage: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrUsageConflict
	}
	return nil
}

func (s *MembershipStore) CreateIndexes(ctx context.Context) error {
	if _, err := s.plans.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "stripe_price_id", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create membership plan indexes: %w", err)
	}
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{
			Keys:    bson.D{{Key: "stripe_subscription_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := s.users.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create user membership indexes: %w", err)
	}
	return nil
}
