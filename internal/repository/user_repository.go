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

type UserStore struct {
	collection *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{collection: db.Collection(collectionUsers)}
}

func (s *UserStore) Get(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// Upsert writes the identity fields. The stored Stripe customer id survives.
func (s *UserStore) Upsert(ctx context.Context, u *domain.User) error {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"email":      u.Email,
			"first_name": u.FirstName,
			"last_name":  u.LastName,
			"image_url":  u.ImageURL,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}
	if _, err := s.collection.UpdateOne(ctx, bson.M{"_id": u.ID}, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *UserStore) SetStripeCustomerID(ctx context.Context, id, customerID string) error {
	result, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"stripe_customer_id": customerID, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to set stripe customer: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *UserStore) CreateIndexes(ctx context.Context) error {
	if _, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}
