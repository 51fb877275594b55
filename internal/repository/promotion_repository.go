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

type PromotionStore struct {
	collection *mongo.Collection
}

func NewPromotionStore(db *mongo.Database) *PromotionStore {
	return &PromotionStore{collection: db.Collection(collectionPromotions)}
}

func (s *PromotionStore) List(ctx context.Context) ([]domain.Promotion, error) {
	return s.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

// ListApplicable returns every automatic promotion plus the one carrying code.
// Window and usage checks are left to the evaluator so it can report why a
// code does not apply.
func (s *PromotionStore) ListApplicable(ctx context.Context, code string) ([]domain.Promotion, error) {
	or := bson.A{
		bson.M{"code": bson.M{"$exists": false}},
		bson.M{"code": ""},
	}
	if code = domain.NormalizeCode(code); code != "" {
		or = append(or, bson.M{"code": code})
	}
	return s.find(ctx, bson.M{"$or": or})
}

func (s *PromotionStore) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]domain.Promotion, error) {
	cur, err := s.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	promotions := []domain.Promotion{}
	if err := cur.All(ctx, &promotions); err != nil {
		return nil, fmt.Errorf("failed to decode promotions: %w", err)
	}
	return promotions, nil
}

func (s *PromotionStore) GetByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	var p domain.Promotion
	err := s.collection.FindOne(ctx, bson.M{"code": domain.NormalizeCode(code)}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPromotionNotFound
		}
		return nil, fmt.Errorf("failed to get promotion: %w", err)
	}
	return &p, nil
}

func (s *PromotionStore) Create(ctx context.Context, p *domain.Promotion) error {
	p.Code = domain.NormalizeCode(p.Code)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if _, err := s.collection.InsertOne(ctx, p); err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicatePromotion
		}
		return fmt.Errorf("failed to create promotion: %w", err)
	}
	return nil
}

// Upsert replaces a promotion by id while keeping its usage counter.
func (s *PromotionStore) Upsert(ctx context.Context, p *domain.Promotion) error {
	p.Code = domain.NormalizeCode(p.Code)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	update := bson.M{
		"$set": bson.M{
			"name":             p.Name,
			"code":             p.Code,
			"type":             p.Type,
			"value":            p.Value,
			"buy_quantity":     p.BuyQuantity,
			"get_quantity":     p.GetQuantity,
			"min_order_amount": p.MinOrderAmount,
			"max_discount":     p.MaxDiscount,
			"category_ids":     p.CategoryIDs,
			"starts_at":        p.StartsAt,
			"ends_at":          p.EndsAt,
			"usage_limit":      p.UsageLimit,
			"active":           p.Active,
		},
		"$setOnInsert": bson.M{"usage_count": 0, "created_at": p.CreatedAt},
	}
	if _, err := s.collection.UpdateOne(ctx, bson.M{"_id": p.ID}, update, options.Update().SetUpsert(true)); err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicatePromotion
		}
		return fmt.Errorf("failed to upsert promotion: %w", err)
	}
	return nil
}

// IncrementUsage counts one redemption. The counter never passes the limit.
func (s *PromotionStore) IncrementUsage(ctx context.Context, id string) error {
	filter := bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"usage_limit": bson.M{"$lte": 0}},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$usage_count", "$usage_limit"}}},
		},
	}
	result, err := s.collection.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"usage_count": 1}})
	if err != nil {
		return fmt.Errorf("failed to increment promotion usage: %w", err)
	}
	if result.MatchedCount == 0 {
		n, err := s.collection.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("failed to check promotion: %w", err)
		}
		if n == 0 {
			return ErrPromotionNotFound
		}
		return ErrPromotionExhausted
	}
	return nil
}

func (s *PromotionStore) CreateIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "code", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"code": bson.M{"$gt": ""}}),
	})
	if err != nil {
		return fmt.Errorf("failed to create promotion indexes: %w", err)
	}
	return nil
}
