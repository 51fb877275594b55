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

type OrderStore struct {
	collection *mongo.Collection
}

func NewOrderStore(db *mongo.Database) *OrderStore {
	return &OrderStore{collection: db.Collection(collectionOrders)}
}

func (s *OrderStore) Create(ctx context.Context, o *domain.Order) error {
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now

	if _, err := s.collection.InsertOne(ctx, o); err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *OrderStore) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error) {
	return s.findOne(ctx, bson.M{"payment_intent_id": paymentIntentID})
}

func (s *OrderStore) findOne(ctx context.Context, filter bson.M) (*domain.Order, error) {
	var o domain.Order
	if err := s.collection.FindOne(ctx, filter).Decode(&o); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &o, nil
}

func (s *OrderStore) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return s.find(ctx, bson.M{"user_id": userID}, opts)
}

// List returns orders for the back office, newest first. An empty status
// lists every order.
func (s *OrderStore) List(ctx context.Context, status domain.OrderStatus, limit int64) ([]domain.Order, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return s.find(ctx, filter, opts)
}

func (s *OrderStore) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]domain.Order, error) {
	cur, err := s.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	orders := []domain.Order{}
	if err := cur.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

// ApplyTransition moves an order from t.From to t.To in one write, recording
// history and queueing the outbox event. It fails with ErrStatusConflict when
// the order is no longer in t.From.
func (s *OrderStore) ApplyTransition(ctx context.Context, id string, t Transition) error {
	at := t.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	set := bson.M{
		"status":     t.To,
		"updated_at": at,
	}
	push := bson.M{
		"status_history": domain.StatusChange{From: t.From, To: t.To, Actor: t.Actor, ChangedAt: at},
	}
	if t.Event != nil {
		push["pending_events"] = t.Event
	}

	result, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": t.From},
		bson.M{"$set": set, "$push": push},
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if result.MatchedCount == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrStatusConflict
	}
	return nil
}

// CompleteConfirmation stores the allocations a processing order drew from its
// membership and queues the confirmation event.
func (s *OrderStore) CompleteConfirmation(ctx context.Context, id string, consumed []domain.ConsumedAllocation, event *domain.OrderEvent) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if len(consumed) > 0 {
		set["consumed_allocations"] = consumed
	}
	update := bson.M{"$set": set}
	if event != nil {
		update["$push"] = bson.M{"pending_events": event}
	}

	result, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": domain.OrderStatusProcessing},
		update,
	)
	if err != nil {
		return fmt.Errorf("failed to record order confirmation: %w", err)
	}
	if result.MatchedCount == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrStatusConflict
	}
	return nil
}

func (s *OrderStore) ListWithPendingEvents(ctx context.Context, limit int64) ([]domain.Order, error) {
	filter := bson.M{"pending_events.0": bson.M{"$exists": true}}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}}).SetLimit(limit)
	return s.find(ctx, filter, opts)
}

func (s *OrderStore) RemovePendingEvent(ctx context.Context, orderID, eventID string) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": orderID},
		bson.M{"$pull": bson.M{"pending_events": bson.M{"id": eventID}}},
	)
	if err != nil {
		return fmt.Errorf("failed to remove pending event: %w", err)
	}
	return nil
}

func stalePendingFilter(before time.Time) bson.M {
	return bson.M{
		"status":     domain.OrderStatusPending,
		"created_at": bson.M{"$lt": before},
	}
}

func (s *OrderStore) CountStalePending(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.collection.CountDocuments(ctx, stalePendingFilter(before))
	if err != nil {
		return 0, fmt.Errorf("failed to count pending orders: %w", err)
	}
	return n, nil
}

func (s *OrderStore) DeleteStalePending(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.collection.DeleteMany(ctx, stalePendingFilter(before))
	if err != nil {
		return 0, fmt.Errorf("failed to delete pending orders: %w", err)
	}
	return result.DeletedCount, nil
}

func (s *OrderStore) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		{
			Keys: bson.D{{Key: "payment_intent_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"payment_intent_id": bson.M{"$type": "string"}}),
		},
	}
	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}
	return nil
}
