package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionCarts           = "carts"
	collectionCategories      = "categories"
	collectionProducts        = "products"
	collectionMemberships     = "memberships"
	collectionUserMemberships = "user_memberships"
	collectionPromotions      = "promotions"
	collectionOrders          = "orders"
	collectionUsers           = "users"
)

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(5)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

type indexer interface {
	CreateIndexes(ctx context.Context) error
}

// Store bundles every document repository over one database.
type Store struct {
	Carts       *CartStore
	Catalog     *CatalogStore
	Memberships *MembershipStore
	Promotions  *PromotionStore
	Orders      *OrderStore
	Users       *UserStore
}

func NewStore(db *mongo.Database) *Store {
	return &Store{
		Carts:       NewCartStore(db),
		Catalog:     NewCatalogStore(db),
		Memberships: NewMembershipStore(db),
		Promotions:  NewPromotionStore(db),
		Orders:      NewOrderStore(db),
		Users:       NewUserStore(db),
	}
}

func (s *Store) CreateIndexes(ctx context.Context) error {
	for _, ix := range []indexer{s.Carts, s.Catalog, s.Memberships, s.Promotions, s.Orders, s.Users} {
		if err := ix.CreateIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}

func isDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
