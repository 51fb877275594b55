package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client), mr
}

func TestGet_Success(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	cart := &domain.Cart{
		UserID: "user_1",
		Items: []domain.CartItem{
			{ProductID: "green", Quantity: 2},
			{ProductID: "chai", Quantity: 3},
		},
		PromotionCode: "SAVE10",
	}
	data, err := json.Marshal(cart)
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey("user_1"), string(data)))

	got, err := cache.Get(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "user_1", got.UserID)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "green", got.Items[0].ProductID)
	assert.Equal(t, "SAVE10", got.PromotionCode)
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	got, err := cache.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, got)
}

func TestGet_InvalidJSON(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(cacheKey("user_1"), "{not json"))

	got, err := cache.Get(context.Background(), "user_1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, got)
}

func TestSet_DropsPricingAndSetsTTL(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	cart := &domain.Cart{
		UserID:  "user_1",
		Items:   []domain.CartItem{{ProductID: "green", Quantity: 1}},
		Pricing: &domain.CartPricing{FinalTotal: 12.5},
	}
	require.NoError(t, cache.Set(ctx, "user_1", cart))
	assert.NotNil(t, cart.Pricing, "caller's cart is not modified")

	got, err := cache.Get(ctx, "user_1")
	require.NoError(t, err)
	assert.Nil(t, got.Pricing)
	assert.Len(t, got.Items, 1)

	ttl := mr.TTL(cacheKey("user_1"))
	assert.GreaterOrEqual(t, ttl, defaultTTL)
	assert.Less(t, ttl, defaultTTL+5*time.Minute)

	mr.FastForward(defaultTTL + 5*time.Minute)
	_, err = cache.Get(ctx, "user_1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestDelete(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user_1", &domain.Cart{UserID: "user_1"}))
	require.NoError(t, cache.Delete(ctx, "user_1"))
	require.NoError(t, cache.Delete(ctx, "user_1"), "deleting a missing key is not an error")

	_, err := cache.Get(ctx, "user_1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewRedisCache(client)

	_, err := cache.Get(context.Background(), "user_1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
	assert.Error(t, cache.Set(context.Background(), "user_1", &domain.Cart{UserID: "user_1"}))
}
