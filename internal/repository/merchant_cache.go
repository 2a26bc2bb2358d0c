// internal/repository/merchant_cache.go
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nomadstar/clpt/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const merchantCacheTTL = 5 * time.Minute

// cachedMerchantDirectory is a read-through Redis cache in front of the
// Postgres merchant store. Merchant records change rarely and are read
// on every authenticated request, so a short TTL is enough; a stale
// window never affects reconciliation because intents snapshot the
// receiving address at creation.
type cachedMerchantDirectory struct {
	inner  MerchantDirectory
	rdb    *redis.Client
	logger *zap.Logger
}

func NewCachedMerchantDirectory(inner MerchantDirectory, rdb *redis.Client, logger *zap.Logger) MerchantDirectory {
	return &cachedMerchantDirectory{inner: inner, rdb: rdb, logger: logger}
}

func (c *cachedMerchantDirectory) Create(ctx context.Context, merchant *domain.Merchant) error {
	return c.inner.Create(ctx, merchant)
}

func (c *cachedMerchantDirectory) GetByID(ctx context.Context, id string) (*domain.Merchant, error) {
	return c.lookup(ctx, "merchant:id:"+id, func(ctx context.Context) (*domain.Merchant, error) {
		return c.inner.GetByID(ctx, id)
	})
}

func (c *cachedMerchantDirectory) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Merchant, error) {
	return c.lookup(ctx, "merchant:key:"+apiKey, func(ctx context.Context) (*domain.Merchant, error) {
		return c.inner.GetByAPIKey(ctx, apiKey)
	})
}

func (c *cachedMerchantDirectory) lookup(ctx context.Context, key string, fetch func(context.Context) (*domain.Merchant, error)) (*domain.Merchant, error) {
	cached, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		var merchant domain.Merchant
		if err := json.Unmarshal([]byte(cached), &merchant); err == nil {
			return &merchant, nil
		}
		// Unreadable entry; fall through and rewrite it.
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("merchant cache read failed", zap.String("key", key), zap.Error(err))
	}

	merchant, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(merchant); err == nil {
		if err := c.rdb.Set(ctx, key, payload, merchantCacheTTL).Err(); err != nil {
			c.logger.Warn("merchant cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return merchant, nil
}
