package keys

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/entitlement-service/internal/token"
)

const cacheKeyPrefix = "pubkey:"

// cacheStore is the subset of redis.Cmdable the cache needs.
type cacheStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedLookup is a read-through Redis cache in front of another lookup.
// Redis failures degrade to the underlying lookup.
type CachedLookup struct {
	store  cacheStore
	next   token.KeyLookup
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedLookup caches results of next for ttl. A zero ttl keeps entries
// until evicted.
func NewCachedLookup(store cacheStore, next token.KeyLookup, ttl time.Duration, logger *zap.Logger) *CachedLookup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedLookup{store: store, next: next, ttl: ttl, logger: logger}
}

func (c *CachedLookup) PublicKey(ctx context.Context, keyID string) ([]byte, error) {
	cacheKey := cacheKeyPrefix + keyID

	cached, err := c.store.Get(ctx, cacheKey).Bytes()
	switch {
	case err == nil:
		return cached, nil
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("public key cache read failed", zap.String("key_id", keyID), zap.Error(err))
	}

	pemBytes, err := c.next.PublicKey(ctx, keyID)
	if err != nil {
		return nil, err
	}

	if err := c.store.Set(ctx, cacheKey, pemBytes, c.ttl).Err(); err != nil {
		c.logger.Warn("public key cache write failed", zap.String("key_id", keyID), zap.Error(err))
	}
	return pemBytes, nil
}
