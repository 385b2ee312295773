package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a pipeline envelope stays replayable.
const DefaultTTL = 10 * time.Minute

// IdempotencyCache stores serialized responses keyed by caller identity and
// the client-supplied Idempotency-Key header.
type IdempotencyCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyCache(client *redis.Client, ttl time.Duration) *IdempotencyCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &IdempotencyCache{client: client, ttl: ttl}
}

// Enabled reports whether a redis client backs the cache.
func (c *IdempotencyCache) Enabled() bool {
	return c != nil && c.client != nil
}

func (c *IdempotencyCache) Get(ctx context.Context, identity, key string) ([]byte, bool) {
	if !c.Enabled() || key == "" {
		return nil, false
	}
	data, err := c.client.Get(ctx, c.prefixed(identity, key)).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set keeps the first stored value; later writes for the same key are ignored.
func (c *IdempotencyCache) Set(ctx context.Context, identity, key string, value []byte) {
	if !c.Enabled() || key == "" || len(value) == 0 {
		return
	}
	c.client.SetNX(ctx, c.prefixed(identity, key), value, c.ttl)
}

func (c *IdempotencyCache) prefixed(identity, key string) string {
	sum := sha256.Sum256([]byte(identity + "\x00" + key))
	return "idem:pipeline:" + hex.EncodeToString(sum[:16])
}
