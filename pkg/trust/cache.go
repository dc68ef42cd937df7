package trust

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/byronwade/thorbis-payments/pkg/types"
)

// Cache is a best-effort read-through cache for trust records. Misses and
// backend failures both read as cache misses; the store stays authoritative.
type Cache interface {
	Get(ctx context.Context, companyID string) (*types.TrustScoreRecord, bool)
	Set(ctx context.Context, rec *types.TrustScoreRecord)
	Invalidate(ctx context.Context, companyID string)
}

const trustCachePrefix = "trust_score:"

// RedisCache caches trust records in Redis with a short TTL. Every recorded
// outcome invalidates the company's entry, so staleness is bounded by the
// TTL only for companies with no payment activity.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache over the given client. ttl defaults to 30s.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, companyID string) (*types.TrustScoreRecord, bool) {
	data, err := c.client.Get(ctx, trustCachePrefix+companyID).Bytes()
	if err != nil {
		return nil, false
	}
	var rec types.TrustScoreRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, rec *types.TrustScoreRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	c.client.Set(ctx, trustCachePrefix+rec.CompanyID, data, c.ttl)
}

// Invalidate implements Cache.
func (c *RedisCache) Invalidate(ctx context.Context, companyID string) {
	c.client.Del(ctx, trustCachePrefix+companyID)
}
