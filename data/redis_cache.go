package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// DefaultRedisKeyPrefix namespaces cached datasets in Redis.
const DefaultRedisKeyPrefix = "decisionkit:data"

// RedisCache stores datasets as JSON strings under "<prefix>:<domain>".
//
// Example:
//
//	cache, err := NewRedisCache("redis://localhost:6379/0", DefaultRedisKeyPrefix, 0)
//	err = cache.Save(ctx, decisionkit.DomainSales, ds)
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisCache connects to redisURL. A zero ttl keeps entries forever.
func NewRedisCache(redisURL, keyPrefix string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	return NewRedisCacheFromClient(redis.NewClient(opts), keyPrefix, ttl), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}
	return &RedisCache{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (r *RedisCache) key(domain decisionkit.Domain) string {
	return fmt.Sprintf("%s:%s", r.keyPrefix, domain)
}

// Load implements Cache.
func (r *RedisCache) Load(ctx context.Context, domain decisionkit.Domain) (Dataset, error) {
	raw, err := r.client.Get(ctx, r.key(domain)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to load %s data from redis: %w", domain, err)
	}
	var ds Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("failed to decode cached %s data: %w", domain, err)
	}
	return ds, nil
}

// Save implements Cache.
func (r *RedisCache) Save(ctx context.Context, domain decisionkit.Domain, ds Dataset) error {
	raw, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("failed to encode %s data: %w", domain, err)
	}
	if err := r.client.Set(ctx, r.key(domain), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save %s data to redis: %w", domain, err)
	}
	return nil
}

// Close implements Cache.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
