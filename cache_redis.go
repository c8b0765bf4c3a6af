package contacts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// TextCodeCacheMiss marks the absent-key failure so callers can separate a
// miss from a store outage.
const TextCodeCacheMiss = "CACHE_MISS"

// ErrCacheMiss is returned by CacheStore.Get for absent or expired keys.
var ErrCacheMiss = goerrors.New("cache entry not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeCacheMiss)

// RedisCacheStore implements CacheStore on a go-redis client. Expiry is
// delegated to redis key TTLs.
type RedisCacheStore struct {
	client *redis.Client
}

var _ CacheStore = (*RedisCacheStore)(nil)

func NewRedisCacheStore(client *redis.Client) *RedisCacheStore {
	return &RedisCacheStore{client: client}
}

func (r *RedisCacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if goerrors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "cache read failed")
	}
	return raw, nil
}

func (r *RedisCacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "cache write failed")
	}
	return nil
}

func (r *RedisCacheStore) Del(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "cache delete failed")
	}
	return nil
}
