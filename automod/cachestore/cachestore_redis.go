package cachestore

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// keys are shared across processes, so they carry a fixed prefix
const redisKeyPrefix = "warden/cache/"

type RedisCacheStore struct {
	Data *cache.Cache
	// fallback for names the policy doesn't list
	TTL    time.Duration
	Policy TTLPolicy
}

var _ CacheStore = (*RedisCacheStore)(nil)

func NewRedisCacheStore(redisURL string, ttl time.Duration, policy TTLPolicy) (*RedisCacheStore, error) {
	ctx := context.Background()
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	return NewRedisCacheStoreFromClient(rdb, ttl, policy), nil
}

// Wraps an existing client. The local tier is kept short so that purges from other processes are seen quickly.
func NewRedisCacheStoreFromClient(rdb redis.UniversalClient, ttl time.Duration, policy TTLPolicy) *RedisCacheStore {
	local := min(ttl, 5*time.Second)
	for _, t := range policy {
		if t > 0 {
			local = min(local, t)
		}
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(10_000, local),
	})
	return &RedisCacheStore{
		Data:   data,
		TTL:    ttl,
		Policy: policy,
	}
}

func redisCacheKey(name, key string) string {
	return redisKeyPrefix + name + "/" + key
}

func (s *RedisCacheStore) Get(ctx context.Context, name, key string) (string, error) {
	var val string
	err := s.Data.Get(ctx, redisCacheKey(name, key), &val)
	if errors.Is(err, cache.ErrCacheMiss) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, name, key string, val string) error {
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisCacheKey(name, key),
		Value: val,
		TTL:   s.Policy.lookup(name, s.TTL),
	})
}

func (s *RedisCacheStore) Purge(ctx context.Context, name, key string) error {
	err := s.Data.Delete(ctx, redisCacheKey(name, key))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}
