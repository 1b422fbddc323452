package cachestore

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// In-process cache. Each name gets its own LRU, so a burst of one kind of entry can't evict the others.
type MemCacheStore struct {
	lk       sync.Mutex
	capacity int
	ttl      time.Duration
	policy   TTLPolicy
	names    map[string]*expirable.LRU[string, string]
}

var _ CacheStore = (*MemCacheStore)(nil)

// capacity applies per cache name. A nil policy gives every name the default ttl.
func NewMemCacheStore(capacity int, ttl time.Duration, policy TTLPolicy) *MemCacheStore {
	return &MemCacheStore{
		capacity: capacity,
		ttl:      ttl,
		policy:   policy,
		names:    make(map[string]*expirable.LRU[string, string]),
	}
}

func (s *MemCacheStore) lru(name string) *expirable.LRU[string, string] {
	s.lk.Lock()
	defer s.lk.Unlock()
	c, ok := s.names[name]
	if !ok {
		c = expirable.NewLRU[string, string](s.capacity, nil, s.policy.lookup(name, s.ttl))
		s.names[name] = c
	}
	return c
}

func (s *MemCacheStore) Get(ctx context.Context, name, key string) (string, error) {
	v, ok := s.lru(name).Get(key)
	if !ok {
		return "", nil
	}
	return v, nil
}

func (s *MemCacheStore) Set(ctx context.Context, name, key string, val string) error {
	s.lru(name).Add(key, val)
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, name, key string) error {
	s.lru(name).Remove(key)
	return nil
}

// Number of live entries under the name.
func (s *MemCacheStore) Len(name string) int {
	return s.lru(name).Len()
}
