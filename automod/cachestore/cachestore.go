package cachestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache names used by the engine and rules.
const (
	// member and bot standing, keyed by "guild/user"
	StandingCache = "standing"
	// invite code => guild ID
	InviteCache = "invite"
	// invite codes that resolved to nothing
	DeadInviteCache = "invite-dead"
)

// Lifetime per cache name. Names not listed fall back to the store's default TTL.
type TTLPolicy map[string]time.Duration

// Standing is purged on member updates, so it can live a while. Invite targets almost never change; dead invites may be revived, so they are rechecked sooner.
var DefaultTTLs = TTLPolicy{
	StandingCache:   10 * time.Minute,
	InviteCache:     6 * time.Hour,
	DeadInviteCache: 5 * time.Minute,
}

func (p TTLPolicy) lookup(name string, fallback time.Duration) time.Duration {
	if ttl, ok := p[name]; ok && ttl > 0 {
		return ttl
	}
	return fallback
}

// Short-lived cache of string values, namespaced by name. A miss is reported as an empty string with no error.
type CacheStore interface {
	Get(ctx context.Context, name, key string) (string, error)
	Set(ctx context.Context, name, key string, val string) error
	Purge(ctx context.Context, name, key string) error
}

// Fetches and decodes a JSON value. The bool result is false on a cache miss.
func GetJSON[T any](ctx context.Context, c CacheStore, name, key string) (*T, bool, error) {
	raw, err := c.Get(ctx, name, key)
	if err != nil {
		return nil, false, err
	}
	if raw == "" {
		return nil, false, nil
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, false, fmt.Errorf("decoding cached %s value: %w", name, err)
	}
	return &out, true, nil
}

func SetJSON(ctx context.Context, c CacheStore, name, key string, val any) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return c.Set(ctx, name, key, string(b))
}
