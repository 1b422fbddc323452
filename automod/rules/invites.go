package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/sleetbot/warden/automod/cachestore"
	"github.com/sleetbot/warden/automod/engine"
)

// marks a dead invite in the cache
const deadInvite = "-"

// InviteResolver which caches lookups in a CacheStore. Invites the platform reports as unknown are remembered too, so a spammer reposting a dead link costs one lookup.
type CachedInviteResolver struct {
	Inner InviteResolver
	Cache cachestore.CacheStore
}

var _ InviteResolver = (*CachedInviteResolver)(nil)

func (c *CachedInviteResolver) ResolveInviteGuild(ctx context.Context, code string) (string, error) {
	existing, err := c.Cache.Get(ctx, cachestore.InviteCache, code)
	if err != nil {
		return "", fmt.Errorf("failed checking invite cache: %w", err)
	}
	if existing != "" {
		return existing, nil
	}
	if dead, _ := c.Cache.Get(ctx, cachestore.DeadInviteCache, code); dead == deadInvite {
		return "", fmt.Errorf("%w: invite %s (cached)", engine.ErrNotFound, code)
	}
	guildID, err := c.Inner.ResolveInviteGuild(ctx, code)
	if errors.Is(err, engine.ErrNotFound) {
		_ = c.Cache.Set(ctx, cachestore.DeadInviteCache, code, deadInvite)
		return "", err
	} else if err != nil {
		return "", err
	}
	if guildID != "" {
		// cache write failures are ignored
		_ = c.Cache.Set(ctx, cachestore.InviteCache, code, guildID)
	}
	return guildID, nil
}
