package rules

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sleetbot/warden/automod/cachestore"
	"github.com/sleetbot/warden/automod/engine"

	"github.com/stretchr/testify/assert"
)

type mockResolver struct {
	guilds map[string]string
	calls  int
}

func (m *mockResolver) ResolveInviteGuild(ctx context.Context, code string) (string, error) {
	m.calls++
	g, ok := m.guilds[code]
	if !ok {
		return "", errors.New("unknown invite")
	}
	return g, nil
}

func TestInviteAdRule(t *testing.T) {
	assert := assert.New(t)
	f, _ := testFactory()
	rule := mustBuild(t, f, engine.KindInviteAd, "ban", 2, 60, "https://discord.gg/partner")

	assert.Nil(rule.Evaluate(ctxb, userMsg("u1", "no links")))
	assert.Nil(rule.Evaluate(ctxb, userMsg("u1", "our partner: discord.gg/Partner")))
	assert.Nil(rule.Evaluate(ctxb, userMsg("u1", "join discord.gg/elsewhere")))
	assert.NotNil(rule.Evaluate(ctxb, userMsg("u1", "join discord.gg/elsewhere")))

	assert.NotNil(rule.Evaluate(ctxb, userMsg("u2", "discord.gg/a1 and discord.com/invite/b2")))
}

func TestInviteAdRuleResolver(t *testing.T) {
	assert := assert.New(t)
	f, _ := testFactory()
	resolver := &mockResolver{guilds: map[string]string{"home": "g1", "away": "g2"}}
	f.Invites = &CachedInviteResolver{Inner: resolver, Cache: cachestore.NewMemCacheStore(10, time.Minute, nil)}
	rule := mustBuild(t, f, engine.KindInviteAd, "ban", 1, 60)

	// invites to the current guild, and unresolvable invites, don't count
	assert.Nil(rule.Evaluate(ctxb, userMsg("u1", "discord.gg/home")))
	assert.Nil(rule.Evaluate(ctxb, userMsg("u1", "discord.gg/expired")))
	assert.NotNil(rule.Evaluate(ctxb, userMsg("u1", "discord.gg/away")))

	// lookups are cached
	assert.Nil(rule.Evaluate(ctxb, userMsg("u1", "discord.gg/home")))
	assert.Equal(3, resolver.calls)
}

type deadResolver struct{ calls int }

func (d *deadResolver) ResolveInviteGuild(ctx context.Context, code string) (string, error) {
	d.calls++
	return "", fmt.Errorf("%w: unknown invite", engine.ErrNotFound)
}

func TestCachedInviteResolverDeadInvites(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	inner := &deadResolver{}
	cache := cachestore.NewMemCacheStore(10, time.Minute, nil)
	c := &CachedInviteResolver{Inner: inner, Cache: cache}

	_, err := c.ResolveInviteGuild(ctx, "gone")
	assert.ErrorIs(err, engine.ErrNotFound)
	_, err = c.ResolveInviteGuild(ctx, "gone")
	assert.ErrorIs(err, engine.ErrNotFound)
	assert.Equal(1, inner.calls)
	assert.Equal(0, cache.Len(cachestore.InviteCache))
	assert.Equal(1, cache.Len(cachestore.DeadInviteCache))
}
