package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sleetbot/warden/automod/engine"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	lk  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.lk.Lock()
	defer c.lk.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.lk.Lock()
	defer c.lk.Unlock()
	c.now = c.now.Add(d)
}

func testFactory() (*Factory, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	f := NewFactory(slog.Default())
	f.Now = clock.Now
	return f, clock
}

func mustBuild(t *testing.T, f *Factory, kind engine.Kind, punishment string, limit, window int, params ...string) engine.Rule {
	rule, err := f.Build(engine.RuleDefinition{
		GuildID:             "g1",
		ID:                  1,
		Kind:                kind,
		Punishment:          engine.MustParsePunishment(punishment),
		StrikeLimit:         limit,
		StrikeWindowSeconds: window,
		Parameters:          params,
	})
	require.NoError(t, err)
	return rule
}

var ctxb = context.Background()

var msgSeq int

func userMsg(userID, content string) *engine.Message {
	msgSeq++
	return engine.NewTestMessage("g1", "c1", userID, fmt.Sprintf("m%d", msgSeq), content)
}

// live strike count for the subject, for kinds built on the shared counter
func strikesFor(rule engine.Rule, userID string) int {
	type striker interface{ Strikes(string) int }
	return rule.(striker).Strikes(engine.SubjectKey("g1", userID))
}
