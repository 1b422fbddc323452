package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addSimpleRule(t *testing.T, fix *EngineFixture, guildID, punishment string, phrases ...string) *RuleDefinition {
	def, err := fix.Engine.Registry.Add(context.Background(), guildID, KindBlacklist, MustParsePunishment(punishment), 1, 60, phrases)
	require.NoError(t, err)
	return def
}

func TestEngineBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fix := EngineTestFixture(nil)
	addSimpleRule(t, fix, "g1", "delete", "spam")

	res, err := fix.Engine.ProcessMessage(ctx, NewTestMessage("g1", "c1", "u1", "m1", "hello there"))
	assert.NoError(err)
	assert.Empty(res.Gate)
	assert.Empty(res.Verdicts)

	res, err = fix.Engine.ProcessMessage(ctx, NewTestMessage("g1", "c1", "u1", "m2", "buy spam now"))
	assert.NoError(err)
	require.Len(t, res.Verdicts, 1)
	assert.Equal(PunishDelete, res.Verdicts[0].Punishment.Kind)
	assert.Equal(1, res.Verdicts[0].RuleID)
	require.Len(t, res.Results, 1)
	assert.True(res.Results[0].Performed)
	assert.Contains(fix.Platform.CallLog(), "DeleteMessage c1 m2")
	assert.Len(fix.ModLog.List(), 1)
}

func TestEngineGating(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	calls := 0
	counting := func(def RuleDefinition) (Rule, error) {
		return &FuncRule{Def: def, Fn: func(ctx context.Context, msg *Message) *Verdict {
			calls++
			return nil
		}}, nil
	}
	fix := EngineTestFixture(counting)
	_, err := fix.Engine.Registry.Add(ctx, "g1", KindRegex, Punishment{Kind: PunishLogOnly}, 1, 0, nil)
	require.NoError(t, err)

	dm := NewTestMessage("", "c1", "u1", "m1", "hi")
	res, err := fix.Engine.ProcessMessage(ctx, dm)
	assert.NoError(err)
	assert.Equal(GateNotGuild, res.Gate)

	bot := NewTestMessage("g1", "c1", "u1", "m2", "hi")
	bot.Author.Bot = true
	res, _ = fix.Engine.ProcessMessage(ctx, bot)
	assert.Equal(GateBot, res.Gate)

	hook := NewTestMessage("g1", "c1", "u1", "m3", "hi")
	hook.WebhookID = "w1"
	res, _ = fix.Engine.ProcessMessage(ctx, hook)
	assert.Equal(GateBot, res.Gate)

	edited := NewTestMessage("g1", "c1", "u1", "m4", "hi")
	now := time.Now()
	edited.EditedAt = &now
	res, _ = fix.Engine.ProcessMessage(ctx, edited)
	assert.Equal(GateEdited, res.Gate)

	fix.Platform.Members[SubjectKey("g1", "mod")] = Standing{Permissions: PermissionManageMessages}
	res, _ = fix.Engine.ProcessMessage(ctx, NewTestMessage("g1", "c1", "mod", "m5", "hi"))
	assert.Equal(GateBypass, res.Gate)

	fix.Platform.Members[SubjectKey("g1", "admin")] = Standing{Permissions: PermissionAdministrator}
	res, _ = fix.Engine.ProcessMessage(ctx, NewTestMessage("g1", "c1", "admin", "m6", "hi"))
	assert.Equal(GateBypass, res.Gate)

	fix.Platform.Members[SubjectKey("g1", "peer")] = Standing{TopRolePosition: 100}
	res, _ = fix.Engine.ProcessMessage(ctx, NewTestMessage("g1", "c1", "peer", "m7", "hi"))
	assert.Equal(GateRank, res.Gate)

	assert.Equal(0, calls)

	res, _ = fix.Engine.ProcessMessage(ctx, NewTestMessage("g1", "c1", "u1", "m8", "hi"))
	assert.Empty(res.Gate)
	assert.Equal(1, calls)
}

func TestEngineStandingFailure(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fix := EngineTestFixture(nil)
	addSimpleRule(t, fix, "g1", "delete", "spam")
	fix.Platform.SetError("MemberStanding", ErrTransient)

	res, err := fix.Engine.ProcessMessage(ctx, NewTestMessage("g1", "c1", "u1", "m1", "spam"))
	assert.True(errors.Is(err, ErrTransient))
	assert.Equal(GateNoStanding, res.Gate)
	assert.Empty(res.Verdicts)

	// standing is cached after a successful lookup
	fix.Platform.SetError("MemberStanding", nil)
	_, err = fix.Engine.ProcessMessage(ctx, NewTestMessage("g1", "c1", "u1", "m2", "ok"))
	assert.NoError(err)
	fix.Platform.SetError("MemberStanding", ErrTransient)
	_, err = fix.Engine.ProcessMessage(ctx, NewTestMessage("g1", "c1", "u1", "m3", "ok"))
	assert.NoError(err)

	assert.NoError(fix.Engine.PurgeStanding(ctx, "g1", "u1"))
	_, err = fix.Engine.ProcessMessage(ctx, NewTestMessage("g1", "c1", "u1", "m4", "ok"))
	assert.Error(err)
}

func TestEngineOrderingAndIsolation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	always := func(def RuleDefinition) (Rule, error) {
		return &FuncRule{Def: def, Fn: func(ctx context.Context, msg *Message) *Verdict {
			return &Verdict{Reason: "always"}
		}}, nil
	}
	fix := EngineTestFixture(always)
	_, err := fix.Engine.Registry.Add(ctx, "g1", KindRegex, Punishment{Kind: PunishKick}, 1, 0, nil)
	require.NoError(t, err)
	_, err = fix.Engine.Registry.Add(ctx, "g1", KindBlacklist, Punishment{Kind: PunishDelete}, 1, 0, nil)
	require.NoError(t, err)
	fix.Platform.SetError("Kick", ErrPermissionDenied)

	res, err := fix.Engine.ProcessMessage(ctx, NewTestMessage("g1", "c1", "u1", "m1", "anything"))
	assert.NoError(err)
	require.Len(t, res.Verdicts, 2)
	assert.Equal(1, res.Verdicts[0].RuleID)
	assert.Equal(KindRegex, res.Verdicts[0].Kind)
	assert.Equal(2, res.Verdicts[1].RuleID)

	require.Len(t, res.Results, 2)
	assert.False(res.Results[0].Performed)
	assert.True(errors.Is(res.Results[0].Err, ErrPermissionDenied))
	assert.True(res.Results[1].Performed)
	assert.Len(fix.ModLog.List(), 2)
}

func TestEngineRulePanic(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	build := func(def RuleDefinition) (Rule, error) {
		if def.Kind == KindRegex {
			return &FuncRule{Def: def, Fn: func(ctx context.Context, msg *Message) *Verdict {
				panic("bad rule")
			}}, nil
		}
		return simpleRule(def)
	}
	fix := EngineTestFixture(build)
	_, err := fix.Engine.Registry.Add(ctx, "g1", KindRegex, Punishment{Kind: PunishKick}, 1, 0, nil)
	require.NoError(t, err)
	_, err = fix.Engine.Registry.Add(ctx, "g1", KindBlacklist, Punishment{Kind: PunishLogOnly}, 1, 0, []string{"x"})
	require.NoError(t, err)

	res, err := fix.Engine.ProcessMessage(ctx, NewTestMessage("g1", "c1", "u1", "m1", "x marks"))
	assert.NoError(err)
	require.Len(t, res.Verdicts, 1)
	assert.Equal(2, res.Verdicts[0].RuleID)

	// engine keeps working afterwards
	res, err = fix.Engine.ProcessMessage(ctx, NewTestMessage("g1", "c1", "u1", "m2", "x again"))
	assert.NoError(err)
	assert.Len(res.Verdicts, 1)
}

func TestEngineSilenceTriggers(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fix := EngineTestFixture(nil)
	fix.Engine.Silence.Window = 50 * time.Millisecond
	require.NoError(t, fix.Engine.Registry.UpdateSettings(ctx, GuildSettings{
		GuildID:         "g1",
		AnnouncePrefix:  "[automod] ",
		SilenceTriggers: []string{"!shh"},
	}))
	addSimpleRule(t, fix, "g1", "delete", "spam")

	// silence side-channel runs for gated-in messages even when no rule matches
	_, err := fix.Engine.ProcessMessage(ctx, NewTestMessage("g1", "c1", "u1", "m1", "!shh please"))
	assert.NoError(err)
	assert.Equal(1, fix.Engine.SilenceCount("c1"))

	res, err := fix.Engine.ProcessMessage(ctx, NewTestMessage("g1", "c1", "u2", "m2", "spam"))
	assert.NoError(err)
	require.Len(t, res.Results, 1)
	assert.True(res.Results[0].Performed)
	assert.False(res.Results[0].Announced)
	assert.Empty(fix.Platform.SentMessages())

	assert.Eventually(func() bool { return fix.Engine.SilenceCount("c1") == 0 }, time.Second, 10*time.Millisecond)

	res, err = fix.Engine.ProcessMessage(ctx, NewTestMessage("g1", "c1", "u2", "m3", "spam"))
	assert.NoError(err)
	assert.True(res.Results[0].Announced)
	sent := fix.Platform.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal("[automod] useru2 (u2) was **silenced (message deleted)** for *said spam*", sent[0].Content)

	// bots never bump the counter
	bot := NewTestMessage("g1", "c1", "b1", "m4", "!shh")
	bot.Author.Bot = true
	_, _ = fix.Engine.ProcessMessage(ctx, bot)
	assert.Equal(0, fix.Engine.SilenceCount("c1"))
}

func TestEngineUnwarmedRegistry(t *testing.T) {
	assert := assert.New(t)
	store := NewMemConfigStore()
	store.Rules["g1"] = []RuleDefinition{{GuildID: "g1", ID: 1, Kind: KindBlacklist, Punishment: Punishment{Kind: PunishDelete}, StrikeLimit: 1, Parameters: []string{"spam"}}}
	reg := NewRuleRegistry(nil, store, simpleRule)
	assert.Empty(reg.List("g1"))
	assert.NoError(reg.Warm(context.Background()))
	assert.Len(reg.List("g1"), 1)
}
