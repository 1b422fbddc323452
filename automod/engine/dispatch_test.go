package engine

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dispatchFixture() (*Dispatcher, *MockPlatform, *MemModLog) {
	plat := NewMockPlatform()
	modlog := &MemModLog{}
	d := NewDispatcher(slog.Default(), plat, modlog, NewSilenceCounter(time.Second))
	return d, plat, modlog
}

func TestDispatchPunishments(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		punishment string
		calls      []string
		action     string
		announced  bool
	}{
		{punishment: "delete", calls: []string{"DeleteMessage c1 m1"}, action: "silenced (message deleted)", announced: true},
		{punishment: "kick", calls: []string{"CanKick g1 u1", "Kick g1 u1"}, action: "kicked", announced: true},
		{punishment: "ban", calls: []string{"CanBan g1 u1", "Ban g1 u1 1"}, action: "banned", announced: true},
		{punishment: "softban", calls: []string{"CanBan g1 u1", "Ban g1 u1 1", "Unban g1 u1"}, action: "softbanned", announced: true},
		{punishment: "log", action: "nothing (log)"},
		{punishment: "none", action: "nothing"},
	}

	for _, tc := range testCases {
		d, plat, modlog := dispatchFixture()
		msg := NewTestMessage("g1", "c1", "u1", "m1", "bad")
		v := &Verdict{RuleID: 1, Kind: KindBlacklist, Punishment: MustParsePunishment(tc.punishment), Reason: "bad words"}
		res := d.Dispatch(ctx, msg, GuildSettings{GuildID: "g1"}, v)

		assert.NoError(t, res.Err, tc.punishment)
		assert.True(t, res.Performed, tc.punishment)
		assert.Equal(t, tc.action, res.Action, tc.punishment)
		assert.Equal(t, tc.announced, res.Announced, tc.punishment)

		calls := plat.CallLog()
		if tc.announced {
			require.NotEmpty(t, calls)
			assert.Equal(t, "SendMessage c1", calls[len(calls)-1], tc.punishment)
			calls = calls[:len(calls)-1]
		}
		if len(tc.calls) == 0 {
			assert.Empty(t, calls, tc.punishment)
		} else {
			assert.Equal(t, tc.calls, calls, tc.punishment)
		}

		entries := modlog.List()
		require.Len(t, entries, 1, tc.punishment)
		assert.Equal(t, ModLogCategory, entries[0].Category)
		assert.Equal(t, ModLogEmoji, entries[0].Emoji)
		assert.Equal(t, ModLogTitle, entries[0].Title)
		assert.True(t, strings.HasPrefix(entries[0].Body, "useru1 (u1) was **"+tc.action+"** for *bad words*"), entries[0].Body)
		assert.Contains(t, entries[0].Body, "https://discord.com/channels/g1/c1/m1")
	}
}

func TestDispatchNotKickable(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d, plat, modlog := dispatchFixture()
	plat.NotKickable[SubjectKey("g1", "u1")] = true
	plat.NotBannable[SubjectKey("g1", "u1")] = true
	msg := NewTestMessage("g1", "c1", "u1", "m1", "bad")

	res := d.Dispatch(ctx, msg, GuildSettings{GuildID: "g1"}, &Verdict{Punishment: Punishment{Kind: PunishKick}, Reason: "r"})
	assert.NoError(res.Err)
	assert.False(res.Performed)
	assert.False(res.Announced)
	assert.NotEmpty(res.Note)

	res = d.Dispatch(ctx, msg, GuildSettings{GuildID: "g1"}, &Verdict{Punishment: Punishment{Kind: PunishSoftBan}, Reason: "r"})
	assert.False(res.Performed)

	assert.NotContains(plat.CallLog(), "Kick g1 u1")
	assert.NotContains(plat.CallLog(), "Ban g1 u1 1")
	assert.Empty(plat.SentMessages())
	entries := modlog.List()
	require.Len(t, entries, 2)
	assert.Contains(entries[0].Body, "Not performed")
}

func TestDispatchFailure(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d, plat, modlog := dispatchFixture()
	plat.SetError("Ban", ErrPermissionDenied)
	msg := NewTestMessage("g1", "c1", "u1", "m1", "bad")

	res := d.Dispatch(ctx, msg, GuildSettings{GuildID: "g1"}, &Verdict{
		Punishment: Punishment{Kind: PunishBan},
		Reason:     "r",
		Deletes:    []MessageRef{msg.Ref()},
	})
	assert.True(errors.Is(res.Err, ErrPermissionDenied))
	assert.False(res.Performed)
	assert.False(res.Announced)
	// side-effect deletes still run
	assert.Contains(plat.CallLog(), "DeleteMessage c1 m1")
	entries := modlog.List()
	require.Len(t, entries, 1)
	assert.Contains(entries[0].Body, "Failed (permission-denied)")

	// modlog failure doesn't affect outcome
	modlog.Err = errors.New("log channel gone")
	res = d.Dispatch(ctx, msg, GuildSettings{GuildID: "g1"}, &Verdict{Punishment: Punishment{Kind: PunishDelete}, Reason: "r"})
	assert.True(res.Performed)
	assert.True(res.Announced)
}

func TestDispatchSideEffectDeletes(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d, plat, _ := dispatchFixture()
	msg := NewTestMessage("g1", "c1", "u1", "m3", "dup")

	v := &Verdict{
		Punishment: Punishment{Kind: PunishDelete},
		Reason:     "r",
		Deletes: []MessageRef{
			{GuildID: "g1", ChannelID: "c1", MessageID: "m1"},
			{GuildID: "g1", ChannelID: "c1", MessageID: "m2"},
			{GuildID: "g1", ChannelID: "c1", MessageID: "m3"},
			{GuildID: "g1", ChannelID: "c2", MessageID: "m9"},
		},
	}
	res := d.Dispatch(ctx, msg, GuildSettings{GuildID: "g1"}, v)
	assert.True(res.Performed)
	// trigger deleted by the punishment itself, so not repeated
	assert.Equal([]string{"m1", "m2"}, plat.BulkDeleted["c1"])
	assert.Contains(plat.CallLog(), "DeleteMessage c2 m9")

	// failures are swallowed
	plat.SetError("BulkDeleteMessages", ErrNotFound)
	res = d.Dispatch(ctx, msg, GuildSettings{GuildID: "g1"}, &Verdict{
		Punishment: Punishment{Kind: PunishLogOnly},
		Deletes:    v.Deletes[:2],
	})
	assert.NoError(res.Err)
	assert.True(res.Performed)
}

func TestDispatchRoleBan(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d, plat, _ := dispatchFixture()
	settings := GuildSettings{GuildID: "g1", RolebanRoleID: "muted"}

	msg := NewTestMessage("g1", "c1", "u1", "m1", "bad")
	res := d.Dispatch(ctx, msg, settings, &Verdict{Punishment: Punishment{Kind: PunishRoleBan}, Reason: "r"})
	assert.True(res.Performed)
	assert.Contains(plat.CallLog(), "AddRole g1 u1 muted")

	// already holds the role: fall back to a channel restriction
	plat.Overwrites["c1/u1"] = Overwrite{Allow: PermissionSendMessages | PermissionViewChannel}
	msg.MemberRoles = []string{"muted"}
	res = d.Dispatch(ctx, msg, settings, &Verdict{Punishment: Punishment{Kind: PunishRoleBan}, Reason: "r"})
	assert.True(res.Performed)
	ow, ok := plat.Overwrite("c1", "u1")
	assert.True(ok)
	assert.Equal(PermissionViewChannel, ow.Allow)
	assert.Equal(PermissionSendMessages, ow.Deny)

	// no role configured at all
	res = d.Dispatch(ctx, NewTestMessage("g1", "c1", "u2", "m2", "bad"), GuildSettings{GuildID: "g1"}, &Verdict{Punishment: Punishment{Kind: PunishRoleBan}, Reason: "r"})
	assert.True(res.Performed)
	ow, ok = plat.Overwrite("c1", "u2")
	assert.True(ok)
	assert.Equal(PermissionSendMessages, ow.Deny)
}

func TestDispatchWhisper(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d, plat, modlog := dispatchFixture()
	v := &Verdict{Punishment: MustParsePunishment("whisper:please stop"), Reason: "r"}

	// no prior overwrite
	msg := NewTestMessage("g1", "c1", "u1", "m1", "bad")
	res := d.Dispatch(ctx, msg, GuildSettings{GuildID: "g1"}, v)
	require.NoError(t, res.Err)
	assert.True(res.Announced)
	sent := plat.SentMessages()
	require.Len(t, sent, 2)
	assert.Equal("<@u1>, please stop", sent[0].Content)
	assert.NotContains(sent[1].Content, "please stop")
	ow, ok := plat.Overwrite("c1", "u1")
	assert.True(ok)
	assert.Equal(PermissionViewChannel, ow.Deny)
	assert.True(d.WhisperPending("c1", "u1"))
	assert.Contains(modlog.List()[0].Body, "Told them: please stop")
	// the whisper itself is removed once the channel is hidden
	assert.Contains(plat.Deleted, MessageRef{ChannelID: "c1", MessageID: "sent-1"})
	calls := plat.CallLog()
	assert.Less(slices.Index(calls, "SetPermissionOverwrite c1 u1"), slices.Index(calls, "DeleteMessage c1 sent-1"))

	assert.NoError(d.RestoreWhisper(ctx, "c1", "u1"))
	_, ok = plat.Overwrite("c1", "u1")
	assert.False(ok)
	assert.False(d.WhisperPending("c1", "u1"))
	// nothing pending
	assert.NoError(d.RestoreWhisper(ctx, "c1", "u1"))
	assert.NoError(d.RestoreWhisper(ctx, "c9", "u9"))

	// prior overwrite is retained across repeated whispers and restored
	prior := Overwrite{Allow: PermissionViewChannel, Deny: PermissionSendMessages}
	plat.Overwrites["c1/u2"] = prior
	msg2 := NewTestMessage("g1", "c1", "u2", "m2", "bad")
	d.Dispatch(ctx, msg2, GuildSettings{GuildID: "g1"}, v)
	d.Dispatch(ctx, msg2, GuildSettings{GuildID: "g1"}, v)
	ow, _ = plat.Overwrite("c1", "u2")
	assert.Equal(PermissionViewChannel|PermissionSendMessages, ow.Deny)
	assert.Equal(int64(0), ow.Allow)

	assert.NoError(d.RestoreWhisper(ctx, "c1", "u2"))
	ow, ok = plat.Overwrite("c1", "u2")
	assert.True(ok)
	assert.Equal(prior, ow)
}

func TestDispatchWhisperDeleteFailure(t *testing.T) {
	assert := assert.New(t)
	d, plat, _ := dispatchFixture()
	plat.SetError("DeleteMessage", ErrNotFound)

	msg := NewTestMessage("g1", "c1", "u1", "m1", "bad")
	res := d.Dispatch(context.Background(), msg, GuildSettings{GuildID: "g1"}, &Verdict{Punishment: MustParsePunishment("whisper:hush"), Reason: "r"})
	assert.NoError(res.Err)
	assert.True(d.WhisperPending("c1", "u1"))
}

func TestDispatchWhisperHold(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d, plat, _ := dispatchFixture()
	d.WhisperHold = 20 * time.Millisecond

	msg := NewTestMessage("g1", "c1", "u1", "m1", "bad")
	res := d.Dispatch(ctx, msg, GuildSettings{GuildID: "g1"}, &Verdict{Punishment: MustParsePunishment("whisper:hush"), Reason: "r"})
	require.NoError(t, res.Err)
	assert.Eventually(func() bool {
		_, ok := plat.Overwrite("c1", "u1")
		return !ok && !d.WhisperPending("c1", "u1")
	}, time.Second, 5*time.Millisecond)
}

func TestDispatchSilenced(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d, plat, modlog := dispatchFixture()
	d.Silence.Bump("c1")

	res := d.Dispatch(ctx, NewTestMessage("g1", "c1", "u1", "m1", "bad"), GuildSettings{GuildID: "g1", AnnouncePrefix: "> "}, &Verdict{Punishment: Punishment{Kind: PunishKick}, Reason: "r"})
	assert.True(res.Performed)
	assert.False(res.Announced)
	assert.Empty(plat.SentMessages())
	assert.Len(modlog.List(), 1)

	// other channels unaffected
	res = d.Dispatch(ctx, NewTestMessage("g1", "c2", "u1", "m2", "bad"), GuildSettings{GuildID: "g1", AnnouncePrefix: "> "}, &Verdict{Punishment: Punishment{Kind: PunishKick}, Reason: "r"})
	assert.True(res.Announced)
	assert.Equal("> useru1 (u1) was **kicked** for *r*", plat.SentMessages()[0].Content)
}
