package modlog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sleetbot/warden/automod/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSettings map[string]engine.GuildSettings

func (s staticSettings) Settings(guildID string) engine.GuildSettings {
	gs, ok := s[guildID]
	if !ok {
		return engine.GuildSettings{GuildID: guildID}
	}
	return gs
}

func TestChannelModLog(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	plat := engine.NewMockPlatform()
	ml := &ChannelModLog{
		Sender:   plat,
		Settings: staticSettings{"g1": {GuildID: "g1", ModLogChannelID: "logs"}},
	}

	assert.NoError(ml.CreateLogEntry(ctx, "g1", engine.ModLogCategory, engine.ModLogEmoji, engine.ModLogTitle, "useru1 (u1) was **kicked**"))
	// no channel configured
	assert.NoError(ml.CreateLogEntry(ctx, "g2", engine.ModLogCategory, engine.ModLogEmoji, engine.ModLogTitle, "ignored"))

	sent := plat.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal("logs", sent[0].ChannelID)
	assert.Equal(FormatEntry(engine.ModLogCategory, engine.ModLogEmoji, engine.ModLogTitle, "useru1 (u1) was **kicked**"), sent[0].Content)
	assert.Contains(sent[0].Content, "**Automod**")

	plat.SetError("SendMessage", engine.ErrPermissionDenied)
	assert.ErrorIs(ml.CreateLogEntry(ctx, "g1", "c", "e", "t", "b"), engine.ErrPermissionDenied)
}

func TestSlackModLog(t *testing.T) {
	assert := assert.New(t)

	var got []SlackWebhookBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body SlackWebhookBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		got = append(got, body)
		if body.Text == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ml := &SlackModLog{WebhookURL: srv.URL}
	assert.NoError(ml.CreateLogEntry(context.Background(), "g1", "automod_action", "!", "Automod", "body"))
	require.Len(t, got, 1)
	assert.Contains(got[0].Text, "guild `g1`")
	assert.Contains(got[0].Text, "body")

	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()
	bad := &SlackModLog{WebhookURL: missing.URL, Client: missing.Client()}
	assert.Error(bad.CreateLogEntry(context.Background(), "g1", "c", "e", "t", "b"))
}

func TestMulti(t *testing.T) {
	assert := assert.New(t)
	a := &engine.MemModLog{}
	b := &engine.MemModLog{Err: errors.New("sink down")}
	c := &engine.MemModLog{}
	m := Multi{a, b, c}

	err := m.CreateLogEntry(context.Background(), "g1", "cat", "e", "t", "body")
	assert.ErrorContains(err, "sink down")
	assert.Len(a.List(), 1)
	assert.Len(c.List(), 1)

	assert.NoError(Multi{}.CreateLogEntry(context.Background(), "g1", "cat", "e", "t", "body"))
}
