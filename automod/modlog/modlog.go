// Moderation-log sinks for dispatched automod actions: a per-guild discord channel, a slack incoming webhook, and fan-out across several sinks.
package modlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/sleetbot/warden/automod/engine"
)

// Posts messages to a chat channel.
type Sender interface {
	SendMessage(ctx context.Context, channelID, content string) (*engine.MessageRef, error)
}

// Looks up per-guild settings; *engine.RuleRegistry implements this.
type SettingsSource interface {
	Settings(guildID string) engine.GuildSettings
}

// Writes entries to the guild's configured modlog channel. Guilds without one are skipped.
type ChannelModLog struct {
	Sender   Sender
	Settings SettingsSource
}

var _ engine.ModLog = (*ChannelModLog)(nil)

func FormatEntry(category, emoji, title, body string) string {
	return fmt.Sprintf("%s **%s** `%s`\n%s", emoji, title, category, body)
}

func (c *ChannelModLog) CreateLogEntry(ctx context.Context, guildID, category, emoji, title, body string) error {
	channelID := c.Settings.Settings(guildID).ModLogChannelID
	if channelID == "" {
		return nil
	}
	if _, err := c.Sender.SendMessage(ctx, channelID, FormatEntry(category, emoji, title, body)); err != nil {
		return fmt.Errorf("posting to modlog channel %s: %w", channelID, err)
	}
	return nil
}

// Fans each entry out to every sink, returning the joined errors.
type Multi []engine.ModLog

var _ engine.ModLog = Multi(nil)

func (m Multi) CreateLogEntry(ctx context.Context, guildID, category, emoji, title, body string) error {
	var errs []error
	for _, sink := range m {
		if err := sink.CreateLogEntry(ctx, guildID, category, emoji, title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
