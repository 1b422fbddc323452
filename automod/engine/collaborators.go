package engine

import (
	"context"
)

// Permission bits, matching the chat platform's permission bitfield.
const (
	PermissionAdministrator   int64 = 1 << 3
	PermissionViewChannel     int64 = 1 << 10
	PermissionSendMessages    int64 = 1 << 11
	PermissionManageMessages  int64 = 1 << 13
	PermissionManageNicknames int64 = 1 << 27
)

// Per-guild automod settings, other than the rules themselves.
type GuildSettings struct {
	GuildID string
	// prepended to public punishment announcements
	AnnouncePrefix string
	// messages containing any of these substrings temporarily silence announcements in their channel
	SilenceTriggers []string
	RolebanRoleID   string
	ModLogChannelID string
	Dehoist         DehoistSettings
}

type DehoistSettings struct {
	Enabled         bool
	HoistCharacters string
	Prepend         string
}

// Persistence collaborator for rule definitions and guild settings.
type ConfigStore interface {
	ListGuilds(ctx context.Context) ([]string, error)
	LoadAllRules(ctx context.Context, guildID string) ([]RuleDefinition, error)
	// persists the definition (with its already-allocated ID), returning the stored ID
	InsertRule(ctx context.Context, def RuleDefinition) (int, error)
	// returns false if no such rule existed
	DeleteRule(ctx context.Context, guildID string, id int) (bool, error)
	// returns zero-value settings (with GuildID populated) if none are stored
	LoadSettings(ctx context.Context, guildID string) (*GuildSettings, error)
	SaveSettings(ctx context.Context, settings GuildSettings) error
}

// Guild-relative rank and permissions of a member.
type Standing struct {
	Permissions     int64
	TopRolePosition int
	Owner           bool
}

func (s Standing) Has(perm int64) bool {
	return s.Owner || s.Permissions&PermissionAdministrator != 0 || s.Permissions&perm == perm
}

// A channel permission overwrite for a single member.
type Overwrite struct {
	Allow int64
	Deny  int64
}

// Narrow interface to the chat platform's remote actions. Every method may fail with an error wrapping ErrPermissionDenied, ErrNotFound, or ErrTransient.
type Platform interface {
	MemberStanding(ctx context.Context, guildID, userID string) (*Standing, error)
	BotStanding(ctx context.Context, guildID string) (*Standing, error)

	CanKick(ctx context.Context, guildID, userID string) (bool, error)
	Kick(ctx context.Context, guildID, userID, reason string) error
	CanBan(ctx context.Context, guildID, userID string) (bool, error)
	Ban(ctx context.Context, guildID, userID, reason string, purgeDays int) error
	Unban(ctx context.Context, guildID, userID string) error
	AddRole(ctx context.Context, guildID, userID, roleID, reason string) error

	DeleteMessage(ctx context.Context, ref MessageRef) error
	BulkDeleteMessages(ctx context.Context, channelID string, messageIDs []string) error
	SendMessage(ctx context.Context, channelID, content string) (*MessageRef, error)

	// returns nil (and no error) if the member has no overwrite on the channel
	GetPermissionOverwrite(ctx context.Context, channelID, userID string) (*Overwrite, error)
	SetPermissionOverwrite(ctx context.Context, channelID, userID string, ow Overwrite, reason string) error
	DeletePermissionOverwrite(ctx context.Context, channelID, userID, reason string) error
}

// Moderation log collaborator. Failures are logged by callers and never affect dispatch.
type ModLog interface {
	CreateLogEntry(ctx context.Context, guildID, category, emoji, title, body string) error
}
