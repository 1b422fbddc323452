package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sleetbot/warden/automod/dehoist"
	"github.com/sleetbot/warden/automod/engine"

	"github.com/bwmarrin/discordgo"
)

// bulk deletes are capped per request
const bulkDeleteChunk = 100

// largest page the member list endpoint returns
const memberPageSize = 1000

// Subset of *discordgo.Session used by the adapter.
type RESTClient interface {
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMembers(guildID, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
	GuildMemberDeleteWithReason(guildID, userID, reason string, options ...discordgo.RequestOption) error
	GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error
	GuildBanDelete(guildID, userID string, options ...discordgo.RequestOption) error
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberNickname(guildID, userID, nickname string, options ...discordgo.RequestOption) error
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64, options ...discordgo.RequestOption) error
	ChannelPermissionDelete(channelID, targetID string, options ...discordgo.RequestOption) error
	Invite(inviteID string, options ...discordgo.RequestOption) (*discordgo.Invite, error)
}

var _ RESTClient = (*discordgo.Session)(nil)

// engine.Platform implementation on top of the discord REST API.
type Discord struct {
	Logger *slog.Logger
	Client RESTClient
	// the bot's own user ID
	BotID string
}

var _ engine.Platform = (*Discord)(nil)

func NewDiscord(logger *slog.Logger, client RESTClient, botID string) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discord{
		Logger: logger.With("component", "platform"),
		Client: client,
		BotID:  botID,
	}
}

func opts(ctx context.Context, reason string) []discordgo.RequestOption {
	out := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	if reason != "" {
		out = append(out, discordgo.WithAuditLogReason(reason))
	}
	return out
}

func (d *Discord) MemberStanding(ctx context.Context, guildID, userID string) (*engine.Standing, error) {
	guild, err := d.Client.Guild(guildID, opts(ctx, "")...)
	if err != nil {
		return nil, Classify(err)
	}
	roles, err := d.Client.GuildRoles(guildID, opts(ctx, "")...)
	if err != nil {
		return nil, Classify(err)
	}
	member, err := d.Client.GuildMember(guildID, userID, opts(ctx, "")...)
	if err != nil {
		return nil, Classify(err)
	}
	return ComputeStanding(guild, roles, member, userID), nil
}

// Nickname, falling back to the global display name and then the username.
func DisplayName(m *discordgo.Member) string {
	if m == nil {
		return ""
	}
	if m.Nick != "" {
		return m.Nick
	}
	if m.User == nil {
		return ""
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

func (d *Discord) GuildMember(ctx context.Context, guildID, userID string) (*dehoist.Member, error) {
	m, err := d.Client.GuildMember(guildID, userID, opts(ctx, "")...)
	if err != nil {
		return nil, Classify(err)
	}
	return &dehoist.Member{GuildID: guildID, UserID: userID, DisplayName: DisplayName(m)}, nil
}

// Pages through the full member list, ordered by user ID.
func (d *Discord) GuildMembers(ctx context.Context, guildID string) ([]dehoist.Member, error) {
	var out []dehoist.Member
	after := ""
	for {
		page, err := d.Client.GuildMembers(guildID, after, memberPageSize, opts(ctx, "")...)
		if err != nil {
			return out, Classify(err)
		}
		prev := after
		for _, m := range page {
			if m == nil || m.User == nil {
				continue
			}
			out = append(out, dehoist.Member{GuildID: guildID, UserID: m.User.ID, DisplayName: DisplayName(m)})
			after = m.User.ID
		}
		if len(page) < memberPageSize || after == prev {
			return out, nil
		}
	}
}

func (d *Discord) BotStanding(ctx context.Context, guildID string) (*engine.Standing, error) {
	if d.BotID == "" {
		return nil, errors.New("bot user ID not configured")
	}
	return d.MemberStanding(ctx, guildID, d.BotID)
}

// Derives a member's guild-level permissions and top role rank. The @everyone role shares the guild's ID.
func ComputeStanding(guild *discordgo.Guild, roles []*discordgo.Role, member *discordgo.Member, userID string) *engine.Standing {
	byID := make(map[string]*discordgo.Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}
	st := &engine.Standing{
		Owner: guild != nil && guild.OwnerID == userID,
	}
	if everyone, ok := byID[guild.ID]; ok {
		st.Permissions = everyone.Permissions
	}
	if member == nil {
		return st
	}
	for _, rid := range member.Roles {
		r, ok := byID[rid]
		if !ok {
			continue
		}
		st.Permissions |= r.Permissions
		st.TopRolePosition = max(st.TopRolePosition, r.Position)
	}
	return st
}

// Whether the bot holds perm and outranks the target member.
func (d *Discord) outranks(ctx context.Context, guildID, userID string, perm int64) (bool, error) {
	bot, err := d.BotStanding(ctx, guildID)
	if err != nil {
		return false, err
	}
	target, err := d.MemberStanding(ctx, guildID, userID)
	if err != nil {
		return false, err
	}
	if target.Owner || !bot.Has(perm) {
		return false, nil
	}
	return bot.Owner || bot.TopRolePosition > target.TopRolePosition, nil
}

func (d *Discord) CanKick(ctx context.Context, guildID, userID string) (bool, error) {
	return d.outranks(ctx, guildID, userID, discordgo.PermissionKickMembers)
}

func (d *Discord) Kick(ctx context.Context, guildID, userID, reason string) error {
	return Classify(d.Client.GuildMemberDeleteWithReason(guildID, userID, reason, opts(ctx, "")...))
}

func (d *Discord) CanBan(ctx context.Context, guildID, userID string) (bool, error) {
	return d.outranks(ctx, guildID, userID, discordgo.PermissionBanMembers)
}

func (d *Discord) Ban(ctx context.Context, guildID, userID, reason string, purgeDays int) error {
	days := min(max(purgeDays, 0), 7)
	return Classify(d.Client.GuildBanCreateWithReason(guildID, userID, reason, days, opts(ctx, "")...))
}

func (d *Discord) Unban(ctx context.Context, guildID, userID string) error {
	return Classify(d.Client.GuildBanDelete(guildID, userID, opts(ctx, "")...))
}

func (d *Discord) AddRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	return Classify(d.Client.GuildMemberRoleAdd(guildID, userID, roleID, opts(ctx, reason)...))
}

func (d *Discord) SetNickname(ctx context.Context, guildID, userID, nickname, reason string) error {
	return Classify(d.Client.GuildMemberNickname(guildID, userID, nickname, opts(ctx, reason)...))
}

func (d *Discord) DeleteMessage(ctx context.Context, ref engine.MessageRef) error {
	return Classify(d.Client.ChannelMessageDelete(ref.ChannelID, ref.MessageID, opts(ctx, "")...))
}

func (d *Discord) BulkDeleteMessages(ctx context.Context, channelID string, messageIDs []string) error {
	var errs []error
	for start := 0; start < len(messageIDs); start += bulkDeleteChunk {
		chunk := messageIDs[start:min(start+bulkDeleteChunk, len(messageIDs))]
		if err := d.Client.ChannelMessagesBulkDelete(channelID, chunk, opts(ctx, "")...); err != nil {
			errs = append(errs, Classify(err))
		}
	}
	return errors.Join(errs...)
}

func (d *Discord) SendMessage(ctx context.Context, channelID, content string) (*engine.MessageRef, error) {
	m, err := d.Client.ChannelMessageSend(channelID, content, opts(ctx, "")...)
	if err != nil {
		return nil, Classify(err)
	}
	return &engine.MessageRef{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
	}, nil
}

func (d *Discord) GetPermissionOverwrite(ctx context.Context, channelID, userID string) (*engine.Overwrite, error) {
	ch, err := d.Client.Channel(channelID, opts(ctx, "")...)
	if err != nil {
		return nil, Classify(err)
	}
	for _, ow := range ch.PermissionOverwrites {
		if ow.ID == userID && ow.Type == discordgo.PermissionOverwriteTypeMember {
			return &engine.Overwrite{Allow: ow.Allow, Deny: ow.Deny}, nil
		}
	}
	return nil, nil
}

func (d *Discord) SetPermissionOverwrite(ctx context.Context, channelID, userID string, ow engine.Overwrite, reason string) error {
	err := d.Client.ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember, ow.Allow, ow.Deny, opts(ctx, reason)...)
	return Classify(err)
}

func (d *Discord) DeletePermissionOverwrite(ctx context.Context, channelID, userID, reason string) error {
	return Classify(d.Client.ChannelPermissionDelete(channelID, userID, opts(ctx, reason)...))
}

// Implements rules.InviteResolver.
func (d *Discord) ResolveInviteGuild(ctx context.Context, code string) (string, error) {
	inv, err := d.Client.Invite(code, opts(ctx, "")...)
	if err != nil {
		return "", Classify(err)
	}
	if inv.Guild == nil {
		return "", fmt.Errorf("invite %s is not for a guild", code)
	}
	return inv.Guild.ID, nil
}
