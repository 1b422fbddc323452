// Automatic dehoisting: members whose display name starts with a "hoist" character (sorting them above everyone else in the member list) get an invisible character prepended to their nickname.
package dehoist

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sleetbot/warden/automod/engine"

	"golang.org/x/time/rate"
)

const (
	DefaultHoistCharacters = "!"
	// invisible, and sorts after ordinary characters
	DefaultPrepend = "\u17b5"
	// platform limit on nickname length, in characters
	MaxNicknameLength = 32
	AuditReason       = "Dehoist"
)

type MemberEditor interface {
	MemberStanding(ctx context.Context, guildID, userID string) (*engine.Standing, error)
	BotStanding(ctx context.Context, guildID string) (*engine.Standing, error)
	SetNickname(ctx context.Context, guildID, userID, nickname, reason string) error
}

// Looks up guild members; the platform adapter in practice.
type MemberLister interface {
	GuildMember(ctx context.Context, guildID, userID string) (*Member, error)
	GuildMembers(ctx context.Context, guildID string) ([]Member, error)
}

type Member struct {
	GuildID     string
	UserID      string
	DisplayName string
}

type Result struct {
	Dehoisted int
	Failed    int
}

type Dehoister struct {
	Logger  *slog.Logger
	Members MemberEditor
	// paces nickname edits; nil means unlimited
	Limiter *rate.Limiter
}

func NewDehoister(logger *slog.Logger, members MemberEditor, limit rate.Limit, burst int) *Dehoister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dehoister{
		Logger:  logger.With("component", "dehoist"),
		Members: members,
		Limiter: rate.NewLimiter(limit, burst),
	}
}

func withDefaults(s engine.DehoistSettings) engine.DehoistSettings {
	if s.HoistCharacters == "" {
		s.HoistCharacters = DefaultHoistCharacters
	}
	if s.Prepend == "" {
		s.Prepend = DefaultPrepend
	}
	return s
}

// Whether the name starts with one of the hoist characters.
func IsHoisted(settings engine.DehoistSettings, name string) bool {
	settings = withDefaults(settings)
	first, size := utf8.DecodeRuneInString(name)
	if size == 0 {
		return false
	}
	return strings.ContainsRune(settings.HoistCharacters, first)
}

// The nickname to give a hoisted member: the prepend plus their display name, truncated to the nickname length limit.
func DehoistedName(settings engine.DehoistSettings, name string) string {
	settings = withDefaults(settings)
	nick := []rune(settings.Prepend + name)
	if len(nick) > MaxNicknameLength {
		nick = nick[:MaxNicknameLength]
	}
	return string(nick)
}

// Whether the bot can edit the member's nickname.
func (d *Dehoister) manageable(ctx context.Context, guildID, userID string) (bool, error) {
	bot, err := d.Members.BotStanding(ctx, guildID)
	if err != nil {
		return false, err
	}
	target, err := d.Members.MemberStanding(ctx, guildID, userID)
	if err != nil {
		return false, err
	}
	if target.Owner || !bot.Has(engine.PermissionManageNicknames) {
		return false, nil
	}
	return bot.Owner || bot.TopRolePosition > target.TopRolePosition, nil
}

// Handles a member join or display-name change. Does nothing unless automatic dehoisting is enabled for the guild.
func (d *Dehoister) Check(ctx context.Context, settings engine.DehoistSettings, m Member) (bool, error) {
	if !settings.Enabled || !IsHoisted(settings, m.DisplayName) {
		return false, nil
	}
	ok, err := d.manageable(ctx, m.GuildID, m.UserID)
	if err != nil {
		dehoistResults.WithLabelValues("error").Inc()
		return false, err
	}
	if !ok {
		d.Logger.Debug("member not manageable, skipping dehoist", "guild", m.GuildID, "user", m.UserID)
		dehoistResults.WithLabelValues("skipped").Inc()
		return false, nil
	}
	if err := d.dehoist(ctx, settings, m); err != nil {
		return false, err
	}
	return true, nil
}

// Dehoists a batch of members. With force, members are renamed even if their name isn't hoisted. Individual failures are counted and logged, not returned.
func (d *Dehoister) DehoistMembers(ctx context.Context, settings engine.DehoistSettings, members []Member, force bool) Result {
	var res Result
	for _, m := range members {
		if !force && !IsHoisted(settings, m.DisplayName) {
			continue
		}
		if err := d.dehoist(ctx, settings, m); err != nil {
			res.Failed++
			continue
		}
		res.Dehoisted++
	}
	return res
}

// Manual dehoist of a guild. With no members named, every hoisted member of the guild is renamed. Force renames named members whatever their current name. A member that can't be looked up counts as failed.
func (d *Dehoister) RunDehoist(ctx context.Context, lister MemberLister, settings engine.DehoistSettings, guildID string, userIDs []string, force bool) (Result, error) {
	if len(userIDs) == 0 {
		members, err := lister.GuildMembers(ctx, guildID)
		if err != nil {
			return Result{}, err
		}
		d.Logger.Info("dehoisting guild", "guild", guildID, "members", len(members))
		return d.DehoistMembers(ctx, settings, members, false), nil
	}

	var (
		res     Result
		members []Member
	)
	for _, id := range userIDs {
		m, err := lister.GuildMember(ctx, guildID, id)
		if err != nil {
			d.Logger.Warn("failed to look up member for dehoist", "guild", guildID, "user", id, "err", err)
			res.Failed++
			continue
		}
		members = append(members, *m)
	}
	named := d.DehoistMembers(ctx, settings, members, force)
	res.Dehoisted += named.Dehoisted
	res.Failed += named.Failed
	return res, nil
}

func (d *Dehoister) dehoist(ctx context.Context, settings engine.DehoistSettings, m Member) error {
	if d.Limiter != nil {
		if err := d.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	nick := DehoistedName(settings, m.DisplayName)
	if err := d.Members.SetNickname(ctx, m.GuildID, m.UserID, nick, AuditReason); err != nil {
		d.Logger.Warn("failed to dehoist member", "guild", m.GuildID, "user", m.UserID, "err", err)
		dehoistResults.WithLabelValues("failed").Inc()
		return err
	}
	d.Logger.Info("dehoisted member", "guild", m.GuildID, "user", m.UserID)
	dehoistResults.WithLabelValues("dehoisted").Inc()
	return nil
}
