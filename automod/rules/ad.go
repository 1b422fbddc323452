package rules

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sleetbot/warden/automod/engine"
	"github.com/sleetbot/warden/automod/helpers"
)

// Strikes once per invite link pointing at some other guild.
type inviteAdRule struct {
	strikeCounter[struct{}]
	logger   *slog.Logger
	resolver InviteResolver
	// lower-cased allowlisted codes
	allowed map[string]bool
}

var _ engine.Rule = (*inviteAdRule)(nil)

func newInviteAdRule(f *Factory, def engine.RuleDefinition) (engine.Rule, error) {
	allowed := make(map[string]bool)
	for _, p := range def.Parameters {
		code := helpers.NormalizeInviteCode(p)
		if code == "" {
			continue
		}
		allowed[strings.ToLower(code)] = true
	}
	return &inviteAdRule{
		strikeCounter: newStrikeCounter[struct{}](f, def, "Posted server invites"),
		logger:        f.logger(),
		resolver:      f.Invites,
		allowed:       allowed,
	}, nil
}

func (r *inviteAdRule) foreign(ctx context.Context, msg *engine.Message, code string) bool {
	if r.allowed[strings.ToLower(code)] {
		return false
	}
	if r.resolver == nil {
		return true
	}
	guildID, err := r.resolver.ResolveInviteGuild(ctx, code)
	if err != nil {
		// unknown or expired invites don't advertise anything
		r.logger.Debug("invite resolution failed", "code", code, "err", err)
		return false
	}
	return guildID != msg.GuildID
}

func (r *inviteAdRule) Evaluate(ctx context.Context, msg *engine.Message) *engine.Verdict {
	n := 0
	for _, code := range helpers.ExtractInviteCodes(msg.Content) {
		if r.foreign(ctx, msg, code) {
			n++
		}
	}
	return r.strike(msg, n)
}
