package rules

import (
	"context"
	"strings"

	"github.com/sleetbot/warden/automod/engine"
)

// Strikes on broadcast mention attempts, whether or not the author could actually ping everyone.
type everyoneRule struct {
	strikeCounter[struct{}]
	// role IDs treated as equivalent to @everyone
	roles map[string]bool
}

var _ engine.Rule = (*everyoneRule)(nil)

func newEveryoneRule(f *Factory, def engine.RuleDefinition) (engine.Rule, error) {
	roles := make(map[string]bool)
	for _, p := range def.Parameters {
		id := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(p), "<@&"), ">")
		if id == "" {
			continue
		}
		for _, c := range id {
			if c < '0' || c > '9' {
				return nil, engine.NewConfigError("parameters", "role %q is not a role ID", p)
			}
		}
		roles[id] = true
	}
	return &everyoneRule{
		strikeCounter: newStrikeCounter[struct{}](f, def, "Attempted @everyone/here mention"),
		roles:         roles,
	}, nil
}

func (r *everyoneRule) Evaluate(ctx context.Context, msg *engine.Message) *engine.Verdict {
	n := strings.Count(msg.Content, "@everyone") + strings.Count(msg.Content, "@here")
	for _, role := range msg.MentionRoles {
		if r.roles[role] {
			n++
		}
	}
	if n == 0 && msg.MentionEveryone {
		n = 1
	}
	return r.strike(msg, n)
}
