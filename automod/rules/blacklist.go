package rules

import (
	"context"
	"strings"

	"github.com/sleetbot/warden/automod/engine"
	"github.com/sleetbot/warden/automod/helpers"
)

// Case-insensitive phrase matching. Every occurrence of every phrase is one strike.
type blacklistRule struct {
	strikeCounter[struct{}]
	phrases []string
}

var _ engine.Rule = (*blacklistRule)(nil)

func newBlacklistRule(f *Factory, def engine.RuleDefinition) (engine.Rule, error) {
	phrases, err := expandPhrases(f, def.Parameters)
	if err != nil {
		return nil, err
	}
	if len(phrases) == 0 {
		return nil, engine.NewConfigError("parameters", "blacklist needs at least one phrase")
	}
	return &blacklistRule{
		strikeCounter: newStrikeCounter[struct{}](f, def, "Blacklisted phrase"),
		phrases:       phrases,
	}, nil
}

// Expands "$name" parameters into the members of that phrase set and case-folds everything.
func expandPhrases(f *Factory, params []string) ([]string, error) {
	var out []string
	for _, p := range params {
		if name, ok := strings.CutPrefix(p, "$"); ok && name != "" {
			if f.Sets == nil {
				return nil, engine.NewConfigError("parameters", "phrase set %q referenced but no sets are loaded", name)
			}
			members, found, err := f.Sets.Members(context.Background(), name)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, engine.NewConfigError("parameters", "unknown phrase set %q", name)
			}
			for _, m := range members {
				if m != "" {
					out = append(out, helpers.FoldCase(m))
				}
			}
			continue
		}
		out = append(out, helpers.FoldCase(p))
	}
	return helpers.DedupeStrings(out), nil
}

func (r *blacklistRule) Evaluate(ctx context.Context, msg *engine.Message) *engine.Verdict {
	if msg.Content == "" {
		return nil
	}
	n := 0
	for _, p := range r.phrases {
		n += helpers.CountFolded(msg.Content, p)
	}
	return r.strike(msg, n)
}
