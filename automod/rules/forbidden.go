package rules

import (
	"context"

	"github.com/sleetbot/warden/automod/engine"
)

// Strikes once per occurrence of any denylisted character.
type forbiddenRule struct {
	strikeCounter[struct{}]
	chars map[rune]bool
}

var _ engine.Rule = (*forbiddenRule)(nil)

func newForbiddenRule(f *Factory, def engine.RuleDefinition) (engine.Rule, error) {
	chars := make(map[rune]bool)
	for _, p := range def.Parameters {
		for _, c := range p {
			chars[c] = true
		}
	}
	if len(chars) == 0 {
		return nil, engine.NewConfigError("parameters", "forbidden needs at least one character")
	}
	return &forbiddenRule{
		strikeCounter: newStrikeCounter[struct{}](f, def, "Forbidden characters"),
		chars:         chars,
	}, nil
}

func (r *forbiddenRule) Evaluate(ctx context.Context, msg *engine.Message) *engine.Verdict {
	n := 0
	for _, c := range msg.Content {
		if r.chars[c] {
			n++
		}
	}
	return r.strike(msg, n)
}
