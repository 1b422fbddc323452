package rules

import (
	"context"

	"github.com/sleetbot/warden/automod/engine"
	"github.com/sleetbot/warden/automod/helpers"
)

type emojiOnlyRule struct {
	strikeCounter[struct{}]
}

var _ engine.Rule = (*emojiOnlyRule)(nil)

func newEmojiOnlyRule(f *Factory, def engine.RuleDefinition) (engine.Rule, error) {
	return &emojiOnlyRule{
		strikeCounter: newStrikeCounter[struct{}](f, def, "Emoji-only messages"),
	}, nil
}

func (r *emojiOnlyRule) Evaluate(ctx context.Context, msg *engine.Message) *engine.Verdict {
	// attachments carry the message's content, so the text isn't really "only" emoji
	if msg.Attachments > 0 || !helpers.IsEmojiOnly(msg.Content) {
		return nil
	}
	return r.strike(msg, 1)
}
