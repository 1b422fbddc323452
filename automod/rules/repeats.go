package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/sleetbot/warden/automod/engine"
	"github.com/sleetbot/warden/automod/helpers"
	"github.com/sleetbot/warden/automod/strikestore"
)

type repeatState struct {
	last    string
	hasLast bool
}

// Strikes each time a subject posts exactly the same content as their previous message.
//
// The first message of a run isn't a repeat, so the rule fires on the (limit-1)th consecutive repeat.
type repeatsRule struct {
	strikeCounter[repeatState]
	// prefixes, matched case-insensitively
	ignore []string
}

var _ engine.Rule = (*repeatsRule)(nil)

func newRepeatsRule(f *Factory, def engine.RuleDefinition) (engine.Rule, error) {
	var ignore []string
	for _, p := range def.Parameters {
		if p != "" {
			ignore = append(ignore, p)
		}
	}
	return &repeatsRule{
		strikeCounter: newStrikeCounter[repeatState](f, def, fmt.Sprintf("Max repeats reached (%d)", def.StrikeLimit)),
		ignore:        ignore,
	}, nil
}

func (r *repeatsRule) ignored(content string) bool {
	for _, prefix := range r.ignore {
		if helpers.HasPrefixFolded(content, prefix) {
			return true
		}
	}
	return false
}

func (r *repeatsRule) Evaluate(ctx context.Context, msg *engine.Message) *engine.Verdict {
	if r.ignored(msg.Content) {
		return nil
	}
	threshold := max(r.def.StrikeLimit-1, 1)
	fired := false
	r.store.Update(msg.SubjectKey(), func(now time.Time, subj *strikestore.Subject[repeatState]) {
		st := &subj.Data
		if msg.Content != "" && st.hasLast && msg.Content == st.last {
			subj.Add(now, msg.ID)
			if subj.Live() >= threshold {
				subj.Clear()
				fired = true
			}
		}
		st.last = msg.Content
		st.hasLast = true
	})
	if !fired {
		return nil
	}
	return r.verdict()
}
