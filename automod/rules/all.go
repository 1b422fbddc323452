package rules

import (
	"sort"

	"github.com/sleetbot/warden/automod/engine"
)

type constructor func(f *Factory, def engine.RuleDefinition) (engine.Rule, error)

// every supported rule kind; adding a kind means adding one entry here
var constructors = map[engine.Kind]constructor{
	engine.KindEveryone:  newEveryoneRule,
	engine.KindForbidden: newForbiddenRule,
	engine.KindRepeats:   newRepeatsRule,
	engine.KindInviteAd:  newInviteAdRule,
	engine.KindBlacklist: newBlacklistRule,
	engine.KindEmbeds:    newEmbedsRule,
	engine.KindRegex:     newRegexRule,
	engine.KindEmojiOnly: newEmojiOnlyRule,
	engine.KindPressure:  newPressureRule,
}

// Help text for each rule kind's parameters.
var KindDocs = map[engine.Kind]string{
	engine.KindInviteAd:  "Counts server invites sent that are not to the current server. Parameters are allowed invite codes",
	engine.KindBlacklist: "Blacklists certain phrases, each occurrence in a message counts as a strike (ie. 'foo' 'some thing' 'bar'). $name includes a shared phrase set",
	engine.KindEmbeds:    "Stops users from posting the same embed over and over",
	engine.KindEmojiOnly: "Strikes on messages containing only emojis",
	engine.KindEveryone:  "Strikes on attempted @everyone/@here mentions. You can specify roles (by ID) that count as @everyone mentions",
	engine.KindForbidden: "Strikes on each forbidden character posted. Parameters are the characters",
	engine.KindRegex:     "Strikes on each regex match, only 1 regex is supported at a time. Either 'r(e)gex.*' 'flags' or '/r(e)gex.*/flags'",
	engine.KindRepeats:   "Strikes on messages with repeated content (ie. copy/paste). Parameters are prefixes to ignore",
	engine.KindPressure:  "Pressure-based automod: each message adds weight which decays over the window. Parameters are key=value weight overrides",
}

// Sorted list of all supported rule kinds.
func Kinds() []engine.Kind {
	out := make([]engine.Kind, 0, len(constructors))
	for k := range constructors {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func IsKnownKind(k engine.Kind) bool {
	_, ok := constructors[k]
	return ok
}
