package engine

import (
	"context"
	"fmt"
	"strings"
)

type Kind string

var (
	KindEveryone  Kind = "everyone"
	KindForbidden Kind = "forbidden"
	KindRepeats   Kind = "repeats"
	KindInviteAd  Kind = "ad"
	KindBlacklist Kind = "blacklist"
	KindEmbeds    Kind = "embeds"
	KindRegex     Kind = "regex"
	KindEmojiOnly Kind = "emojionly"
	KindPressure  Kind = "pressure"
)

// Durable rule configuration, as stored by the ConfigStore.
type RuleDefinition struct {
	GuildID    string
	ID         int
	Kind       Kind
	Punishment Punishment
	// number of live strikes before the punishment fires
	StrikeLimit int
	// seconds after which an individual strike expires
	StrikeWindowSeconds int
	Parameters          []string
}

// Checks the kind-independent invariants. Kind-specific parameter validation happens when a Rule is constructed.
func (def *RuleDefinition) Validate() error {
	if def.GuildID == "" {
		return NewConfigError("guild", "missing guild id")
	}
	if def.StrikeLimit < 1 {
		return NewConfigError("limit", "strike limit must be at least 1 (got %d)", def.StrikeLimit)
	}
	if def.StrikeWindowSeconds < 0 {
		return NewConfigError("timeout", "strike window can not be negative (got %d)", def.StrikeWindowSeconds)
	}
	return nil
}

// One-line summary, eg: "[3] blacklist {15 s} [foo, bar] -> roleban"
func (def *RuleDefinition) Describe() string {
	var params string
	if len(def.Parameters) > 0 {
		params = " [" + strings.Join(def.Parameters, ", ") + "]"
	}
	return fmt.Sprintf("[%d] %s {%d s}%s -> %s", def.ID, def.Kind, def.StrikeWindowSeconds, params, def.Punishment)
}

// Output of a triggered rule evaluation.
type Verdict struct {
	RuleID     int
	Kind       Kind
	Punishment Punishment
	// human-readable description of the triggering rule
	Reason string
	// additional messages which should be purged along with the punishment
	Deletes []MessageRef
}

// Stateful evaluator for a single configured rule.
//
// Evaluate is called once per inbound message, returning nil when the message does not trigger the rule. Implementations partition their own state by subject and must be safe for concurrent calls. Invalid configuration is rejected when the rule is constructed, never during evaluation.
type Rule interface {
	Definition() RuleDefinition
	Evaluate(ctx context.Context, msg *Message) *Verdict
}

// Optional interface for rules holding per-subject state that can be garbage collected.
type Pruner interface {
	Prune()
}

// Constructs a Rule from its definition, returning a *ConfigError for unknown kinds or invalid parameters.
type RuleFactory func(def RuleDefinition) (Rule, error)
