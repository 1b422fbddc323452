package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sleetbot/warden/automod/cachestore"
)

// Gate reasons, used as metric labels and in debug logs.
const (
	GateNotGuild   = "not-guild"
	GateBot        = "bot"
	GateEdited     = "edited"
	GateBypass     = "bypass-permission"
	GateRank       = "rank"
	GateNoStanding = "standing-unavailable"
)


// runtime for gating inbound messages, evaluating the guild's rules, and dispatching verdicts.
//
// Registry, Dispatcher, Platform, and Cache must all be non-nil. The registry should be warmed before messages are processed.
type Engine struct {
	Logger     *slog.Logger
	Registry   *RuleRegistry
	Dispatcher *Dispatcher
	Platform   Platform
	Cache      cachestore.CacheStore
	Silence    *SilenceCounter
}

// Outcome of processing one message. Gate is empty if the message passed gating.
type ProcessResult struct {
	Gate     string
	Verdicts []*Verdict
	Results  []*DispatchResult
}

// Runs a single message through gating, the silence side-channel, rule evaluation, and dispatch.
//
// Gated messages are not an error. An error is only returned when the author's standing can not be determined, in which case no rules were evaluated.
func (eng *Engine) ProcessMessage(ctx context.Context, msg *Message) (res *ProcessResult, err error) {
	// similar to an HTTP server, we want to recover any panics from rule execution
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("automod message execution exception", "err", r, "guild", msg.GuildID, "channel", msg.ChannelID, "message", msg.ID)
			err = fmt.Errorf("automod panic: %v", r)
		}
	}()

	start := time.Now()
	defer func() {
		messageProcessDuration.Observe(time.Since(start).Seconds())
	}()

	res = &ProcessResult{}
	gate, err := eng.gate(ctx, msg)
	if gate != "" {
		messageGatedCount.WithLabelValues(gate).Inc()
		res.Gate = gate
		return res, err
	}

	logger := eng.Logger.With("guild", msg.GuildID, "channel", msg.ChannelID, "user", msg.Author.ID, "message", msg.ID)
	settings := eng.Registry.Settings(msg.GuildID)

	if eng.Silence != nil && containsAnyTrigger(msg.Content, settings.SilenceTriggers) {
		silenceTriggerCount.Inc()
		logger.Debug("silence trigger seen")
		eng.Silence.Bump(msg.ChannelID)
	}

	rules := eng.Registry.List(msg.GuildID)
	if len(rules) == 0 {
		return res, nil
	}
	messageProcessCount.Inc()

	for _, rule := range rules {
		v := eng.evaluateRule(ctx, logger, rule, msg)
		if v == nil {
			continue
		}
		res.Verdicts = append(res.Verdicts, v)
	}

	for _, v := range res.Verdicts {
		verdictCount.WithLabelValues(string(v.Kind), string(v.Punishment.Kind)).Inc()
		res.Results = append(res.Results, eng.Dispatcher.Dispatch(ctx, msg, settings, v))
	}
	return res, nil
}

func (eng *Engine) evaluateRule(ctx context.Context, logger *slog.Logger, rule Rule, msg *Message) (v *Verdict) {
	def := rule.Definition()
	defer func() {
		if r := recover(); r != nil {
			rulePanicCount.WithLabelValues(string(def.Kind)).Inc()
			logger.Error("automod rule execution exception", "err", r, "rule", def.ID, "kind", def.Kind)
			v = nil
		}
	}()

	v = rule.Evaluate(ctx, msg)
	if v == nil {
		return nil
	}
	if v.RuleID == 0 {
		v.RuleID = def.ID
	}
	if v.Kind == "" {
		v.Kind = def.Kind
	}
	if v.Punishment.Kind == "" {
		v.Punishment = def.Punishment
	}
	return v
}

// Returns a non-empty gate reason if automod should not run on this message.
func (eng *Engine) gate(ctx context.Context, msg *Message) (string, error) {
	if msg.GuildID == "" {
		return GateNotGuild, nil
	}
	if msg.Author.Bot || msg.WebhookID != "" {
		return GateBot, nil
	}
	if msg.EditedAt != nil {
		return GateEdited, nil
	}

	member, err := eng.standing(ctx, msg.GuildID, msg.Author.ID)
	if err != nil {
		return GateNoStanding, fmt.Errorf("fetching member standing: %w", err)
	}
	if member.Has(PermissionManageMessages) {
		return GateBypass, nil
	}
	bot, err := eng.standing(ctx, msg.GuildID, "")
	if err != nil {
		return GateNoStanding, fmt.Errorf("fetching bot standing: %w", err)
	}
	if member.TopRolePosition >= bot.TopRolePosition {
		return GateRank, nil
	}
	return "", nil
}

func standingCacheKey(guildID, userID string) string {
	if userID == "" {
		return guildID + "/@me"
	}
	return guildID + "/" + userID
}

// Fetches (and caches) guild standing. An empty userID means the bot's own standing.
func (eng *Engine) standing(ctx context.Context, guildID, userID string) (*Standing, error) {
	key := standingCacheKey(guildID, userID)
	cached, ok, err := cachestore.GetJSON[Standing](ctx, eng.Cache, cachestore.StandingCache, key)
	if err != nil {
		return nil, fmt.Errorf("failed checking standing cache: %w", err)
	}
	if ok {
		return cached, nil
	}

	standingLookups.Inc()
	var st *Standing
	if userID == "" {
		st, err = eng.Platform.BotStanding(ctx, guildID)
	} else {
		st, err = eng.Platform.MemberStanding(ctx, guildID, userID)
	}
	if err != nil {
		return nil, err
	}

	if err := cachestore.SetJSON(ctx, eng.Cache, cachestore.StandingCache, key, st); err != nil {
		eng.Logger.Error("writing to standing cache", "err", err)
	}
	return st, nil
}

// Drops any cached standing for the member, eg after a role change. An empty userID purges the bot's own standing.
func (eng *Engine) PurgeStanding(ctx context.Context, guildID, userID string) error {
	return eng.Cache.Purge(ctx, cachestore.StandingCache, standingCacheKey(guildID, userID))
}

func (eng *Engine) SilenceCount(channelID string) int {
	if eng.Silence == nil {
		return 0
	}
	return eng.Silence.Count(channelID)
}

// Resets the channel's silence counter, returning the previous count.
func (eng *Engine) ClearSilence(channelID string) int {
	if eng.Silence == nil {
		return 0
	}
	return eng.Silence.Clear(channelID)
}
