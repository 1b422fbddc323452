package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

type guildRules struct {
	rules    []Rule
	settings GuildSettings
}

// Holds the active rules (in insertion order) and settings for every guild, mirrored in a ConfigStore.
//
// Warm must complete before the registry reports any rules; until then List returns an empty slice and writes fail with ErrNotWarm.
type RuleRegistry struct {
	Logger *slog.Logger
	Store  ConfigStore
	Build  RuleFactory

	// serializes Warm and writes so ID allocation and persistence happen in order
	writeLk sync.Mutex
	lk      sync.RWMutex
	guilds  map[string]*guildRules
	warm    atomic.Bool
}

func NewRuleRegistry(logger *slog.Logger, store ConfigStore, build RuleFactory) *RuleRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleRegistry{
		Logger: logger.With("component", "registry"),
		Store:  store,
		Build:  build,
		guilds: make(map[string]*guildRules),
	}
}

// Loads every guild's rules and settings from the ConfigStore. Stored definitions which fail to construct are logged and skipped.
func (r *RuleRegistry) Warm(ctx context.Context) error {
	r.writeLk.Lock()
	defer r.writeLk.Unlock()

	guildIDs, err := r.Store.ListGuilds(ctx)
	if err != nil {
		return fmt.Errorf("listing guilds: %w", err)
	}

	loaded := make(map[string]*guildRules, len(guildIDs))
	total := 0
	for _, guildID := range guildIDs {
		defs, err := r.Store.LoadAllRules(ctx, guildID)
		if err != nil {
			return fmt.Errorf("loading rules for guild %s: %w", guildID, err)
		}
		settings, err := r.Store.LoadSettings(ctx, guildID)
		if err != nil {
			return fmt.Errorf("loading settings for guild %s: %w", guildID, err)
		}
		gr := &guildRules{settings: *settings}
		for _, def := range defs {
			def.GuildID = guildID
			rule, err := r.Build(def)
			if err != nil {
				r.Logger.Warn("skipping stored automod rule", "guild", guildID, "rule", def.ID, "kind", def.Kind, "err", err)
				continue
			}
			gr.rules = append(gr.rules, rule)
		}
		total += len(gr.rules)
		loaded[guildID] = gr
	}

	r.lk.Lock()
	r.guilds = loaded
	r.lk.Unlock()
	r.warm.Store(true)
	r.Logger.Info("automod registry warm", "guilds", len(loaded), "rules", total)
	return nil
}

func (r *RuleRegistry) IsWarm() bool {
	return r.warm.Load()
}

// Returns the guild's rules in evaluation order. Never nil.
func (r *RuleRegistry) List(guildID string) []Rule {
	if !r.IsWarm() {
		return []Rule{}
	}
	r.lk.RLock()
	defer r.lk.RUnlock()
	gr, ok := r.guilds[guildID]
	if !ok {
		return []Rule{}
	}
	return slices.Clone(gr.rules)
}

func (r *RuleRegistry) Definitions(guildID string) []RuleDefinition {
	rules := r.List(guildID)
	out := make([]RuleDefinition, 0, len(rules))
	for _, rule := range rules {
		out = append(out, rule.Definition())
	}
	return out
}

func (r *RuleRegistry) Settings(guildID string) GuildSettings {
	r.lk.RLock()
	defer r.lk.RUnlock()
	gr, ok := r.guilds[guildID]
	if !ok {
		return GuildSettings{GuildID: guildID}
	}
	s := gr.settings
	s.SilenceTriggers = slices.Clone(s.SilenceTriggers)
	return s
}

func (r *RuleRegistry) UpdateSettings(ctx context.Context, settings GuildSettings) error {
	if settings.GuildID == "" {
		return NewConfigError("guild", "missing guild id")
	}
	r.writeLk.Lock()
	defer r.writeLk.Unlock()
	if !r.IsWarm() {
		return ErrNotWarm
	}

	if err := r.Store.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("saving guild settings: %w", err)
	}
	r.lk.Lock()
	defer r.lk.Unlock()
	gr := r.guildLocked(settings.GuildID)
	gr.settings = settings
	return nil
}

// Validates, constructs, and persists a new rule, appending it to the guild's evaluation order.
//
// The ID is the guild's current maximum rule ID plus one (or 1 for the first rule). Returns a *ConfigError if the kind or parameters are invalid, in which case nothing is persisted.
func (r *RuleRegistry) Add(ctx context.Context, guildID string, kind Kind, punishment Punishment, strikeLimit, strikeWindowSeconds int, params []string) (*RuleDefinition, error) {
	r.writeLk.Lock()
	defer r.writeLk.Unlock()
	if !r.IsWarm() {
		return nil, ErrNotWarm
	}

	def := RuleDefinition{
		GuildID:             guildID,
		Kind:                kind,
		Punishment:          punishment,
		StrikeLimit:         strikeLimit,
		StrikeWindowSeconds: strikeWindowSeconds,
		Parameters:          slices.Clone(params),
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	maxID := 0
	for _, existing := range r.List(guildID) {
		maxID = max(maxID, existing.Definition().ID)
	}
	def.ID = maxID + 1

	rule, err := r.Build(def)
	if err != nil {
		return nil, err
	}

	id, err := r.Store.InsertRule(ctx, def)
	if err != nil {
		return nil, fmt.Errorf("persisting automod rule: %w", err)
	}
	if id != def.ID {
		r.Logger.Warn("store assigned different rule id", "guild", guildID, "expected", def.ID, "stored", id)
		def.ID = id
		if rule, err = r.Build(def); err != nil {
			return nil, err
		}
	}

	r.lk.Lock()
	gr := r.guildLocked(guildID)
	gr.rules = append(gr.rules, rule)
	r.lk.Unlock()

	r.Logger.Info("added automod rule", "guild", guildID, "rule", def.ID, "kind", def.Kind, "punishment", def.Punishment.String())
	return &def, nil
}

// Removes the rule with the given ID. Returns ErrRuleNotFound if the guild has no such rule.
func (r *RuleRegistry) Remove(ctx context.Context, guildID string, id int) (*RuleDefinition, error) {
	r.writeLk.Lock()
	defer r.writeLk.Unlock()
	if !r.IsWarm() {
		return nil, ErrNotWarm
	}

	var found *RuleDefinition
	for _, rule := range r.List(guildID) {
		if def := rule.Definition(); def.ID == id {
			found = &def
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("guild %s rule %d: %w", guildID, id, ErrRuleNotFound)
	}

	existed, err := r.Store.DeleteRule(ctx, guildID, id)
	if err != nil {
		return nil, fmt.Errorf("deleting automod rule: %w", err)
	}
	if !existed {
		r.Logger.Warn("automod rule missing from store during delete", "guild", guildID, "rule", id)
	}

	r.lk.Lock()
	gr := r.guildLocked(guildID)
	gr.rules = slices.DeleteFunc(gr.rules, func(rule Rule) bool { return rule.Definition().ID == id })
	r.lk.Unlock()

	r.Logger.Info("removed automod rule", "guild", guildID, "rule", id)
	return found, nil
}

// Runs Prune on every rule which supports it.
func (r *RuleRegistry) Prune() {
	r.lk.RLock()
	var all []Rule
	for _, gr := range r.guilds {
		all = append(all, gr.rules...)
	}
	r.lk.RUnlock()

	for _, rule := range all {
		if p, ok := rule.(Pruner); ok {
			p.Prune()
		}
	}
}

// caller must hold r.lk for writing
func (r *RuleRegistry) guildLocked(guildID string) *guildRules {
	gr, ok := r.guilds[guildID]
	if !ok {
		gr = &guildRules{settings: GuildSettings{GuildID: guildID}}
		r.guilds[guildID] = gr
	}
	return gr
}
