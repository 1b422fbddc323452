package engine

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// In-process ConfigStore. Nothing survives a restart; useful for tests and ephemeral deployments.
type MemConfigStore struct {
	lk       sync.Mutex
	Rules    map[string][]RuleDefinition
	Settings map[string]GuildSettings
}

var _ ConfigStore = (*MemConfigStore)(nil)

func NewMemConfigStore() *MemConfigStore {
	return &MemConfigStore{
		Rules:    make(map[string][]RuleDefinition),
		Settings: make(map[string]GuildSettings),
	}
}

func (s *MemConfigStore) ListGuilds(ctx context.Context) ([]string, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	seen := make(map[string]bool)
	for g := range s.Rules {
		seen[g] = true
	}
	for g := range s.Settings {
		seen[g] = true
	}
	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemConfigStore) LoadAllRules(ctx context.Context, guildID string) ([]RuleDefinition, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	return slices.Clone(s.Rules[guildID]), nil
}

func (s *MemConfigStore) InsertRule(ctx context.Context, def RuleDefinition) (int, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	def.Parameters = slices.Clone(def.Parameters)
	s.Rules[def.GuildID] = append(s.Rules[def.GuildID], def)
	return def.ID, nil
}

func (s *MemConfigStore) DeleteRule(ctx context.Context, guildID string, id int) (bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	defs := s.Rules[guildID]
	idx := slices.IndexFunc(defs, func(d RuleDefinition) bool { return d.ID == id })
	if idx < 0 {
		return false, nil
	}
	s.Rules[guildID] = slices.Delete(defs, idx, idx+1)
	return true, nil
}

func (s *MemConfigStore) LoadSettings(ctx context.Context, guildID string) (*GuildSettings, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	gs, ok := s.Settings[guildID]
	if !ok {
		return &GuildSettings{GuildID: guildID}, nil
	}
	gs.SilenceTriggers = slices.Clone(gs.SilenceTriggers)
	return &gs, nil
}

func (s *MemConfigStore) SaveSettings(ctx context.Context, settings GuildSettings) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	settings.SilenceTriggers = slices.Clone(settings.SilenceTriggers)
	s.Settings[settings.GuildID] = settings
	return nil
}
