package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/sleetbot/warden/automod/engine"

	"gorm.io/gorm"
)

// ConfigStore persisted through gorm (sqlite or postgres).
type GormConfigStore struct {
	Logger *slog.Logger
	db     *gorm.DB
}

var _ engine.ConfigStore = (*GormConfigStore)(nil)

// Migrates the automod tables as needed.
func NewGormConfigStore(logger *slog.Logger, db *gorm.DB) (*GormConfigStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.AutoMigrate(&RuleRow{}, &GuildSettingsRow{}); err != nil {
		return nil, fmt.Errorf("migrating automod tables: %w", err)
	}
	return &GormConfigStore{
		Logger: logger.With("component", "configstore"),
		db:     db,
	}, nil
}

func (s *GormConfigStore) ListGuilds(ctx context.Context) ([]string, error) {
	var ruleGuilds, settingsGuilds []string
	if err := s.db.WithContext(ctx).Model(&RuleRow{}).Distinct().Pluck("guild_id", &ruleGuilds).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&GuildSettingsRow{}).Pluck("guild_id", &settingsGuilds).Error; err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, g := range append(ruleGuilds, settingsGuilds...) {
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *GormConfigStore) LoadAllRules(ctx context.Context, guildID string) ([]engine.RuleDefinition, error) {
	var rows []RuleRow
	if err := s.db.WithContext(ctx).Where("guild_id = ?", guildID).Order("rule_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]engine.RuleDefinition, 0, len(rows))
	for _, row := range rows {
		def, err := row.definition()
		if err != nil {
			// one corrupt row shouldn't take down the whole guild
			s.Logger.Warn("skipping unreadable rule row", "guild", guildID, "rule", row.RuleID, "err", err)
			continue
		}
		out = append(out, *def)
	}
	return out, nil
}

// Stores the definition under its ID, or under the next free ID if that one is taken.
func (s *GormConfigStore) InsertRule(ctx context.Context, def engine.RuleDefinition) (int, error) {
	params, err := encodeStrings(def.Parameters)
	if err != nil {
		return 0, err
	}
	row := RuleRow{
		GuildID:             def.GuildID,
		RuleID:              def.ID,
		Kind:                string(def.Kind),
		Punishment:          def.Punishment.String(),
		StrikeLimit:         def.StrikeLimit,
		StrikeWindowSeconds: def.StrikeWindowSeconds,
		Parameters:          params,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxID int
		if err := tx.Model(&RuleRow{}).Where("guild_id = ?", def.GuildID).Select("COALESCE(MAX(rule_id), 0)").Scan(&maxID).Error; err != nil {
			return err
		}
		if row.RuleID <= maxID {
			var taken int64
			if err := tx.Model(&RuleRow{}).Where("guild_id = ? AND rule_id = ?", def.GuildID, row.RuleID).Count(&taken).Error; err != nil {
				return err
			}
			if taken > 0 || row.RuleID <= 0 {
				row.RuleID = maxID + 1
			}
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return 0, fmt.Errorf("inserting rule: %w", err)
	}
	return row.RuleID, nil
}

func (s *GormConfigStore) DeleteRule(ctx context.Context, guildID string, id int) (bool, error) {
	res := s.db.WithContext(ctx).Where("guild_id = ? AND rule_id = ?", guildID, id).Delete(&RuleRow{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormConfigStore) LoadSettings(ctx context.Context, guildID string) (*engine.GuildSettings, error) {
	var row GuildSettingsRow
	err := s.db.WithContext(ctx).Where("guild_id = ?", guildID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &engine.GuildSettings{GuildID: guildID}, nil
	}
	if err != nil {
		return nil, err
	}
	triggers, err := decodeStrings(row.SilenceTriggers)
	if err != nil {
		return nil, fmt.Errorf("decoding silence triggers for guild %s: %w", guildID, err)
	}
	return &engine.GuildSettings{
		GuildID:         row.GuildID,
		AnnouncePrefix:  row.AnnouncePrefix,
		SilenceTriggers: triggers,
		RolebanRoleID:   row.RolebanRoleID,
		ModLogChannelID: row.ModLogChannelID,
		Dehoist: engine.DehoistSettings{
			Enabled:         row.DehoistEnabled,
			HoistCharacters: row.HoistCharacters,
			Prepend:         row.DehoistPrepend,
		},
	}, nil
}

func (s *GormConfigStore) SaveSettings(ctx context.Context, settings engine.GuildSettings) error {
	triggers, err := encodeStrings(settings.SilenceTriggers)
	if err != nil {
		return err
	}
	row := GuildSettingsRow{
		GuildID:         settings.GuildID,
		AnnouncePrefix:  settings.AnnouncePrefix,
		SilenceTriggers: triggers,
		RolebanRoleID:   settings.RolebanRoleID,
		ModLogChannelID: settings.ModLogChannelID,
		DehoistEnabled:  settings.Dehoist.Enabled,
		HoistCharacters: settings.Dehoist.HoistCharacters,
		DehoistPrepend:  settings.Dehoist.Prepend,
	}
	// upsert on primary key
	return s.db.WithContext(ctx).Save(&row).Error
}

func (row *RuleRow) definition() (*engine.RuleDefinition, error) {
	p, err := engine.ParsePunishment(row.Punishment)
	if err != nil {
		return nil, err
	}
	params, err := decodeStrings(row.Parameters)
	if err != nil {
		return nil, fmt.Errorf("decoding parameters: %w", err)
	}
	return &engine.RuleDefinition{
		GuildID:             row.GuildID,
		ID:                  row.RuleID,
		Kind:                engine.Kind(row.Kind),
		Punishment:          p,
		StrikeLimit:         row.StrikeLimit,
		StrikeWindowSeconds: row.StrikeWindowSeconds,
		Parameters:          params,
	}, nil
}

func encodeStrings(vals []string) (string, error) {
	if len(vals) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(vals)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeStrings(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
