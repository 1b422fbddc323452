package store

import (
	"time"
)

type RuleRow struct {
	GuildID             string `gorm:"primaryKey"`
	RuleID              int    `gorm:"primaryKey;autoIncrement:false"`
	Kind                string `gorm:"not null"`
	Punishment          string `gorm:"not null"`
	StrikeLimit         int
	StrikeWindowSeconds int
	// JSON array of strings
	Parameters string
	CreatedAt  time.Time
}

func (RuleRow) TableName() string {
	return "automod_rules"
}

type GuildSettingsRow struct {
	GuildID        string `gorm:"primaryKey"`
	AnnouncePrefix string
	// JSON array of strings
	SilenceTriggers string
	RolebanRoleID   string
	ModLogChannelID string
	DehoistEnabled  bool
	HoistCharacters string
	DehoistPrepend  string
	UpdatedAt       time.Time
}

func (GuildSettingsRow) TableName() string {
	return "automod_guild_settings"
}
