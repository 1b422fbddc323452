package automod

import (
	"github.com/sleetbot/warden/automod/engine"
)

type Engine = engine.Engine
type Message = engine.Message
type Author = engine.Author
type Embed = engine.Embed
type MessageRef = engine.MessageRef

type Rule = engine.Rule
type RuleDefinition = engine.RuleDefinition
type RuleFactory = engine.RuleFactory
type RuleRegistry = engine.RuleRegistry
type Verdict = engine.Verdict
type Kind = engine.Kind
type Punishment = engine.Punishment
type PunishmentKind = engine.PunishmentKind

type Dispatcher = engine.Dispatcher
type SilenceCounter = engine.SilenceCounter

type Platform = engine.Platform
type ModLog = engine.ModLog
type ConfigStore = engine.ConfigStore
type GuildSettings = engine.GuildSettings
type Standing = engine.Standing

var (
	NewRuleRegistry   = engine.NewRuleRegistry
	NewDispatcher     = engine.NewDispatcher
	NewSilenceCounter = engine.NewSilenceCounter
	ParsePunishment   = engine.ParsePunishment

	ErrConfiguration    = engine.ErrConfiguration
	ErrRuleNotFound     = engine.ErrRuleNotFound
	ErrNotWarm          = engine.ErrNotWarm
	ErrPermissionDenied = engine.ErrPermissionDenied
	ErrNotFound         = engine.ErrNotFound
	ErrTransient        = engine.ErrTransient
)
