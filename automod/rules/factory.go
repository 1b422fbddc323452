package rules

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sleetbot/warden/automod/engine"
	"github.com/sleetbot/warden/automod/setstore"
)

// Resolves an invite code to the ID of the guild it points at.
type InviteResolver interface {
	ResolveInviteGuild(ctx context.Context, code string) (string, error)
}

// Constructs rules from their stored definitions, supplying shared collaborators.
type Factory struct {
	Logger *slog.Logger
	// defaults to time.Now; overridden in tests
	Now func() time.Time
	// optional; enables $name phrase set references in blacklist rules
	Sets setstore.SetStore
	// optional; without it every non-allowlisted invite counts
	Invites InviteResolver
	// rule state for subjects idle at least this long (with no live strikes) is dropped by Prune
	IdleTTL time.Duration
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		Logger:  logger.With("component", "rules"),
		Now:     time.Now,
		IdleTTL: 30 * time.Minute,
	}
}

// Implements engine.RuleFactory.
func (f *Factory) Build(def engine.RuleDefinition) (engine.Rule, error) {
	def.Kind = engine.Kind(strings.ToLower(string(def.Kind)))
	ctor, ok := constructors[def.Kind]
	if !ok {
		return nil, engine.NewConfigError("kind", "unknown rule kind %q", def.Kind)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	var params []string
	for _, p := range def.Parameters {
		if p != "" {
			params = append(params, p)
		}
	}
	def.Parameters = params
	return ctor(f, def)
}

func (f *Factory) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

func (f *Factory) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}
