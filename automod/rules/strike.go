package rules

import (
	"fmt"
	"time"

	"github.com/sleetbot/warden/automod/engine"
	"github.com/sleetbot/warden/automod/strikestore"
)

// Shared accumulation policy for the discrete-strike rule kinds: each detected occurrence adds a mark, marks expire individually after the window, and the rule fires (clearing all of the subject's marks) once the live count reaches the strike limit.
type strikeCounter[T any] struct {
	def     engine.RuleDefinition
	reason  string
	idleTTL time.Duration
	store   *strikestore.MemStrikeStore[T]
}

func newStrikeCounter[T any](f *Factory, def engine.RuleDefinition, reason string) strikeCounter[T] {
	store := strikestore.NewMemStrikeStore[T](time.Duration(def.StrikeWindowSeconds) * time.Second)
	store.Now = f.now
	return strikeCounter[T]{
		def:     def,
		reason:  reason,
		idleTTL: f.IdleTTL,
		store:   store,
	}
}

func (c *strikeCounter[T]) Definition() engine.RuleDefinition {
	return c.def
}

func (c *strikeCounter[T]) Prune() {
	idle := max(c.idleTTL, c.store.Window)
	c.store.Prune(idle)
}

// Number of live strikes for a subject.
func (c *strikeCounter[T]) Strikes(subjectKey string) int {
	return c.store.Count(subjectKey)
}

func (c *strikeCounter[T]) verdict() *engine.Verdict {
	return &engine.Verdict{
		RuleID:     c.def.ID,
		Kind:       c.def.Kind,
		Punishment: c.def.Punishment,
		Reason:     c.reason,
	}
}

// tokens for n strikes recorded against a single message
func strikeTokens(msgID string, n int) []string {
	if n == 1 {
		return []string{msgID}
	}
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s#%d", msgID, i)
	}
	return out
}

// Records n strikes for the message's subject, returning a verdict if the limit was reached.
func (c *strikeCounter[T]) strike(msg *engine.Message, n int) *engine.Verdict {
	if n <= 0 {
		return nil
	}
	fired := false
	c.store.Update(msg.SubjectKey(), func(now time.Time, subj *strikestore.Subject[T]) {
		subj.Add(now, strikeTokens(msg.ID, n)...)
		if subj.Live() >= c.def.StrikeLimit {
			subj.Clear()
			fired = true
		}
	})
	if !fired {
		return nil
	}
	return c.verdict()
}
