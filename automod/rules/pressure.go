package rules

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/sleetbot/warden/automod/engine"
	"github.com/sleetbot/warden/automod/strikestore"
)

// Per-message weights for the pressure rule.
type PressureWeights struct {
	Base       float64
	Char       float64
	Line       float64
	Mention    float64
	Attachment float64
	Embed      float64
	Repeat     float64
}

var DefaultPressureWeights = PressureWeights{
	Base:       10,
	Char:       0.05,
	Line:       3,
	Mention:    2.5,
	Attachment: 8,
	Embed:      8,
	Repeat:     10,
}

type pressureState struct {
	pressure float64
	at       time.Time
	last     string
}

// Continuous-valued accumulator: each message adds weight, weight decays linearly over time, and the rule fires when accumulated pressure reaches the threshold.
//
// The threshold defaults to 10 × the strike limit (so a limit of N is roughly N plain messages), and the decay rate drains a full threshold's worth of pressure over one window.
type pressureRule struct {
	def       engine.RuleDefinition
	weights   PressureWeights
	threshold float64
	window    time.Duration
	idleTTL   time.Duration
	store     *strikestore.MemStrikeStore[pressureState]
}

var _ engine.Rule = (*pressureRule)(nil)
var _ engine.Pruner = (*pressureRule)(nil)

func newPressureRule(f *Factory, def engine.RuleDefinition) (engine.Rule, error) {
	w := DefaultPressureWeights
	threshold := 10 * float64(def.StrikeLimit)
	for _, p := range def.Parameters {
		key, raw, ok := strings.Cut(p, "=")
		if !ok {
			return nil, engine.NewConfigError("parameters", "pressure parameter %q is not key=value", p)
		}
		val, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || val < 0 {
			return nil, engine.NewConfigError("parameters", "pressure parameter %q needs a non-negative number", p)
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "base":
			w.Base = val
		case "char":
			w.Char = val
		case "line":
			w.Line = val
		case "mention":
			w.Mention = val
		case "attachment":
			w.Attachment = val
		case "embed":
			w.Embed = val
		case "repeat":
			w.Repeat = val
		case "threshold":
			if val == 0 {
				return nil, engine.NewConfigError("parameters", "pressure threshold must be positive")
			}
			threshold = val
		default:
			return nil, engine.NewConfigError("parameters", "unknown pressure parameter %q", key)
		}
	}

	store := strikestore.NewMemStrikeStore[pressureState](0)
	store.Now = f.now
	return &pressureRule{
		def:       def,
		weights:   w,
		threshold: threshold,
		window:    time.Duration(def.StrikeWindowSeconds) * time.Second,
		idleTTL:   f.IdleTTL,
		store:     store,
	}, nil
}

func (r *pressureRule) Definition() engine.RuleDefinition {
	return r.def
}

func (r *pressureRule) Prune() {
	r.store.Prune(max(r.idleTTL, r.window))
}

// Weight contributed by a single message, given the subject's previous content.
func (r *pressureRule) weigh(msg *engine.Message, last string) float64 {
	w := r.weights
	p := w.Base
	p += w.Char * float64(len([]rune(msg.Content)))
	p += w.Line * float64(strings.Count(msg.Content, "\n"))
	mentions := len(msg.MentionUsers) + len(msg.MentionRoles)
	if msg.MentionEveryone {
		mentions++
	}
	p += w.Mention * float64(mentions)
	p += w.Attachment * float64(msg.Attachments)
	p += w.Embed * float64(len(msg.Embeds))
	if msg.Content != "" && msg.Content == last {
		p += w.Repeat
	}
	return p
}

// Current (decayed) pressure for a subject.
func (r *pressureRule) Pressure(subjectKey string) float64 {
	var out float64
	r.store.Update(subjectKey, func(now time.Time, subj *strikestore.Subject[pressureState]) {
		out = r.decayed(subj.Data, now)
	})
	return out
}

func (r *pressureRule) decayed(st pressureState, now time.Time) float64 {
	if st.at.IsZero() || st.pressure <= 0 {
		return 0
	}
	if r.window <= 0 {
		return 0
	}
	elapsed := now.Sub(st.at).Seconds()
	if elapsed <= 0 {
		return st.pressure
	}
	rate := r.threshold / r.window.Seconds()
	return max(st.pressure-elapsed*rate, 0)
}

func (r *pressureRule) Evaluate(ctx context.Context, msg *engine.Message) *engine.Verdict {
	fired := false
	r.store.Update(msg.SubjectKey(), func(now time.Time, subj *strikestore.Subject[pressureState]) {
		st := &subj.Data
		p := r.decayed(*st, now) + r.weigh(msg, st.last)
		st.last = msg.Content
		st.at = now
		if p >= r.threshold {
			st.pressure = 0
			fired = true
			return
		}
		st.pressure = p
	})
	if !fired {
		return nil
	}
	return &engine.Verdict{
		RuleID:     r.def.ID,
		Kind:       r.def.Kind,
		Punishment: r.def.Punishment,
		Reason:     "Too much pressure",
	}
}
