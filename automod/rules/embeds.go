package rules

import (
	"context"
	"strings"
	"time"

	"github.com/sleetbot/warden/automod/engine"
	"github.com/sleetbot/warden/automod/helpers"
	"github.com/sleetbot/warden/automod/strikestore"
)

type burstEntry struct {
	ref engine.MessageRef
	at  time.Time
}

type embedState struct {
	last  string
	burst []burstEntry
}

// drops burst entries which have aged out of the strike window, using the same liveness rule as marks
func (st *embedState) sweep(now time.Time, window time.Duration) {
	idx := 0
	for idx < len(st.burst) && !now.Before(st.burst[idx].at.Add(window)) {
		idx++
	}
	if idx > 0 {
		st.burst = append(st.burst[:0:0], st.burst[idx:]...)
	}
}

func (st *embedState) refs() []engine.MessageRef {
	out := make([]engine.MessageRef, 0, len(st.burst))
	for _, e := range st.burst {
		out = append(out, e.ref)
	}
	return out
}

// Like repeats, but compares embed content, and purges every message of the detected burst when firing.
type embedsRule struct {
	strikeCounter[embedState]
}

var _ engine.Rule = (*embedsRule)(nil)

func newEmbedsRule(f *Factory, def engine.RuleDefinition) (engine.Rule, error) {
	return &embedsRule{
		strikeCounter: newStrikeCounter[embedState](f, def, "Repeated embeds"),
	}, nil
}

// Stable hash of the semantically relevant embed fields. Empty if the message has no embeds.
func EmbedFingerprint(embeds []engine.Embed) string {
	if len(embeds) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, e := range embeds {
		for _, s := range []string{e.Type, e.Title, e.Description, e.URL, e.ImageURL, e.ThumbnailURL} {
			sb.WriteString(s)
			sb.WriteByte(0)
		}
		for _, fld := range e.Fields {
			sb.WriteString(fld.Name)
			sb.WriteByte(0)
			sb.WriteString(fld.Value)
			sb.WriteByte(0)
		}
		sb.WriteByte(1)
	}
	return helpers.HashOfString(sb.String())
}

func (r *embedsRule) Evaluate(ctx context.Context, msg *engine.Message) *engine.Verdict {
	fp := EmbedFingerprint(msg.Embeds)
	if fp == "" {
		return nil
	}
	threshold := max(r.def.StrikeLimit-1, 1)
	var deletes []engine.MessageRef
	r.store.Update(msg.SubjectKey(), func(now time.Time, subj *strikestore.Subject[embedState]) {
		st := &subj.Data
		entry := burstEntry{ref: msg.Ref(), at: now}
		if fp != st.last {
			st.last = fp
			st.burst = []burstEntry{entry}
			return
		}
		st.sweep(now, r.store.Window)
		st.burst = append(st.burst, entry)
		subj.Add(now, msg.ID)
		if subj.Live() >= threshold {
			deletes = st.refs()
			st.burst = nil
			subj.Clear()
		}
	})
	if deletes == nil {
		return nil
	}
	v := r.verdict()
	v.Deletes = deletes
	return v
}
