package rules

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sleetbot/warden/automod/engine"
)

// Strikes on every match of a single configured pattern.
type regexRule struct {
	strikeCounter[struct{}]
	re *regexp.Regexp
}

var _ engine.Rule = (*regexRule)(nil)

func newRegexRule(f *Factory, def engine.RuleDefinition) (engine.Rule, error) {
	re, err := ParseRegexParams(def.Parameters)
	if err != nil {
		return nil, err
	}
	return &regexRule{
		strikeCounter: newStrikeCounter[struct{}](f, def, fmt.Sprintf("Matched regex /%s/", re.String())),
		re:            re,
	}, nil
}

// Compiles regex rule parameters, given as either ["pattern", "flags"] or ["/pattern/flags"].
//
// Supported flags are i, m, and s. The u and g flags are accepted and ignored.
func ParseRegexParams(params []string) (*regexp.Regexp, error) {
	var pattern, flags string
	switch len(params) {
	case 1:
		pattern = params[0]
		if strings.HasPrefix(pattern, "/") {
			if idx := strings.LastIndex(pattern, "/"); idx > 0 {
				pattern, flags = pattern[1:idx], pattern[idx+1:]
			}
		}
	case 2:
		pattern, flags = params[0], params[1]
	default:
		return nil, engine.NewConfigError("parameters", "regex takes a pattern and optional flags (got %d parameters)", len(params))
	}
	if pattern == "" {
		return nil, engine.NewConfigError("parameters", "empty regex pattern")
	}

	var inline strings.Builder
	seen := make(map[rune]bool)
	for _, fl := range flags {
		if seen[fl] {
			continue
		}
		seen[fl] = true
		switch fl {
		case 'i', 'm', 's':
			inline.WriteRune(fl)
		case 'u', 'g':
		default:
			return nil, engine.NewConfigError("parameters", "unsupported regex flag %q", fl)
		}
	}
	if inline.Len() > 0 {
		pattern = "(?" + inline.String() + ")" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, engine.NewConfigError("parameters", "bad regex: %v", err)
	}
	return re, nil
}

func (r *regexRule) Evaluate(ctx context.Context, msg *engine.Message) *engine.Verdict {
	matches := r.re.FindAllStringIndex(msg.Content, -1)
	if len(matches) == 0 {
		return nil
	}
	n := 0
	for _, m := range matches {
		if m[1] > m[0] {
			n++
		}
	}
	// zero-width patterns (eg anchors only) still count once
	if n == 0 {
		n = 1
	}
	return r.strike(msg, n)
}
