package engine

import (
	"fmt"
	"strings"
)

type PunishmentKind string

var (
	PunishNone    PunishmentKind = "none"
	PunishDelete  PunishmentKind = "delete"
	PunishRoleBan PunishmentKind = "roleban"
	PunishKick    PunishmentKind = "kick"
	PunishBan     PunishmentKind = "ban"
	PunishSoftBan PunishmentKind = "softban"
	PunishWhisper PunishmentKind = "whisper"
	PunishLogOnly PunishmentKind = "log"
)

// Tagged punishment value. Message is only meaningful for PunishWhisper.
type Punishment struct {
	Kind    PunishmentKind
	Message string
}

// Parses the admin-facing punishment syntax: one of the punishment kinds, or "whisper:<message>".
func ParsePunishment(raw string) (Punishment, error) {
	raw = strings.TrimSpace(raw)
	name, rest, hasMsg := strings.Cut(raw, ":")
	kind := PunishmentKind(strings.ToLower(strings.TrimSpace(name)))
	switch kind {
	case PunishNone, PunishDelete, PunishRoleBan, PunishKick, PunishBan, PunishSoftBan, PunishLogOnly:
		if hasMsg {
			return Punishment{}, NewConfigError("punishment", "%q does not take a message", kind)
		}
		return Punishment{Kind: kind}, nil
	case PunishWhisper:
		msg := strings.TrimSpace(rest)
		if msg == "" {
			return Punishment{}, NewConfigError("punishment", "whisper requires a message, eg whisper:<message>")
		}
		return Punishment{Kind: kind, Message: msg}, nil
	case "":
		return Punishment{}, NewConfigError("punishment", "missing punishment")
	default:
		return Punishment{}, NewConfigError("punishment", "unknown punishment %q", name)
	}
}

func MustParsePunishment(raw string) Punishment {
	p, err := ParsePunishment(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Punishment) String() string {
	if p.Kind == PunishWhisper {
		return fmt.Sprintf("%s:%s", p.Kind, p.Message)
	}
	if p.Kind == "" {
		return string(PunishNone)
	}
	return string(p.Kind)
}
